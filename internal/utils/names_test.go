package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFullName(t *testing.T) {
	cases := []struct {
		in                  string
		last, first, middle string
	}{
		{"", "", "", ""},
		{"Rojas", "Rojas", "", ""},
		{"  Rojas   Ana  ", "Rojas", "Ana", ""},
		{"Rojas Ana Maria Luisa", "Rojas", "Ana", "Maria Luisa"},
		{"Rojas Paz, Ana Maria", "Rojas Paz", "Ana", "Maria"},
		{"Rojas,Ana", "Rojas", "Ana", ""},
	}
	for _, tc := range cases {
		last, first, middle := ParseFullName(tc.in)
		assert.Equal(t, tc.last, last, tc.in)
		assert.Equal(t, tc.first, first, tc.in)
		assert.Equal(t, tc.middle, middle, tc.in)
	}
}
