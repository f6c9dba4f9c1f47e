package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPlainToken(t *testing.T) {
	id, secret := splitPlainToken("42|abcdef")
	require.NotNil(t, id)
	assert.Equal(t, int64(42), *id)
	assert.Equal(t, "abcdef", secret)

	id, secret = splitPlainToken("abcdef")
	assert.Nil(t, id)
	assert.Equal(t, "abcdef", secret)

	id, secret = splitPlainToken("x|abcdef")
	assert.Nil(t, id)
	assert.Equal(t, "abcdef", secret)
}
