package utils

import "strings"

// ParseFullName splits a debtor name into last, first and middle parts.
// "Rojas, Ana Maria" puts everything before the comma into last; otherwise
// the first word is the last name.
func ParseFullName(fullname string) (last, first, middle string) {
	fullname = strings.Join(strings.Fields(fullname), " ")
	if fullname == "" {
		return "", "", ""
	}

	if before, after, ok := strings.Cut(fullname, ","); ok {
		last = strings.TrimSpace(before)
		first, middle, _ = strings.Cut(strings.TrimSpace(after), " ")
		return last, first, middle
	}

	parts := strings.SplitN(fullname, " ", 3)
	last = parts[0]
	if len(parts) > 1 {
		first = parts[1]
	}
	if len(parts) > 2 {
		middle = parts[2]
	}
	return last, first, middle
}
