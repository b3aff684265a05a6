package parse

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CleanName normalizes a user supplied model, color or warehouse name: NFC
// composition and single spaces, so the same name typed on two keyboards compares
// equal.
func CleanName(text string) string {
	return strings.Join(strings.Fields(norm.NFC.String(text)), " ")
}

// SameName compares two names after cleaning, ignoring case.
func SameName(a, b string) bool {
	return strings.EqualFold(CleanName(a), CleanName(b))
}
