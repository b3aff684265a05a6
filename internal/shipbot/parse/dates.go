// Package parse holds the pure text validators and parsers used by the shipment
// conversation: dates, quantities, size lists and free-form names.
package parse

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical ledger date format.
const DateLayout = "02/01/2006"

// inputLayouts accept one or two digit day and month with either separator.
var inputLayouts = []string{"2/1/2006", "2.1.2006"}

func parseDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ValidateDate reports whether text is a real calendar date written as
// DD/MM/YYYY or DD.MM.YYYY.
func ValidateDate(text string) bool {
	_, ok := parseDate(text)
	return ok
}

// StandardizeDate rewrites a valid date as zero-padded DD/MM/YYYY. Text that is not
// a valid date is returned unchanged.
func StandardizeDate(text string) string {
	t, ok := parseDate(text)
	if !ok {
		return text
	}
	return t.Format(DateLayout)
}

// DateNotBefore reports whether date a is on or after date b. Both must be valid.
func DateNotBefore(a, b string) bool {
	ta, okA := parseDate(a)
	tb, okB := parseDate(b)
	if !okA || !okB {
		return false
	}
	return !ta.Before(tb)
}

// ValidateAmount reports whether text is a base-10 integer greater than zero.
func ValidateAmount(text string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	return err == nil && n > 0
}

// ParseQuantity accepts zero or a positive amount. Zero is used to clear a size.
func ParseQuantity(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if text == "0" {
		return 0, true
	}
	if !ValidateAmount(text) {
		return 0, false
	}
	n, _ := strconv.Atoi(text)
	return n, true
}
