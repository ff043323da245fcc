package aggregate

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatCount renders a count cell. Zero renders blank: an element that
// contributes nothing to a column legitimately lacks that dimension, which
// is different from a measured zero.
func FormatCount(n int) string {
	if n == 0 {
		return ""
	}
	return printer.Sprintf("%d", n)
}

// FormatQty renders a unit-column cell with thousands separators, blank for
// zero.
func FormatQty(v float64) string {
	if v == 0 {
		return ""
	}
	return printer.Sprintf("%.1f", v)
}
