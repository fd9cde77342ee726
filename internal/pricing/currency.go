package pricing

import (
	"strconv"
	"strings"
)

// ParseCurrency extracts a number from a locale formatted currency string
// such as "$1,234.56" or "€1.234,56". Everything except digits and the two
// separators is dropped; the last separator is the decimal point and earlier
// ones are grouping, so a lone separator is always decimal ("$1,234" is
// 1.234). Unparsable input yields nil.
func ParseCurrency(s string) *float64 {
	var b strings.Builder
	lastSep := -1
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == ',':
			lastSep = b.Len()
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if lastSep >= 0 {
		intPart := strings.NewReplacer(".", "", ",", "").Replace(cleaned[:lastSep])
		cleaned = intPart + "." + cleaned[lastSep+1:]
	}
	if cleaned == "" || cleaned == "-" || cleaned == "." || cleaned == "-." {
		return nil
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}
