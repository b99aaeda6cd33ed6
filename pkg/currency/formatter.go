package currency

import (
	"strconv"
	"strings"
)

// Format renders a minor-unit amount for display, e.g. "IDR 1.250.000" or
// "USD 1,234.50". IDR keeps the dot thousands separator used locally.
func Format(amount int64, code string) string {
	code = strings.ToUpper(code)
	exp := Exponent(code)

	negative := amount < 0
	if negative {
		amount = -amount
	}

	digits := strconv.FormatInt(amount, 10)
	if exp > 0 && len(digits) <= exp {
		digits = strings.Repeat("0", exp-len(digits)+1) + digits
	}

	intPart, fracPart := digits, ""
	if exp > 0 {
		intPart, fracPart = digits[:len(digits)-exp], digits[len(digits)-exp:]
	}

	sep, dec := ",", "."
	if code == "IDR" {
		sep, dec = ".", ","
	}

	result := addThousandsSeparator(intPart, sep)
	if fracPart != "" {
		result += dec + fracPart
	}
	result = code + " " + result
	if negative {
		result = "-" + result
	}
	return result
}

// FormatIDR renders a whole-rupiah amount.
func FormatIDR(amount int64) string {
	return Format(amount, "IDR")
}

func addThousandsSeparator(s string, sep string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	numSeps := (n - 1) / 3
	result := make([]byte, n+numSeps)

	j := len(result) - 1
	for i := n - 1; i >= 0; i-- {
		result[j] = s[i]
		j--

		pos := n - i
		if pos%3 == 0 && i > 0 {
			result[j] = sep[0]
			j--
		}
	}

	return string(result)
}
