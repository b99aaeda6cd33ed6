package currency

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Currencies quoted without a fractional part. IDR is listed because
// suppliers price it in whole rupiah.
var zeroDecimal = map[string]bool{
	"CLP": true, "IDR": true, "ISK": true, "JPY": true,
	"KRW": true, "UGX": true, "VND": true, "XAF": true, "XOF": true,
}

var threeDecimal = map[string]bool{
	"BHD": true, "IQD": true, "JOD": true, "KWD": true,
	"LYD": true, "OMR": true, "TND": true,
}

// Exponent returns the number of minor-unit digits for code.
func Exponent(code string) int {
	code = strings.ToUpper(code)
	switch {
	case zeroDecimal[code]:
		return 0
	case threeDecimal[code]:
		return 3
	default:
		return 2
	}
}

// Valid reports whether code looks like an ISO-4217 alphabetic code.
func Valid(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// ParseAmount converts a decimal string such as "1234.50" into minor units
// without going through floating point. Extra fractional digits must be zero.
func ParseAmount(s, code string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("currency: empty amount")
	}
	exp := Exponent(code)

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > exp {
		if strings.Trim(fracPart[exp:], "0") != "" {
			return 0, fmt.Errorf("currency: %q has more precision than %s allows", s, code)
		}
		fracPart = fracPart[:exp]
	}
	fracPart += strings.Repeat("0", exp-len(fracPart))

	v, err := strconv.ParseInt(intPart+fracPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("currency: parse %q: %w", s, err)
	}
	if negative {
		v = -v
	}
	return v, nil
}

// ToMajor converts minor units to a float in major units.
func ToMajor(amount int64, code string) float64 {
	return float64(amount) / math.Pow10(Exponent(code))
}

// FromMajor converts major units to minor units, rounding half away from zero.
func FromMajor(amount float64, code string) int64 {
	return int64(math.Round(amount * math.Pow10(Exponent(code))))
}
