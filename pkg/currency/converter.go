package currency

import (
	"errors"
	"fmt"
	"strings"
)

var ErrRateUnavailable = errors.New("currency: rate unavailable")

// Converter converts minor-unit amounts between currencies. Implementations
// are external collaborators; the engine only consumes this interface.
type Converter interface {
	Convert(amount int64, from, to string) (int64, error)
}

// StaticConverter converts through a fixed table of rates expressed as units
// of each currency per one unit of the base currency.
type StaticConverter struct {
	base  string
	rates map[string]float64
}

func NewStaticConverter(base string, rates map[string]float64) *StaticConverter {
	base = strings.ToUpper(base)
	r := make(map[string]float64, len(rates)+1)
	for code, rate := range rates {
		if rate > 0 {
			r[strings.ToUpper(code)] = rate
		}
	}
	r[base] = 1
	return &StaticConverter{base: base, rates: r}
}

func (c *StaticConverter) Convert(amount int64, from, to string) (int64, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return amount, nil
	}
	fromRate, ok := c.rates[from]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrRateUnavailable, from)
	}
	toRate, ok := c.rates[to]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrRateUnavailable, to)
	}
	inBase := ToMajor(amount, from) / fromRate
	return FromMajor(inBase*toRate, to), nil
}
