// Package filter narrows a result set by the optional request filters. It
// runs after the cache, so one cached set serves every filter combination.
package filter

import (
	"strings"
	"time"

	"github.com/dharmasatrya/airsearch/internal/models"
	"github.com/dharmasatrya/airsearch/internal/timezone"
	"github.com/dharmasatrya/airsearch/pkg/currency"
)

// Apply returns the offers matching filters, in their original order. The
// input slice is never modified.
func Apply(offers []models.Offer, filters *models.SearchFilters) []models.Offer {
	if filters == nil {
		return offers
	}

	result := make([]models.Offer, 0, len(offers))

	for _, o := range offers {
		if matchesFilters(o, filters) {
			result = append(result, o)
		}
	}

	return result
}

// Validate reports a malformed time-of-day bound.
func Validate(filters *models.SearchFilters) error {
	if filters == nil {
		return nil
	}
	for _, s := range []*string{filters.DepartureTimeMin, filters.DepartureTimeMax, filters.ArrivalTimeMin, filters.ArrivalTimeMax} {
		if s == nil {
			continue
		}
		if _, err := parseTimeOfDay(*s); err != nil {
			return models.ErrInvalidTimeFilter
		}
	}
	return nil
}

func matchesFilters(o models.Offer, filters *models.SearchFilters) bool {
	// Price bounds are in major units of the offer's own currency.
	price := currency.ToMajor(o.Price.Amount, o.Price.Currency)
	if filters.PriceMin != nil && price < *filters.PriceMin {
		return false
	}
	if filters.PriceMax != nil && price > *filters.PriceMax {
		return false
	}

	if filters.MaxStops != nil && o.Stops() > *filters.MaxStops {
		return false
	}

	if len(filters.Airlines) > 0 {
		found := false
		for _, airline := range filters.Airlines {
			if strings.EqualFold(o.Segments[0].MarketingCarrier, airline) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	first := o.Segments[0]
	dep := minuteOfDay(timezone.In(first.DepartureTime, first.Origin))
	if !within(dep, filters.DepartureTimeMin, filters.DepartureTimeMax) {
		return false
	}

	last := outboundArrival(o)
	arr := minuteOfDay(timezone.In(last.ArrivalTime, last.Destination))
	if !within(arr, filters.ArrivalTimeMin, filters.ArrivalTimeMax) {
		return false
	}

	if filters.MaxDuration != nil && int(o.Duration().Minutes()) > *filters.MaxDuration {
		return false
	}

	return true
}

// outboundArrival is the final segment of the first leg.
func outboundArrival(o models.Offer) models.Segment {
	last := o.Segments[0]
	for _, s := range o.Segments[1:] {
		if s.Leg != last.Leg {
			break
		}
		last = s
	}
	return last
}

func within(minute int, lo, hi *string) bool {
	if lo != nil {
		if bound, err := parseTimeOfDay(*lo); err == nil && minute < bound {
			return false
		}
	}
	if hi != nil {
		if bound, err := parseTimeOfDay(*hi); err == nil && minute > bound {
			return false
		}
	}
	return true
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func parseTimeOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
