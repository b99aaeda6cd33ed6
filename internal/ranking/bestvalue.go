package ranking

import (
	"math"

	"github.com/dharmasatrya/airsearch/internal/models"
)

const (
	PriceWeight    = 0.5
	DurationWeight = 0.3
	StopsWeight    = 0.2
)

// PriceFunc returns an offer's price on a scale comparable across the set
// being scored.
type PriceFunc func(models.Offer) float64

// MajorUnits scores offers by their own price, ignoring currency.
func MajorUnits(o models.Offer) float64 {
	return float64(o.Price.Amount)
}

// CalculateScores returns a copy of offers with BestValueScore set.
func CalculateScores(offers []models.Offer, price PriceFunc) []models.Offer {
	if len(offers) == 0 {
		return offers
	}
	if price == nil {
		price = MajorUnits
	}

	maxPrice := findMaxPrice(offers, price)
	maxDuration := findMaxDuration(offers)

	result := make([]models.Offer, len(offers))
	for i, o := range offers {
		result[i] = o
		result[i].BestValueScore = CalculateBestValue(price(o), o.Duration().Minutes(), o.Stops(), maxPrice, maxDuration)
	}

	return result
}

// Lower score = better value
func CalculateBestValue(price, durationMinutes float64, stops int, maxPrice, maxDuration float64) float64 {
	priceScore := 0.0
	if maxPrice > 0 {
		priceScore = (price / maxPrice) * 100
	}

	durationScore := 0.0
	if maxDuration > 0 {
		durationScore = (durationMinutes / maxDuration) * 100
	}

	stopsScore := float64(stops) * 15
	score := (priceScore * PriceWeight) + (durationScore * DurationWeight) + (stopsScore * StopsWeight)

	return math.Round(score*100) / 100
}

func findMaxPrice(offers []models.Offer, price PriceFunc) float64 {
	maxPrice := 0.0
	for _, o := range offers {
		if p := price(o); p > maxPrice {
			maxPrice = p
		}
	}
	return maxPrice
}

func findMaxDuration(offers []models.Offer) float64 {
	maxDuration := 0.0
	for _, o := range offers {
		if d := o.Duration().Minutes(); d > maxDuration {
			maxDuration = d
		}
	}
	return maxDuration
}
