package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dharmasatrya/airsearch/internal/catalog"
	"github.com/dharmasatrya/airsearch/internal/logging"
	"github.com/dharmasatrya/airsearch/internal/models"
)

const defaultMaxCombinations = 50

// Local serves offers from the internal flight catalog. Each catalog flight
// is one direct segment; round trips and multi-city queries combine one
// flight per leg.
type Local struct {
	code            string
	store           catalog.Store
	maxCombinations int
	logger          *slog.Logger
}

func NewLocal(code string, store catalog.Store, logger *slog.Logger) *Local {
	return &Local{
		code:            code,
		store:           store,
		maxCombinations: defaultMaxCombinations,
		logger:          logging.Default(logger).With("component", "supplier", "supplier", code),
	}
}

func (l *Local) Code() string {
	return l.code
}

func (l *Local) Search(ctx context.Context, q models.SearchQuery) ([]models.Offer, error) {
	seats := q.Passengers.Seats()
	slices := q.Slices()

	perLeg := make([][]catalog.Flight, len(slices))
	for i, leg := range slices {
		flights, err := l.store.FindFlights(ctx, catalog.Criteria{
			Origin:      leg.Origin,
			Destination: leg.Destination,
			Date:        leg.Date,
			Cabin:       string(q.Cabin),
			Seats:       seats,
		})
		if err != nil {
			return nil, l.storeError(err)
		}
		if len(flights) == 0 {
			return nil, nil
		}
		perLeg[i] = flights
	}

	var offers []models.Offer
	combine(perLeg, l.maxCombinations, func(combo []catalog.Flight) {
		if !connects(combo) {
			return
		}
		offer, ok := l.normalize(combo, seats)
		if ok {
			offers = append(offers, offer)
		}
	})

	if err := validateAll(l.code, offers); err != nil {
		return nil, err
	}
	return offers, nil
}

func (l *Local) GetOfferDetails(ctx context.Context, reference string) (models.Offer, error) {
	ids, seats, err := parseLocalReference(reference)
	if err != nil {
		return models.Offer{}, models.WrapError(models.KindOfferNotFound, l.code, err)
	}

	combo := make([]catalog.Flight, len(ids))
	for i, id := range ids {
		f, err := l.store.GetFlight(ctx, id)
		if err != nil {
			return models.Offer{}, l.storeError(err)
		}
		combo[i] = f
	}

	offer, ok := l.normalize(combo, seats)
	if !ok {
		return models.Offer{}, models.NewError(models.KindNormalization, l.code, "catalog flights no longer share a currency")
	}
	if err := offer.Validate(); err != nil {
		return models.Offer{}, models.WrapError(models.KindNormalization, l.code, err)
	}
	return offer, nil
}

// PriceOffer re-reads fares and seat counts from the catalog.
func (l *Local) PriceOffer(ctx context.Context, reference string) (models.Price, error) {
	offer, err := l.GetOfferDetails(ctx, reference)
	if err != nil {
		return models.Price{}, err
	}
	_, seats, _ := parseLocalReference(reference)
	if offer.SeatsAvailable < seats {
		return models.Price{}, models.NewError(models.KindOfferNotFound, l.code,
			fmt.Sprintf("only %d seats left, %d requested", offer.SeatsAvailable, seats))
	}
	return offer.Price, nil
}

type localMetadata struct {
	FlightIDs   []string `json:"flight_ids"`
	Seats       int      `json:"seats"`
	FarePerSeat int64    `json:"fare_per_seat"`
}

func (l *Local) normalize(combo []catalog.Flight, seats int) (models.Offer, bool) {
	cur := combo[0].Currency
	ids := make([]string, len(combo))
	segments := make([]models.Segment, len(combo))
	var fare int64
	available := combo[0].SeatsAvailable

	for i, f := range combo {
		if f.Currency != cur {
			l.logger.Warn("skipping itinerary with mixed catalog currencies", "flight", f.ID, "currency", f.Currency, "want", cur)
			return models.Offer{}, false
		}
		ids[i] = f.ID
		fare += f.Fare
		if f.SeatsAvailable < available {
			available = f.SeatsAvailable
		}

		operating := f.OperatingCarrier
		if operating == "" {
			operating = f.Carrier
		}
		segments[i] = models.Segment{
			FlightNumber:     f.FlightNumber,
			MarketingCarrier: f.Carrier,
			OperatingCarrier: operating,
			Origin:           f.Origin,
			Destination:      f.Destination,
			DepartureTime:    f.DepartureTime,
			ArrivalTime:      f.ArrivalTime,
			Cabin:            models.Cabin(f.Cabin),
			Leg:              i,
		}
	}

	meta, _ := json.Marshal(localMetadata{FlightIDs: ids, Seats: seats, FarePerSeat: fare})
	return models.Offer{
		SupplierCode:      l.code,
		SupplierReference: localReference(ids, seats),
		Segments:          segments,
		Price:             models.Price{Amount: fare * int64(seats), Currency: cur},
		SeatsAvailable:    available,
		Metadata:          meta,
	}, true
}

func (l *Local) storeError(err error) error {
	switch {
	case errors.Is(err, catalog.ErrFlightNotFound):
		return models.WrapError(models.KindOfferNotFound, l.code, err)
	case errors.Is(err, context.DeadlineExceeded):
		return models.WrapError(models.KindSupplierTimeout, l.code, err)
	default:
		return models.WrapError(models.KindSupplierUnavailable, l.code, err)
	}
}

// localReference encodes the flight ids and seat count, e.g. "fl-1~fl-7/2".
func localReference(ids []string, seats int) string {
	return strings.Join(ids, "~") + "/" + strconv.Itoa(seats)
}

func parseLocalReference(ref string) ([]string, int, error) {
	idPart, seatPart, ok := strings.Cut(ref, "/")
	if !ok || idPart == "" {
		return nil, 0, fmt.Errorf("malformed reference %q", ref)
	}
	seats, err := strconv.Atoi(seatPart)
	if err != nil || seats < 1 {
		return nil, 0, fmt.Errorf("malformed reference %q", ref)
	}
	return strings.Split(idPart, "~"), seats, nil
}

// combine calls fn with every pick of one flight per leg, in leg-list order,
// stopping after limit combinations.
func combine(perLeg [][]catalog.Flight, limit int, fn func([]catalog.Flight)) {
	idx := make([]int, len(perLeg))
	for n := 0; n < limit; n++ {
		combo := make([]catalog.Flight, len(perLeg))
		for i, j := range idx {
			combo[i] = perLeg[i][j]
		}
		fn(combo)

		i := len(idx) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(perLeg[i]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}

// connects reports whether every leg departs after the previous one lands.
func connects(combo []catalog.Flight) bool {
	for i := 1; i < len(combo); i++ {
		if !combo[i].DepartureTime.After(combo[i-1].ArrivalTime) {
			return false
		}
	}
	return true
}
