package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dharmasatrya/airsearch/internal/logging"
	"github.com/dharmasatrya/airsearch/internal/models"
	"github.com/dharmasatrya/airsearch/internal/timezone"
	"github.com/dharmasatrya/airsearch/pkg/currency"
)

const (
	duffelVersion          = "v2"
	duffelOfferRequestPath = "/air/offer_requests"
	duffelOfferPath        = "/air/offers/"
)

type DuffelConfig struct {
	BaseURL string
	Token   string
}

// Duffel talks to the Duffel offer request API. Offer ids are global, so
// the Duffel offer id is the reference.
type Duffel struct {
	code   string
	config DuffelConfig
	http   *transport
}

func NewDuffel(code string, cfg DuffelConfig, client *http.Client, logger *slog.Logger) (*Duffel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("duffel %s: access token is required", code)
	}
	if client == nil {
		client = http.DefaultClient
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Duffel{
		code:   code,
		config: cfg,
		http: &transport{
			code:   code,
			client: client,
			logger: logging.Default(logger).With("component", "supplier", "supplier", code),
		},
	}, nil
}

func (d *Duffel) Code() string {
	return d.code
}

type duffelOfferRequest struct {
	Slices     []duffelSlice     `json:"slices"`
	Passengers []duffelPassenger `json:"passengers"`
	CabinClass string            `json:"cabin_class"`
}

type duffelSlice struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
}

type duffelPassenger struct {
	Type string `json:"type"`
}

type duffelOffer struct {
	ID            string `json:"id"`
	TotalAmount   string `json:"total_amount"`
	TotalCurrency string `json:"total_currency"`
	Slices        []struct {
		Segments []duffelSegment `json:"segments"`
	} `json:"slices"`
	AvailableServices json.RawMessage `json:"available_services,omitempty"`
}

type duffelSegment struct {
	Origin struct {
		IataCode string `json:"iata_code"`
	} `json:"origin"`
	Destination struct {
		IataCode string `json:"iata_code"`
	} `json:"destination"`
	DepartingAt      string `json:"departing_at"`
	ArrivingAt       string `json:"arriving_at"`
	MarketingCarrier struct {
		IataCode string `json:"iata_code"`
	} `json:"marketing_carrier"`
	MarketingFlightNumber string `json:"marketing_carrier_flight_number"`
	OperatingCarrier      *struct {
		IataCode string `json:"iata_code"`
	} `json:"operating_carrier"`
	Passengers []struct {
		CabinClass string `json:"cabin_class"`
	} `json:"passengers"`
}

func (d *Duffel) Search(ctx context.Context, q models.SearchQuery) ([]models.Offer, error) {
	req := duffelOfferRequest{CabinClass: string(q.Cabin)}
	for _, leg := range q.Slices() {
		req.Slices = append(req.Slices, duffelSlice{
			Origin:        leg.Origin,
			Destination:   leg.Destination,
			DepartureDate: leg.Date,
		})
	}
	add := func(n int, typ string) {
		for i := 0; i < n; i++ {
			req.Passengers = append(req.Passengers, duffelPassenger{Type: typ})
		}
	}
	add(q.Passengers.Adults, "adult")
	add(q.Passengers.Children, "child")
	add(q.Passengers.Infants, "infant_without_seat")

	var resp struct {
		Data struct {
			Offers []json.RawMessage `json:"offers"`
		} `json:"data"`
	}
	u := d.config.BaseURL + duffelOfferRequestPath + "?return_offers=true"
	if _, err := d.http.doJSON(ctx, http.MethodPost, u, d.header(), map[string]any{"data": req}, &resp); err != nil {
		return nil, searchError(err)
	}

	seats := q.Passengers.Seats()
	offers := make([]models.Offer, 0, len(resp.Data.Offers))
	for _, raw := range resp.Data.Offers {
		offer, err := d.normalize(raw, seats)
		if err != nil {
			return nil, models.WrapError(models.KindNormalization, d.code, err)
		}
		offers = append(offers, offer)
	}

	if err := validateAll(d.code, offers); err != nil {
		return nil, err
	}
	return offers, nil
}

func (d *Duffel) GetOfferDetails(ctx context.Context, reference string) (models.Offer, error) {
	raw, err := d.fetchOffer(ctx, reference)
	if err != nil {
		return models.Offer{}, err
	}
	// Seat availability is not returned on a single offer.
	offer, err := d.normalize(raw, 0)
	if err != nil {
		return models.Offer{}, models.WrapError(models.KindNormalization, d.code, err)
	}
	if err := offer.Validate(); err != nil {
		return models.Offer{}, models.WrapError(models.KindNormalization, d.code, err)
	}
	return offer, nil
}

// PriceOffer re-fetches the offer; Duffel returns the live total on every read.
func (d *Duffel) PriceOffer(ctx context.Context, reference string) (models.Price, error) {
	raw, err := d.fetchOffer(ctx, reference)
	if err != nil {
		return models.Price{}, err
	}
	var o duffelOffer
	if err := json.Unmarshal(raw, &o); err != nil {
		return models.Price{}, models.WrapError(models.KindNormalization, d.code, err)
	}
	price, err := duffelPrice(o)
	if err != nil {
		return models.Price{}, models.WrapError(models.KindNormalization, d.code, err)
	}
	return price, nil
}

func (d *Duffel) fetchOffer(ctx context.Context, reference string) (json.RawMessage, error) {
	if reference == "" {
		return nil, models.NewError(models.KindOfferNotFound, d.code, "empty offer reference")
	}
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	u := d.config.BaseURL + duffelOfferPath + url.PathEscape(reference)
	if _, err := d.http.doJSON(ctx, http.MethodGet, u, d.header(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (d *Duffel) normalize(raw json.RawMessage, seats int) (models.Offer, error) {
	var o duffelOffer
	if err := json.Unmarshal(raw, &o); err != nil {
		return models.Offer{}, err
	}

	var segments []models.Segment
	for leg, sl := range o.Slices {
		for _, s := range sl.Segments {
			dep, err := timezone.ParseLocal(s.DepartingAt, s.Origin.IataCode)
			if err != nil {
				return models.Offer{}, fmt.Errorf("offer %s departure: %w", o.ID, err)
			}
			arr, err := timezone.ParseLocal(s.ArrivingAt, s.Destination.IataCode)
			if err != nil {
				return models.Offer{}, fmt.Errorf("offer %s arrival: %w", o.ID, err)
			}
			carrier := s.MarketingCarrier.IataCode
			operating := carrier
			if s.OperatingCarrier != nil && s.OperatingCarrier.IataCode != "" {
				operating = s.OperatingCarrier.IataCode
			}
			cabin := models.CabinEconomy
			if len(s.Passengers) > 0 {
				if c := models.Cabin(s.Passengers[0].CabinClass); c.Valid() {
					cabin = c
				}
			}
			segments = append(segments, models.Segment{
				FlightNumber:     models.NormalizeFlightNumber(carrier, s.MarketingFlightNumber),
				MarketingCarrier: carrier,
				OperatingCarrier: operating,
				Origin:           s.Origin.IataCode,
				Destination:      s.Destination.IataCode,
				DepartureTime:    dep,
				ArrivalTime:      arr,
				Cabin:            cabin,
				Leg:              leg,
			})
		}
	}

	price, err := duffelPrice(o)
	if err != nil {
		return models.Offer{}, err
	}

	return models.Offer{
		SupplierCode:      d.code,
		SupplierReference: o.ID,
		Segments:          segments,
		Price:             price,
		SeatsAvailable:    seats,
		Metadata:          raw,
	}, nil
}

func duffelPrice(o duffelOffer) (models.Price, error) {
	cur := strings.ToUpper(o.TotalCurrency)
	amount, err := currency.ParseAmount(o.TotalAmount, cur)
	if err != nil {
		return models.Price{}, err
	}
	return models.Price{Amount: amount, Currency: cur}, nil
}

func (d *Duffel) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+d.config.Token)
	h.Set("Duffel-Version", duffelVersion)
	return h
}
