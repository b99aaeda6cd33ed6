package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/dharmasatrya/airsearch/internal/logging"
	"github.com/dharmasatrya/airsearch/internal/models"
	"github.com/dharmasatrya/airsearch/internal/timezone"
	"github.com/dharmasatrya/airsearch/pkg/currency"
)

const (
	amadeusAuthPath    = "/v1/security/oauth2/token"
	amadeusSearchPath  = "/v2/shopping/flight-offers"
	amadeusPricingPath = "/v1/shopping/flight-offers/pricing"

	amadeusMaxOffers = 50
	// Amadeus offers can only be repriced from their full body, so recent
	// ones are kept by reference. Older ones are restored from cached result
	// sets.
	amadeusOfferCacheSize = 4096
)

type AmadeusConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Currency     string
}

// Amadeus talks to the Amadeus Self-Service flight offers API.
type Amadeus struct {
	code   string
	config AmadeusConfig
	http   *transport
	offers *lru.Cache
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewAmadeus(code string, cfg AmadeusConfig, client *http.Client, logger *slog.Logger) (*Amadeus, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("amadeus %s: client credentials are required", code)
	}
	offers, err := lru.New(amadeusOfferCacheSize)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Amadeus{
		code:   code,
		config: cfg,
		http: &transport{
			code:   code,
			client: client,
			logger: logging.Default(logger).With("component", "supplier", "supplier", code),
		},
		offers: offers,
		now:    time.Now,
	}, nil
}

func (a *Amadeus) Code() string {
	return a.code
}

type amadeusSearchRequest struct {
	CurrencyCode       string                     `json:"currencyCode,omitempty"`
	OriginDestinations []amadeusOriginDestination `json:"originDestinations"`
	Travelers          []amadeusTraveler          `json:"travelers"`
	Sources            []string                   `json:"sources"`
	SearchCriteria     amadeusSearchCriteria      `json:"searchCriteria"`
}

type amadeusOriginDestination struct {
	ID                      string `json:"id"`
	OriginLocationCode      string `json:"originLocationCode"`
	DestinationLocationCode string `json:"destinationLocationCode"`
	DepartureDateTimeRange  struct {
		Date string `json:"date"`
	} `json:"departureDateTimeRange"`
}

type amadeusTraveler struct {
	ID                string `json:"id"`
	TravelerType      string `json:"travelerType"`
	AssociatedAdultID string `json:"associatedAdultId,omitempty"`
}

type amadeusSearchCriteria struct {
	MaxFlightOffers int `json:"maxFlightOffers"`
	FlightFilters   struct {
		CabinRestrictions []amadeusCabinRestriction `json:"cabinRestrictions"`
	} `json:"flightFilters"`
}

type amadeusCabinRestriction struct {
	Cabin                string   `json:"cabin"`
	Coverage             string   `json:"coverage"`
	OriginDestinationIDs []string `json:"originDestinationIds"`
}

type amadeusOffer struct {
	ID                    string `json:"id"`
	NumberOfBookableSeats int    `json:"numberOfBookableSeats"`
	Itineraries           []struct {
		Segments []amadeusSegment `json:"segments"`
	} `json:"itineraries"`
	Price struct {
		Currency   string `json:"currency"`
		Total      string `json:"total"`
		GrandTotal string `json:"grandTotal"`
	} `json:"price"`
	TravelerPricings []struct {
		FareDetailsBySegment []struct {
			SegmentID string `json:"segmentId"`
			Cabin     string `json:"cabin"`
		} `json:"fareDetailsBySegment"`
	} `json:"travelerPricings"`
}

type amadeusSegment struct {
	ID        string          `json:"id"`
	Departure amadeusEndpoint `json:"departure"`
	Arrival   amadeusEndpoint `json:"arrival"`
	Carrier   string          `json:"carrierCode"`
	Number    string          `json:"number"`
	Operating *struct {
		CarrierCode string `json:"carrierCode"`
	} `json:"operating,omitempty"`
}

type amadeusEndpoint struct {
	IataCode string `json:"iataCode"`
	At       string `json:"at"`
}

func (a *Amadeus) Search(ctx context.Context, q models.SearchQuery) ([]models.Offer, error) {
	body := a.buildSearchRequest(q)

	var resp struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := a.authorized(ctx, http.MethodPost, a.config.BaseURL+amadeusSearchPath, body, &resp); err != nil {
		return nil, searchError(err)
	}

	// Amadeus offer ids are only unique within one response. The prefix also
	// ties a reference to the cached result set that carries its offer.
	prefix := q.Fingerprint() + "."
	offers := make([]models.Offer, 0, len(resp.Data))
	for _, raw := range resp.Data {
		ref, offer, err := a.normalize(prefix, raw)
		if err != nil {
			return nil, models.WrapError(models.KindNormalization, a.code, err)
		}
		offers = append(offers, offer)
		a.offers.Add(ref, raw)
	}

	if err := validateAll(a.code, offers); err != nil {
		return nil, err
	}
	return offers, nil
}

func (a *Amadeus) GetOfferDetails(ctx context.Context, reference string) (models.Offer, error) {
	if err := ctx.Err(); err != nil {
		return models.Offer{}, classifyTransportError(a.code, err)
	}
	raw, err := a.cachedOffer(reference)
	if err != nil {
		return models.Offer{}, err
	}
	prefix := strings.TrimSuffix(reference, referenceID(reference))
	_, offer, err := a.normalize(prefix, raw)
	if err != nil {
		return models.Offer{}, models.WrapError(models.KindNormalization, a.code, err)
	}
	if err := offer.Validate(); err != nil {
		return models.Offer{}, models.WrapError(models.KindNormalization, a.code, err)
	}
	return offer, nil
}

// PriceOffer confirms the offer with the pricing endpoint. The confirmed
// offer replaces the cached one so later details reflect the new price.
func (a *Amadeus) PriceOffer(ctx context.Context, reference string) (models.Price, error) {
	raw, err := a.cachedOffer(reference)
	if err != nil {
		return models.Price{}, err
	}

	body := map[string]any{
		"data": map[string]any{
			"type":         "flight-offers-pricing",
			"flightOffers": []json.RawMessage{raw},
		},
	}
	var resp struct {
		Data struct {
			FlightOffers []json.RawMessage `json:"flightOffers"`
		} `json:"data"`
	}
	if err := a.authorized(ctx, http.MethodPost, a.config.BaseURL+amadeusPricingPath, body, &resp); err != nil {
		return models.Price{}, err
	}
	if len(resp.Data.FlightOffers) == 0 {
		return models.Price{}, models.NewError(models.KindOfferNotFound, a.code, "offer is no longer available")
	}

	var priced amadeusOffer
	if err := json.Unmarshal(resp.Data.FlightOffers[0], &priced); err != nil {
		return models.Price{}, models.WrapError(models.KindNormalization, a.code, err)
	}
	price, err := amadeusPrice(priced)
	if err != nil {
		return models.Price{}, models.WrapError(models.KindNormalization, a.code, err)
	}
	a.offers.Add(reference, resp.Data.FlightOffers[0])
	return price, nil
}

func (a *Amadeus) SearchFingerprint(reference string) (string, bool) {
	i := strings.LastIndex(reference, ".")
	if i <= 0 {
		return "", false
	}
	return reference[:i], true
}

// Restore puts an offer whose raw body fell out of the offer cache back into
// it. The body comes from the offer's Metadata and must normalize to the same
// reference.
func (a *Amadeus) Restore(offer models.Offer) error {
	if offer.SupplierCode != a.code || len(offer.Metadata) == 0 {
		return models.NewError(models.KindOfferNotFound, a.code, "offer cannot be restored")
	}
	prefix := strings.TrimSuffix(offer.SupplierReference, referenceID(offer.SupplierReference))
	ref, _, err := a.normalize(prefix, offer.Metadata)
	if err != nil {
		return models.WrapError(models.KindNormalization, a.code, err)
	}
	if ref != offer.SupplierReference {
		return models.NewError(models.KindOfferNotFound, a.code, "offer body does not match reference "+offer.SupplierReference)
	}
	a.offers.Add(ref, offer.Metadata)
	return nil
}

func (a *Amadeus) buildSearchRequest(q models.SearchQuery) amadeusSearchRequest {
	req := amadeusSearchRequest{
		CurrencyCode: a.config.Currency,
		Sources:      []string{"GDS"},
	}
	req.SearchCriteria.MaxFlightOffers = amadeusMaxOffers

	var odIDs []string
	for i, leg := range q.Slices() {
		od := amadeusOriginDestination{
			ID:                      strconv.Itoa(i + 1),
			OriginLocationCode:      leg.Origin,
			DestinationLocationCode: leg.Destination,
		}
		od.DepartureDateTimeRange.Date = leg.Date
		req.OriginDestinations = append(req.OriginDestinations, od)
		odIDs = append(odIDs, od.ID)
	}
	req.SearchCriteria.FlightFilters.CabinRestrictions = []amadeusCabinRestriction{{
		Cabin:                strings.ToUpper(string(q.Cabin)),
		Coverage:             "MOST_SEGMENTS",
		OriginDestinationIDs: odIDs,
	}}

	id := 0
	next := func() string {
		id++
		return strconv.Itoa(id)
	}
	for i := 0; i < q.Passengers.Adults; i++ {
		req.Travelers = append(req.Travelers, amadeusTraveler{ID: next(), TravelerType: "ADULT"})
	}
	for i := 0; i < q.Passengers.Children; i++ {
		req.Travelers = append(req.Travelers, amadeusTraveler{ID: next(), TravelerType: "CHILD"})
	}
	for i := 0; i < q.Passengers.Infants; i++ {
		// Adults take ids 1..Adults.
		req.Travelers = append(req.Travelers, amadeusTraveler{
			ID:                next(),
			TravelerType:      "HELD_INFANT",
			AssociatedAdultID: strconv.Itoa(i + 1),
		})
	}
	return req
}

func (a *Amadeus) normalize(prefix string, raw json.RawMessage) (string, models.Offer, error) {
	var o amadeusOffer
	if err := json.Unmarshal(raw, &o); err != nil {
		return "", models.Offer{}, err
	}
	if o.ID == "" {
		return "", models.Offer{}, errors.New("offer without id")
	}

	cabins := make(map[string]string)
	if len(o.TravelerPricings) > 0 {
		for _, fd := range o.TravelerPricings[0].FareDetailsBySegment {
			cabins[fd.SegmentID] = strings.ToLower(fd.Cabin)
		}
	}

	var segments []models.Segment
	for leg, it := range o.Itineraries {
		for _, s := range it.Segments {
			dep, err := timezone.ParseLocal(s.Departure.At, s.Departure.IataCode)
			if err != nil {
				return "", models.Offer{}, fmt.Errorf("segment %s departure: %w", s.ID, err)
			}
			arr, err := timezone.ParseLocal(s.Arrival.At, s.Arrival.IataCode)
			if err != nil {
				return "", models.Offer{}, fmt.Errorf("segment %s arrival: %w", s.ID, err)
			}
			operating := s.Carrier
			if s.Operating != nil && s.Operating.CarrierCode != "" {
				operating = s.Operating.CarrierCode
			}
			cabin := models.Cabin(cabins[s.ID])
			if !cabin.Valid() {
				cabin = models.CabinEconomy
			}
			segments = append(segments, models.Segment{
				FlightNumber:     models.NormalizeFlightNumber(s.Carrier, s.Number),
				MarketingCarrier: s.Carrier,
				OperatingCarrier: operating,
				Origin:           s.Departure.IataCode,
				Destination:      s.Arrival.IataCode,
				DepartureTime:    dep,
				ArrivalTime:      arr,
				Cabin:            cabin,
				Leg:              leg,
			})
		}
	}

	price, err := amadeusPrice(o)
	if err != nil {
		return "", models.Offer{}, err
	}

	ref := prefix + o.ID
	return ref, models.Offer{
		SupplierCode:      a.code,
		SupplierReference: ref,
		Segments:          segments,
		Price:             price,
		SeatsAvailable:    o.NumberOfBookableSeats,
		Metadata:          raw,
	}, nil
}

func amadeusPrice(o amadeusOffer) (models.Price, error) {
	total := o.Price.GrandTotal
	if total == "" {
		total = o.Price.Total
	}
	cur := strings.ToUpper(o.Price.Currency)
	amount, err := currency.ParseAmount(total, cur)
	if err != nil {
		return models.Price{}, err
	}
	return models.Price{Amount: amount, Currency: cur}, nil
}

func (a *Amadeus) cachedOffer(reference string) (json.RawMessage, error) {
	v, ok := a.offers.Get(reference)
	if !ok {
		return nil, models.NewError(models.KindOfferNotFound, a.code, "unknown or expired offer reference "+reference)
	}
	return v.(json.RawMessage), nil
}

// authorized performs a call with a bearer token. A 401 drops the cached
// token and is reported as transient so the next attempt re-authenticates.
func (a *Amadeus) authorized(ctx context.Context, method, url string, in, out any) error {
	tok, err := a.accessToken(ctx)
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+tok)

	raw, err := a.http.doJSON(ctx, method, url, header, in, out)
	if raw != nil && raw.status == http.StatusUnauthorized {
		a.mu.Lock()
		a.token = ""
		a.mu.Unlock()
		return models.NewError(models.KindSupplierUnavailable, a.code, "access token rejected")
	}
	return err
}

func (a *Amadeus) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != "" && a.now().Before(a.expires) {
		return a.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", a.config.ClientID)
	form.Set("client_secret", a.config.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+amadeusAuthPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", models.WrapError(models.KindInternal, a.code, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	raw, err := a.http.do(req)
	if err != nil {
		return "", err
	}
	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw.body, &tr); err != nil || tr.AccessToken == "" {
		return "", models.NewError(models.KindSupplierUnavailable, a.code, "malformed token response")
	}

	a.token = tr.AccessToken
	// Refresh a little early so a token never expires mid-request.
	a.expires = a.now().Add(time.Duration(tr.ExpiresIn)*time.Second - 30*time.Second)
	return a.token, nil
}

func referenceID(reference string) string {
	if i := strings.LastIndex(reference, "."); i >= 0 {
		return reference[i+1:]
	}
	return reference
}
