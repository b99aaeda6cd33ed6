package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dharmasatrya/airsearch/internal/filter"
	"github.com/dharmasatrya/airsearch/internal/logging"
	"github.com/dharmasatrya/airsearch/internal/models"
	"github.com/dharmasatrya/airsearch/internal/registry"
)

// Engine is what the HTTP layer needs from the search engine.
type Engine interface {
	Search(ctx context.Context, q models.SearchQuery, mode models.SearchMode) (*models.MergedResultSet, bool, error)
	Sort(set *models.MergedResultSet, key models.SortKey, dir models.SortDirection) *models.MergedResultSet
	DefaultMode() models.SearchMode
	OfferDetails(ctx context.Context, supplier, reference string) (models.Offer, error)
	PriceOffer(ctx context.Context, supplier, reference string) (models.Price, error)
	Suppliers() []registry.SupplierState
}

type SearchHandler struct {
	engine     Engine
	retryAfter time.Duration
	logger     *slog.Logger
}

// NewSearchHandler serves the API on top of engine. retryAfter is advertised
// when no supplier could answer.
func NewSearchHandler(engine Engine, retryAfter time.Duration, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		engine:     engine,
		retryAfter: retryAfter,
		logger:     logging.Default(logger).With("component", "http"),
	}
}

func (h *SearchHandler) Search(c echo.Context) error {
	startTime := time.Now()
	ctx := c.Request().Context()

	var req models.SearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
			Code:    http.StatusBadRequest,
		})
	}

	q, err := req.Query()
	if err != nil {
		return h.fail(c, err)
	}
	mode, err := req.SearchMode()
	if err != nil {
		return h.fail(c, err)
	}
	sortKey, sortOrder, err := req.Sort()
	if err != nil {
		return h.fail(c, err)
	}
	if err := filter.Validate(req.Filters); err != nil {
		return h.fail(c, err)
	}
	if mode == "" {
		mode = h.engine.DefaultMode()
	}

	set, cacheHit, err := h.engine.Search(ctx, q, mode)
	if err != nil {
		return h.fail(c, err)
	}

	// The cached set is uncapped; filters and the request's order apply
	// before the cap so no qualifying offer is lost to it.
	view := *set
	view.Offers = filter.Apply(set.Offers, req.Filters)
	set = h.engine.Sort(&view, sortKey, sortOrder)
	offers := set.Offers

	return c.JSON(http.StatusOK, models.SearchResponse{
		SearchCriteria: buildSearchCriteria(q, req.Filters),
		Metadata: models.SearchMetadata{
			TotalResults:          len(offers),
			TotalBeforeCap:        set.TotalCount,
			Mode:                  mode,
			ContributingSuppliers: set.Contributing,
			FailedSuppliers:       set.Failed,
			Warnings:              set.Warnings,
			Fingerprint:           set.Fingerprint,
			SortBy:                set.SortKey,
			SortOrder:             set.Direction,
			SearchTimeMs:          time.Since(startTime).Milliseconds(),
			CacheHit:              cacheHit,
			RequestID:             c.Response().Header().Get(echo.HeaderXRequestID),
		},
		Offers: offers,
	})
}

func buildSearchCriteria(q models.SearchQuery, filters *models.SearchFilters) models.SearchCriteria {
	criteria := models.SearchCriteria{
		Origin:        q.Origin,
		Destination:   q.Destination,
		DepartureDate: q.DepartureDate,
		ReturnDate:    q.ReturnDate,
		TripType:      q.TripType,
		Passengers:    q.Passengers,
		CabinClass:    q.Cabin,
		Filters:       filters,
	}
	if q.TripType == models.TripMultiCity {
		criteria.Legs = q.Slices()
	}
	return criteria
}

type healthResponse struct {
	Status           string `json:"status"`
	Suppliers        int    `json:"suppliers"`
	HealthySuppliers int    `json:"healthy_suppliers"`
}

// Health always answers 200 while the process serves requests; a search
// still fails open when every supplier is marked unhealthy.
func (h *SearchHandler) Health(c echo.Context) error {
	states := h.engine.Suppliers()
	resp := healthResponse{Status: "ok", Suppliers: len(states)}
	for _, st := range states {
		if st.Supplier.Enabled && st.Health.Healthy {
			resp.HealthySuppliers++
		}
	}
	if resp.HealthySuppliers == 0 {
		resp.Status = "degraded"
	}
	return c.JSON(http.StatusOK, resp)
}
