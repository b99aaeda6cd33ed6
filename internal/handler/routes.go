package handler

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dharmasatrya/airsearch/internal/logging"
)

// NewServer builds the echo instance with middleware and every route.
// gatherer may be nil, in which case /metrics is not served.
func NewServer(h *SearchHandler, gatherer prometheus.Gatherer, logger *slog.Logger) *echo.Echo {
	logger = logging.Default(logger).With("component", "http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= 500 {
				level = slog.LevelWarn
			}
			logger.LogAttrs(context.Background(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			)
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.POST("/flights/search", h.Search)
	api.GET("/offers/:supplier/:reference", h.OfferDetails)
	api.POST("/offers/:supplier/:reference/price", h.PriceOffer)
	api.GET("/suppliers", h.Suppliers)

	e.GET("/health", h.Health)
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return e
}
