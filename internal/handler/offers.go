package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dharmasatrya/airsearch/internal/models"
)

func (h *SearchHandler) OfferDetails(c echo.Context) error {
	offer, err := h.engine.OfferDetails(c.Request().Context(), c.Param("supplier"), c.Param("reference"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, offer)
}

type priceResponse struct {
	Supplier  string       `json:"supplier"`
	Reference string       `json:"reference"`
	Price     models.Price `json:"price"`
	PricedAt  time.Time    `json:"priced_at"`
}

func (h *SearchHandler) PriceOffer(c echo.Context) error {
	supplier, reference := c.Param("supplier"), c.Param("reference")
	price, err := h.engine.PriceOffer(c.Request().Context(), supplier, reference)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, priceResponse{
		Supplier:  supplier,
		Reference: reference,
		Price:     price,
		PricedAt:  time.Now().UTC(),
	})
}

type supplierView struct {
	Code     string `json:"code"`
	Name     string `json:"name,omitempty"`
	Driver   string `json:"driver"`
	Enabled  bool   `json:"enabled"`
	Priority int    `json:"priority"`
	Healthy  bool   `json:"healthy"`

	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastChecked         *time.Time `json:"last_checked,omitempty"`
}

// Suppliers lists configuration and health without credentials.
func (h *SearchHandler) Suppliers(c echo.Context) error {
	states := h.engine.Suppliers()
	out := make([]supplierView, 0, len(states))
	for _, st := range states {
		v := supplierView{
			Code:                st.Supplier.Code,
			Name:                st.Supplier.Name,
			Driver:              st.Supplier.Driver,
			Enabled:             st.Supplier.Enabled,
			Priority:            st.Supplier.Priority,
			Healthy:             st.Health.Healthy,
			ConsecutiveFailures: st.Health.ConsecutiveFailures,
		}
		if !st.Health.LastChecked.IsZero() {
			t := st.Health.LastChecked
			v.LastChecked = &t
		}
		out = append(out, v)
	}
	return c.JSON(http.StatusOK, map[string]any{"suppliers": out})
}
