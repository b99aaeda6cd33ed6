package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dharmasatrya/airsearch/internal/models"
)

var statusByKind = map[models.ErrorKind]int{
	models.KindInvalidQuery:        http.StatusBadRequest,
	models.KindOfferNotFound:       http.StatusNotFound,
	models.KindSupplierRejected:    http.StatusUnprocessableEntity,
	models.KindNoSupplierAvailable: http.StatusServiceUnavailable,
	models.KindSupplierTimeout:     http.StatusGatewayTimeout,
	models.KindSupplierUnavailable: http.StatusBadGateway,
}

// StatusOf maps an error to the HTTP status it is reported with.
func StatusOf(err error) int {
	if status, ok := statusByKind[models.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func (h *SearchHandler) fail(c echo.Context, err error) error {
	kind := models.KindOf(err)
	status := StatusOf(err)

	resp := models.ErrorResponse{
		Error:   string(kind),
		Message: err.Error(),
		Code:    status,
	}
	var ve models.ValidationError
	if errors.As(err, &ve) {
		resp.Message = ve.Error()
	}
	var me *models.Error
	if errors.As(err, &me) {
		resp.FailedSuppliers = me.Failed
	}

	if kind == models.KindNoSupplierAvailable && h.retryAfter > 0 {
		c.Response().Header().Set("Retry-After", strconv.Itoa(int(h.retryAfter.Seconds())))
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"path", c.Path(),
			"status", status,
			"kind", kind,
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"error", err)
	}
	return c.JSON(status, resp)
}
