package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dharmasatrya/airsearch/internal/models"
)

const maxResponseBytes = 16 << 20

// rawResponse is one supplier reply before normalization. It never leaves
// the client that produced it.
type rawResponse struct {
	supplier string
	status   int
	body     []byte
	latency  time.Duration
}

type transport struct {
	code   string
	client *http.Client
	logger *slog.Logger
}

func (t *transport) do(req *http.Request) (*rawResponse, error) {
	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(t.code, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(t.code, err)
	}

	raw := &rawResponse{
		supplier: t.code,
		status:   resp.StatusCode,
		body:     body,
		latency:  time.Since(start),
	}
	t.logger.Debug("supplier response",
		"method", req.Method,
		"path", req.URL.Path,
		"status", raw.status,
		"bytes", len(raw.body),
		"latency", raw.latency)

	if err := classifyStatus(t.code, raw.status, raw.body); err != nil {
		return raw, err
	}
	return raw, nil
}

// doJSON sends in as a JSON body (when non-nil) and decodes a 2xx reply into out.
func (t *transport) doJSON(ctx context.Context, method, url string, header http.Header, in, out any) (*rawResponse, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, models.WrapError(models.KindInternal, t.code, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, models.WrapError(models.KindInternal, t.code, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	raw, err := t.do(req)
	if err != nil {
		return raw, err
	}
	if out != nil {
		if err := json.Unmarshal(raw.body, out); err != nil {
			return raw, models.WrapError(models.KindNormalization, t.code, fmt.Errorf("decode response: %w", err))
		}
	}
	return raw, nil
}

func classifyTransportError(code string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return models.WrapError(models.KindSupplierTimeout, code, err)
	}
	return models.WrapError(models.KindSupplierUnavailable, code, err)
}

func classifyStatus(code string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	msg := fmt.Sprintf("http %d", status)
	if snippet := bytes.TrimSpace(body); len(snippet) > 0 {
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		msg += ": " + string(snippet)
	}

	switch {
	case status == http.StatusNotFound:
		return models.NewError(models.KindOfferNotFound, code, msg)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return models.NewError(models.KindSupplierTimeout, code, msg)
	case status == http.StatusTooManyRequests || status >= 500:
		return models.NewError(models.KindSupplierUnavailable, code, msg)
	default:
		return models.NewError(models.KindSupplierRejected, code, msg)
	}
}

// searchError reclassifies a 404 from a search endpoint. Only detail and
// pricing calls address an offer.
func searchError(err error) error {
	var e *models.Error
	if errors.As(err, &e) && e.Kind == models.KindOfferNotFound {
		return &models.Error{Kind: models.KindSupplierRejected, Supplier: e.Supplier, Message: e.Message, Err: e.Err}
	}
	return err
}
