package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// HTTPDispatcher hands requests to the oracle collaborator over HTTP. The
// collaborator later calls back with the fulfillment on its own control path.
type HTTPDispatcher struct {
	url    string
	client *http.Client
}

// NewHTTPDispatcher creates a dispatcher posting to the oracle endpoint.
func NewHTTPDispatcher(url string) *HTTPDispatcher {
	return &HTTPDispatcher{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type dispatchPayload struct {
	RequestID string  `json:"request_id"`
	URL       string  `json:"url"`
	Path      string  `json:"path"`
	Times     float64 `json:"times"`
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, req Request) error {
	body, err := json.Marshal(dispatchPayload{
		RequestID: req.ID,
		URL:       req.URL,
		Path:      req.Path,
		Times:     req.Times,
	})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("oracle endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// LogDispatcher records requests without dispatching them. Used in development
// when no oracle endpoint is configured; fulfillments are driven manually via
// the API.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(_ context.Context, req Request) error {
	slog.Info("oracle request (no oracle endpoint configured)",
		"request_id", req.ID,
		"url", req.URL,
		"path", req.Path,
	)
	return nil
}
