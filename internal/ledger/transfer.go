package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// WebhookTransferer dispatches transfers as HTTP POSTs to an external payout
// service. Any non-2xx response counts as a failed transfer.
type WebhookTransferer struct {
	url    string
	client *http.Client
}

// NewWebhookTransferer creates a transferer posting to the given endpoint.
func NewWebhookTransferer(url string) *WebhookTransferer {
	return &WebhookTransferer{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type transferRequest struct {
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

func (t *WebhookTransferer) Transfer(ctx context.Context, to string, amount decimal.Decimal) error {
	body, err := json.Marshal(transferRequest{To: to, Amount: amount})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("payout service returned %d", resp.StatusCode)
	}
	return nil
}

// LogTransferer records transfers without moving funds. Used in development
// when no payout service is configured.
type LogTransferer struct{}

func (LogTransferer) Transfer(_ context.Context, to string, amount decimal.Decimal) error {
	slog.Info("transfer (no payout service configured)", "to", to, "amount", amount.String())
	return nil
}
