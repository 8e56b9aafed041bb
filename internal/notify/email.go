package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Alert is the payload handed to the email bridge when an order is rejected
// for an unsafe temperature.
type Alert struct {
	OrderID     int64  `json:"orderId"`
	Temperature int    `json:"temperature"`
	MinTemp     int    `json:"minTemp"`
	MaxTemp     int    `json:"maxTemp"`
	Status      string `json:"status"`
}

// EmailClient posts alerts to the mail bridge over HTTP. Delivery is best
// effort: the caller logs failures and moves on, the durable path is the
// broker outbox.
type EmailClient struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

func NewEmailClient(url string, logger zerolog.Logger) *EmailClient {
	return &EmailClient{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With().Str("component", "email_client").Logger(),
	}
}

// SendAlert posts the alert to the bridge. A non-2xx response is an error.
func (c *EmailClient) SendAlert(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert bridge returned status %d", resp.StatusCode)
	}
	c.logger.Info().Int64("order_id", alert.OrderID).Msg("alert email accepted by bridge")
	return nil
}
