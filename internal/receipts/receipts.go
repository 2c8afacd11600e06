// Package receipts dispatches post-sale receipts to the notification service.
// Delivery is best-effort: failures are logged and never surfaced to the
// settlement flow.
package receipts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fairwaylabs/fairway-pos-backend/pkg/config"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/db/models"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/logger"
)

// Sender requests receipt delivery for a settled transaction.
type Sender interface {
	Send(ctx context.Context, tx *models.Transaction, email string)
}

type payload struct {
	TransactionID string                   `json:"transaction_id"`
	Email         string                   `json:"email"`
	FromEmail     string                   `json:"from_email,omitempty"`
	Total         string                   `json:"total"`
	Items         []models.TransactionItem `json:"items"`
	CompletedAt   *time.Time               `json:"completed_at,omitempty"`
}

// HTTPSender posts receipt requests to the configured notification endpoint.
type HTTPSender struct {
	cfg    config.ReceiptsConfig
	client *http.Client
	logg   *logger.Logger
}

// NewHTTPSender builds the receipt dispatcher from config.
func NewHTTPSender(cfg config.ReceiptsConfig, logg *logger.Logger) (*HTTPSender, error) {
	if cfg.EndpointURL == "" {
		return nil, fmt.Errorf("receipts endpoint url required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSender{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logg:   logg,
	}, nil
}

func (s *HTTPSender) Send(ctx context.Context, tx *models.Transaction, email string) {
	body, err := json.Marshal(payload{
		TransactionID: tx.ID.String(),
		Email:         email,
		FromEmail:     s.cfg.FromEmail,
		Total:         tx.Pricing.TotalCents.String(),
		Items:         tx.Items,
		CompletedAt:   tx.CompletedAt,
	})
	if err != nil {
		s.logg.Error(ctx, "receipt payload encoding failed", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.EndpointURL, bytes.NewReader(body))
	if err != nil {
		s.logg.Error(ctx, "receipt request build failed", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logg.Error(ctx, "receipt dispatch failed", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		s.logg.Error(ctx, "receipt dispatch rejected", fmt.Errorf("receipt endpoint returned %d", resp.StatusCode))
	}
}

// NoopSender drops receipt requests. Used when receipts are disabled.
type NoopSender struct{}

func (NoopSender) Send(context.Context, *models.Transaction, string) {}
