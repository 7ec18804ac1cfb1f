// Package settlement talks to the external SWIFT settlement network.
package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"swiftpay/internal/domain"
	"swiftpay/pkg/config"
	"swiftpay/pkg/logger"
)

// Gateway submits release batches to the settlement network over HTTP.
// The network treats the batch id as an idempotency key: resubmitting an
// accepted batch returns success without moving funds twice.
type Gateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  logger.Logger
}

func NewGateway(cfg config.SettlementConfig, log logger.Logger) *Gateway {
	return &Gateway{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: log,
	}
}

type submitRequest struct {
	BatchID    string   `json:"batch_id"`
	Reference  string   `json:"reference"`
	PaymentIDs []string `json:"payment_ids"`
	Total      string   `json:"total"`
	ReleasedAt string   `json:"released_at"`
}

type submitResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// SubmitBatch hands the batch to the network and waits for the accept/reject
// outcome. Context cancellation or timeout surfaces unchanged so the caller
// can distinguish an unknown outcome from a rejection.
func (g *Gateway) SubmitBatch(ctx context.Context, batch *domain.SettlementBatch) error {
	ids := make([]string, len(batch.PaymentIDs))
	for i, id := range batch.PaymentIDs {
		ids[i] = id.String()
	}

	body, err := json.Marshal(submitRequest{
		BatchID:    batch.ID.String(),
		Reference:  batch.Reference,
		PaymentIDs: ids,
		Total:      batch.Total.String(),
		ReleasedAt: batch.ReleasedAt.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/batches", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build settlement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", batch.ID.String())
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read settlement response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.logger.Warn("Settlement network rejected batch", map[string]interface{}{
			"batch_id": batch.ID,
			"status":   resp.StatusCode,
		})
		return fmt.Errorf("settlement network returned status %d", resp.StatusCode)
	}

	var out submitResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode settlement response: %w", err)
	}
	if !out.Accepted {
		return fmt.Errorf("settlement network declined batch: %s", out.Message)
	}

	return nil
}
