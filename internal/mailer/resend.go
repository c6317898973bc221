package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"mailflow/config"
	"mailflow/internal/circuitbreaker"
	"mailflow/internal/metrics"
)

// ResendClient sends email through the Resend HTTP API, one call per
// recipient. A circuit breaker fails fast when the provider is down so the
// worker does not hang on every retry.
type ResendClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
}

func NewResendClient(cfg config.ResendConfig) *ResendClient {
	cbConfig := circuitbreaker.Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 2,
	}

	return &ResendClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cb: circuitbreaker.New(cbConfig),
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type errorResponse struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

func (c *ResendClient) Send(ctx context.Context, msg Message) error {
	return c.cb.Execute(func() error {
		start := time.Now()

		b, err := json.Marshal(sendRequest{
			From:    msg.From,
			To:      []string{msg.To},
			Subject: msg.Subject,
			HTML:    msg.HTML,
		})
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(b))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		latency := time.Since(start)

		if err != nil {
			metrics.RecordProviderCallLatency("error", latency)
			return fmt.Errorf("failed to call mail provider: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			metrics.RecordProviderCallLatency(fmt.Sprintf("%d", resp.StatusCode), latency)
			var apiErr errorResponse
			if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
				return fmt.Errorf("mail provider error (%s): %s", apiErr.Name, apiErr.Message)
			}
			return fmt.Errorf("mail provider returned status %d", resp.StatusCode)
		}

		metrics.RecordProviderCallLatency("success", latency)
		return nil
	})
}
