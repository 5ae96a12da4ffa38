package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"taskboard/pkg/circuitbreaker"
	"taskboard/pkg/metrics"
)

// Mailer posts assignment notification emails to the configured HTTP
// endpoint. Calls run under a circuit breaker so a dead mail relay cannot
// stall the consumer.
type Mailer struct {
	endpointURL string
	fromName    string
	client      *http.Client
	breaker     *circuitbreaker.CircuitBreaker
	logger      *zap.Logger
}

type emailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	From    string `json:"from,omitempty"`
}

func NewMailer(endpointURL, fromName string, logger *zap.Logger) *Mailer {
	return &Mailer{
		endpointURL: endpointURL,
		fromName:    fromName,
		client:      &http.Client{Timeout: 10 * time.Second},
		breaker:     circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		logger:      logger,
	}
}

// Send posts one email. A non-2xx response is an error.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(emailRequest{
		To:      to,
		Subject: subject,
		Body:    body,
		From:    m.fromName,
	})
	if err != nil {
		return fmt.Errorf("failed to encode email request: %w", err)
	}

	err = m.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpointURL, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := m.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to call email endpoint: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("email endpoint returned status %d", resp.StatusCode)
		}
		return nil
	})

	if err != nil {
		metrics.IncrementNotificationEmail("failed")
		m.logger.Error("Failed to send notification email",
			zap.String("to", to),
			zap.Error(err),
		)
		return err
	}

	metrics.IncrementNotificationEmail("sent")
	m.logger.Info("Notification email sent", zap.String("to", to))
	return nil
}
