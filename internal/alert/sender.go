// README: Alert delivery to the external messaging gateway. The core only
// produces text and a destination; the concrete channel (SMS/WhatsApp) lives
// behind the gateway.
package alert

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"rakshak/internal/config"
)

var ErrNotConfigured = errors.New("alert gateway not configured")

// Sender hands one message to the alerting collaborator.
type Sender interface {
	Send(ctx context.Context, to, message string) (deliveryID string, err error)
}

// HTTPSender posts signed JSON to the configured gateway with bounded retries.
type HTTPSender struct {
	cfg        config.AlertConfig
	httpClient *http.Client
	log        *logrus.Logger
}

func NewHTTPSender(cfg config.AlertConfig, log *logrus.Logger) *HTTPSender {
	return &HTTPSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type sendResponse struct {
	DeliveryID string `json:"delivery_id"`
}

func (s *HTTPSender) Send(ctx context.Context, to, message string) (string, error) {
	if s.cfg.GatewayURL == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(sendRequest{To: to, Message: message})
	if err != nil {
		return "", fmt.Errorf("marshal alert: %w", err)
	}

	retries := s.cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}
	delay := s.cfg.BaseDelay

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		id, err := s.post(ctx, body)
		if err == nil {
			return id, nil
		}
		lastErr = err
		s.log.WithError(err).WithField("attempt", attempt+1).Warn("alert delivery attempt failed")
	}
	return "", fmt.Errorf("alert delivery failed after %d attempts: %w", retries, lastErr)
}

func (s *HTTPSender) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.GatewayURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.Secret != "" {
		req.Header.Set("X-Alert-Signature", sign(body, s.cfg.Secret))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var out sendResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		// Delivery succeeded even if the gateway response body is opaque.
		return "", nil
	}
	return out.DeliveryID, nil
}

func sign(data []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
