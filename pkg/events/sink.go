package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single webhook delivery
const DefaultTimeout = 3 * time.Second

// ErrDelivery marks a failed webhook post
var ErrDelivery = errors.New("event delivery failed")

// Sink accepts events on a best-effort basis. Post never returns an error
// and never blocks longer than the sink's own timeout.
type Sink interface {
	Post(ctx context.Context, e Event)
}

// New returns a webhook sink for url, or a sink that drops everything when url is empty
func New(url string, timeout time.Duration, logger *zap.Logger) Sink {
	if url == "" {
		return NopSink{}
	}
	return NewWebhookSink(url, timeout, logger)
}

// NopSink drops every event
type NopSink struct{}

func (NopSink) Post(ctx context.Context, e Event) {}

// WebhookSink posts each event as JSON to a control-plane URL.
// Delivery is at most once: failures are logged and dropped.
type WebhookSink struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewWebhookSink(url string, timeout time.Duration, logger *zap.Logger) *WebhookSink {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (s *WebhookSink) Post(ctx context.Context, e Event) {
	if err := s.deliver(ctx, e); err != nil {
		s.logger.Debug("event dropped",
			zap.String("event", e.Kind()),
			zap.Error(err))
	}
}

func (s *WebhookSink) deliver(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrDelivery, e.Kind(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrDelivery, resp.StatusCode)
	}
	return nil
}
