package events

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DaprConfig holds the settings for publishing through a Dapr sidecar.
type DaprConfig struct {
	// BaseURL is the sidecar's HTTP address, e.g. http://localhost:3500
	BaseURL string

	// PubSubName is the name of the Dapr pub/sub component
	PubSubName string

	// Timeout bounds a single publish request
	Timeout time.Duration
}

// DaprBus publishes messages through the Dapr sidecar's HTTP pub/sub API.
type DaprBus struct {
	endpoint *url.URL
	pubsub   string
	client   *http.Client
	logger   *slog.Logger
}

// NewDaprBus creates a DaprBus. It returns an error if the base URL is invalid.
func NewDaprBus(cfg DaprConfig, logger *slog.Logger) (*DaprBus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid dapr base url %q", cfg.BaseURL)
	}
	if cfg.PubSubName == "" {
		return nil, fmt.Errorf("dapr pubsub name cannot be empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &DaprBus{
		endpoint: u,
		pubsub:   cfg.PubSubName,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With("component", "dapr_bus"),
	}, nil
}

var _ Bus = (*DaprBus)(nil)

// Publish posts the message body to /v1.0/publish/{pubsub}/{topic}.
// Any non-2xx response is an error.
func (b *DaprBus) Publish(ctx context.Context, msg *Message) error {
	target := b.endpoint.JoinPath("v1.0", "publish", b.pubsub, msg.Topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(msg.Data))
	if err != nil {
		return fmt.Errorf("failed to build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("publish to %s failed: %w", msg.Topic, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("publish to %s failed: status %d: %s", msg.Topic, resp.StatusCode, bytes.TrimSpace(body))
	}

	b.logger.Debug("message published",
		"topic", msg.Topic,
		"message_id", msg.ID,
		"status", resp.StatusCode)
	return nil
}
