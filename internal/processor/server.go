package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/cadence-api/internal/api/middleware"
	"github.com/phrazzld/cadence-api/internal/api/shared"
	"github.com/phrazzld/cadence-api/internal/events"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/phrazzld/cadence-api/internal/redact"
)

// Dapr delivery statuses. SUCCESS acknowledges the message and DROP
// discards it. RETRY is never returned: delivery is at-most-once.
const (
	StatusSuccess = "SUCCESS"
	StatusDrop    = "DROP"
)

// maxEventBytes bounds the size of a delivered message body.
const maxEventBytes = 1 << 20

// Subscription binds a topic to the route a sidecar delivers it to.
// It is the programmatic subscription format returned by /dapr/subscribe.
type Subscription struct {
	PubSubName string `json:"pubsubname" yaml:"pubsubname"`
	Topic      string `json:"topic" yaml:"topic"`
	Route      string `json:"route" yaml:"route"`
}

// Route pairs a topic with the handler that consumes it.
type Route struct {
	Topic   string
	Handler events.Handler
}

// RouterConfig configures the processor HTTP surface.
type RouterConfig struct {
	// Service names the processor in health responses
	Service string

	// PubSubName is the Dapr pub/sub component the subscriptions refer to
	PubSubName string

	// HandlerTimeout bounds the processing of a single message
	HandlerTimeout time.Duration
}

// Subscriptions returns the subscriptions for routes.
func Subscriptions(pubsubName string, routes []Route) []Subscription {
	subs := make([]Subscription, 0, len(routes))
	for _, r := range routes {
		subs = append(subs, Subscription{
			PubSubName: pubsubName,
			Topic:      r.Topic,
			Route:      "/" + r.Topic,
		})
	}
	return subs
}

type deliveryResponse struct {
	Status string `json:"status"`
}

// NewRouter builds the HTTP surface of a processor: GET /dapr/subscribe,
// one POST endpoint per topic, and GET /health.
func NewRouter(cfg RouterConfig, routes []Route, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "processor_router", "service", cfg.Service)
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TraceMiddleware)

	subs := Subscriptions(cfg.PubSubName, routes)
	r.Get("/dapr/subscribe", func(w http.ResponseWriter, req *http.Request) {
		shared.RespondWithJSON(w, req, http.StatusOK, subs)
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		shared.RespondWithJSON(w, req, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": cfg.Service,
		})
	})

	for _, route := range routes {
		r.Post("/"+route.Topic, deliveryHandler(route, cfg.HandlerTimeout, log))
	}

	return r
}

// deliveryHandler adapts an events.Handler to a Dapr delivery endpoint.
// Dapr redelivers on non-2xx responses, so every outcome is answered with
// 200 and the status field decides whether the message is acknowledged.
func deliveryHandler(route Route, timeout time.Duration, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.WithLogger(r.Context(), log.With(
			slog.String("topic", route.Topic),
			slog.String("trace_id", shared.GetTraceID(r.Context())),
		))

		body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
		if err != nil {
			log.Warn("failed to read message body", "error", err, "topic", route.Topic)
			shared.RespondWithJSON(w, r, http.StatusOK, deliveryResponse{Status: StatusDrop})
			return
		}

		msg, err := messageFromBody(route.Topic, body)
		if err != nil {
			log.Warn("dropping malformed message", "error", err, "topic", route.Topic)
			shared.RespondWithJSON(w, r, http.StatusOK, deliveryResponse{Status: StatusDrop})
			return
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := route.Handler.HandleMessage(ctx, msg); err != nil {
			level := slog.LevelError
			if errors.Is(err, events.ErrInvalidEvent) {
				level = slog.LevelWarn
			}
			log.Log(ctx, level, "dropping message after handler failure",
				"error", redact.Error(err),
				"topic", route.Topic,
				"message_id", msg.ID)
			shared.RespondWithJSON(w, r, http.StatusOK, deliveryResponse{Status: StatusDrop})
			return
		}

		shared.RespondWithJSON(w, r, http.StatusOK, deliveryResponse{Status: StatusSuccess})
	}
}

// cloudEvent holds the envelope fields a sidecar wraps around the payload.
type cloudEvent struct {
	ID          string          `json:"id"`
	SpecVersion string          `json:"specversion"`
	Data        json.RawMessage `json:"data"`
}

// messageFromBody accepts either a bare event object or a CloudEvents
// envelope whose data holds the event, possibly as a JSON string.
func messageFromBody(topic string, body []byte) (*events.Message, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil, fmt.Errorf("%w: body is not a JSON object", events.ErrInvalidEvent)
	}

	var envelope cloudEvent
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", events.ErrInvalidEvent, err)
	}

	if envelope.SpecVersion == "" || len(envelope.Data) == 0 {
		return &events.Message{ID: envelope.ID, Topic: topic, Data: body}, nil
	}

	data := bytes.TrimSpace(envelope.Data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", events.ErrInvalidEvent, err)
		}
		data = []byte(inner)
	}
	return &events.Message{ID: envelope.ID, Topic: topic, Data: data}, nil
}
