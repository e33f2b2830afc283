package events

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaprBus_Publish(t *testing.T) {
	var gotPath, gotContentType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	bus, err := NewDaprBus(DaprConfig{BaseURL: srv.URL, PubSubName: "kafka-pubsub"}, nil)
	require.NoError(t, err)

	msg := &Message{ID: "1", Topic: TopicTaskEvents, Data: []byte(`{"event_type":"task.created"}`)}
	require.NoError(t, bus.Publish(context.Background(), msg))

	assert.Equal(t, "/v1.0/publish/kafka-pubsub/task-events", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"event_type":"task.created"}`, gotBody)
}

func TestDaprBus_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "pubsub not found", http.StatusNotFound)
	}))
	defer srv.Close()

	bus, err := NewDaprBus(DaprConfig{BaseURL: srv.URL, PubSubName: "kafka-pubsub"}, nil)
	require.NoError(t, err)

	err = bus.Publish(context.Background(), &Message{Topic: TopicReminders, Data: []byte(`{}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "pubsub not found")
}

func TestDaprBus_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	bus, err := NewDaprBus(DaprConfig{BaseURL: url, PubSubName: "kafka-pubsub"}, nil)
	require.NoError(t, err)
	assert.Error(t, bus.Publish(context.Background(), &Message{Topic: TopicTaskEvents, Data: []byte(`{}`)}))
}

func TestNewDaprBus_Validation(t *testing.T) {
	_, err := NewDaprBus(DaprConfig{BaseURL: "localhost", PubSubName: "p"}, nil)
	assert.Error(t, err)

	_, err = NewDaprBus(DaprConfig{BaseURL: "http://localhost:3500"}, nil)
	assert.Error(t, err)
}
