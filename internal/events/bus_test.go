package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	messages []*Message
	err      error
}

func (h *recordingHandler) HandleMessage(_ context.Context, msg *Message) error {
	h.messages = append(h.messages, msg)
	return h.err
}

func TestInMemoryBus_RoutesByTopic(t *testing.T) {
	bus := NewInMemoryBus(nil)
	tasks := &recordingHandler{}
	reminders := &recordingHandler{}
	bus.Subscribe(TopicTaskEvents, tasks)
	bus.Subscribe(TopicReminders, reminders)

	require.NoError(t, bus.Publish(context.Background(), &Message{ID: "1", Topic: TopicTaskEvents}))
	require.NoError(t, bus.Publish(context.Background(), &Message{ID: "2", Topic: TopicReminders}))
	require.NoError(t, bus.Publish(context.Background(), &Message{ID: "3", Topic: "unused"}))

	require.Len(t, tasks.messages, 1)
	assert.Equal(t, "1", tasks.messages[0].ID)
	require.Len(t, reminders.messages, 1)
	assert.Equal(t, "2", reminders.messages[0].ID)
}

func TestInMemoryBus_ContinuesAfterHandlerError(t *testing.T) {
	bus := NewInMemoryBus(nil)
	first := &recordingHandler{err: errors.New("first failed")}
	second := &recordingHandler{}
	bus.Subscribe(TopicTaskEvents, first)
	bus.Subscribe(TopicTaskEvents, second)

	err := bus.Publish(context.Background(), &Message{ID: "1", Topic: TopicTaskEvents})
	assert.EqualError(t, err, "first failed")
	assert.Len(t, second.messages, 1, "remaining handlers still receive the message")
}

func TestHandlerFunc(t *testing.T) {
	called := false
	var h Handler = HandlerFunc(func(context.Context, *Message) error {
		called = true
		return nil
	})
	require.NoError(t, h.HandleMessage(context.Background(), &Message{}))
	assert.True(t, called)
}
