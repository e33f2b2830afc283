package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/phrazzld/cadence-api/internal/redact"
)

// Errors reported in logs when a message cannot be enqueued.
var (
	ErrQueueClosed = errors.New("event queue is closed")
	ErrQueueFull   = errors.New("event queue is full")
)

// PublisherConfig holds configuration for the event publisher
type PublisherConfig struct {
	// QueueSize is the capacity of the outbound queue
	QueueSize int

	// WorkerCount determines how many goroutines deliver messages to the bus.
	// If zero or negative, defaults to 1
	WorkerCount int

	// EnqueueTimeout is how long Publish waits for room in a full queue
	EnqueueTimeout time.Duration

	// SendTimeout bounds a single delivery to the bus
	SendTimeout time.Duration
}

// DefaultPublisherConfig returns a PublisherConfig with reasonable defaults
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		QueueSize:      256,
		WorkerCount:    2,
		EnqueueTimeout: 50 * time.Millisecond,
		SendTimeout:    5 * time.Second,
	}
}

// PublisherStats counts what happened to published messages.
type PublisherStats struct {
	Enqueued  int64
	Dropped   int64
	Delivered int64
	Failed    int64
}

// Publisher turns task lifecycle facts into messages and delivers them to a
// Bus. Delivery is at-most-once: Publish never blocks longer than the
// enqueue timeout, failures are logged and counted, and nothing is retried.
type Publisher struct {
	bus    Bus
	config PublisherConfig
	logger *slog.Logger
	now    func() time.Time

	queue   chan *Message
	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup

	enqueued  atomic.Int64
	dropped   atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

// NewPublisher creates a new publisher. Call Start to begin delivery.
func NewPublisher(bus Bus, config PublisherConfig, logger *slog.Logger) *Publisher {
	if bus == nil {
		panic("bus cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "event_publisher")

	defaults := DefaultPublisherConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}
	if config.EnqueueTimeout <= 0 {
		config.EnqueueTimeout = defaults.EnqueueTimeout
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = defaults.SendTimeout
	}

	return &Publisher{
		bus:    bus,
		config: config,
		logger: logger,
		now:    time.Now,
		queue:  make(chan *Message, config.QueueSize),
	}
}

// Start launches the delivery workers. Calling Start more than once has no effect.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	p.logger.Info("starting event publisher",
		"worker_count", p.config.WorkerCount,
		"queue_size", p.config.QueueSize)

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the queue and waits for the workers to deliver what is left.
// Publish calls made after Stop return false.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	started := p.started
	p.mu.Unlock()

	if !started {
		// Nobody will drain the queue; account for what is in it.
		for range p.queue {
			p.dropped.Add(1)
		}
		return
	}

	p.wg.Wait()
	p.logger.Info("event publisher stopped", "stats", p.Stats())
}

// Stats returns a snapshot of the publisher counters.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		Enqueued:  p.enqueued.Load(),
		Dropped:   p.dropped.Load(),
		Delivered: p.delivered.Load(),
		Failed:    p.failed.Load(),
	}
}

// Publish builds an event of eventType from the task and enqueues it on
// TopicTaskEvents. It reports whether the event was accepted for delivery.
func (p *Publisher) Publish(ctx context.Context, eventType EventType, task *domain.Task, opts ...EventOption) bool {
	event := NewTaskEvent(eventType, task, p.now(), opts...)
	return p.enqueueEvent(ctx, TopicTaskEvents, event.ID.String(), event)
}

// TaskCreated publishes a task.created event.
func (p *Publisher) TaskCreated(ctx context.Context, task *domain.Task) bool {
	return p.Publish(ctx, EventTaskCreated, task)
}

// TaskUpdated publishes a task.updated event carrying the previous completion state.
func (p *Publisher) TaskUpdated(ctx context.Context, task *domain.Task, oldCompleted bool) bool {
	return p.Publish(ctx, EventTaskUpdated, task, WithOldCompleted(oldCompleted))
}

// TaskDeleted publishes a task.deleted event.
func (p *Publisher) TaskDeleted(ctx context.Context, taskID int64, userID string) bool {
	event := NewTaskDeletedEvent(taskID, userID, p.now())
	return p.enqueueEvent(ctx, TopicTaskEvents, event.ID.String(), event)
}

// Reminder publishes a reminder.due event on TopicReminders.
func (p *Publisher) Reminder(ctx context.Context, task *domain.Task, reminderTime time.Time) bool {
	event := NewReminderEvent(task, reminderTime, p.now())
	return p.enqueueEvent(ctx, TopicReminders, event.ID.String(), event)
}

func (p *Publisher) enqueueEvent(ctx context.Context, topic, id string, event any) bool {
	log := logger.FromContextOrDefault(ctx, p.logger)

	msg, err := NewMessage(topic, id, event)
	if err != nil {
		p.dropped.Add(1)
		log.Error("failed to encode event", "error", err, "topic", topic)
		return false
	}

	if err := p.enqueue(ctx, msg); err != nil {
		p.dropped.Add(1)
		log.Warn("event dropped",
			"error", err,
			"topic", topic,
			"message_id", id)
		return false
	}

	p.enqueued.Add(1)
	log.Debug("event enqueued",
		"topic", topic,
		"message_id", id,
		"queue_len", len(p.queue),
		"queue_cap", cap(p.queue))
	return true
}

// enqueue waits at most EnqueueTimeout for room in the queue. The read lock
// keeps Stop from closing the channel while a send is in flight.
func (p *Publisher) enqueue(ctx context.Context, msg *Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrQueueClosed
	}

	select {
	case p.queue <- msg:
		return nil
	default:
	}

	timer := time.NewTimer(p.config.EnqueueTimeout)
	defer timer.Stop()

	select {
	case p.queue <- msg:
		return nil
	case <-timer.C:
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker delivers messages until the queue is closed and drained.
func (p *Publisher) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)
	for msg := range p.queue {
		p.deliver(id, msg)
	}
	p.logger.Debug("stopping worker", "worker_id", id)
}

func (p *Publisher) deliver(workerID int, msg *Message) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.SendTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			p.logger.Error("bus panicked while delivering message",
				"panic", r,
				"worker_id", workerID,
				"topic", msg.Topic,
				"message_id", msg.ID)
		}
	}()

	if err := p.bus.Publish(ctx, msg); err != nil {
		p.failed.Add(1)
		p.logger.Error("failed to deliver event",
			"error", redact.Error(err),
			"worker_id", workerID,
			"topic", msg.Topic,
			"message_id", msg.ID)
		return
	}
	p.delivered.Add(1)
}
