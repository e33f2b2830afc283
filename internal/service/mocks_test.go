package service

import (
	"context"
	"sync"
	"time"

	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockEventPublisher is a testify mock of EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

var _ EventPublisher = (*MockEventPublisher)(nil)

func (m *MockEventPublisher) TaskCreated(ctx context.Context, task *domain.Task) bool {
	args := m.Called(ctx, task)
	return args.Bool(0)
}

func (m *MockEventPublisher) TaskUpdated(ctx context.Context, task *domain.Task, oldCompleted bool) bool {
	args := m.Called(ctx, task, oldCompleted)
	return args.Bool(0)
}

func (m *MockEventPublisher) TaskDeleted(ctx context.Context, taskID int64, userID string) bool {
	args := m.Called(ctx, taskID, userID)
	return args.Bool(0)
}

func (m *MockEventPublisher) Reminder(ctx context.Context, task *domain.Task, reminderTime time.Time) bool {
	args := m.Called(ctx, task, reminderTime)
	return args.Bool(0)
}

// recordingPublisher records events and accepts all of them. It is safe for
// concurrent use, unlike the mock's call assertions under heavy contention.
type recordingPublisher struct {
	mu      sync.Mutex
	created []*domain.Task
	updated []*domain.Task
}

func (p *recordingPublisher) TaskCreated(_ context.Context, task *domain.Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, task.Clone())
	return true
}

func (p *recordingPublisher) TaskUpdated(_ context.Context, task *domain.Task, _ bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updated = append(p.updated, task.Clone())
	return true
}

func (p *recordingPublisher) TaskDeleted(context.Context, int64, string) bool { return true }

func (p *recordingPublisher) Reminder(context.Context, *domain.Task, time.Time) bool { return true }

func (p *recordingPublisher) createdCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.created)
}

// testClock is a settable clock for services under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
