// Package events publishes committed lifecycle transitions to downstream systems.
package events

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"hire-onboarding/internal/common/logger"
	"hire-onboarding/internal/models"

	"github.com/google/uuid"
)

// StatusChanged is emitted after a transition commits.
type StatusChanged struct {
	EventID    string        `json:"eventId"`
	RequestID  int64         `json:"requestId"`
	Action     string        `json:"action"`
	From       models.Status `json:"from,omitempty"`
	To         models.Status `json:"to"`
	Actor      string        `json:"actor"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// NewStatusChanged fills EventID.
func NewStatusChanged(requestID int64, action string, from, to models.Status, actor models.Actor, at time.Time) StatusChanged {
	return StatusChanged{
		EventID:    uuid.New().String(),
		RequestID:  requestID,
		Action:     action,
		From:       from,
		To:         to,
		Actor:      actor.String(),
		OccurredAt: at.UTC(),
	}
}

// Key is the partition and correlation key for the event.
func (e StatusChanged) Key() string {
	return strconv.FormatInt(e.RequestID, 10)
}

type Publisher interface {
	Publish(ctx context.Context, e StatusChanged) error
}

// Multi fans an event out to every publisher. Each failure is logged; the joined error
// is returned so callers can count it.
type Multi struct {
	publishers map[string]Publisher
	logger     logger.Logger
}

func NewMulti(log logger.Logger) *Multi {
	return &Multi{publishers: make(map[string]Publisher), logger: logger.ForComponent(log, "events")}
}

// Add registers p under name.
func (m *Multi) Add(name string, p Publisher) *Multi {
	m.publishers[name] = p
	return m
}

func (m *Multi) Len() int { return len(m.publishers) }

func (m *Multi) Publish(ctx context.Context, e StatusChanged) error {
	var errs []error
	for name, p := range m.publishers {
		if err := p.Publish(ctx, e); err != nil {
			m.logger.Error("event publish failed", map[string]interface{}{
				"backend":   name,
				"requestId": e.RequestID,
				"to":        e.To,
				"error":     err,
			})
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops events.
type Nop struct{}

func (Nop) Publish(context.Context, StatusChanged) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []StatusChanged
}

func (r *Recorder) Publish(_ context.Context, e StatusChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything recorded.
func (r *Recorder) Events() []StatusChanged {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StatusChanged(nil), r.events...)
}
