// Package analytics provides a fire-and-forget NATS publisher for business events.
package analytics

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// StreamName is the JetStream stream that captures every analytics.* subject.
const StreamName = "ANALYTICS"

const (
	SubjectAuthRegistered  = "analytics.auth.registered"
	SubjectAuthLoggedIn    = "analytics.auth.logged_in"
	SubjectRatingSubmitted = "analytics.rating.submitted"
	SubjectStoreCreated    = "analytics.store.created"
	SubjectStoreDeleted    = "analytics.store.deleted"
	SubjectUserDeleted     = "analytics.user.deleted"
)

// Event is the canonical envelope sent to all analytics.* subjects.
type Event struct {
	EventID    string         `json:"event_id"`
	EventName  string         `json:"event_name"`
	UserID     string         `json:"user_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Publisher publishes analytics events to NATS JetStream.
// A nil pointer and a Publisher built with js=nil are both no-ops.
type Publisher struct {
	js  nats.JetStreamContext
	log *zap.Logger
}

// New creates a Publisher using an existing JetStream context.
func New(js nats.JetStreamContext, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{js: js, log: log}
}

// EnsureStream creates the analytics stream when it does not exist yet.
func (p *Publisher) EnsureStream() error {
	if p == nil || p.js == nil {
		return nil
	}
	_, err := p.js.StreamInfo(StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = p.js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{"analytics.>"},
		Storage:  nats.FileStorage,
		MaxAge:   30 * 24 * time.Hour,
	})
	return err
}

// Publish sends an event asynchronously. Failures are logged as warnings
// and never surface to the caller.
func (p *Publisher) Publish(subject, eventName, userID string, props map[string]any) {
	if p == nil || p.js == nil {
		return
	}
	data, err := json.Marshal(newEvent(eventName, userID, props))
	if err != nil {
		p.log.Warn("analytics: marshal failed", zap.String("event", eventName), zap.Error(err))
		return
	}
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		p.log.Warn("analytics: publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

func newEvent(eventName, userID string, props map[string]any) Event {
	return Event{
		EventID:    uuid.NewString(),
		EventName:  eventName,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Properties: props,
	}
}
