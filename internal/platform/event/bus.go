// Package event carries the engine's domain events to interested
// collaborators. Delivery transport (webhooks, queues, email) is someone
// else's problem: the bus dispatches synchronously in-process and the
// subscriber decides what to do with the event.
package event

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Type identifies a kind of domain event.
type Type string

const (
	TypeAppointmentBooked    Type = "appointment.booked"
	TypeAppointmentCancelled Type = "appointment.cancelled"
	TypeEncounterFinished    Type = "encounter.finished"
	TypeDeliveryCreated      Type = "delivery.created"
)

// Event describes one state change: the affected entity, its new status and
// the identifiers a consumer needs to look the entities up.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       Type      `json:"type"`
	Entity     string    `json:"entity"`
	EntityID   uuid.UUID `json:"entity_id"`
	Status     string    `json:"status"`
	PatientID  uuid.UUID `json:"patient_id,omitempty"`
	MedTechID  uuid.UUID `json:"med_tech_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher is what the engine's services depend on.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Handler consumes a published event.
type Handler func(ctx context.Context, ev Event)

// Bus is a thread-safe in-process publisher with per-type subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Type][]Handler
	all    []Handler
	logger zerolog.Logger
}

// NewBus creates an empty bus that logs every published event.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		subs:   make(map[Type][]Handler),
		logger: logger,
	}
}

// Subscribe registers h for events of type t.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], h)
}

// SubscribeAll registers h for every event type.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish delivers ev to all matching subscribers on the calling goroutine.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	b.logger.Info().
		Str("event", string(ev.Type)).
		Str("entity", ev.Entity).
		Str("entity_id", ev.EntityID.String()).
		Str("status", ev.Status).
		Msg("domain event")

	b.mu.RLock()
	handlers := append([]Handler(nil), b.subs[ev.Type]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, ev)
	}
}

// Recorder collects published events for assertions in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events with type t.
func (r *Recorder) OfType(t Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
