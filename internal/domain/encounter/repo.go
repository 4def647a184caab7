package encounter

import (
	"context"

	"github.com/google/uuid"
)

type EncounterRepository interface {
	Create(ctx context.Context, e *Encounter) error
	GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error)
	// GetByAppointment resolves the encounter created for an appointment;
	// NotFoundError when the subject never arrived.
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Encounter, error)
	Update(ctx context.Context, e *Encounter) error
	// UpdateStatus persists a status transition guarded on the status the
	// encounter was read at; StaleTransitionError when a concurrent
	// transition committed first.
	UpdateStatus(ctx context.Context, e *Encounter, from Status) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error)
}

type ObservationRepository interface {
	Create(ctx context.Context, o *Observation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Observation, error)
	ListByEncounter(ctx context.Context, encounterID uuid.UUID) ([]*Observation, error)
}

type DeliveryRepository interface {
	Create(ctx context.Context, d *Delivery) error
	GetByID(ctx context.Context, id uuid.UUID) (*Delivery, error)
	GetByEncounter(ctx context.Context, encounterID uuid.UUID) (*Delivery, error)
	Update(ctx context.Context, d *Delivery) error
	UpdateStatus(ctx context.Context, d *Delivery, from DeliveryStatus) error
}
