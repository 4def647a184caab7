package scheduling

import (
	"context"

	"github.com/google/uuid"
)

type ServiceRequestRepository interface {
	Create(ctx context.Context, r *ServiceRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceRequest, error)
	Update(ctx context.Context, r *ServiceRequest) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*ServiceRequest, int, error)
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	// UpdateStatus persists a status transition guarded on the status the
	// appointment was read at; StaleTransitionError when a concurrent
	// transition committed first.
	UpdateStatus(ctx context.Context, a *Appointment, from AppointmentStatus) error
	ListByMedTech(ctx context.Context, medTechID uuid.UUID) ([]*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	// ListLiveByRequest returns the appointments descending from a service
	// request whose status is not terminal, for the one-live-appointment
	// invariant.
	ListLiveByRequest(ctx context.Context, requestID uuid.UUID) ([]*Appointment, error)
}
