package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/homevisit/homevisit/internal/domain/encounter"
	"github.com/homevisit/homevisit/internal/domain/fault"
	"github.com/homevisit/homevisit/internal/domain/registry"
	"github.com/homevisit/homevisit/internal/platform/clock"
	"github.com/homevisit/homevisit/internal/platform/event"
)

// Gate is the pre-commit consistency check run before committing a
// mutation. The concrete implementation lives in the consistency package
// and is wired in at startup.
type Gate interface {
	Check(ctx context.Context, entity any) error
}

// TxRunner executes fn as one atomic unit of work against the entity
// store: every repository write inside fn commits together or not at all.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// passthroughTx runs fn directly, for stores that need no transaction.
func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// BookingDeps carries the repositories and collaborators of the booking
// state machine.
type BookingDeps struct {
	Requests     ServiceRequestRepository
	Appointments AppointmentRepository
	Encounters   encounter.EncounterRepository
	Deliveries   encounter.DeliveryRepository
	Index        *Index
	Gate         Gate
	Events       event.Publisher
	Clock        clock.Clock
	Tx           TxRunner
	Logger       zerolog.Logger
}

// Booking drives the appointment lifecycle: propose, confirm, arrival,
// completion, cancellation and no-shows, with the availability index kept
// in step. Every operation either fully succeeds and emits its event, or
// fails with one typed error leaving all entities untouched. Transitions
// persist through status-guarded updates, so two racing transitions of the
// same entity cannot both commit; the loser gets StaleTransitionError and
// must reload.
type Booking struct {
	deps BookingDeps
}

func NewBooking(deps BookingDeps) *Booking {
	if deps.Tx == nil {
		deps.Tx = passthroughTx
	}
	return &Booking{deps: deps}
}

// -- ServiceRequest lifecycle --

// CreateRequest registers a draft service request.
func (b *Booking) CreateRequest(ctx context.Context, req *ServiceRequest) error {
	if len(req.ServiceIDs) == 0 {
		return fault.Validation("ServiceRequest", "service_ids", "at least one service is required")
	}
	if req.DesiredPeriod != nil {
		if err := req.DesiredPeriod.Validate(); err != nil {
			return err
		}
	}
	req.Status = RequestDraft
	req.AuthoredOn = b.deps.Clock.Now()
	if err := b.deps.Gate.Check(ctx, req); err != nil {
		return err
	}
	return b.deps.Requests.Create(ctx, req)
}

func (b *Booking) GetRequest(ctx context.Context, id uuid.UUID) (*ServiceRequest, error) {
	return b.deps.Requests.GetByID(ctx, id)
}

// ActivateRequest moves a request into the active state, making it
// matchable.
func (b *Booking) ActivateRequest(ctx context.Context, id uuid.UUID) error {
	return b.transitionRequest(ctx, id, RequestActive)
}

// SuspendRequest parks an active request.
func (b *Booking) SuspendRequest(ctx context.Context, id uuid.UUID) error {
	return b.transitionRequest(ctx, id, RequestSuspended)
}

// CancelRequest cancels the request and any live appointment descending
// from it.
func (b *Booking) CancelRequest(ctx context.Context, id uuid.UUID, reason string) error {
	live, err := b.deps.Appointments.ListLiveByRequest(ctx, id)
	if err != nil {
		return err
	}
	for _, appt := range live {
		if err := b.Cancel(ctx, appt.ID, reason); err != nil {
			return err
		}
	}
	return b.transitionRequest(ctx, id, RequestCancelled)
}

func (b *Booking) transitionRequest(ctx context.Context, id uuid.UUID, to RequestStatus) error {
	req, err := b.deps.Requests.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !req.Status.CanTransition(to) {
		return &fault.InvalidTransitionError{
			Entity: "ServiceRequest", ID: req.ID,
			From: string(req.Status), To: string(to),
		}
	}
	req.Status = to
	return b.deps.Requests.Update(ctx, req)
}

// -- Appointment lifecycle --

// Propose creates an appointment in the proposed state for an active
// request. No time is reserved yet; several proposals may coexist until
// one is confirmed.
func (b *Booking) Propose(ctx context.Context, requestID, medTechID uuid.UUID, period registry.Period) (*Appointment, error) {
	req, err := b.deps.Requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != RequestActive {
		return nil, fault.Validation("ServiceRequest", "status", "appointments can only be proposed for active requests")
	}
	if err := period.Validate(); err != nil {
		return nil, err
	}

	appt := &Appointment{
		Status:           AppointmentProposed,
		Period:           period,
		Created:          b.deps.Clock.Now(),
		ServiceRequestID: &req.ID,
		PatientID:        req.PatientID,
		MedTechID:        medTechID,
		ServiceIDs:       req.ServiceIDs,
	}
	if err := b.deps.Gate.Check(ctx, appt); err != nil {
		return nil, err
	}
	if err := b.deps.Appointments.Create(ctx, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

func (b *Booking) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return b.deps.Appointments.GetByID(ctx, id)
}

// Confirm takes a proposed appointment through pending to booked,
// reserving the med tech's time. A concurrent booking of the same window
// fails with ConflictError; callers should re-run the matcher.
func (b *Booking) Confirm(ctx context.Context, id uuid.UUID) error {
	appt, err := b.deps.Appointments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	from := appt.Status
	if err := appt.transition(AppointmentPending); err != nil {
		return err
	}

	if appt.ServiceRequestID != nil {
		live, err := b.deps.Appointments.ListLiveByRequest(ctx, *appt.ServiceRequestID)
		if err != nil {
			return err
		}
		for _, other := range live {
			if other.ID != appt.ID && other.Status != AppointmentProposed {
				return fault.Validation("Appointment", "service_request_id",
					"the service request already has an active appointment")
			}
		}
	}

	if err := b.deps.Gate.Check(ctx, appt); err != nil {
		return err
	}

	// Reserve first: the index is the arbiter of double-booking, and the
	// reservation is atomic per med tech.
	if err := b.deps.Index.Reserve(appt.MedTechID, appt.Period); err != nil {
		return err
	}
	if err := appt.transition(AppointmentBooked); err != nil {
		b.deps.Index.Release(appt.MedTechID, appt.Period)
		return err
	}
	if err := b.deps.Appointments.UpdateStatus(ctx, appt, from); err != nil {
		b.deps.Index.Release(appt.MedTechID, appt.Period)
		return fmt.Errorf("store appointment: %w", err)
	}

	b.deps.Events.Publish(ctx, event.Event{
		Type:       event.TypeAppointmentBooked,
		Entity:     "Appointment",
		EntityID:   appt.ID,
		Status:     string(appt.Status),
		PatientID:  appt.PatientID,
		MedTechID:  appt.MedTechID,
		OccurredAt: b.deps.Clock.Now(),
	})
	return nil
}

// RecordArrival marks the med tech as arrived and opens the encounter,
// copying patient, med tech and period from the appointment.
func (b *Booking) RecordArrival(ctx context.Context, id uuid.UUID) (*encounter.Encounter, error) {
	appt, err := b.deps.Appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := appt.Status
	if err := appt.transition(AppointmentArrived); err != nil {
		return nil, err
	}

	enc := &encounter.Encounter{
		Status:        encounter.StatusArrived,
		PatientID:     appt.PatientID,
		MedTechID:     appt.MedTechID,
		AppointmentID: appt.ID,
		Period:        registry.Period{Start: b.deps.Clock.Now(), End: appt.Period.End},
		ServiceIDs:    appt.ServiceIDs,
	}
	if !appt.Period.ContainsTime(enc.Period.Start) {
		// Early or late arrival: anchor the encounter to the booked window.
		enc.Period = appt.Period
	}
	if err := b.deps.Gate.Check(ctx, enc); err != nil {
		return nil, err
	}

	err = b.deps.Tx(ctx, func(ctx context.Context) error {
		if err := b.deps.Appointments.UpdateStatus(ctx, appt, from); err != nil {
			return err
		}
		return b.deps.Encounters.Create(ctx, enc)
	})
	if err != nil {
		return nil, err
	}
	return enc, nil
}

// Complete fulfills an arrived appointment. The linked encounter must be
// finished first; completing the appointment also completes its service
// request.
func (b *Booking) Complete(ctx context.Context, id uuid.UUID) error {
	appt, err := b.deps.Appointments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	enc, err := b.deps.Encounters.GetByAppointment(ctx, appt.ID)
	if err != nil {
		return err
	}
	if enc.Status != encounter.StatusFinished {
		return fault.Validation("Appointment", "encounter", "linked encounter must be finished before completion")
	}
	from := appt.Status
	if err := appt.transition(AppointmentFulfilled); err != nil {
		return err
	}

	return b.deps.Tx(ctx, func(ctx context.Context) error {
		if err := b.deps.Appointments.UpdateStatus(ctx, appt, from); err != nil {
			return err
		}
		if appt.ServiceRequestID == nil {
			return nil
		}
		req, err := b.deps.Requests.GetByID(ctx, *appt.ServiceRequestID)
		if err != nil {
			return err
		}
		if !req.Status.CanTransition(RequestCompleted) {
			return nil
		}
		req.Status = RequestCompleted
		return b.deps.Requests.Update(ctx, req)
	})
}

// Cancel cancels the appointment, releases its reservation when one was
// held, and cascades to the linked encounter and delivery.
func (b *Booking) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	appt, err := b.deps.Appointments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	hadReservation := appt.Occupies()
	from := appt.Status
	if err := appt.transition(AppointmentCancelled); err != nil {
		return err
	}
	appt.CancellationReason = reason

	err = b.deps.Tx(ctx, func(ctx context.Context) error {
		if err := b.deps.Appointments.UpdateStatus(ctx, appt, from); err != nil {
			return err
		}
		return b.cascadeCancel(ctx, appt.ID)
	})
	if err != nil {
		return err
	}

	if hadReservation {
		b.deps.Index.Release(appt.MedTechID, appt.Period)
	}
	b.deps.Events.Publish(ctx, event.Event{
		Type:       event.TypeAppointmentCancelled,
		Entity:     "Appointment",
		EntityID:   appt.ID,
		Status:     string(appt.Status),
		PatientID:  appt.PatientID,
		MedTechID:  appt.MedTechID,
		OccurredAt: b.deps.Clock.Now(),
	})
	return nil
}

// cascadeCancel cancels the encounter and delivery hanging off the
// appointment, when they exist and are still live.
func (b *Booking) cascadeCancel(ctx context.Context, appointmentID uuid.UUID) error {
	enc, err := b.deps.Encounters.GetByAppointment(ctx, appointmentID)
	if err != nil {
		var nf *fault.NotFoundError
		if errors.As(err, &nf) {
			return nil
		}
		return err
	}
	if enc.Status.CanTransition(encounter.StatusCancelled) {
		from := enc.Status
		enc.Status = encounter.StatusCancelled
		if err := b.deps.Encounters.UpdateStatus(ctx, enc, from); err != nil {
			return err
		}
	}

	del, err := b.deps.Deliveries.GetByEncounter(ctx, enc.ID)
	if err != nil {
		var nf *fault.NotFoundError
		if errors.As(err, &nf) {
			return nil
		}
		return err
	}
	if del.Status.CanTransition(encounter.DeliveryCancelled) {
		from := del.Status
		del.Status = encounter.DeliveryCancelled
		return b.deps.Deliveries.UpdateStatus(ctx, del, from)
	}
	return nil
}

// MarkNoShow records that the patient was not there. Legal only from
// booked; the reservation is released.
func (b *Booking) MarkNoShow(ctx context.Context, id uuid.UUID) error {
	appt, err := b.deps.Appointments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if appt.Status != AppointmentBooked {
		return &fault.InvalidTransitionError{
			Entity: "Appointment", ID: appt.ID,
			From: string(appt.Status), To: string(AppointmentNoShow),
		}
	}
	if err := appt.transition(AppointmentNoShow); err != nil {
		return err
	}
	if err := b.deps.Appointments.UpdateStatus(ctx, appt, AppointmentBooked); err != nil {
		return err
	}
	b.deps.Index.Release(appt.MedTechID, appt.Period)
	return nil
}

// MarkEnteredInError voids an appointment recorded by mistake. The
// reservation, if held, is released.
func (b *Booking) MarkEnteredInError(ctx context.Context, id uuid.UUID) error {
	appt, err := b.deps.Appointments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	hadReservation := appt.Occupies()
	from := appt.Status
	if err := appt.transition(AppointmentEnteredInError); err != nil {
		return err
	}
	if err := b.deps.Appointments.UpdateStatus(ctx, appt, from); err != nil {
		return err
	}
	if hadReservation {
		b.deps.Index.Release(appt.MedTechID, appt.Period)
	}
	return nil
}
