package encounter

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/homevisit/homevisit/internal/domain/fault"
	"github.com/homevisit/homevisit/internal/platform/clock"
	"github.com/homevisit/homevisit/internal/platform/event"
)

// Gate is the pre-commit consistency check, wired from the consistency
// package at startup.
type Gate interface {
	Check(ctx context.Context, entity any) error
}

// AppointmentServices resolves which services an appointment carries, so
// the ad-hoc service rule can be enforced without importing the scheduling
// package.
type AppointmentServices interface {
	ServicesFor(ctx context.Context, appointmentID uuid.UUID) ([]uuid.UUID, error)
}

// ServiceDefs resolves healthcare service definitions.
type ServiceDefs interface {
	AppointmentRequired(ctx context.Context, serviceID uuid.UUID) (bool, error)
}

// Deps carries the encounter service's collaborators.
type Deps struct {
	Encounters   EncounterRepository
	Observations ObservationRepository
	Deliveries   DeliveryRepository
	Appointment  AppointmentServices
	Defs         ServiceDefs
	Gate         Gate
	Events       event.Publisher
	Clock        clock.Clock
	Logger       zerolog.Logger
}

// Service drives the encounter and delivery state machines and records
// observations.
type Service struct {
	deps Deps
}

func NewService(deps Deps) *Service {
	return &Service{deps: deps}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return s.deps.Encounters.GetByID(ctx, id)
}

// -- Encounter lifecycle --

// Triage marks the arrived patient as triaged.
func (s *Service) Triage(ctx context.Context, id uuid.UUID) error {
	return s.transitionEncounter(ctx, id, StatusTriaged)
}

// Begin starts the actual visit work.
func (s *Service) Begin(ctx context.Context, id uuid.UUID) error {
	return s.transitionEncounter(ctx, id, StatusInProgress)
}

// Pause records the med tech temporarily leaving.
func (s *Service) Pause(ctx context.Context, id uuid.UUID) error {
	return s.transitionEncounter(ctx, id, StatusOnLeave)
}

// Resume continues a paused encounter.
func (s *Service) Resume(ctx context.Context, id uuid.UUID) error {
	return s.transitionEncounter(ctx, id, StatusInProgress)
}

// Finish closes the encounter, stamps the period end and emits
// EncounterFinished.
func (s *Service) Finish(ctx context.Context, id uuid.UUID) error {
	enc, err := s.deps.Encounters.GetByID(ctx, id)
	if err != nil {
		return err
	}
	from := enc.Status
	if err := enc.transition(StatusFinished); err != nil {
		return err
	}
	if now := s.deps.Clock.Now(); now.After(enc.Period.Start) && now.Before(enc.Period.End) {
		enc.Period.End = now
	}
	if err := s.deps.Encounters.UpdateStatus(ctx, enc, from); err != nil {
		return err
	}
	s.deps.Events.Publish(ctx, event.Event{
		Type:       event.TypeEncounterFinished,
		Entity:     "Encounter",
		EntityID:   enc.ID,
		Status:     string(enc.Status),
		PatientID:  enc.PatientID,
		MedTechID:  enc.MedTechID,
		OccurredAt: s.deps.Clock.Now(),
	})
	return nil
}

// Cancel aborts a live encounter.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	return s.transitionEncounter(ctx, id, StatusCancelled)
}

// transitionEncounter moves the encounter to a new status. The write is
// guarded on the status it was read at, so two racing transitions of the
// same encounter cannot both commit.
func (s *Service) transitionEncounter(ctx context.Context, id uuid.UUID, to Status) error {
	enc, err := s.deps.Encounters.GetByID(ctx, id)
	if err != nil {
		return err
	}
	from := enc.Status
	if err := enc.transition(to); err != nil {
		return err
	}
	return s.deps.Encounters.UpdateStatus(ctx, enc, from)
}

// AddService attaches a service performed ad hoc during the encounter.
// Services that require an appointment are only legal when the linked
// appointment already carries them.
func (s *Service) AddService(ctx context.Context, encounterID, serviceID uuid.UUID) error {
	enc, err := s.deps.Encounters.GetByID(ctx, encounterID)
	if err != nil {
		return err
	}
	if enc.Status.Terminal() {
		return fault.Validation("Encounter", "status", "cannot add services to a closed encounter")
	}
	for _, id := range enc.ServiceIDs {
		if id == serviceID {
			return nil
		}
	}

	required, err := s.deps.Defs.AppointmentRequired(ctx, serviceID)
	if err != nil {
		return err
	}
	if required {
		booked, err := s.deps.Appointment.ServicesFor(ctx, enc.AppointmentID)
		if err != nil {
			return err
		}
		onAppointment := false
		for _, id := range booked {
			if id == serviceID {
				onAppointment = true
				break
			}
		}
		if !onAppointment {
			return fault.Validation("Encounter", "service_ids",
				"service requires an appointment and is not on the linked appointment")
		}
	}

	enc.ServiceIDs = append(enc.ServiceIDs, serviceID)
	return s.deps.Encounters.Update(ctx, enc)
}

// -- Observations --

// RecordObservation stores a measurement taken during an in-progress
// encounter. The subject is always the encounter's patient.
func (s *Service) RecordObservation(ctx context.Context, encounterID uuid.UUID, obs *Observation) error {
	enc, err := s.deps.Encounters.GetByID(ctx, encounterID)
	if err != nil {
		return err
	}
	if enc.Status != StatusInProgress {
		return fault.Validation("Observation", "context", "observations can only be recorded during an in-progress encounter")
	}

	obs.EncounterID = enc.ID
	if obs.SubjectID == uuid.Nil {
		obs.SubjectID = enc.PatientID
	}
	if err := obs.ValidateValues(); err != nil {
		return err
	}
	if obs.Issued == nil {
		now := s.deps.Clock.Now()
		obs.Issued = &now
	}
	if err := s.deps.Gate.Check(ctx, obs); err != nil {
		return err
	}
	return s.deps.Observations.Create(ctx, obs)
}

func (s *Service) ListObservations(ctx context.Context, encounterID uuid.UUID) ([]*Observation, error) {
	return s.deps.Observations.ListByEncounter(ctx, encounterID)
}

// -- Delivery lifecycle --

// CreateDelivery plans the transport of collected samples to a laboratory.
// The encounter must at least have started; patient and med tech are
// copied from it.
func (s *Service) CreateDelivery(ctx context.Context, encounterID, labID uuid.UUID, description string, serviceIDs []uuid.UUID) (*Delivery, error) {
	enc, err := s.deps.Encounters.GetByID(ctx, encounterID)
	if err != nil {
		return nil, err
	}
	switch enc.Status {
	case StatusInProgress, StatusOnLeave, StatusFinished:
	default:
		return nil, fault.Validation("Delivery", "encounter", "deliveries require a started encounter")
	}

	del := &Delivery{
		Status:      DeliveryPlanned,
		PatientID:   enc.PatientID,
		MedTechID:   enc.MedTechID,
		EncounterID: enc.ID,
		LabID:       labID,
		Description: description,
		ServiceIDs:  serviceIDs,
	}
	if err := s.deps.Gate.Check(ctx, del); err != nil {
		return nil, err
	}
	if err := s.deps.Deliveries.Create(ctx, del); err != nil {
		return nil, err
	}
	s.deps.Events.Publish(ctx, event.Event{
		Type:       event.TypeDeliveryCreated,
		Entity:     "Delivery",
		EntityID:   del.ID,
		Status:     string(del.Status),
		PatientID:  del.PatientID,
		MedTechID:  del.MedTechID,
		OccurredAt: s.deps.Clock.Now(),
	})
	return del, nil
}

func (s *Service) GetDelivery(ctx context.Context, id uuid.UUID) (*Delivery, error) {
	return s.deps.Deliveries.GetByID(ctx, id)
}

// StartDelivery marks the med tech en route to the laboratory.
func (s *Service) StartDelivery(ctx context.Context, id uuid.UUID) error {
	return s.transitionDelivery(ctx, id, DeliveryInProgress)
}

// MarkDeliveryArrived records arrival at the laboratory.
func (s *Service) MarkDeliveryArrived(ctx context.Context, id uuid.UUID) error {
	return s.transitionDelivery(ctx, id, DeliveryArrived)
}

// FinishDelivery records handover of the samples.
func (s *Service) FinishDelivery(ctx context.Context, id uuid.UUID) error {
	return s.transitionDelivery(ctx, id, DeliveryFinished)
}

// CancelDelivery aborts a live delivery.
func (s *Service) CancelDelivery(ctx context.Context, id uuid.UUID) error {
	return s.transitionDelivery(ctx, id, DeliveryCancelled)
}

func (s *Service) transitionDelivery(ctx context.Context, id uuid.UUID, to DeliveryStatus) error {
	del, err := s.deps.Deliveries.GetByID(ctx, id)
	if err != nil {
		return err
	}
	from := del.Status
	if err := del.transition(to); err != nil {
		return err
	}
	return s.deps.Deliveries.UpdateStatus(ctx, del, from)
}
