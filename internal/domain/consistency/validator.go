package consistency

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/homevisit/homevisit/internal/domain/encounter"
	"github.com/homevisit/homevisit/internal/domain/fault"
	"github.com/homevisit/homevisit/internal/domain/registry"
	"github.com/homevisit/homevisit/internal/domain/scheduling"
)

// maxPartOfDepth bounds the part-of chain walk; any legitimate location or
// organization hierarchy is far shallower.
const maxPartOfDepth = 64

// Repos are the lookups the validator resolves references against.
type Repos struct {
	Patients      registry.PatientRepository
	Practitioners registry.PractitionerRepository
	MedTechs      registry.MedTechRepository
	Locations     registry.LocationRepository
	Organizations registry.OrganizationRepository
	ServiceDefs   registry.ServiceDefRepository
	Devices       registry.DeviceRepository
	Laboratories  registry.LaboratoryRepository
	Requests      scheduling.ServiceRequestRepository
	Appointments  scheduling.AppointmentRepository
	Encounters    encounter.EncounterRepository
}

// Validator checks an entity's references and cross-entity rules before it
// is written. Every domain service calls it through its Gate interface.
type Validator struct {
	repos Repos
}

func NewValidator(repos Repos) *Validator {
	return &Validator{repos: repos}
}

// Check validates a single entity. Entities the validator does not know
// pass unchecked.
func (v *Validator) Check(ctx context.Context, entity any) error {
	switch e := entity.(type) {
	case *registry.Patient:
		return v.checkPatient(ctx, e)
	case *registry.Practitioner:
		return v.checkPractitioner(ctx, e)
	case *registry.MedTech:
		return v.checkMedTech(ctx, e)
	case *registry.Location:
		return v.checkLocation(ctx, e)
	case *registry.Organization:
		return v.checkOrganization(ctx, e)
	case *registry.HealthcareService:
		return v.checkServiceDef(ctx, e)
	case *registry.Device:
		return v.checkDevice(ctx, e)
	case *registry.Laboratory:
		return v.checkLaboratory(ctx, e)
	case *scheduling.ServiceRequest:
		return v.checkServiceRequest(ctx, e)
	case *scheduling.Appointment:
		return v.checkAppointment(ctx, e)
	case *encounter.Encounter:
		return v.checkEncounter(ctx, e)
	case *encounter.Observation:
		return v.checkObservation(ctx, e)
	case *encounter.Delivery:
		return v.checkDelivery(ctx, e)
	}
	return nil
}

func (v *Validator) checkPatient(ctx context.Context, p *registry.Patient) error {
	if p.Name == "" {
		return fault.Validation("Patient", "name", "name is required")
	}
	if p.Gender != "" && !p.Gender.Valid() {
		return fault.Validation("Patient", "gender", "unknown gender code")
	}
	if p.ServiceArea != nil && !p.ServiceArea.Valid() {
		return fault.Validation("Patient", "service_area", "unknown service area")
	}
	if err := v.requireLocation(ctx, "Patient", "location_id", p.LocationID); err != nil {
		return err
	}
	if p.GeneralPractitionerID != nil {
		if _, err := v.repos.Practitioners.GetByID(ctx, *p.GeneralPractitionerID); err != nil {
			return dangling("Patient", "general_practitioner_id", err)
		}
	}
	return v.requireOrg(ctx, "Patient", "managing_org_id", p.ManagingOrgID)
}

func (v *Validator) checkPractitioner(ctx context.Context, p *registry.Practitioner) error {
	if p.Name == "" {
		return fault.Validation("Practitioner", "name", "name is required")
	}
	if p.Gender != "" && !p.Gender.Valid() {
		return fault.Validation("Practitioner", "gender", "unknown gender code")
	}
	if p.LocationID != nil {
		if err := v.requireLocation(ctx, "Practitioner", "location_id", *p.LocationID); err != nil {
			return err
		}
	}
	for _, orgID := range p.OrganizationIDs {
		id := orgID
		if err := v.requireOrg(ctx, "Practitioner", "organization_ids", &id); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) checkMedTech(ctx context.Context, m *registry.MedTech) error {
	if m.Name == "" {
		return fault.Validation("MedTech", "name", "name is required")
	}
	for _, area := range m.ServiceAreas {
		if !area.Valid() {
			return fault.Validation("MedTech", "service_areas", fmt.Sprintf("unknown service area %q", area))
		}
	}
	if err := m.ValidateSchedule(); err != nil {
		return err
	}
	if err := v.requireLocation(ctx, "MedTech", "work_location_id", m.WorkLocationID); err != nil {
		return err
	}
	if err := v.requireOrg(ctx, "MedTech", "organization_id", m.OrganizationID); err != nil {
		return err
	}
	return v.requireServices(ctx, "MedTech", m.ServiceIDs)
}

func (v *Validator) checkLocation(ctx context.Context, l *registry.Location) error {
	if l.Name == "" {
		return fault.Validation("Location", "name", "name is required")
	}
	if !l.Status.Valid() {
		return fault.Validation("Location", "status", "unknown status code")
	}
	if err := v.requireOrg(ctx, "Location", "managing_org_id", l.ManagingOrgID); err != nil {
		return err
	}
	return v.locationChainAcyclic(ctx, l)
}

// locationChainAcyclic walks the part-of chain upward and rejects cycles,
// including the one the candidate edge would close.
func (v *Validator) locationChainAcyclic(ctx context.Context, l *registry.Location) error {
	seen := map[uuid.UUID]bool{l.ID: true}
	next := l.PartOfID
	for depth := 0; next != nil; depth++ {
		if depth >= maxPartOfDepth {
			return fault.Validation("Location", "part_of_id", "part-of chain exceeds maximum depth")
		}
		if seen[*next] {
			return fault.Validation("Location", "part_of_id", "part-of chain forms a cycle")
		}
		seen[*next] = true
		parent, err := v.repos.Locations.GetByID(ctx, *next)
		if err != nil {
			return dangling("Location", "part_of_id", err)
		}
		next = parent.PartOfID
	}
	return nil
}

func (v *Validator) checkOrganization(ctx context.Context, o *registry.Organization) error {
	if o.Name == "" {
		return fault.Validation("Organization", "name", "name is required")
	}
	if o.LocationID != nil {
		if err := v.requireLocation(ctx, "Organization", "location_id", *o.LocationID); err != nil {
			return err
		}
	}
	seen := map[uuid.UUID]bool{o.ID: true}
	next := o.PartOfID
	for depth := 0; next != nil; depth++ {
		if depth >= maxPartOfDepth {
			return fault.Validation("Organization", "part_of_id", "part-of chain exceeds maximum depth")
		}
		if seen[*next] {
			return fault.Validation("Organization", "part_of_id", "part-of chain forms a cycle")
		}
		seen[*next] = true
		parent, err := v.repos.Organizations.GetByID(ctx, *next)
		if err != nil {
			return dangling("Organization", "part_of_id", err)
		}
		next = parent.PartOfID
	}
	return nil
}

func (v *Validator) checkServiceDef(ctx context.Context, s *registry.HealthcareService) error {
	if s.Name == "" {
		return fault.Validation("HealthcareService", "name", "name is required")
	}
	for _, deviceID := range s.DeviceIDs {
		if _, err := v.repos.Devices.GetByID(ctx, deviceID); err != nil {
			return dangling("HealthcareService", "device_ids", err)
		}
	}
	return nil
}

func (v *Validator) checkDevice(ctx context.Context, d *registry.Device) error {
	if !d.Status.Valid() {
		return fault.Validation("Device", "status", "unknown status code")
	}
	if d.PatientID != nil {
		if _, err := v.repos.Patients.GetByID(ctx, *d.PatientID); err != nil {
			return dangling("Device", "patient_id", err)
		}
	}
	if err := v.requireOrg(ctx, "Device", "owner_org_id", d.OwnerOrgID); err != nil {
		return err
	}
	if d.LocationID != nil {
		return v.requireLocation(ctx, "Device", "location_id", *d.LocationID)
	}
	return nil
}

func (v *Validator) checkLaboratory(ctx context.Context, l *registry.Laboratory) error {
	if l.Name == "" {
		return fault.Validation("Laboratory", "name", "name is required")
	}
	if err := v.requireLocation(ctx, "Laboratory", "location_id", l.LocationID); err != nil {
		return err
	}
	return v.requireServices(ctx, "Laboratory", l.ServiceIDs)
}

func (v *Validator) checkServiceRequest(ctx context.Context, r *scheduling.ServiceRequest) error {
	if len(r.ServiceIDs) == 0 {
		return fault.Validation("ServiceRequest", "service_ids", "at least one service is required")
	}
	patient, err := v.repos.Patients.GetByID(ctx, r.PatientID)
	if err != nil {
		return dangling("ServiceRequest", "patient_id", err)
	}
	if !patient.Active {
		return fault.Validation("ServiceRequest", "patient_id", "patient is not active")
	}
	if _, err := v.repos.Practitioners.GetByID(ctx, r.OrderingPractitionerID); err != nil {
		return dangling("ServiceRequest", "ordering_practitioner_id", err)
	}
	if r.DesiredPeriod != nil {
		if err := r.DesiredPeriod.Validate(); err != nil {
			return err
		}
	}
	return v.requireServices(ctx, "ServiceRequest", r.ServiceIDs)
}

func (v *Validator) checkAppointment(ctx context.Context, a *scheduling.Appointment) error {
	if err := a.Period.Validate(); err != nil {
		return err
	}
	if len(a.ServiceIDs) == 0 {
		return fault.Validation("Appointment", "service_ids", "at least one service is required")
	}
	patient, err := v.repos.Patients.GetByID(ctx, a.PatientID)
	if err != nil {
		return dangling("Appointment", "patient_id", err)
	}
	if !patient.Active {
		return fault.Validation("Appointment", "patient_id", "patient is not active")
	}
	medTech, err := v.repos.MedTechs.GetByID(ctx, a.MedTechID)
	if err != nil {
		return dangling("Appointment", "med_tech_id", err)
	}
	if !medTech.Active {
		return fault.Validation("Appointment", "med_tech_id", "med tech is not active")
	}
	if !medTech.CanPerform(a.ServiceIDs) {
		return fault.Validation("Appointment", "service_ids", "med tech does not perform every requested service")
	}
	if a.ServiceRequestID != nil {
		if _, err := v.repos.Requests.GetByID(ctx, *a.ServiceRequestID); err != nil {
			return dangling("Appointment", "service_request_id", err)
		}
	}
	return v.requireServices(ctx, "Appointment", a.ServiceIDs)
}

func (v *Validator) checkEncounter(ctx context.Context, e *encounter.Encounter) error {
	if err := e.Period.Validate(); err != nil {
		return err
	}
	appt, err := v.repos.Appointments.GetByID(ctx, e.AppointmentID)
	if err != nil {
		return dangling("Encounter", "appointment_id", err)
	}
	if e.PatientID != appt.PatientID {
		return fault.Validation("Encounter", "patient_id", "patient differs from the appointment's patient")
	}
	if e.MedTechID != appt.MedTechID {
		return fault.Validation("Encounter", "med_tech_id", "med tech differs from the appointment's med tech")
	}
	// The visit either fits inside the appointment slot or, when the
	// patient showed up early or the visit ran long, at least covers the
	// slot's start.
	if !appt.Period.Contains(e.Period) && !e.Period.ContainsTime(appt.Period.Start) {
		return fault.Validation("Encounter", "period", "period neither lies within the appointment nor covers its start")
	}
	if e.LocationID != nil {
		return v.requireLocation(ctx, "Encounter", "location_id", *e.LocationID)
	}
	return nil
}

func (v *Validator) checkObservation(ctx context.Context, o *encounter.Observation) error {
	if err := o.ValidateValues(); err != nil {
		return err
	}
	enc, err := v.repos.Encounters.GetByID(ctx, o.EncounterID)
	if err != nil {
		return dangling("Observation", "encounter_id", err)
	}
	if o.SubjectID != enc.PatientID {
		return fault.Validation("Observation", "subject_id", "subject differs from the encounter's patient")
	}
	if o.PerformerID != nil {
		if _, err := v.repos.MedTechs.GetByID(ctx, *o.PerformerID); err != nil {
			return dangling("Observation", "performer_id", err)
		}
	}
	if o.DeviceID != nil {
		if _, err := v.repos.Devices.GetByID(ctx, *o.DeviceID); err != nil {
			return dangling("Observation", "device_id", err)
		}
	}
	return nil
}

func (v *Validator) checkDelivery(ctx context.Context, d *encounter.Delivery) error {
	enc, err := v.repos.Encounters.GetByID(ctx, d.EncounterID)
	if err != nil {
		return dangling("Delivery", "encounter_id", err)
	}
	if d.PatientID != enc.PatientID {
		return fault.Validation("Delivery", "patient_id", "patient differs from the encounter's patient")
	}
	if d.MedTechID != enc.MedTechID {
		return fault.Validation("Delivery", "med_tech_id", "med tech differs from the encounter's med tech")
	}
	lab, err := v.repos.Laboratories.GetByID(ctx, d.LabID)
	if err != nil {
		return dangling("Delivery", "lab_id", err)
	}
	if !lab.Active {
		return fault.Validation("Delivery", "lab_id", "laboratory is not active")
	}
	return v.requireServices(ctx, "Delivery", d.ServiceIDs)
}

func (v *Validator) requireLocation(ctx context.Context, entity, field string, id uuid.UUID) error {
	if id == uuid.Nil {
		return fault.Validation(entity, field, "location reference is required")
	}
	if _, err := v.repos.Locations.GetByID(ctx, id); err != nil {
		return dangling(entity, field, err)
	}
	return nil
}

func (v *Validator) requireOrg(ctx context.Context, entity, field string, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := v.repos.Organizations.GetByID(ctx, *id); err != nil {
		return dangling(entity, field, err)
	}
	return nil
}

func (v *Validator) requireServices(ctx context.Context, entity string, ids []uuid.UUID) error {
	for _, id := range ids {
		if _, err := v.repos.ServiceDefs.GetByID(ctx, id); err != nil {
			return dangling(entity, "service_ids", err)
		}
	}
	return nil
}

// dangling turns a failed lookup into a ValidationError when the target is
// missing; lookup infrastructure failures pass through unchanged.
func dangling(entity, field string, err error) error {
	var nf *fault.NotFoundError
	if errors.As(err, &nf) {
		return fault.Validation(entity, field, fmt.Sprintf("references missing %s %s", nf.Kind, nf.ID))
	}
	return err
}
