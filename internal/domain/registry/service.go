package registry

import (
	"context"

	"github.com/google/uuid"

	"github.com/homevisit/homevisit/internal/domain/fault"
)

// Gate is the pre-commit consistency check run before any registry write.
// The concrete implementation lives in the consistency package and is wired
// in at startup to avoid an import cycle.
type Gate interface {
	Check(ctx context.Context, entity any) error
}

// ScheduleIndex recomputes a med tech's derived availability data after a
// registry mutation commits. The concrete implementation wraps the
// scheduling index and is wired in at startup; nil disables the refresh.
type ScheduleIndex interface {
	RebuildMedTech(ctx context.Context, medTechID uuid.UUID) error
}

// Deps carries the repositories and collaborators the registry service needs.
type Deps struct {
	Patients      PatientRepository
	Practitioners PractitionerRepository
	MedTechs      MedTechRepository
	Locations     LocationRepository
	Organizations OrganizationRepository
	Services      ServiceDefRepository
	Devices       DeviceRepository
	Laboratories  LaboratoryRepository
	Gate          Gate
	Index         ScheduleIndex

	// RequireContactInfo makes phone and email mandatory at registration.
	RequireContactInfo bool
}

// Service implements registration and deactivation of directory entities.
type Service struct {
	deps Deps
}

func NewService(deps Deps) *Service {
	return &Service{deps: deps}
}

// refreshIndex recomputes the med tech's availability after a committed
// mutation, so bookings never run against a schedule that no longer holds.
func (s *Service) refreshIndex(ctx context.Context, medTechID uuid.UUID) error {
	if s.deps.Index == nil {
		return nil
	}
	return s.deps.Index.RebuildMedTech(ctx, medTechID)
}

func (s *Service) checkContact(entity, phone, email string) error {
	if !s.deps.RequireContactInfo {
		return nil
	}
	if phone == "" {
		return fault.Validation(entity, "phone", "phone is required")
	}
	if email == "" {
		return fault.Validation(entity, "email", "email is required")
	}
	return nil
}

// -- Patient --

func (s *Service) RegisterPatient(ctx context.Context, p *Patient) error {
	if p.Name == "" {
		return fault.Validation("Patient", "name", "name is required")
	}
	if err := s.checkContact("Patient", p.Phone, p.Email); err != nil {
		return err
	}
	if p.Gender == "" {
		p.Gender = GenderUnknown
	}
	p.Active = true
	if err := s.deps.Gate.Check(ctx, p); err != nil {
		return err
	}
	return s.deps.Patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.deps.Patients.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.deps.Patients.List(ctx, limit, offset)
}

// DeactivatePatient marks the record inactive. Registry entities are never
// hard-deleted while historical appointments reference them.
func (s *Service) DeactivatePatient(ctx context.Context, id uuid.UUID) error {
	p, err := s.deps.Patients.GetByID(ctx, id)
	if err != nil {
		return err
	}
	p.Active = false
	return s.deps.Patients.Update(ctx, p)
}

// -- Practitioner --

func (s *Service) RegisterPractitioner(ctx context.Context, p *Practitioner) error {
	if p.Name == "" {
		return fault.Validation("Practitioner", "name", "name is required")
	}
	if err := s.checkContact("Practitioner", p.Phone, p.Email); err != nil {
		return err
	}
	if p.Gender == "" {
		p.Gender = GenderUnknown
	}
	p.Active = true
	if err := s.deps.Gate.Check(ctx, p); err != nil {
		return err
	}
	return s.deps.Practitioners.Create(ctx, p)
}

func (s *Service) GetPractitioner(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	return s.deps.Practitioners.GetByID(ctx, id)
}

// -- MedTech --

func (s *Service) RegisterMedTech(ctx context.Context, m *MedTech) error {
	if m.Name == "" {
		return fault.Validation("MedTech", "name", "name is required")
	}
	if m.WorkLocationID == uuid.Nil {
		return fault.Validation("MedTech", "work_location_id", "work location is required")
	}
	if err := s.checkContact("MedTech", m.Phone, m.Email); err != nil {
		return err
	}
	if err := m.ValidateSchedule(); err != nil {
		return err
	}
	m.Active = true
	if err := s.deps.Gate.Check(ctx, m); err != nil {
		return err
	}
	if err := s.deps.MedTechs.Create(ctx, m); err != nil {
		return err
	}
	return s.refreshIndex(ctx, m.ID)
}

func (s *Service) GetMedTech(ctx context.Context, id uuid.UUID) (*MedTech, error) {
	return s.deps.MedTechs.GetByID(ctx, id)
}

func (s *Service) ListMedTechs(ctx context.Context, limit, offset int) ([]*MedTech, int, error) {
	return s.deps.MedTechs.List(ctx, limit, offset)
}

// UpdateMedTechSchedule replaces the working schedule and availability
// windows after re-validating them.
func (s *Service) UpdateMedTechSchedule(ctx context.Context, id uuid.UUID, schedule Period, availabilities []Period) error {
	m, err := s.deps.MedTechs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	m.Schedule = schedule
	m.Availabilities = availabilities
	if err := m.ValidateSchedule(); err != nil {
		return err
	}
	if err := s.deps.Gate.Check(ctx, m); err != nil {
		return err
	}
	if err := s.deps.MedTechs.Update(ctx, m); err != nil {
		return err
	}
	return s.refreshIndex(ctx, m.ID)
}

func (s *Service) DeactivateMedTech(ctx context.Context, id uuid.UUID) error {
	m, err := s.deps.MedTechs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	m.Active = false
	if err := s.deps.MedTechs.Update(ctx, m); err != nil {
		return err
	}
	return s.refreshIndex(ctx, m.ID)
}

// -- Location --

func (s *Service) RegisterLocation(ctx context.Context, l *Location) error {
	if l.Name == "" {
		return fault.Validation("Location", "name", "name is required")
	}
	if l.Address.Line == "" || l.Address.City == "" || l.Address.State == "" ||
		l.Address.PostalCode == "" || l.Address.Country == "" {
		return fault.Validation("Location", "address", "line, city, state, postal code and country are required")
	}
	if l.Status == "" {
		l.Status = LocationActive
	}
	if err := s.deps.Gate.Check(ctx, l); err != nil {
		return err
	}
	return s.deps.Locations.Create(ctx, l)
}

func (s *Service) GetLocation(ctx context.Context, id uuid.UUID) (*Location, error) {
	return s.deps.Locations.GetByID(ctx, id)
}

// -- Organization --

func (s *Service) RegisterOrganization(ctx context.Context, o *Organization) error {
	if o.Name == "" {
		return fault.Validation("Organization", "name", "name is required")
	}
	if err := s.checkContact("Organization", o.Phone, o.Email); err != nil {
		return err
	}
	o.Active = true
	if err := s.deps.Gate.Check(ctx, o); err != nil {
		return err
	}
	return s.deps.Organizations.Create(ctx, o)
}

func (s *Service) GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error) {
	return s.deps.Organizations.GetByID(ctx, id)
}

// -- HealthcareService --

func (s *Service) RegisterServiceDef(ctx context.Context, def *HealthcareService) error {
	if def.Name == "" {
		return fault.Validation("HealthcareService", "name", "name is required")
	}
	def.Active = true
	if err := s.deps.Gate.Check(ctx, def); err != nil {
		return err
	}
	return s.deps.Services.Create(ctx, def)
}

func (s *Service) GetServiceDef(ctx context.Context, id uuid.UUID) (*HealthcareService, error) {
	return s.deps.Services.GetByID(ctx, id)
}

func (s *Service) ListServiceDefs(ctx context.Context, limit, offset int) ([]*HealthcareService, int, error) {
	return s.deps.Services.List(ctx, limit, offset)
}

// -- Device --

func (s *Service) RegisterDevice(ctx context.Context, d *Device) error {
	if d.Status == "" {
		d.Status = DeviceUnknown
	}
	if !d.Status.Valid() {
		return fault.Validation("Device", "status", "unknown device status")
	}
	if err := s.deps.Gate.Check(ctx, d); err != nil {
		return err
	}
	return s.deps.Devices.Create(ctx, d)
}

func (s *Service) GetDevice(ctx context.Context, id uuid.UUID) (*Device, error) {
	return s.deps.Devices.GetByID(ctx, id)
}

// -- Laboratory --

func (s *Service) RegisterLaboratory(ctx context.Context, l *Laboratory) error {
	if l.Name == "" {
		return fault.Validation("Laboratory", "name", "name is required")
	}
	if l.LocationID == uuid.Nil {
		return fault.Validation("Laboratory", "location_id", "location is required")
	}
	if err := s.checkContact("Laboratory", l.Phone, l.Email); err != nil {
		return err
	}
	l.Active = true
	if err := s.deps.Gate.Check(ctx, l); err != nil {
		return err
	}
	return s.deps.Laboratories.Create(ctx, l)
}

func (s *Service) GetLaboratory(ctx context.Context, id uuid.UUID) (*Laboratory, error) {
	return s.deps.Laboratories.GetByID(ctx, id)
}

func (s *Service) DeactivateLaboratory(ctx context.Context, id uuid.UUID) error {
	l, err := s.deps.Laboratories.GetByID(ctx, id)
	if err != nil {
		return err
	}
	l.Active = false
	return s.deps.Laboratories.Update(ctx, l)
}
