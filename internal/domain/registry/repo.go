package registry

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}

type PractitionerRepository interface {
	Create(ctx context.Context, p *Practitioner) error
	GetByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)
	Update(ctx context.Context, p *Practitioner) error
	List(ctx context.Context, limit, offset int) ([]*Practitioner, int, error)
}

type MedTechRepository interface {
	Create(ctx context.Context, m *MedTech) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedTech, error)
	Update(ctx context.Context, m *MedTech) error
	List(ctx context.Context, limit, offset int) ([]*MedTech, int, error)
	// ListActive returns every med tech with an active record, for the
	// matcher's candidate scan.
	ListActive(ctx context.Context) ([]*MedTech, error)
}

type LocationRepository interface {
	Create(ctx context.Context, l *Location) error
	GetByID(ctx context.Context, id uuid.UUID) (*Location, error)
	Update(ctx context.Context, l *Location) error
	List(ctx context.Context, limit, offset int) ([]*Location, int, error)
}

type OrganizationRepository interface {
	Create(ctx context.Context, o *Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*Organization, error)
	Update(ctx context.Context, o *Organization) error
	List(ctx context.Context, limit, offset int) ([]*Organization, int, error)
}

type ServiceDefRepository interface {
	Create(ctx context.Context, s *HealthcareService) error
	GetByID(ctx context.Context, id uuid.UUID) (*HealthcareService, error)
	Update(ctx context.Context, s *HealthcareService) error
	List(ctx context.Context, limit, offset int) ([]*HealthcareService, int, error)
}

type DeviceRepository interface {
	Create(ctx context.Context, d *Device) error
	GetByID(ctx context.Context, id uuid.UUID) (*Device, error)
	Update(ctx context.Context, d *Device) error
	List(ctx context.Context, limit, offset int) ([]*Device, int, error)
}

type LaboratoryRepository interface {
	Create(ctx context.Context, l *Laboratory) error
	GetByID(ctx context.Context, id uuid.UUID) (*Laboratory, error)
	Update(ctx context.Context, l *Laboratory) error
	List(ctx context.Context, limit, offset int) ([]*Laboratory, int, error)
}
