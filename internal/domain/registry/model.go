// Package registry holds the directory entities of the home-visit service:
// the people, places, organizations, devices and service definitions that
// scheduling and encounters refer to by identifier. Registry entities are
// long-lived; they are deactivated, never hard-deleted, once historical
// appointments reference them.
package registry

import (
	"time"

	"github.com/google/uuid"

	"github.com/homevisit/homevisit/internal/domain/fault"
)

// ServiceArea is a coarse geographic zone used to pre-filter match candidates.
type ServiceArea string

const (
	AreaNorthBay   ServiceArea = "north-bay"
	AreaSouthBay   ServiceArea = "south-bay"
	AreaLosAngeles ServiceArea = "los-angeles"
)

// Valid reports whether a is one of the known service areas.
func (a ServiceArea) Valid() bool {
	switch a {
	case AreaNorthBay, AreaSouthBay, AreaLosAngeles:
		return true
	}
	return false
}

// Gender values used for administrative purposes.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderOther   Gender = "other"
	GenderUnknown Gender = "unknown"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderUnknown:
		return true
	}
	return false
}

// LocationStatus indicates whether a location is still in use.
type LocationStatus string

const (
	LocationActive    LocationStatus = "active"
	LocationSuspended LocationStatus = "suspended"
	LocationInactive  LocationStatus = "inactive"
)

func (s LocationStatus) Valid() bool {
	switch s {
	case LocationActive, LocationSuspended, LocationInactive:
		return true
	}
	return false
}

// DeviceStatus is the availability status of a device record.
type DeviceStatus string

const (
	DeviceActive         DeviceStatus = "active"
	DeviceInactive       DeviceStatus = "inactive"
	DeviceEnteredInError DeviceStatus = "entered-in-error"
	DeviceUnknown        DeviceStatus = "unknown"
)

func (s DeviceStatus) Valid() bool {
	switch s {
	case DeviceActive, DeviceInactive, DeviceEnteredInError, DeviceUnknown:
		return true
	}
	return false
}

// Period is a time range with an inclusive start and an exclusive end.
type Period struct {
	Start time.Time `json:"start" db:"period_start"`
	End   time.Time `json:"end" db:"period_end"`
}

// NewPeriod builds a Period without validating it; call Validate before
// trusting externally supplied bounds.
func NewPeriod(start, end time.Time) Period {
	return Period{Start: start, End: end}
}

// Validate checks that the period is non-empty and correctly ordered.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fault.Validation("Period", "start", "start and end are required")
	}
	if !p.Start.Before(p.End) {
		return fault.Validation("Period", "start", "start must precede end")
	}
	return nil
}

// Contains reports whether other lies fully inside p.
func (p Period) Contains(other Period) bool {
	return !other.Start.Before(p.Start) && !other.End.After(p.End)
}

// ContainsTime reports whether t falls inside p.
func (p Period) ContainsTime(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Overlaps reports whether p and other share any instant.
func (p Period) Overlaps(other Period) bool {
	return p.Start.Before(other.End) && other.Start.Before(p.End)
}

// Intersect returns the overlap of p and other; ok is false when they are
// disjoint.
func (p Period) Intersect(other Period) (Period, bool) {
	start := p.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := p.End
	if other.End.Before(end) {
		end = other.End
	}
	if !start.Before(end) {
		return Period{}, false
	}
	return Period{Start: start, End: end}, true
}

// Duration returns the length of the period.
func (p Period) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// Address in postal conventions.
type Address struct {
	Use        string `json:"use"`
	Type       string `json:"type,omitempty"`
	Text       string `json:"text,omitempty"`
	Line       string `json:"line"`
	City       string `json:"city"`
	District   string `json:"district,omitempty"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Position is an absolute geographic location (WGS84).
type Position struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude,omitempty"`
}

// DistanceTo is the straight-line distance between two positions on the
// coordinate plane. The matcher only compares distances against each other,
// so plain Euclidean distance over the coordinates is sufficient.
func (p Position) DistanceTo(other Position) float64 {
	dLat := p.Latitude - other.Latitude
	dLon := p.Longitude - other.Longitude
	return dLat*dLat + dLon*dLon
}

// QuantityKind tags a Quantity with what it measures. The source model
// derived Age/Count/Distance/Duration from one numeric-plus-unit shape; a
// single tagged struct avoids four copies of the same type.
type QuantityKind string

const (
	KindPlain    QuantityKind = ""
	KindAge      QuantityKind = "age"
	KindCount    QuantityKind = "count"
	KindDistance QuantityKind = "distance"
	KindDuration QuantityKind = "duration"
)

// Quantity is a measured or measurable amount.
type Quantity struct {
	Kind  QuantityKind `json:"kind,omitempty"`
	Value float64      `json:"value"`
	Unit  string       `json:"unit,omitempty"`
}

// Location is a physical place. PartOfID chains form a DAG: a location can
// be part of another, but the chain must stay acyclic.
type Location struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	Status         LocationStatus `json:"status" db:"status"`
	Name           string         `json:"name" db:"name"`
	Alias          []string       `json:"alias,omitempty" db:"alias"`
	Description    string         `json:"description,omitempty" db:"description"`
	Address        Address        `json:"address"`
	Position       Position       `json:"position"`
	ManagingOrgID  *uuid.UUID     `json:"managing_org_id,omitempty" db:"managing_org_id"`
	PartOfID       *uuid.UUID     `json:"part_of_id,omitempty" db:"part_of_id"`
	Phone          string         `json:"phone,omitempty" db:"phone"`
	Email          string         `json:"email,omitempty" db:"email"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// Organization is a grouping of people with a common purpose.
type Organization struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Active     bool       `json:"active" db:"active"`
	Name       string     `json:"name" db:"name"`
	Alias      []string   `json:"alias,omitempty" db:"alias"`
	Phone      string     `json:"phone,omitempty" db:"phone"`
	Email      string     `json:"email,omitempty" db:"email"`
	LocationID *uuid.UUID `json:"location_id,omitempty" db:"location_id"`
	PartOfID   *uuid.UUID `json:"part_of_id,omitempty" db:"part_of_id"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// Patient is an individual receiving home-visit services.
type Patient struct {
	ID                    uuid.UUID    `json:"id" db:"id"`
	Active                bool         `json:"active" db:"active"`
	Name                  string       `json:"name" db:"name"`
	Phone                 string       `json:"phone,omitempty" db:"phone"`
	Email                 string       `json:"email,omitempty" db:"email"`
	LocationID            uuid.UUID    `json:"location_id" db:"location_id"`
	Gender                Gender       `json:"gender" db:"gender"`
	BirthDate             time.Time    `json:"birth_date" db:"birth_date"`
	GeneralPractitionerID *uuid.UUID   `json:"general_practitioner_id,omitempty" db:"general_practitioner_id"`
	ManagingOrgID         *uuid.UUID   `json:"managing_org_id,omitempty" db:"managing_org_id"`
	ServiceArea           *ServiceArea `json:"service_area,omitempty" db:"service_area"`
	CreatedAt             time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at" db:"updated_at"`
}

// Practitioner orders services for patients.
type Practitioner struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	Active          bool        `json:"active" db:"active"`
	Name            string      `json:"name" db:"name"`
	Phone           string      `json:"phone,omitempty" db:"phone"`
	Email           string      `json:"email,omitempty" db:"email"`
	LocationID      *uuid.UUID  `json:"location_id,omitempty" db:"location_id"`
	Gender          Gender      `json:"gender" db:"gender"`
	BirthDate       time.Time   `json:"birth_date" db:"birth_date"`
	OrganizationIDs []uuid.UUID `json:"organization_ids,omitempty" db:"organization_ids"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// HealthcareService is a service the business can perform at a visit.
// When AppointmentRequired is set the service may only run as part of an
// appointment, never ad hoc during an encounter.
type HealthcareService struct {
	ID                  uuid.UUID   `json:"id" db:"id"`
	Active              bool        `json:"active" db:"active"`
	Name                string      `json:"name" db:"name"`
	Description         string      `json:"description,omitempty" db:"description"`
	ExtraDetails        string      `json:"extra_details,omitempty" db:"extra_details"`
	ProgramNames        []string    `json:"program_names,omitempty" db:"program_names"`
	AppointmentRequired bool        `json:"appointment_required" db:"appointment_required"`
	DeviceIDs           []uuid.UUID `json:"device_ids,omitempty" db:"device_ids"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at" db:"updated_at"`
}

// Device is an item used to perform services.
type Device struct {
	ID              uuid.UUID    `json:"id" db:"id"`
	UDI             string       `json:"udi,omitempty" db:"udi"`
	Status          DeviceStatus `json:"status" db:"status"`
	Type            string       `json:"type,omitempty" db:"type"`
	LotNumber       string       `json:"lot_number,omitempty" db:"lot_number"`
	Manufacturer    string       `json:"manufacturer,omitempty" db:"manufacturer"`
	ManufactureDate *time.Time   `json:"manufacture_date,omitempty" db:"manufacture_date"`
	ExpirationDate  *time.Time   `json:"expiration_date,omitempty" db:"expiration_date"`
	Model           string       `json:"model,omitempty" db:"model"`
	Version         string       `json:"version,omitempty" db:"version"`
	PatientID       *uuid.UUID   `json:"patient_id,omitempty" db:"patient_id"`
	OwnerOrgID      *uuid.UUID   `json:"owner_org_id,omitempty" db:"owner_org_id"`
	LocationID      *uuid.UUID   `json:"location_id,omitempty" db:"location_id"`
	Notes           []string     `json:"notes,omitempty" db:"notes"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}

// Laboratory receives sample deliveries after encounters.
type Laboratory struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	Active     bool        `json:"active" db:"active"`
	Name       string      `json:"name" db:"name"`
	Phone      string      `json:"phone,omitempty" db:"phone"`
	Email      string      `json:"email,omitempty" db:"email"`
	LocationID uuid.UUID   `json:"location_id" db:"location_id"`
	ServiceIDs []uuid.UUID `json:"service_ids,omitempty" db:"service_ids"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"`
}

// MedTech is a medical technician performing home visits. Schedule bounds
// the outer working hours; Availabilities are the schedulable windows
// inside it.
type MedTech struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	Active         bool          `json:"active" db:"active"`
	Name           string        `json:"name" db:"name"`
	Phone          string        `json:"phone,omitempty" db:"phone"`
	Email          string        `json:"email,omitempty" db:"email"`
	LocationID     *uuid.UUID    `json:"location_id,omitempty" db:"location_id"`
	WorkLocationID uuid.UUID     `json:"work_location_id" db:"work_location_id"`
	OrganizationID *uuid.UUID    `json:"organization_id,omitempty" db:"organization_id"`
	Availabilities []Period      `json:"availabilities"`
	Schedule       Period        `json:"schedule"`
	ServiceAreas   []ServiceArea `json:"service_areas"`
	ServiceIDs     []uuid.UUID   `json:"service_ids"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// ValidateSchedule checks the med tech's availability data: every window
// must be well-formed, lie inside the working schedule, and not overlap any
// other window. Windows may be supplied in any order.
func (m *MedTech) ValidateSchedule() error {
	if err := m.Schedule.Validate(); err != nil {
		return &fault.InvalidScheduleError{MedTechID: m.ID, Reason: "working schedule is not a valid period"}
	}
	for i, w := range m.Availabilities {
		if err := w.Validate(); err != nil {
			return &fault.InvalidScheduleError{MedTechID: m.ID, Reason: "availability window is not a valid period"}
		}
		if !m.Schedule.Contains(w) {
			return &fault.InvalidScheduleError{MedTechID: m.ID, Reason: "availability window lies outside the working schedule"}
		}
		for _, other := range m.Availabilities[i+1:] {
			if w.Overlaps(other) {
				return &fault.InvalidScheduleError{MedTechID: m.ID, Reason: "availability windows overlap"}
			}
		}
	}
	return nil
}

// ServesArea reports whether the med tech covers the given area.
func (m *MedTech) ServesArea(area ServiceArea) bool {
	for _, a := range m.ServiceAreas {
		if a == area {
			return true
		}
	}
	return false
}

// CanPerform reports whether the med tech's capability set covers every
// requested service.
func (m *MedTech) CanPerform(serviceIDs []uuid.UUID) bool {
	have := make(map[uuid.UUID]bool, len(m.ServiceIDs))
	for _, id := range m.ServiceIDs {
		have[id] = true
	}
	for _, id := range serviceIDs {
		if !have[id] {
			return false
		}
	}
	return true
}
