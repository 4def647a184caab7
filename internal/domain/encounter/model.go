// Package encounter covers what happens once a med tech reaches the
// patient: the encounter itself, the observations recorded during it, and
// the delivery of collected samples to a laboratory afterwards.
package encounter

import (
	"time"

	"github.com/google/uuid"

	"github.com/homevisit/homevisit/internal/domain/fault"
	"github.com/homevisit/homevisit/internal/domain/registry"
)

// Status is the lifecycle state of an Encounter.
type Status string

const (
	StatusPlanned        Status = "planned"
	StatusArrived        Status = "arrived"
	StatusTriaged        Status = "triaged"
	StatusInProgress     Status = "in-progress"
	StatusOnLeave        Status = "onleave"
	StatusFinished       Status = "finished"
	StatusCancelled      Status = "cancelled"
	StatusEnteredInError Status = "entered-in-error"
	StatusUnknown        Status = "unknown"
)

func (s Status) Valid() bool {
	_, ok := encounterTransitions[s]
	return ok
}

func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusCancelled, StatusEnteredInError:
		return true
	}
	return false
}

// unknown is non-terminal: a record recovered in that state may re-enter
// the lifecycle at any live state.
var encounterTransitions = map[Status][]Status{
	StatusPlanned:        {StatusArrived, StatusCancelled},
	StatusArrived:        {StatusTriaged, StatusInProgress, StatusCancelled},
	StatusTriaged:        {StatusInProgress, StatusCancelled},
	StatusInProgress:     {StatusOnLeave, StatusFinished, StatusCancelled},
	StatusOnLeave:        {StatusInProgress, StatusFinished, StatusCancelled},
	StatusUnknown:        {StatusPlanned, StatusArrived, StatusTriaged, StatusInProgress, StatusOnLeave, StatusFinished, StatusCancelled},
	StatusFinished:       {},
	StatusCancelled:      {},
	StatusEnteredInError: {},
}

func (s Status) CanTransition(to Status) bool {
	if s.Terminal() {
		return false
	}
	if to == StatusEnteredInError {
		return true
	}
	for _, next := range encounterTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// DeliveryStatus is the lifecycle state of a Delivery. The cancelled state
// exists so that cancelling an appointment can cascade to an already
// planned delivery.
type DeliveryStatus string

const (
	DeliveryPlanned    DeliveryStatus = "planned"
	DeliveryInProgress DeliveryStatus = "in-progress"
	DeliveryArrived    DeliveryStatus = "arrived"
	DeliveryFinished   DeliveryStatus = "finished"
	DeliveryCancelled  DeliveryStatus = "cancelled"
)

func (s DeliveryStatus) Valid() bool {
	_, ok := deliveryTransitions[s]
	return ok
}

func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryFinished || s == DeliveryCancelled
}

var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryPlanned:    {DeliveryInProgress, DeliveryCancelled},
	DeliveryInProgress: {DeliveryArrived, DeliveryCancelled},
	DeliveryArrived:    {DeliveryFinished, DeliveryCancelled},
	DeliveryFinished:   {},
	DeliveryCancelled:  {},
}

func (s DeliveryStatus) CanTransition(to DeliveryStatus) bool {
	if s.Terminal() {
		return false
	}
	for _, next := range deliveryTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Encounter is the realized, time-bounded interaction between patient and
// med tech once the appointment's subject has arrived. Patient and med tech
// always equal those of the linked appointment; the period must lie within
// the appointment's period or at least overlap its start.
type Encounter struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Status        Status          `json:"status" db:"status"`
	PatientID     uuid.UUID       `json:"patient_id" db:"patient_id"`
	MedTechID     uuid.UUID       `json:"med_tech_id" db:"med_tech_id"`
	AppointmentID uuid.UUID       `json:"appointment_id" db:"appointment_id"`
	Period        registry.Period `json:"period"`
	LocationID    *uuid.UUID      `json:"location_id,omitempty" db:"location_id"`
	ServiceIDs    []uuid.UUID     `json:"service_ids"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

func (e *Encounter) transition(to Status) error {
	if !e.Status.CanTransition(to) {
		return &fault.InvalidTransitionError{
			Entity: "Encounter", ID: e.ID,
			From: string(e.Status), To: string(to),
		}
	}
	e.Status = to
	return nil
}

// ReferenceRange guides interpretation of an observation value.
type ReferenceRange struct {
	Low  *registry.Quantity `json:"low,omitempty"`
	High *registry.Quantity `json:"high,omitempty"`
	Text string             `json:"text,omitempty"`
}

// Component is a sub-result of an observation carrying exactly one value.
type Component struct {
	Measured         string             `json:"measured"`
	ValueQuantity    *registry.Quantity `json:"value_quantity,omitempty"`
	ValueString      *string            `json:"value_string,omitempty"`
	ValueDateTime    *time.Time         `json:"value_date_time,omitempty"`
	ValuePeriod      *registry.Period   `json:"value_period,omitempty"`
	DataAbsentReason string             `json:"data_absent_reason,omitempty"`
	Interpretation   string             `json:"interpretation,omitempty"`
	ReferenceRanges  []ReferenceRange   `json:"reference_ranges,omitempty"`
}

func (c *Component) valueCount() int {
	n := 0
	if c.ValueQuantity != nil {
		n++
	}
	if c.ValueString != nil {
		n++
	}
	if c.ValueDateTime != nil {
		n++
	}
	if c.ValuePeriod != nil {
		n++
	}
	return n
}

// Observation is a measurement or simple assertion made during an
// encounter. Exactly one of the value fields must be populated, and the
// subject must equal the encounter's patient.
type Observation struct {
	ID               uuid.UUID          `json:"id" db:"id"`
	SubjectID        uuid.UUID          `json:"subject_id" db:"subject_id"`
	EncounterID      uuid.UUID          `json:"encounter_id" db:"encounter_id"`
	Measured         string             `json:"measured" db:"measured"`
	EffectiveTime    *time.Time         `json:"effective_time,omitempty" db:"effective_time"`
	EffectivePeriod  *registry.Period   `json:"effective_period,omitempty"`
	Issued           *time.Time         `json:"issued,omitempty" db:"issued"`
	PerformerID      *uuid.UUID         `json:"performer_id,omitempty" db:"performer_id"`
	DeviceID         *uuid.UUID         `json:"device_id,omitempty" db:"device_id"`
	Method           string             `json:"method,omitempty" db:"method"`
	Comment          string             `json:"comment,omitempty" db:"comment"`
	DataAbsentReason string             `json:"data_absent_reason,omitempty" db:"data_absent_reason"`
	Interpretation   string             `json:"interpretation,omitempty" db:"interpretation"`
	ValueQuantity    *registry.Quantity `json:"value_quantity,omitempty"`
	ValueString      *string            `json:"value_string,omitempty"`
	ValueBoolean     *bool              `json:"value_boolean,omitempty"`
	ValueDateTime    *time.Time         `json:"value_date_time,omitempty"`
	ValuePeriod      *registry.Period   `json:"value_period,omitempty"`
	ReferenceRanges  []ReferenceRange   `json:"reference_ranges,omitempty"`
	Components       []Component        `json:"components,omitempty"`
	CreatedAt        time.Time          `json:"created_at" db:"created_at"`
}

func (o *Observation) valueCount() int {
	n := 0
	if o.ValueQuantity != nil {
		n++
	}
	if o.ValueString != nil {
		n++
	}
	if o.ValueBoolean != nil {
		n++
	}
	if o.ValueDateTime != nil {
		n++
	}
	if o.ValuePeriod != nil {
		n++
	}
	return n
}

// ValidateValues enforces the one-value rule on the observation and each of
// its components.
func (o *Observation) ValidateValues() error {
	if o.Measured == "" {
		return fault.Validation("Observation", "measured", "measured is required")
	}
	if o.valueCount() != 1 {
		return fault.Validation("Observation", "value", "exactly one value field must be populated")
	}
	for i := range o.Components {
		c := &o.Components[i]
		if c.Measured == "" {
			return fault.Validation("ObservationComponent", "measured", "measured is required")
		}
		if c.valueCount() != 1 {
			return fault.Validation("ObservationComponent", "value", "exactly one value field must be populated")
		}
	}
	return nil
}

// Delivery is the transport of collected samples from a med tech to a
// laboratory after an encounter. Patient and med tech always equal the
// encounter's.
type Delivery struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	Status      DeliveryStatus `json:"status" db:"status"`
	PatientID   uuid.UUID      `json:"patient_id" db:"patient_id"`
	MedTechID   uuid.UUID      `json:"med_tech_id" db:"med_tech_id"`
	EncounterID uuid.UUID      `json:"encounter_id" db:"encounter_id"`
	LabID       uuid.UUID      `json:"lab_id" db:"lab_id"`
	Description string         `json:"description" db:"description"`
	ServiceIDs  []uuid.UUID    `json:"service_ids"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

func (d *Delivery) transition(to DeliveryStatus) error {
	if !d.Status.CanTransition(to) {
		return &fault.InvalidTransitionError{
			Entity: "Delivery", ID: d.ID,
			From: string(d.Status), To: string(to),
		}
	}
	d.Status = to
	return nil
}
