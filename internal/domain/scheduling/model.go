// Package scheduling matches med techs to patient service requests and
// drives the appointment booking lifecycle. It owns the availability index,
// the matcher and the appointment state machine.
package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/homevisit/homevisit/internal/domain/fault"
	"github.com/homevisit/homevisit/internal/domain/registry"
)

// AppointmentStatus is the lifecycle state of an Appointment.
type AppointmentStatus string

const (
	AppointmentProposed       AppointmentStatus = "proposed"
	AppointmentPending        AppointmentStatus = "pending"
	AppointmentBooked         AppointmentStatus = "booked"
	AppointmentArrived        AppointmentStatus = "arrived"
	AppointmentFulfilled      AppointmentStatus = "fulfilled"
	AppointmentCancelled      AppointmentStatus = "cancelled"
	AppointmentNoShow         AppointmentStatus = "noshow"
	AppointmentEnteredInError AppointmentStatus = "entered-in-error"
)

func (s AppointmentStatus) Valid() bool {
	_, ok := appointmentTransitions[s]
	return ok
}

// Terminal reports whether no further transition is allowed from s.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case AppointmentFulfilled, AppointmentCancelled, AppointmentNoShow, AppointmentEnteredInError:
		return true
	}
	return false
}

// appointmentTransitions is the closed transition table. entered-in-error is
// reachable from every non-terminal state and handled in CanTransition.
var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentProposed:       {AppointmentPending, AppointmentCancelled},
	AppointmentPending:        {AppointmentBooked, AppointmentCancelled},
	AppointmentBooked:         {AppointmentArrived, AppointmentCancelled, AppointmentNoShow},
	AppointmentArrived:        {AppointmentFulfilled, AppointmentCancelled},
	AppointmentFulfilled:      {},
	AppointmentCancelled:      {},
	AppointmentNoShow:         {},
	AppointmentEnteredInError: {},
}

// CanTransition reports whether s -> to is a legal transition.
func (s AppointmentStatus) CanTransition(to AppointmentStatus) bool {
	if s.Terminal() {
		return false
	}
	if to == AppointmentEnteredInError {
		return true
	}
	for _, next := range appointmentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// RequestStatus is the lifecycle state of a ServiceRequest.
type RequestStatus string

const (
	RequestDraft          RequestStatus = "draft"
	RequestActive         RequestStatus = "active"
	RequestSuspended      RequestStatus = "suspended"
	RequestCancelled      RequestStatus = "cancelled"
	RequestCompleted      RequestStatus = "completed"
	RequestEnteredInError RequestStatus = "entered-in-error"
	RequestUnknown        RequestStatus = "unknown"
)

func (s RequestStatus) Valid() bool {
	_, ok := requestTransitions[s]
	return ok
}

func (s RequestStatus) Terminal() bool {
	switch s {
	case RequestCancelled, RequestCompleted, RequestEnteredInError:
		return true
	}
	return false
}

// unknown is a non-terminal catch-all: a record recovered in that state may
// be moved to any live state before resuming the normal lifecycle.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestDraft:          {RequestActive, RequestCancelled},
	RequestActive:         {RequestSuspended, RequestCancelled, RequestCompleted},
	RequestSuspended:      {RequestActive, RequestCancelled},
	RequestUnknown:        {RequestDraft, RequestActive, RequestSuspended, RequestCancelled, RequestCompleted},
	RequestCancelled:      {},
	RequestCompleted:      {},
	RequestEnteredInError: {},
}

func (s RequestStatus) CanTransition(to RequestStatus) bool {
	if s.Terminal() {
		return false
	}
	if to == RequestEnteredInError {
		return true
	}
	for _, next := range requestTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ServiceRequest is a practitioner's order for a patient to receive
// home-visit services. At most one live appointment may descend from a
// request at any time.
type ServiceRequest struct {
	ID                     uuid.UUID        `json:"id" db:"id"`
	Status                 RequestStatus    `json:"status" db:"status"`
	PatientID              uuid.UUID        `json:"patient_id" db:"patient_id"`
	OrderingPractitionerID uuid.UUID        `json:"ordering_practitioner_id" db:"ordering_practitioner_id"`
	AuthoredOn             time.Time        `json:"authored_on" db:"authored_on"`
	ServiceIDs             []uuid.UUID      `json:"service_ids"`
	DesiredPeriod          *registry.Period `json:"desired_period,omitempty"`
	Comment                string           `json:"comment,omitempty" db:"comment"`
	CreatedAt              time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at" db:"updated_at"`
}

// Appointment is a booked (or proposed) visit of one med tech to one
// patient over one time period.
type Appointment struct {
	ID                 uuid.UUID         `json:"id" db:"id"`
	Status             AppointmentStatus `json:"status" db:"status"`
	Description        string            `json:"description,omitempty" db:"description"`
	Comment            string            `json:"comment,omitempty" db:"comment"`
	CancellationReason string            `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	Period             registry.Period   `json:"period"`
	Created            time.Time         `json:"created" db:"created"`
	ServiceRequestID   *uuid.UUID        `json:"service_request_id,omitempty" db:"service_request_id"`
	PatientID          uuid.UUID         `json:"patient_id" db:"patient_id"`
	MedTechID          uuid.UUID         `json:"med_tech_id" db:"med_tech_id"`
	ServiceIDs         []uuid.UUID       `json:"service_ids"`
	CreatedAt          time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at" db:"updated_at"`
}

// Occupies reports whether the appointment holds its med tech's time: only
// booked, arrived and fulfilled appointments count against availability.
func (a *Appointment) Occupies() bool {
	switch a.Status {
	case AppointmentBooked, AppointmentArrived, AppointmentFulfilled:
		return true
	}
	return false
}

// transition moves the appointment to a new status or fails with
// InvalidTransitionError, never silently.
func (a *Appointment) transition(to AppointmentStatus) error {
	if !a.Status.CanTransition(to) {
		return &fault.InvalidTransitionError{
			Entity: "Appointment", ID: a.ID,
			From: string(a.Status), To: string(to),
		}
	}
	a.Status = to
	return nil
}
