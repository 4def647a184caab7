package scheduling

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/homevisit/homevisit/internal/domain/fault"
	"github.com/homevisit/homevisit/internal/domain/registry"
	"github.com/homevisit/homevisit/internal/platform/clock"
)

// Proposal is one candidate assignment: a med tech free for the whole
// period, capable of every requested service and covering the patient's
// area. Distance compares the med tech's work location to the patient's
// home location.
type Proposal struct {
	MedTechID uuid.UUID       `json:"med_tech_id"`
	Period    registry.Period `json:"period"`
	Distance  float64         `json:"distance"`
}

// Matcher produces ranked proposals for active service requests. It reads
// the availability index without locking; proposals are re-validated
// atomically when the caller confirms a booking.
type Matcher struct {
	medTechs  registry.MedTechRepository
	patients  registry.PatientRepository
	locations registry.LocationRepository
	index     *Index
	clock     clock.Clock
	horizon   time.Duration
}

// NewMatcher builds a Matcher. horizon bounds how far ahead windows are
// proposed when the request names no desired period.
func NewMatcher(medTechs registry.MedTechRepository, patients registry.PatientRepository,
	locations registry.LocationRepository, index *Index, clk clock.Clock, horizon time.Duration) *Matcher {
	return &Matcher{
		medTechs:  medTechs,
		patients:  patients,
		locations: locations,
		index:     index,
		clock:     clk,
		horizon:   horizon,
	}
}

// Propose returns candidate (med tech, period) pairs for the request,
// best first. An empty result means no capacity; the caller decides whether
// to retry later or escalate.
func (m *Matcher) Propose(ctx context.Context, req *ServiceRequest) ([]Proposal, error) {
	if req.Status != RequestActive {
		return nil, fault.Validation("ServiceRequest", "status", "only active requests can be matched")
	}
	if len(req.ServiceIDs) == 0 {
		return nil, fault.Validation("ServiceRequest", "service_ids", "at least one service is required")
	}

	patient, err := m.patients.GetByID(ctx, req.PatientID)
	if err != nil {
		return nil, fmt.Errorf("resolve patient: %w", err)
	}
	patientLoc, err := m.locations.GetByID(ctx, patient.LocationID)
	if err != nil {
		return nil, fmt.Errorf("resolve patient location: %w", err)
	}

	search := registry.Period{Start: m.clock.Now(), End: m.clock.Now().Add(m.horizon)}
	if req.DesiredPeriod != nil {
		if err := req.DesiredPeriod.Validate(); err != nil {
			return nil, err
		}
		search = *req.DesiredPeriod
	}

	techs, err := m.medTechs.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list med techs: %w", err)
	}

	var proposals []Proposal
	for _, mt := range techs {
		if patient.ServiceArea != nil && !mt.ServesArea(*patient.ServiceArea) {
			continue
		}
		if !mt.CanPerform(req.ServiceIDs) {
			continue
		}
		windows := m.index.FreeWindows(mt.ID, search)
		if len(windows) == 0 {
			continue
		}
		workLoc, err := m.locations.GetByID(ctx, mt.WorkLocationID)
		if err != nil {
			return nil, fmt.Errorf("resolve work location of med tech %s: %w", mt.ID, err)
		}
		dist := workLoc.Position.DistanceTo(patientLoc.Position)
		for _, w := range windows {
			proposals = append(proposals, Proposal{MedTechID: mt.ID, Period: w, Distance: dist})
		}
	}

	// Rank: earliest start, then proximity, then med tech ID so identical
	// inputs always rank identically.
	sort.SliceStable(proposals, func(i, j int) bool {
		a, b := proposals[i], proposals[j]
		if !a.Period.Start.Equal(b.Period.Start) {
			return a.Period.Start.Before(b.Period.Start)
		}
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		return strings.Compare(a.MedTechID.String(), b.MedTechID.String()) < 0
	})

	return proposals, nil
}
