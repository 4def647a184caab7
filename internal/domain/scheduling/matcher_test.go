package scheduling

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/homevisit/homevisit/internal/domain/fault"
	"github.com/homevisit/homevisit/internal/domain/registry"
	"github.com/homevisit/homevisit/internal/platform/clock"
)

// =========== Mock registry repositories ===========

type mockMedTechRepo struct {
	store map[uuid.UUID]*registry.MedTech
}

func newMockMedTechRepo() *mockMedTechRepo {
	return &mockMedTechRepo{store: make(map[uuid.UUID]*registry.MedTech)}
}

func (m *mockMedTechRepo) add(mt *registry.MedTech) *registry.MedTech {
	m.store[mt.ID] = mt
	return mt
}

func (m *mockMedTechRepo) Create(_ context.Context, mt *registry.MedTech) error {
	mt.ID = uuid.New()
	m.store[mt.ID] = mt
	return nil
}

func (m *mockMedTechRepo) GetByID(_ context.Context, id uuid.UUID) (*registry.MedTech, error) {
	mt, ok := m.store[id]
	if !ok {
		return nil, fault.NotFound("MedTech", id)
	}
	return mt, nil
}

func (m *mockMedTechRepo) Update(_ context.Context, mt *registry.MedTech) error {
	m.store[mt.ID] = mt
	return nil
}

func (m *mockMedTechRepo) List(_ context.Context, limit, offset int) ([]*registry.MedTech, int, error) {
	var out []*registry.MedTech
	for _, mt := range m.store {
		out = append(out, mt)
	}
	return out, len(out), nil
}

func (m *mockMedTechRepo) ListActive(_ context.Context) ([]*registry.MedTech, error) {
	var out []*registry.MedTech
	for _, mt := range m.store {
		if mt.Active {
			out = append(out, mt)
		}
	}
	return out, nil
}

type mockPatientRepo struct {
	store map[uuid.UUID]*registry.Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{store: make(map[uuid.UUID]*registry.Patient)}
}

func (m *mockPatientRepo) add(p *registry.Patient) *registry.Patient {
	m.store[p.ID] = p
	return p
}

func (m *mockPatientRepo) Create(_ context.Context, p *registry.Patient) error {
	p.ID = uuid.New()
	m.store[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*registry.Patient, error) {
	p, ok := m.store[id]
	if !ok {
		return nil, fault.NotFound("Patient", id)
	}
	return p, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *registry.Patient) error {
	m.store[p.ID] = p
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, limit, offset int) ([]*registry.Patient, int, error) {
	var out []*registry.Patient
	for _, p := range m.store {
		out = append(out, p)
	}
	return out, len(out), nil
}

type mockLocationRepo struct {
	store map[uuid.UUID]*registry.Location
}

func newMockLocationRepo() *mockLocationRepo {
	return &mockLocationRepo{store: make(map[uuid.UUID]*registry.Location)}
}

func (m *mockLocationRepo) add(l *registry.Location) *registry.Location {
	m.store[l.ID] = l
	return l
}

func (m *mockLocationRepo) Create(_ context.Context, l *registry.Location) error {
	l.ID = uuid.New()
	m.store[l.ID] = l
	return nil
}

func (m *mockLocationRepo) GetByID(_ context.Context, id uuid.UUID) (*registry.Location, error) {
	l, ok := m.store[id]
	if !ok {
		return nil, fault.NotFound("Location", id)
	}
	return l, nil
}

func (m *mockLocationRepo) Update(_ context.Context, l *registry.Location) error {
	m.store[l.ID] = l
	return nil
}

func (m *mockLocationRepo) List(_ context.Context, limit, offset int) ([]*registry.Location, int, error) {
	var out []*registry.Location
	for _, l := range m.store {
		out = append(out, l)
	}
	return out, len(out), nil
}

// =========== Fixture ===========

type matcherFixture struct {
	medTechs  *mockMedTechRepo
	patients  *mockPatientRepo
	locations *mockLocationRepo
	index     *Index
	clock     *clock.Fake
	matcher   *Matcher

	serviceID uuid.UUID
	patient   *registry.Patient
}

func newMatcherFixture(t *testing.T) *matcherFixture {
	t.Helper()
	f := &matcherFixture{
		medTechs:  newMockMedTechRepo(),
		patients:  newMockPatientRepo(),
		locations: newMockLocationRepo(),
		index:     NewIndex(),
		clock:     clock.NewFake(at(0)),
		serviceID: uuid.New(),
	}

	home := f.locations.add(&registry.Location{
		ID:       uuid.New(),
		Status:   registry.LocationActive,
		Name:     "patient home",
		Position: registry.Position{Latitude: 10, Longitude: 10},
	})
	area := registry.AreaSouthBay
	f.patient = f.patients.add(&registry.Patient{
		ID:          uuid.New(),
		Active:      true,
		Name:        "Ada Park",
		LocationID:  home.ID,
		ServiceArea: &area,
	})

	f.matcher = NewMatcher(f.medTechs, f.patients, f.locations, f.index, f.clock, 14*24*time.Hour)
	return f
}

// addMedTech registers an active south-bay med tech working from a base at
// the given coordinates, free 9-17.
func (f *matcherFixture) addMedTech(t *testing.T, lat, lon float64) *registry.MedTech {
	t.Helper()
	base := f.locations.add(&registry.Location{
		ID:       uuid.New(),
		Status:   registry.LocationActive,
		Name:     "base",
		Position: registry.Position{Latitude: lat, Longitude: lon},
	})
	mt := f.medTechs.add(&registry.MedTech{
		ID:             uuid.New(),
		Active:         true,
		Name:           "tech",
		WorkLocationID: base.ID,
		Schedule:       span(8, 18),
		Availabilities: []registry.Period{span(9, 17)},
		ServiceAreas:   []registry.ServiceArea{registry.AreaSouthBay},
		ServiceIDs:     []uuid.UUID{f.serviceID},
	})
	if err := f.index.Rebuild(mt, nil); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	return mt
}

func (f *matcherFixture) request() *ServiceRequest {
	return &ServiceRequest{
		ID:                     uuid.New(),
		Status:                 RequestActive,
		PatientID:              f.patient.ID,
		OrderingPractitionerID: uuid.New(),
		ServiceIDs:             []uuid.UUID{f.serviceID},
	}
}

// =========== Tests ===========

func TestMatcher_ProposesNearestFirst(t *testing.T) {
	f := newMatcherFixture(t)
	far := f.addMedTech(t, 40, 40)
	near := f.addMedTech(t, 11, 11)

	proposals, err := f.matcher.Propose(context.Background(), f.request())
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if len(proposals) != 2 {
		t.Fatalf("proposals = %d, want 2", len(proposals))
	}
	// Both start at 09:00, so proximity breaks the tie.
	if proposals[0].MedTechID != near.ID {
		t.Errorf("first proposal = %v, want nearer med tech %v", proposals[0].MedTechID, near.ID)
	}
	if proposals[1].MedTechID != far.ID {
		t.Errorf("second proposal = %v, want farther med tech %v", proposals[1].MedTechID, far.ID)
	}
}

func TestMatcher_EarlierWindowBeatsProximity(t *testing.T) {
	f := newMatcherFixture(t)
	near := f.addMedTech(t, 11, 11)
	far := f.addMedTech(t, 40, 40)

	// The near med tech's morning is taken; the far one is free from 9.
	if err := f.index.Reserve(near.ID, span(9, 12)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	proposals, err := f.matcher.Propose(context.Background(), f.request())
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if len(proposals) != 2 {
		t.Fatalf("proposals = %d, want 2", len(proposals))
	}
	if proposals[0].MedTechID != far.ID {
		t.Errorf("first proposal = %v, want earlier med tech %v", proposals[0].MedTechID, far.ID)
	}
	if !proposals[0].Period.Start.Equal(at(9)) {
		t.Errorf("first window starts %v, want 09:00", proposals[0].Period.Start)
	}
}

func TestMatcher_FullTiesOrderedByMedTechID(t *testing.T) {
	f := newMatcherFixture(t)
	a := f.addMedTech(t, 11, 11)
	b := f.addMedTech(t, 11, 11)

	// Identical window starts and identical distances: the med tech ID is
	// the last tie-breaker.
	first, second := a, b
	if strings.Compare(b.ID.String(), a.ID.String()) < 0 {
		first, second = b, a
	}

	proposals, err := f.matcher.Propose(context.Background(), f.request())
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if len(proposals) != 2 {
		t.Fatalf("proposals = %d, want 2", len(proposals))
	}
	if proposals[0].MedTechID != first.ID || proposals[1].MedTechID != second.ID {
		t.Errorf("order = %v, %v; want %v, %v",
			proposals[0].MedTechID, proposals[1].MedTechID, first.ID, second.ID)
	}

	// The same inputs rank the same way on every run.
	again, err := f.matcher.Propose(context.Background(), f.request())
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if len(again) != len(proposals) {
		t.Fatalf("rerun proposals = %d, want %d", len(again), len(proposals))
	}
	for i := range proposals {
		if again[i].MedTechID != proposals[i].MedTechID {
			t.Fatalf("rerun reordered proposals at %d", i)
		}
	}
}

func TestMatcher_FiltersServiceAreaAndSkills(t *testing.T) {
	f := newMatcherFixture(t)

	outOfArea := f.addMedTech(t, 11, 11)
	outOfArea.ServiceAreas = []registry.ServiceArea{registry.AreaNorthBay}

	unskilled := f.addMedTech(t, 11, 11)
	unskilled.ServiceIDs = []uuid.UUID{uuid.New()}

	match := f.addMedTech(t, 12, 12)

	proposals, err := f.matcher.Propose(context.Background(), f.request())
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if len(proposals) != 1 {
		t.Fatalf("proposals = %d, want 1", len(proposals))
	}
	if proposals[0].MedTechID != match.ID {
		t.Errorf("proposal = %v, want %v", proposals[0].MedTechID, match.ID)
	}
}

func TestMatcher_NoCapacityIsEmptyNotError(t *testing.T) {
	f := newMatcherFixture(t)
	mt := f.addMedTech(t, 11, 11)
	if err := f.index.Reserve(mt.ID, span(9, 17)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	proposals, err := f.matcher.Propose(context.Background(), f.request())
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if len(proposals) != 0 {
		t.Errorf("proposals = %d, want 0", len(proposals))
	}
}

func TestMatcher_DesiredPeriodBoundsSearch(t *testing.T) {
	f := newMatcherFixture(t)
	f.addMedTech(t, 11, 11)

	req := f.request()
	desired := span(10, 12)
	req.DesiredPeriod = &desired

	proposals, err := f.matcher.Propose(context.Background(), req)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if len(proposals) != 1 {
		t.Fatalf("proposals = %d, want 1", len(proposals))
	}
	if !proposals[0].Period.Start.Equal(at(10)) || !proposals[0].Period.End.Equal(at(12)) {
		t.Errorf("window = %v..%v, want clipped to 10..12",
			proposals[0].Period.Start, proposals[0].Period.End)
	}
}

func TestMatcher_RejectsInactiveRequest(t *testing.T) {
	f := newMatcherFixture(t)
	f.addMedTech(t, 11, 11)

	req := f.request()
	req.Status = RequestDraft
	if _, err := f.matcher.Propose(context.Background(), req); err == nil {
		t.Error("draft request matched")
	}
}
