package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/homevisit/homevisit/internal/domain/fault"
)

func mustPeriod(t *testing.T, start, end string) Period {
	t.Helper()
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		t.Fatalf("parse start: %v", err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		t.Fatalf("parse end: %v", err)
	}
	return Period{Start: s, End: e}
}

func TestPeriod_Validate(t *testing.T) {
	p := mustPeriod(t, "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z")
	if err := p.Validate(); err != nil {
		t.Errorf("valid period rejected: %v", err)
	}

	inverted := Period{Start: p.End, End: p.Start}
	if err := inverted.Validate(); err == nil {
		t.Error("inverted period accepted")
	}

	empty := Period{Start: p.Start, End: p.Start}
	if err := empty.Validate(); err == nil {
		t.Error("empty period accepted")
	}

	if err := (Period{}).Validate(); err == nil {
		t.Error("zero period accepted")
	}
}

func TestPeriod_Overlaps(t *testing.T) {
	a := mustPeriod(t, "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z")
	b := mustPeriod(t, "2026-03-02T09:30:00Z", "2026-03-02T10:30:00Z")
	if !a.Overlaps(b) || !b.Overlaps(a) {
		t.Error("overlapping periods reported disjoint")
	}

	// Touching at the boundary is not an overlap; the end is exclusive.
	c := mustPeriod(t, "2026-03-02T10:00:00Z", "2026-03-02T11:00:00Z")
	if a.Overlaps(c) {
		t.Error("adjacent periods reported overlapping")
	}
}

func TestPeriod_Contains(t *testing.T) {
	outer := mustPeriod(t, "2026-03-02T08:00:00Z", "2026-03-02T18:00:00Z")
	inner := mustPeriod(t, "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z")
	if !outer.Contains(inner) {
		t.Error("inner period not contained")
	}
	if inner.Contains(outer) {
		t.Error("outer contained in inner")
	}
	if !outer.Contains(outer) {
		t.Error("period does not contain itself")
	}
}

func TestPeriod_Intersect(t *testing.T) {
	a := mustPeriod(t, "2026-03-02T09:00:00Z", "2026-03-02T12:00:00Z")
	b := mustPeriod(t, "2026-03-02T11:00:00Z", "2026-03-02T14:00:00Z")

	got, ok := a.Intersect(b)
	if !ok {
		t.Fatal("expected intersection")
	}
	want := mustPeriod(t, "2026-03-02T11:00:00Z", "2026-03-02T12:00:00Z")
	if !got.Start.Equal(want.Start) || !got.End.Equal(want.End) {
		t.Errorf("intersection = %v..%v, want %v..%v", got.Start, got.End, want.Start, want.End)
	}

	c := mustPeriod(t, "2026-03-02T13:00:00Z", "2026-03-02T14:00:00Z")
	if _, ok := a.Intersect(c); ok {
		t.Error("disjoint periods intersected")
	}
}

func TestMedTech_ValidateSchedule(t *testing.T) {
	schedule := mustPeriod(t, "2026-03-02T08:00:00Z", "2026-03-02T18:00:00Z")

	m := &MedTech{
		Schedule: schedule,
		Availabilities: []Period{
			mustPeriod(t, "2026-03-02T13:00:00Z", "2026-03-02T17:00:00Z"),
			mustPeriod(t, "2026-03-02T08:00:00Z", "2026-03-02T12:00:00Z"),
		},
	}
	if err := m.ValidateSchedule(); err != nil {
		t.Errorf("valid schedule rejected: %v", err)
	}
}

func TestMedTech_ValidateSchedule_WindowOutsideSchedule(t *testing.T) {
	m := &MedTech{
		ID:       uuid.New(),
		Schedule: mustPeriod(t, "2026-03-02T08:00:00Z", "2026-03-02T18:00:00Z"),
		Availabilities: []Period{
			mustPeriod(t, "2026-03-02T17:00:00Z", "2026-03-02T19:00:00Z"),
		},
	}
	err := m.ValidateSchedule()
	var schedErr *fault.InvalidScheduleError
	if !errors.As(err, &schedErr) {
		t.Fatalf("err = %v, want InvalidScheduleError", err)
	}
}

func TestMedTech_ValidateSchedule_OverlappingWindows(t *testing.T) {
	m := &MedTech{
		ID:       uuid.New(),
		Schedule: mustPeriod(t, "2026-03-02T08:00:00Z", "2026-03-02T18:00:00Z"),
		Availabilities: []Period{
			mustPeriod(t, "2026-03-02T09:00:00Z", "2026-03-02T12:00:00Z"),
			mustPeriod(t, "2026-03-02T11:00:00Z", "2026-03-02T14:00:00Z"),
		},
	}
	var schedErr *fault.InvalidScheduleError
	if !errors.As(m.ValidateSchedule(), &schedErr) {
		t.Fatal("overlapping windows accepted")
	}
}

func TestMedTech_ServesArea(t *testing.T) {
	m := &MedTech{ServiceAreas: []ServiceArea{AreaNorthBay, AreaSouthBay}}
	if !m.ServesArea(AreaSouthBay) {
		t.Error("south-bay not served")
	}
	if m.ServesArea(AreaLosAngeles) {
		t.Error("los-angeles served unexpectedly")
	}
}

func TestMedTech_CanPerform(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	m := &MedTech{ServiceIDs: []uuid.UUID{a, b}}

	if !m.CanPerform([]uuid.UUID{a}) {
		t.Error("single known service rejected")
	}
	if !m.CanPerform([]uuid.UUID{a, b}) {
		t.Error("full service set rejected")
	}
	if m.CanPerform([]uuid.UUID{a, c}) {
		t.Error("unknown service accepted")
	}
}

func TestPosition_DistanceTo(t *testing.T) {
	a := Position{Latitude: 0, Longitude: 0}
	b := Position{Latitude: 3, Longitude: 4}
	if got := a.DistanceTo(b); got != 25 {
		t.Errorf("distance = %v, want 25", got)
	}
	if got := a.DistanceTo(a); got != 0 {
		t.Errorf("self distance = %v, want 0", got)
	}
}

func TestServiceArea_Valid(t *testing.T) {
	for _, area := range []ServiceArea{AreaNorthBay, AreaSouthBay, AreaLosAngeles} {
		if !area.Valid() {
			t.Errorf("area %q invalid", area)
		}
	}
	if ServiceArea("east-bay").Valid() {
		t.Error("unknown area accepted")
	}
}
