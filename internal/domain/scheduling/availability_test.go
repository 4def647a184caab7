package scheduling

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/homevisit/homevisit/internal/domain/fault"
	"github.com/homevisit/homevisit/internal/domain/registry"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hours float64) time.Time {
	return day.Add(time.Duration(hours * float64(time.Hour)))
}

func span(startHour, endHour float64) registry.Period {
	return registry.Period{Start: at(startHour), End: at(endHour)}
}

func testMedTech(windows ...registry.Period) *registry.MedTech {
	return &registry.MedTech{
		ID:             uuid.New(),
		Active:         true,
		Name:           "Kai Osei",
		WorkLocationID: uuid.New(),
		Schedule:       span(8, 18),
		Availabilities: windows,
	}
}

func TestIndex_RebuildAndIsFree(t *testing.T) {
	ix := NewIndex()
	mt := testMedTech(span(9, 12), span(13, 17))

	if err := ix.Rebuild(mt, nil); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if !ix.IsFree(mt.ID, span(9, 10)) {
		t.Error("9-10 should be free")
	}
	if !ix.IsFree(mt.ID, span(13, 17)) {
		t.Error("full 13-17 window should be free")
	}
	if ix.IsFree(mt.ID, span(12, 13)) {
		t.Error("lunch gap reported free")
	}
	if ix.IsFree(mt.ID, span(11, 14)) {
		t.Error("period spanning two windows reported free")
	}
}

func TestIndex_RebuildSubtractsOccupiedAppointments(t *testing.T) {
	ix := NewIndex()
	mt := testMedTech(span(9, 17))

	appts := []*Appointment{
		{ID: uuid.New(), MedTechID: mt.ID, Status: AppointmentBooked, Period: span(10, 11)},
		{ID: uuid.New(), MedTechID: mt.ID, Status: AppointmentCancelled, Period: span(13, 14)},
		{ID: uuid.New(), MedTechID: uuid.New(), Status: AppointmentBooked, Period: span(15, 16)},
	}
	if err := ix.Rebuild(mt, appts); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if ix.IsFree(mt.ID, span(10, 11)) {
		t.Error("booked slot reported free")
	}
	if !ix.IsFree(mt.ID, span(13, 14)) {
		t.Error("cancelled appointment should not occupy time")
	}
	if !ix.IsFree(mt.ID, span(15, 16)) {
		t.Error("other med tech's appointment should not occupy time")
	}
	if !ix.IsFree(mt.ID, span(9, 10)) || !ix.IsFree(mt.ID, span(11, 12)) {
		t.Error("time around the booked slot should remain free")
	}
}

func TestIndex_RebuildDropsWithdrawnAvailability(t *testing.T) {
	ix := NewIndex()
	mt := testMedTech(span(9, 17))
	if err := ix.Rebuild(mt, nil); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if !ix.IsFree(mt.ID, span(10, 11)) {
		t.Fatal("10-11 should be free before the windows change")
	}

	mt.Availabilities = nil
	if err := ix.Rebuild(mt, nil); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if ix.IsFree(mt.ID, span(10, 11)) {
		t.Error("10-11 still free after the availability was withdrawn")
	}
	err := ix.Reserve(mt.ID, span(10, 11))
	var conflict *fault.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError outside the availabilities", err)
	}
}

func TestIndex_ForgetRemovesAllCapacity(t *testing.T) {
	ix := NewIndex()
	mt := testMedTech(span(9, 17))
	if err := ix.Rebuild(mt, nil); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	ix.Forget(mt.ID)

	if ix.IsFree(mt.ID, span(10, 11)) {
		t.Error("forgotten med tech still has free time")
	}
	if err := ix.Reserve(mt.ID, span(10, 11)); err == nil {
		t.Error("reserved time on a forgotten med tech")
	}
}

func TestIndex_ReserveThenConflict(t *testing.T) {
	ix := NewIndex()
	mt := testMedTech(span(9, 17))
	if err := ix.Rebuild(mt, nil); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if err := ix.Reserve(mt.ID, span(10, 11)); err != nil {
		t.Fatalf("first Reserve: %v", err)
	}

	err := ix.Reserve(mt.ID, span(10.5, 11.5))
	var conflict *fault.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if conflict.MedTechID != mt.ID {
		t.Errorf("conflict med tech = %v, want %v", conflict.MedTechID, mt.ID)
	}
}

func TestIndex_ReleaseRestoresCapacity(t *testing.T) {
	ix := NewIndex()
	mt := testMedTech(span(9, 17))
	if err := ix.Rebuild(mt, nil); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	slot := span(10, 11)
	if err := ix.Reserve(mt.ID, slot); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	ix.Release(mt.ID, slot)

	if !ix.IsFree(mt.ID, slot) {
		t.Error("released slot not free")
	}
	// The release coalesced with its neighbors: the whole day is one
	// interval again.
	if !ix.IsFree(mt.ID, span(9, 17)) {
		t.Error("free set not coalesced after release")
	}
}

func TestIndex_ReleaseIsIdempotent(t *testing.T) {
	ix := NewIndex()
	mt := testMedTech(span(9, 17))
	if err := ix.Rebuild(mt, nil); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	slot := span(10, 11)
	if err := ix.Reserve(mt.ID, slot); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	ix.Release(mt.ID, slot)
	ix.Release(mt.ID, slot)

	if !ix.IsFree(mt.ID, span(9, 17)) {
		t.Error("double release corrupted the free set")
	}
	// And the slot is still reservable exactly once.
	if err := ix.Reserve(mt.ID, slot); err != nil {
		t.Errorf("Reserve after double release: %v", err)
	}
	if err := ix.Reserve(mt.ID, slot); err == nil {
		t.Error("double release manufactured capacity")
	}
}

func TestIndex_FreeWindowsClipped(t *testing.T) {
	ix := NewIndex()
	mt := testMedTech(span(9, 12), span(13, 17))
	if err := ix.Rebuild(mt, nil); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	windows := ix.FreeWindows(mt.ID, span(11, 14))
	if len(windows) != 2 {
		t.Fatalf("windows = %d, want 2", len(windows))
	}
	if !windows[0].Start.Equal(at(11)) || !windows[0].End.Equal(at(12)) {
		t.Errorf("first window = %v..%v, want 11..12", windows[0].Start, windows[0].End)
	}
	if !windows[1].Start.Equal(at(13)) || !windows[1].End.Equal(at(14)) {
		t.Errorf("second window = %v..%v, want 13..14", windows[1].Start, windows[1].End)
	}
}

func TestIndex_ConcurrentReserveExactlyOneWins(t *testing.T) {
	ix := NewIndex()
	mt := testMedTech(span(9, 17))
	if err := ix.Rebuild(mt, nil); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	const attempts = 32
	slot := span(10, 11)

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ix.Reserve(mt.ID, slot)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		var conflict *fault.ConflictError
		if !errors.As(err, &conflict) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
}

func TestIndex_ReserveRejectsInvalidPeriod(t *testing.T) {
	ix := NewIndex()
	mt := testMedTech(span(9, 17))
	if err := ix.Rebuild(mt, nil); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if err := ix.Reserve(mt.ID, span(11, 10)); err == nil {
		t.Error("inverted period reserved")
	}
}
