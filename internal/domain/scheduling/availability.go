package scheduling

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/homevisit/homevisit/internal/domain/fault"
	"github.com/homevisit/homevisit/internal/domain/registry"
)

// Index answers "is med tech M free during period P" from an in-memory set
// of free intervals per med tech, derived by subtracting occupied
// appointment periods from the med tech's availability windows.
//
// Concurrency model: one mutex per med tech serializes check-then-reserve
// for that med tech only; reservations for different med techs proceed in
// parallel. Reads used by the matcher may be stale — a stale proposal is
// re-validated under the lock when the booking is confirmed.
type Index struct {
	mu       sync.Mutex
	medTechs map[uuid.UUID]*freeSet
}

// freeSet holds one med tech's free intervals, sorted by start time and
// pairwise disjoint.
type freeSet struct {
	mu   sync.Mutex
	free []registry.Period
}

func NewIndex() *Index {
	return &Index{medTechs: make(map[uuid.UUID]*freeSet)}
}

func (ix *Index) forMedTech(id uuid.UUID) *freeSet {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	fs, ok := ix.medTechs[id]
	if !ok {
		fs = &freeSet{}
		ix.medTechs[id] = fs
	}
	return fs
}

// Rebuild recomputes the med tech's free intervals from scratch:
// availability windows clipped to the working schedule, minus the periods
// of every appointment that occupies time (booked, arrived or fulfilled).
// Malformed availability data fails with InvalidScheduleError and leaves
// the previous intervals untouched.
func (ix *Index) Rebuild(medTech *registry.MedTech, appointments []*Appointment) error {
	if err := medTech.ValidateSchedule(); err != nil {
		return err
	}

	free := make([]registry.Period, 0, len(medTech.Availabilities))
	for _, w := range medTech.Availabilities {
		if clipped, ok := w.Intersect(medTech.Schedule); ok {
			free = append(free, clipped)
		}
	}
	sort.Slice(free, func(i, j int) bool { return free[i].Start.Before(free[j].Start) })

	for _, appt := range appointments {
		if appt.MedTechID != medTech.ID || !appt.Occupies() {
			continue
		}
		free = subtract(free, appt.Period)
	}

	fs := ix.forMedTech(medTech.ID)
	fs.mu.Lock()
	fs.free = free
	fs.mu.Unlock()
	return nil
}

// Forget drops every free interval of the med tech, leaving no bookable
// capacity. Used when a med tech is deactivated.
func (ix *Index) Forget(medTechID uuid.UUID) {
	fs := ix.forMedTech(medTechID)
	fs.mu.Lock()
	fs.free = nil
	fs.mu.Unlock()
}

// IsFree reports whether period lies fully inside one free interval. It is
// side-effect free; do not pair it with Reserve across goroutines — Reserve
// re-checks under the med tech's lock.
func (ix *Index) IsFree(medTechID uuid.UUID, period registry.Period) bool {
	fs := ix.forMedTech(medTechID)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return containsWithin(fs.free, period)
}

// Reserve atomically marks period occupied, failing with ConflictError when
// it is not fully free. The check and the cut happen under one lock, so two
// racing reservations for the same window cannot both succeed.
func (ix *Index) Reserve(medTechID uuid.UUID, period registry.Period) error {
	if err := period.Validate(); err != nil {
		return err
	}
	fs := ix.forMedTech(medTechID)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !containsWithin(fs.free, period) {
		return &fault.ConflictError{MedTechID: medTechID, Start: period.Start, End: period.End}
	}
	fs.free = subtract(fs.free, period)
	return nil
}

// Release returns period to the free set. Releasing an already-free period
// is a no-op, not an error. Callers only release periods they previously
// reserved, so merging the period back cannot manufacture capacity that was
// never in the availability windows.
func (ix *Index) Release(medTechID uuid.UUID, period registry.Period) {
	if period.Validate() != nil {
		return
	}
	fs := ix.forMedTech(medTechID)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.free = merge(fs.free, period)
}

// FreeWindows returns the free intervals overlapping the given window,
// clipped to it, for the matcher's proposal scan.
func (ix *Index) FreeWindows(medTechID uuid.UUID, within registry.Period) []registry.Period {
	fs := ix.forMedTech(medTechID)
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var out []registry.Period
	for _, f := range fs.free {
		if clipped, ok := f.Intersect(within); ok {
			out = append(out, clipped)
		}
	}
	return out
}

// Warm rebuilds the index for every active med tech from the stored
// appointments. Run once at startup before serving bookings.
func Warm(ctx context.Context, ix *Index, medTechs registry.MedTechRepository, appointments AppointmentRepository) error {
	techs, err := medTechs.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, mt := range techs {
		appts, err := appointments.ListByMedTech(ctx, mt.ID)
		if err != nil {
			return err
		}
		if err := ix.Rebuild(mt, appts); err != nil {
			return err
		}
	}
	return nil
}

// containsWithin assumes intervals are sorted and disjoint.
func containsWithin(intervals []registry.Period, p registry.Period) bool {
	i := sort.Search(len(intervals), func(i int) bool {
		return intervals[i].End.After(p.Start)
	})
	return i < len(intervals) && intervals[i].Contains(p)
}

// subtract removes busy from every interval it overlaps, keeping the result
// sorted and disjoint.
func subtract(intervals []registry.Period, busy registry.Period) []registry.Period {
	out := intervals[:0:0]
	for _, iv := range intervals {
		if !iv.Overlaps(busy) {
			out = append(out, iv)
			continue
		}
		if busy.Start.After(iv.Start) {
			out = append(out, registry.Period{Start: iv.Start, End: busy.Start})
		}
		if busy.End.Before(iv.End) {
			out = append(out, registry.Period{Start: busy.End, End: iv.End})
		}
	}
	return out
}

// merge inserts p and coalesces any intervals that now touch or overlap.
func merge(intervals []registry.Period, p registry.Period) []registry.Period {
	out := intervals[:0:0]
	inserted := false
	cur := p
	for _, iv := range intervals {
		switch {
		case iv.End.Before(cur.Start):
			out = append(out, iv)
		case cur.End.Before(iv.Start):
			if !inserted {
				out = append(out, cur)
				inserted = true
			}
			out = append(out, iv)
		default:
			// Touching or overlapping: absorb into cur.
			if iv.Start.Before(cur.Start) {
				cur.Start = iv.Start
			}
			if iv.End.After(cur.End) {
				cur.End = iv.End
			}
		}
	}
	if !inserted {
		out = append(out, cur)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
