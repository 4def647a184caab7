package consistency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/homevisit/homevisit/internal/domain/encounter"
	"github.com/homevisit/homevisit/internal/domain/fault"
	"github.com/homevisit/homevisit/internal/domain/registry"
	"github.com/homevisit/homevisit/internal/domain/scheduling"
)

// table is a map-backed repository double shared by all entity kinds.
type table[T any] struct {
	kind  string
	idOf  func(*T) uuid.UUID
	items map[uuid.UUID]*T
}

func newTable[T any](kind string, idOf func(*T) uuid.UUID) *table[T] {
	return &table[T]{kind: kind, idOf: idOf, items: make(map[uuid.UUID]*T)}
}

func (t *table[T]) put(v *T) *T {
	t.items[t.idOf(v)] = v
	return v
}

func (t *table[T]) Create(_ context.Context, v *T) error {
	t.items[t.idOf(v)] = v
	return nil
}

func (t *table[T]) GetByID(_ context.Context, id uuid.UUID) (*T, error) {
	v, ok := t.items[id]
	if !ok {
		return nil, fault.NotFound(t.kind, id)
	}
	return v, nil
}

func (t *table[T]) Update(_ context.Context, v *T) error {
	t.items[t.idOf(v)] = v
	return nil
}

func (t *table[T]) List(_ context.Context, limit, offset int) ([]*T, int, error) {
	var out []*T
	for _, v := range t.items {
		out = append(out, v)
	}
	return out, len(out), nil
}

type medTechTable struct{ *table[registry.MedTech] }

func (t medTechTable) ListActive(_ context.Context) ([]*registry.MedTech, error) {
	var out []*registry.MedTech
	for _, m := range t.items {
		if m.Active {
			out = append(out, m)
		}
	}
	return out, nil
}

type requestTable struct{ *table[scheduling.ServiceRequest] }

func (t requestTable) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*scheduling.ServiceRequest, int, error) {
	var out []*scheduling.ServiceRequest
	for _, r := range t.items {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

type appointmentTable struct{ *table[scheduling.Appointment] }

func (t appointmentTable) ListByMedTech(_ context.Context, medTechID uuid.UUID) ([]*scheduling.Appointment, error) {
	var out []*scheduling.Appointment
	for _, a := range t.items {
		if a.MedTechID == medTechID {
			out = append(out, a)
		}
	}
	return out, nil
}

// The validator never transitions entities, so the status guard is moot
// here.
func (t appointmentTable) UpdateStatus(ctx context.Context, a *scheduling.Appointment, _ scheduling.AppointmentStatus) error {
	return t.Update(ctx, a)
}

func (t appointmentTable) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*scheduling.Appointment, int, error) {
	var out []*scheduling.Appointment
	for _, a := range t.items {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func (t appointmentTable) ListLiveByRequest(_ context.Context, requestID uuid.UUID) ([]*scheduling.Appointment, error) {
	var out []*scheduling.Appointment
	for _, a := range t.items {
		if a.ServiceRequestID != nil && *a.ServiceRequestID == requestID && !a.Status.Terminal() {
			out = append(out, a)
		}
	}
	return out, nil
}

type encounterTable struct{ *table[encounter.Encounter] }

func (t encounterTable) GetByAppointment(_ context.Context, appointmentID uuid.UUID) (*encounter.Encounter, error) {
	for _, e := range t.items {
		if e.AppointmentID == appointmentID {
			return e, nil
		}
	}
	return nil, fault.NotFound("Encounter", appointmentID)
}

func (t encounterTable) UpdateStatus(ctx context.Context, e *encounter.Encounter, _ encounter.Status) error {
	return t.Update(ctx, e)
}

func (t encounterTable) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*encounter.Encounter, int, error) {
	var out []*encounter.Encounter
	for _, e := range t.items {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

// world is a consistent baseline graph every test mutates from.
type world struct {
	patients      *table[registry.Patient]
	practitioners *table[registry.Practitioner]
	medTechs      medTechTable
	locations     *table[registry.Location]
	organizations *table[registry.Organization]
	serviceDefs   *table[registry.HealthcareService]
	devices       *table[registry.Device]
	laboratories  *table[registry.Laboratory]
	requests      requestTable
	appointments  appointmentTable
	encounters    encounterTable

	v *Validator

	home         *registry.Location
	base         *registry.Location
	patient      *registry.Patient
	practitioner *registry.Practitioner
	medTech      *registry.MedTech
	serviceDef   *registry.HealthcareService
	lab          *registry.Laboratory
	request      *scheduling.ServiceRequest
	appointment  *scheduling.Appointment
	encounter    *encounter.Encounter
}

var baseDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func hourAt(h int) time.Time {
	return baseDay.Add(time.Duration(h) * time.Hour)
}

func window(from, to int) registry.Period {
	return registry.Period{Start: hourAt(from), End: hourAt(to)}
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{
		patients:      newTable("Patient", func(p *registry.Patient) uuid.UUID { return p.ID }),
		practitioners: newTable("Practitioner", func(p *registry.Practitioner) uuid.UUID { return p.ID }),
		medTechs:      medTechTable{newTable("MedTech", func(m *registry.MedTech) uuid.UUID { return m.ID })},
		locations:     newTable("Location", func(l *registry.Location) uuid.UUID { return l.ID }),
		organizations: newTable("Organization", func(o *registry.Organization) uuid.UUID { return o.ID }),
		serviceDefs:   newTable("HealthcareService", func(s *registry.HealthcareService) uuid.UUID { return s.ID }),
		devices:       newTable("Device", func(d *registry.Device) uuid.UUID { return d.ID }),
		laboratories:  newTable("Laboratory", func(l *registry.Laboratory) uuid.UUID { return l.ID }),
		requests:      requestTable{newTable("ServiceRequest", func(r *scheduling.ServiceRequest) uuid.UUID { return r.ID })},
		appointments:  appointmentTable{newTable("Appointment", func(a *scheduling.Appointment) uuid.UUID { return a.ID })},
		encounters:    encounterTable{newTable("Encounter", func(e *encounter.Encounter) uuid.UUID { return e.ID })},
	}
	w.v = NewValidator(Repos{
		Patients:      w.patients,
		Practitioners: w.practitioners,
		MedTechs:      w.medTechs,
		Locations:     w.locations,
		Organizations: w.organizations,
		ServiceDefs:   w.serviceDefs,
		Devices:       w.devices,
		Laboratories:  w.laboratories,
		Requests:      w.requests,
		Appointments:  w.appointments,
		Encounters:    w.encounters,
	})

	w.home = w.locations.put(&registry.Location{
		ID: uuid.New(), Status: registry.LocationActive, Name: "patient home",
	})
	w.base = w.locations.put(&registry.Location{
		ID: uuid.New(), Status: registry.LocationActive, Name: "depot",
	})
	area := registry.AreaNorthBay
	w.patient = w.patients.put(&registry.Patient{
		ID: uuid.New(), Active: true, Name: "Ada Park",
		LocationID: w.home.ID, ServiceArea: &area,
	})
	w.practitioner = w.practitioners.put(&registry.Practitioner{
		ID: uuid.New(), Active: true, Name: "Dr. Osei",
	})
	w.serviceDef = w.serviceDefs.put(&registry.HealthcareService{
		ID: uuid.New(), Active: true, Name: "blood draw",
	})
	w.medTech = w.medTechs.put(&registry.MedTech{
		ID: uuid.New(), Active: true, Name: "Kai",
		WorkLocationID: w.base.ID,
		Schedule:       window(8, 18),
		Availabilities: []registry.Period{window(9, 17)},
		ServiceAreas:   []registry.ServiceArea{registry.AreaNorthBay},
		ServiceIDs:     []uuid.UUID{w.serviceDef.ID},
	})
	w.lab = w.laboratories.put(&registry.Laboratory{
		ID: uuid.New(), Active: true, Name: "central lab",
		LocationID: w.base.ID, ServiceIDs: []uuid.UUID{w.serviceDef.ID},
	})
	w.request = w.requests.put(&scheduling.ServiceRequest{
		ID: uuid.New(), Status: scheduling.RequestActive,
		PatientID:              w.patient.ID,
		OrderingPractitionerID: w.practitioner.ID,
		ServiceIDs:             []uuid.UUID{w.serviceDef.ID},
	})
	w.appointment = w.appointments.put(&scheduling.Appointment{
		ID: uuid.New(), Status: scheduling.AppointmentBooked,
		Period:           window(10, 12),
		ServiceRequestID: &w.request.ID,
		PatientID:        w.patient.ID,
		MedTechID:        w.medTech.ID,
		ServiceIDs:       []uuid.UUID{w.serviceDef.ID},
	})
	w.encounter = w.encounters.put(&encounter.Encounter{
		ID: uuid.New(), Status: encounter.StatusInProgress,
		PatientID:     w.patient.ID,
		MedTechID:     w.medTech.ID,
		AppointmentID: w.appointment.ID,
		Period:        window(10, 12),
	})
	return w
}

func (w *world) check(t *testing.T, entity any) error {
	t.Helper()
	return w.v.Check(context.Background(), entity)
}

// wantValidation asserts the error is a ValidationError on the given field.
func wantValidation(t *testing.T, err error, field string) {
	t.Helper()
	var verr *fault.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if verr.Field != field {
		t.Errorf("field = %s, want %s", verr.Field, field)
	}
}

// =========== Tests ===========

func TestCheck_BaselineGraphPasses(t *testing.T) {
	w := newWorld(t)
	for _, entity := range []any{
		w.patient, w.practitioner, w.medTech, w.home, w.serviceDef,
		w.lab, w.request, w.appointment, w.encounter,
	} {
		if err := w.check(t, entity); err != nil {
			t.Errorf("Check(%T): %v", entity, err)
		}
	}
}

func TestCheck_UnknownEntityPasses(t *testing.T) {
	w := newWorld(t)
	if err := w.check(t, struct{ Name string }{"stranger"}); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestCheckPatient(t *testing.T) {
	t.Run("dangling location", func(t *testing.T) {
		w := newWorld(t)
		w.patient.LocationID = uuid.New()
		wantValidation(t, w.check(t, w.patient), "location_id")
	})
	t.Run("dangling general practitioner", func(t *testing.T) {
		w := newWorld(t)
		ghost := uuid.New()
		w.patient.GeneralPractitionerID = &ghost
		wantValidation(t, w.check(t, w.patient), "general_practitioner_id")
	})
	t.Run("unknown service area", func(t *testing.T) {
		w := newWorld(t)
		bad := registry.ServiceArea("atlantis")
		w.patient.ServiceArea = &bad
		wantValidation(t, w.check(t, w.patient), "service_area")
	})
	t.Run("missing name", func(t *testing.T) {
		w := newWorld(t)
		w.patient.Name = ""
		wantValidation(t, w.check(t, w.patient), "name")
	})
}

func TestCheckLocation_PartOfChains(t *testing.T) {
	t.Run("valid chain", func(t *testing.T) {
		w := newWorld(t)
		room := &registry.Location{
			ID: uuid.New(), Status: registry.LocationActive, Name: "room",
			PartOfID: &w.base.ID,
		}
		if err := w.check(t, room); err != nil {
			t.Errorf("Check: %v", err)
		}
	})
	t.Run("self cycle", func(t *testing.T) {
		w := newWorld(t)
		w.base.PartOfID = &w.base.ID
		wantValidation(t, w.check(t, w.base), "part_of_id")
	})
	t.Run("two node cycle", func(t *testing.T) {
		w := newWorld(t)
		w.home.PartOfID = &w.base.ID
		w.base.PartOfID = &w.home.ID
		wantValidation(t, w.check(t, w.home), "part_of_id")
	})
	t.Run("dangling parent", func(t *testing.T) {
		w := newWorld(t)
		ghost := uuid.New()
		w.base.PartOfID = &ghost
		wantValidation(t, w.check(t, w.base), "part_of_id")
	})
	t.Run("chain deeper than the bound", func(t *testing.T) {
		w := newWorld(t)
		head := w.base
		for i := 0; i < maxPartOfDepth+1; i++ {
			parent := w.locations.put(&registry.Location{
				ID: uuid.New(), Status: registry.LocationActive, Name: "level",
			})
			head.PartOfID = &parent.ID
			head = parent
		}
		wantValidation(t, w.check(t, w.base), "part_of_id")
	})
}

func TestCheckOrganization_PartOfCycle(t *testing.T) {
	w := newWorld(t)
	parent := w.organizations.put(&registry.Organization{ID: uuid.New(), Name: "parent"})
	child := w.organizations.put(&registry.Organization{ID: uuid.New(), Name: "child", PartOfID: &parent.ID})
	parent.PartOfID = &child.ID
	wantValidation(t, w.check(t, child), "part_of_id")
}

func TestCheckMedTech(t *testing.T) {
	t.Run("unknown service area", func(t *testing.T) {
		w := newWorld(t)
		w.medTech.ServiceAreas = []registry.ServiceArea{"atlantis"}
		wantValidation(t, w.check(t, w.medTech), "service_areas")
	})
	t.Run("availability outside schedule", func(t *testing.T) {
		w := newWorld(t)
		w.medTech.Availabilities = []registry.Period{window(7, 9)}
		if err := w.check(t, w.medTech); err == nil {
			t.Error("availability outside the schedule accepted")
		}
	})
	t.Run("dangling work location", func(t *testing.T) {
		w := newWorld(t)
		w.medTech.WorkLocationID = uuid.New()
		wantValidation(t, w.check(t, w.medTech), "work_location_id")
	})
	t.Run("dangling service", func(t *testing.T) {
		w := newWorld(t)
		w.medTech.ServiceIDs = []uuid.UUID{uuid.New()}
		wantValidation(t, w.check(t, w.medTech), "service_ids")
	})
}

func TestCheckServiceRequest(t *testing.T) {
	t.Run("inactive patient", func(t *testing.T) {
		w := newWorld(t)
		w.patient.Active = false
		wantValidation(t, w.check(t, w.request), "patient_id")
	})
	t.Run("dangling practitioner", func(t *testing.T) {
		w := newWorld(t)
		w.request.OrderingPractitionerID = uuid.New()
		wantValidation(t, w.check(t, w.request), "ordering_practitioner_id")
	})
	t.Run("no services", func(t *testing.T) {
		w := newWorld(t)
		w.request.ServiceIDs = nil
		wantValidation(t, w.check(t, w.request), "service_ids")
	})
}

func TestCheckAppointment(t *testing.T) {
	t.Run("inactive med tech", func(t *testing.T) {
		w := newWorld(t)
		w.medTech.Active = false
		wantValidation(t, w.check(t, w.appointment), "med_tech_id")
	})
	t.Run("med tech lacks a requested service", func(t *testing.T) {
		w := newWorld(t)
		other := w.serviceDefs.put(&registry.HealthcareService{ID: uuid.New(), Active: true, Name: "ecg"})
		w.appointment.ServiceIDs = append(w.appointment.ServiceIDs, other.ID)
		wantValidation(t, w.check(t, w.appointment), "service_ids")
	})
	t.Run("dangling request", func(t *testing.T) {
		w := newWorld(t)
		ghost := uuid.New()
		w.appointment.ServiceRequestID = &ghost
		wantValidation(t, w.check(t, w.appointment), "service_request_id")
	})
	t.Run("inverted period", func(t *testing.T) {
		w := newWorld(t)
		w.appointment.Period = registry.Period{Start: hourAt(12), End: hourAt(10)}
		if err := w.check(t, w.appointment); err == nil {
			t.Error("inverted period accepted")
		}
	})
}

func TestCheckEncounter(t *testing.T) {
	t.Run("patient mismatch", func(t *testing.T) {
		w := newWorld(t)
		w.encounter.PatientID = uuid.New()
		wantValidation(t, w.check(t, w.encounter), "patient_id")
	})
	t.Run("med tech mismatch", func(t *testing.T) {
		w := newWorld(t)
		w.encounter.MedTechID = uuid.New()
		wantValidation(t, w.check(t, w.encounter), "med_tech_id")
	})
	t.Run("period inside the appointment", func(t *testing.T) {
		w := newWorld(t)
		w.encounter.Period = window(10, 11)
		if err := w.check(t, w.encounter); err != nil {
			t.Errorf("Check: %v", err)
		}
	})
	t.Run("early arrival covering the slot start", func(t *testing.T) {
		w := newWorld(t)
		w.encounter.Period = window(9, 11)
		if err := w.check(t, w.encounter); err != nil {
			t.Errorf("Check: %v", err)
		}
	})
	t.Run("period detached from the appointment", func(t *testing.T) {
		w := newWorld(t)
		w.encounter.Period = window(14, 16)
		wantValidation(t, w.check(t, w.encounter), "period")
	})
	t.Run("dangling appointment", func(t *testing.T) {
		w := newWorld(t)
		w.encounter.AppointmentID = uuid.New()
		wantValidation(t, w.check(t, w.encounter), "appointment_id")
	})
}

func TestCheckObservation(t *testing.T) {
	valid := func(w *world) *encounter.Observation {
		return &encounter.Observation{
			SubjectID:     w.patient.ID,
			EncounterID:   w.encounter.ID,
			Measured:      "heart rate",
			ValueQuantity: &registry.Quantity{Value: 72, Unit: "/min"},
		}
	}

	t.Run("valid", func(t *testing.T) {
		w := newWorld(t)
		if err := w.check(t, valid(w)); err != nil {
			t.Errorf("Check: %v", err)
		}
	})
	t.Run("subject differs from encounter patient", func(t *testing.T) {
		w := newWorld(t)
		obs := valid(w)
		obs.SubjectID = uuid.New()
		wantValidation(t, w.check(t, obs), "subject_id")
	})
	t.Run("two values", func(t *testing.T) {
		w := newWorld(t)
		obs := valid(w)
		s := "resting"
		obs.ValueString = &s
		wantValidation(t, w.check(t, obs), "value")
	})
	t.Run("dangling performer", func(t *testing.T) {
		w := newWorld(t)
		obs := valid(w)
		ghost := uuid.New()
		obs.PerformerID = &ghost
		wantValidation(t, w.check(t, obs), "performer_id")
	})
}

func TestCheckDelivery(t *testing.T) {
	valid := func(w *world) *encounter.Delivery {
		return &encounter.Delivery{
			Status:      encounter.DeliveryPlanned,
			PatientID:   w.patient.ID,
			MedTechID:   w.medTech.ID,
			EncounterID: w.encounter.ID,
			LabID:       w.lab.ID,
		}
	}

	t.Run("valid", func(t *testing.T) {
		w := newWorld(t)
		if err := w.check(t, valid(w)); err != nil {
			t.Errorf("Check: %v", err)
		}
	})
	t.Run("med tech differs from encounter", func(t *testing.T) {
		w := newWorld(t)
		del := valid(w)
		del.MedTechID = uuid.New()
		wantValidation(t, w.check(t, del), "med_tech_id")
	})
	t.Run("inactive laboratory", func(t *testing.T) {
		w := newWorld(t)
		w.lab.Active = false
		wantValidation(t, w.check(t, valid(w)), "lab_id")
	})
	t.Run("dangling laboratory", func(t *testing.T) {
		w := newWorld(t)
		del := valid(w)
		del.LabID = uuid.New()
		wantValidation(t, w.check(t, del), "lab_id")
	})
}

func TestCheckDevice(t *testing.T) {
	t.Run("unknown status", func(t *testing.T) {
		w := newWorld(t)
		d := &registry.Device{ID: uuid.New(), Status: "melted"}
		wantValidation(t, w.check(t, d), "status")
	})
	t.Run("dangling patient", func(t *testing.T) {
		w := newWorld(t)
		ghost := uuid.New()
		d := &registry.Device{ID: uuid.New(), Status: registry.DeviceActive, PatientID: &ghost}
		wantValidation(t, w.check(t, d), "patient_id")
	})
}
