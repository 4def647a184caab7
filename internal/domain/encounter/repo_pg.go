package encounter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/homevisit/homevisit/internal/domain/fault"
	"github.com/homevisit/homevisit/internal/domain/registry"
	"github.com/homevisit/homevisit/internal/platform/db"
)

type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

func notFound(kind string, id uuid.UUID, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fault.NotFound(kind, id)
	}
	return err
}

// -- Encounter Repository --

type encounterRepoPG struct{ pool *pgxpool.Pool }

func NewEncounterRepoPG(pool *pgxpool.Pool) EncounterRepository {
	return &encounterRepoPG{pool: pool}
}

const encounterCols = `id, status, patient_id, med_tech_id, appointment_id,
	period_start, period_end, location_id, service_ids, created_at, updated_at`

func (r *encounterRepoPG) scan(row pgx.Row) (*Encounter, error) {
	var e Encounter
	err := row.Scan(&e.ID, &e.Status, &e.PatientID, &e.MedTechID, &e.AppointmentID,
		&e.Period.Start, &e.Period.End, &e.LocationID, &e.ServiceIDs,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *encounterRepoPG) Create(ctx context.Context, e *Encounter) error {
	e.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO encounter (id, status, patient_id, med_tech_id, appointment_id,
			period_start, period_end, location_id, service_ids)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.Status, e.PatientID, e.MedTechID, e.AppointmentID,
		e.Period.Start, e.Period.End, e.LocationID, e.ServiceIDs)
	return err
}

func (r *encounterRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	e, err := r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+encounterCols+` FROM encounter WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("Encounter", id, err)
	}
	return e, nil
}

func (r *encounterRepoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Encounter, error) {
	e, err := r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+encounterCols+` FROM encounter WHERE appointment_id = $1`, appointmentID))
	if err != nil {
		return nil, notFound("Encounter", appointmentID, err)
	}
	return e, nil
}

func (r *encounterRepoPG) Update(ctx context.Context, e *Encounter) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE encounter SET status = $2, period_start = $3, period_end = $4,
			location_id = $5, service_ids = $6, updated_at = NOW()
		WHERE id = $1`,
		e.ID, e.Status, e.Period.Start, e.Period.End, e.LocationID, e.ServiceIDs)
	return err
}

// UpdateStatus only lands while the row still holds the status the caller
// read; zero rows means another transition won the race.
func (r *encounterRepoPG) UpdateStatus(ctx context.Context, e *Encounter, from Status) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE encounter SET status = $2, period_start = $3, period_end = $4,
			location_id = $5, service_ids = $6, updated_at = NOW()
		WHERE id = $1 AND status = $7`,
		e.ID, e.Status, e.Period.Start, e.Period.End, e.LocationID, e.ServiceIDs, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &fault.StaleTransitionError{Entity: "Encounter", ID: e.ID, From: string(from)}
	}
	return nil
}

func (r *encounterRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Encounter, int, error) {
	var total int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM encounter WHERE patient_id = $1`, patientID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+encounterCols+` FROM encounter
		 WHERE patient_id = $1 ORDER BY period_start DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var encounters []*Encounter
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		encounters = append(encounters, e)
	}
	return encounters, total, rows.Err()
}

// -- Observation Repository --

type observationRepoPG struct{ pool *pgxpool.Pool }

func NewObservationRepoPG(pool *pgxpool.Pool) ObservationRepository {
	return &observationRepoPG{pool: pool}
}

const observationCols = `id, subject_id, encounter_id, measured, effective_time,
	effective_period_start, effective_period_end, issued, performer_id, device_id,
	method, comment, data_absent_reason, interpretation,
	value_quantity, value_string, value_boolean, value_date_time,
	value_period_start, value_period_end,
	reference_ranges, components, created_at`

// Value quantities, reference ranges and components are nested documents
// with no query surface of their own, so they are kept as JSONB.
func (r *observationRepoPG) scan(row pgx.Row) (*Observation, error) {
	var o Observation
	var quantity, ranges, components []byte
	var effStart, effEnd, valStart, valEnd *time.Time
	err := row.Scan(&o.ID, &o.SubjectID, &o.EncounterID, &o.Measured, &o.EffectiveTime,
		&effStart, &effEnd, &o.Issued, &o.PerformerID, &o.DeviceID,
		&o.Method, &o.Comment, &o.DataAbsentReason, &o.Interpretation,
		&quantity, &o.ValueString, &o.ValueBoolean, &o.ValueDateTime,
		&valStart, &valEnd, &ranges, &components, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	if effStart != nil && effEnd != nil {
		o.EffectivePeriod = &registry.Period{Start: *effStart, End: *effEnd}
	}
	if valStart != nil && valEnd != nil {
		o.ValuePeriod = &registry.Period{Start: *valStart, End: *valEnd}
	}
	if quantity != nil {
		if err := json.Unmarshal(quantity, &o.ValueQuantity); err != nil {
			return nil, err
		}
	}
	if ranges != nil {
		if err := json.Unmarshal(ranges, &o.ReferenceRanges); err != nil {
			return nil, err
		}
	}
	if components != nil {
		if err := json.Unmarshal(components, &o.Components); err != nil {
			return nil, err
		}
	}
	return &o, nil
}

func marshalIf(populated bool, v any) ([]byte, error) {
	if !populated {
		return nil, nil
	}
	return json.Marshal(v)
}

func periodBounds(p *registry.Period) (start, end *time.Time) {
	if p != nil {
		start, end = &p.Start, &p.End
	}
	return start, end
}

func (r *observationRepoPG) Create(ctx context.Context, o *Observation) error {
	o.ID = uuid.New()
	quantity, err := marshalIf(o.ValueQuantity != nil, o.ValueQuantity)
	if err != nil {
		return err
	}
	ranges, err := marshalIf(len(o.ReferenceRanges) > 0, o.ReferenceRanges)
	if err != nil {
		return err
	}
	components, err := marshalIf(len(o.Components) > 0, o.Components)
	if err != nil {
		return err
	}
	effStart, effEnd := periodBounds(o.EffectivePeriod)
	valStart, valEnd := periodBounds(o.ValuePeriod)

	_, err = conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO observation (id, subject_id, encounter_id, measured, effective_time,
			effective_period_start, effective_period_end, issued, performer_id, device_id,
			method, comment, data_absent_reason, interpretation,
			value_quantity, value_string, value_boolean, value_date_time,
			value_period_start, value_period_end, reference_ranges, components)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		o.ID, o.SubjectID, o.EncounterID, o.Measured, o.EffectiveTime,
		effStart, effEnd, o.Issued, o.PerformerID, o.DeviceID,
		o.Method, o.Comment, o.DataAbsentReason, o.Interpretation,
		quantity, o.ValueString, o.ValueBoolean, o.ValueDateTime,
		valStart, valEnd, ranges, components)
	return err
}

func (r *observationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Observation, error) {
	o, err := r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+observationCols+` FROM observation WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("Observation", id, err)
	}
	return o, nil
}

func (r *observationRepoPG) ListByEncounter(ctx context.Context, encounterID uuid.UUID) ([]*Observation, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+observationCols+` FROM observation
		 WHERE encounter_id = $1 ORDER BY created_at`, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []*Observation
	for rows.Next() {
		o, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, o)
	}
	return observations, rows.Err()
}

// -- Delivery Repository --

type deliveryRepoPG struct{ pool *pgxpool.Pool }

func NewDeliveryRepoPG(pool *pgxpool.Pool) DeliveryRepository {
	return &deliveryRepoPG{pool: pool}
}

const deliveryCols = `id, status, patient_id, med_tech_id, encounter_id, lab_id,
	description, service_ids, created_at, updated_at`

func (r *deliveryRepoPG) scan(row pgx.Row) (*Delivery, error) {
	var d Delivery
	err := row.Scan(&d.ID, &d.Status, &d.PatientID, &d.MedTechID, &d.EncounterID,
		&d.LabID, &d.Description, &d.ServiceIDs, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *deliveryRepoPG) Create(ctx context.Context, d *Delivery) error {
	d.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO delivery (id, status, patient_id, med_tech_id, encounter_id,
			lab_id, description, service_ids)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		d.ID, d.Status, d.PatientID, d.MedTechID, d.EncounterID,
		d.LabID, d.Description, d.ServiceIDs)
	return err
}

func (r *deliveryRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Delivery, error) {
	d, err := r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+deliveryCols+` FROM delivery WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("Delivery", id, err)
	}
	return d, nil
}

func (r *deliveryRepoPG) GetByEncounter(ctx context.Context, encounterID uuid.UUID) (*Delivery, error) {
	d, err := r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+deliveryCols+` FROM delivery WHERE encounter_id = $1`, encounterID))
	if err != nil {
		return nil, notFound("Delivery", encounterID, err)
	}
	return d, nil
}

func (r *deliveryRepoPG) Update(ctx context.Context, d *Delivery) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE delivery SET status = $2, lab_id = $3, description = $4,
			service_ids = $5, updated_at = NOW()
		WHERE id = $1`,
		d.ID, d.Status, d.LabID, d.Description, d.ServiceIDs)
	return err
}

func (r *deliveryRepoPG) UpdateStatus(ctx context.Context, d *Delivery, from DeliveryStatus) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE delivery SET status = $2, lab_id = $3, description = $4,
			service_ids = $5, updated_at = NOW()
		WHERE id = $1 AND status = $6`,
		d.ID, d.Status, d.LabID, d.Description, d.ServiceIDs, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &fault.StaleTransitionError{Entity: "Delivery", ID: d.ID, From: string(from)}
	}
	return nil
}
