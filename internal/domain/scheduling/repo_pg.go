package scheduling

import (
	"context"
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

// -- ServiceRequest Repository --

type requestRepoPG struct{ pool *pgxpool.Pool }

func NewServiceRequestRepoPG(pool *pgxpool.Pool) ServiceRequestRepository {
	return &requestRepoPG{pool: pool}
}

const requestCols = `id, status, patient_id, ordering_practitioner_id, authored_on,
	service_ids, desired_start, desired_end, comment, created_at, updated_at`

func (r *requestRepoPG) scan(row pgx.Row) (*ServiceRequest, error) {
	var req ServiceRequest
	var desiredStart, desiredEnd *time.Time
	err := row.Scan(&req.ID, &req.Status, &req.PatientID, &req.OrderingPractitionerID,
		&req.AuthoredOn, &req.ServiceIDs, &desiredStart, &desiredEnd,
		&req.Comment, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if desiredStart != nil && desiredEnd != nil {
		req.DesiredPeriod = &registry.Period{Start: *desiredStart, End: *desiredEnd}
	}
	return &req, nil
}

func desiredBounds(req *ServiceRequest) (start, end *time.Time) {
	if req.DesiredPeriod != nil {
		start, end = &req.DesiredPeriod.Start, &req.DesiredPeriod.End
	}
	return start, end
}

func (r *requestRepoPG) Create(ctx context.Context, req *ServiceRequest) error {
	req.ID = uuid.New()
	start, end := desiredBounds(req)
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO service_request (id, status, patient_id, ordering_practitioner_id,
			authored_on, service_ids, desired_start, desired_end, comment)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		req.ID, req.Status, req.PatientID, req.OrderingPractitionerID,
		req.AuthoredOn, req.ServiceIDs, start, end, req.Comment)
	return err
}

func (r *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ServiceRequest, error) {
	req, err := r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+requestCols+` FROM service_request WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("ServiceRequest", id, err)
	}
	return req, nil
}

func (r *requestRepoPG) Update(ctx context.Context, req *ServiceRequest) error {
	start, end := desiredBounds(req)
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE service_request SET status = $2, patient_id = $3,
			ordering_practitioner_id = $4, authored_on = $5, service_ids = $6,
			desired_start = $7, desired_end = $8, comment = $9, updated_at = NOW()
		WHERE id = $1`,
		req.ID, req.Status, req.PatientID, req.OrderingPractitionerID,
		req.AuthoredOn, req.ServiceIDs, start, end, req.Comment)
	return err
}

func (r *requestRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*ServiceRequest, int, error) {
	var total int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM service_request WHERE patient_id = $1`, patientID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+requestCols+` FROM service_request
		 WHERE patient_id = $1 ORDER BY authored_on DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var requests []*ServiceRequest
	for rows.Next() {
		req, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, req)
	}
	return requests, total, rows.Err()
}

// -- Appointment Repository --

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const appointmentCols = `id, status, description, comment, cancellation_reason,
	period_start, period_end, created, service_request_id, patient_id, med_tech_id,
	service_ids, created_at, updated_at`

func (r *appointmentRepoPG) scan(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.Status, &a.Description, &a.Comment, &a.CancellationReason,
		&a.Period.Start, &a.Period.End, &a.Created, &a.ServiceRequestID,
		&a.PatientID, &a.MedTechID, &a.ServiceIDs, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO appointment (id, status, description, comment, cancellation_reason,
			period_start, period_end, created, service_request_id, patient_id,
			med_tech_id, service_ids)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		a.ID, a.Status, a.Description, a.Comment, a.CancellationReason,
		a.Period.Start, a.Period.End, a.Created, a.ServiceRequestID,
		a.PatientID, a.MedTechID, a.ServiceIDs)
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointment WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("Appointment", id, err)
	}
	return a, nil
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE appointment SET status = $2, description = $3, comment = $4,
			cancellation_reason = $5, period_start = $6, period_end = $7,
			service_request_id = $8, patient_id = $9, med_tech_id = $10,
			service_ids = $11, updated_at = NOW()
		WHERE id = $1`,
		a.ID, a.Status, a.Description, a.Comment, a.CancellationReason,
		a.Period.Start, a.Period.End, a.ServiceRequestID,
		a.PatientID, a.MedTechID, a.ServiceIDs)
	return err
}

// UpdateStatus is the compare-and-set variant of Update: the write only
// lands while the row still holds the status the caller read. Zero rows
// means another transition won the race.
func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, a *Appointment, from AppointmentStatus) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE appointment SET status = $2, description = $3, comment = $4,
			cancellation_reason = $5, period_start = $6, period_end = $7,
			service_request_id = $8, patient_id = $9, med_tech_id = $10,
			service_ids = $11, updated_at = NOW()
		WHERE id = $1 AND status = $12`,
		a.ID, a.Status, a.Description, a.Comment, a.CancellationReason,
		a.Period.Start, a.Period.End, a.ServiceRequestID,
		a.PatientID, a.MedTechID, a.ServiceIDs, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &fault.StaleTransitionError{Entity: "Appointment", ID: a.ID, From: string(from)}
	}
	return nil
}

func (r *appointmentRepoPG) ListByMedTech(ctx context.Context, medTechID uuid.UUID) ([]*Appointment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+appointmentCols+` FROM appointment
		 WHERE med_tech_id = $1 ORDER BY period_start`, medTechID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment WHERE patient_id = $1`, patientID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+appointmentCols+` FROM appointment
		 WHERE patient_id = $1 ORDER BY period_start DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	appointments, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return appointments, total, nil
}

func (r *appointmentRepoPG) ListLiveByRequest(ctx context.Context, requestID uuid.UUID) ([]*Appointment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+appointmentCols+` FROM appointment
		 WHERE service_request_id = $1
		   AND status NOT IN ('cancelled', 'noshow', 'fulfilled', 'entered-in-error')
		 ORDER BY period_start`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *appointmentRepoPG) collect(rows pgx.Rows) ([]*Appointment, error) {
	var appointments []*Appointment
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, a)
	}
	return appointments, rows.Err()
}
