package registry

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/homevisit/homevisit/internal/domain/fault"
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

// -- Patient Repository --

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, active, name, phone, email, location_id, gender, birth_date,
	general_practitioner_id, managing_org_id, service_area, created_at, updated_at`

func (r *patientRepoPG) scan(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Active, &p.Name, &p.Phone, &p.Email, &p.LocationID,
		&p.Gender, &p.BirthDate, &p.GeneralPractitionerID, &p.ManagingOrgID,
		&p.ServiceArea, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO patient (id, active, name, phone, email, location_id, gender,
			birth_date, general_practitioner_id, managing_org_id, service_area)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.Active, p.Name, p.Phone, p.Email, p.LocationID, p.Gender,
		p.BirthDate, p.GeneralPractitionerID, p.ManagingOrgID, p.ServiceArea)
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("Patient", id, err)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE patient SET active = $2, name = $3, phone = $4, email = $5,
			location_id = $6, gender = $7, birth_date = $8,
			general_practitioner_id = $9, managing_org_id = $10,
			service_area = $11, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.Active, p.Name, p.Phone, p.Email, p.LocationID, p.Gender,
		p.BirthDate, p.GeneralPractitionerID, p.ManagingOrgID, p.ServiceArea)
	return err
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+patientCols+` FROM patient ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

// -- Practitioner Repository --

type practitionerRepoPG struct{ pool *pgxpool.Pool }

func NewPractitionerRepoPG(pool *pgxpool.Pool) PractitionerRepository {
	return &practitionerRepoPG{pool: pool}
}

const practitionerCols = `id, active, name, phone, email, location_id, gender,
	birth_date, organization_ids, created_at, updated_at`

func (r *practitionerRepoPG) scan(row pgx.Row) (*Practitioner, error) {
	var p Practitioner
	err := row.Scan(&p.ID, &p.Active, &p.Name, &p.Phone, &p.Email, &p.LocationID,
		&p.Gender, &p.BirthDate, &p.OrganizationIDs, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *practitionerRepoPG) Create(ctx context.Context, p *Practitioner) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO practitioner (id, active, name, phone, email, location_id,
			gender, birth_date, organization_ids)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.Active, p.Name, p.Phone, p.Email, p.LocationID,
		p.Gender, p.BirthDate, p.OrganizationIDs)
	return err
}

func (r *practitionerRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	p, err := r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+practitionerCols+` FROM practitioner WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("Practitioner", id, err)
	}
	return p, nil
}

func (r *practitionerRepoPG) Update(ctx context.Context, p *Practitioner) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE practitioner SET active = $2, name = $3, phone = $4, email = $5,
			location_id = $6, gender = $7, birth_date = $8,
			organization_ids = $9, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.Active, p.Name, p.Phone, p.Email, p.LocationID,
		p.Gender, p.BirthDate, p.OrganizationIDs)
	return err
}

func (r *practitionerRepoPG) List(ctx context.Context, limit, offset int) ([]*Practitioner, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM practitioner`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+practitionerCols+` FROM practitioner ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var practitioners []*Practitioner
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		practitioners = append(practitioners, p)
	}
	return practitioners, total, rows.Err()
}

// -- MedTech Repository --

type medTechRepoPG struct{ pool *pgxpool.Pool }

func NewMedTechRepoPG(pool *pgxpool.Pool) MedTechRepository {
	return &medTechRepoPG{pool: pool}
}

const medTechCols = `id, active, name, phone, email, location_id, work_location_id,
	organization_id, schedule_start, schedule_end, service_areas, service_ids,
	created_at, updated_at`

func (r *medTechRepoPG) scan(row pgx.Row) (*MedTech, error) {
	var m MedTech
	var areas []string
	err := row.Scan(&m.ID, &m.Active, &m.Name, &m.Phone, &m.Email, &m.LocationID,
		&m.WorkLocationID, &m.OrganizationID, &m.Schedule.Start, &m.Schedule.End,
		&areas, &m.ServiceIDs, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.ServiceAreas = make([]ServiceArea, len(areas))
	for i, a := range areas {
		m.ServiceAreas[i] = ServiceArea(a)
	}
	return &m, nil
}

func (r *medTechRepoPG) loadAvailabilities(ctx context.Context, m *MedTech) error {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT period_start, period_end FROM med_tech_availability
		WHERE med_tech_id = $1 ORDER BY period_start`, m.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	m.Availabilities = nil
	for rows.Next() {
		var p Period
		if err := rows.Scan(&p.Start, &p.End); err != nil {
			return err
		}
		m.Availabilities = append(m.Availabilities, p)
	}
	return rows.Err()
}

func (r *medTechRepoPG) saveAvailabilities(ctx context.Context, m *MedTech) error {
	q := conn(ctx, r.pool)
	if _, err := q.Exec(ctx,
		`DELETE FROM med_tech_availability WHERE med_tech_id = $1`, m.ID); err != nil {
		return err
	}
	for _, p := range m.Availabilities {
		if _, err := q.Exec(ctx, `
			INSERT INTO med_tech_availability (med_tech_id, period_start, period_end)
			VALUES ($1, $2, $3)`, m.ID, p.Start, p.End); err != nil {
			return err
		}
	}
	return nil
}

func (r *medTechRepoPG) areas(m *MedTech) []string {
	areas := make([]string, len(m.ServiceAreas))
	for i, a := range m.ServiceAreas {
		areas[i] = string(a)
	}
	return areas
}

func (r *medTechRepoPG) Create(ctx context.Context, m *MedTech) error {
	m.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO med_tech (id, active, name, phone, email, location_id,
			work_location_id, organization_id, schedule_start, schedule_end,
			service_areas, service_ids)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		m.ID, m.Active, m.Name, m.Phone, m.Email, m.LocationID,
		m.WorkLocationID, m.OrganizationID, m.Schedule.Start, m.Schedule.End,
		r.areas(m), m.ServiceIDs)
	if err != nil {
		return err
	}
	return r.saveAvailabilities(ctx, m)
}

func (r *medTechRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedTech, error) {
	m, err := r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+medTechCols+` FROM med_tech WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("MedTech", id, err)
	}
	if err := r.loadAvailabilities(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *medTechRepoPG) Update(ctx context.Context, m *MedTech) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE med_tech SET active = $2, name = $3, phone = $4, email = $5,
			location_id = $6, work_location_id = $7, organization_id = $8,
			schedule_start = $9, schedule_end = $10, service_areas = $11,
			service_ids = $12, updated_at = NOW()
		WHERE id = $1`,
		m.ID, m.Active, m.Name, m.Phone, m.Email, m.LocationID,
		m.WorkLocationID, m.OrganizationID, m.Schedule.Start, m.Schedule.End,
		r.areas(m), m.ServiceIDs)
	if err != nil {
		return err
	}
	return r.saveAvailabilities(ctx, m)
}

func (r *medTechRepoPG) List(ctx context.Context, limit, offset int) ([]*MedTech, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM med_tech`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+medTechCols+` FROM med_tech ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	medTechs, err := r.collect(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return medTechs, total, nil
}

func (r *medTechRepoPG) ListActive(ctx context.Context) ([]*MedTech, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+medTechCols+` FROM med_tech WHERE active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, rows)
}

func (r *medTechRepoPG) collect(ctx context.Context, rows pgx.Rows) ([]*MedTech, error) {
	var medTechs []*MedTech
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		medTechs = append(medTechs, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, m := range medTechs {
		if err := r.loadAvailabilities(ctx, m); err != nil {
			return nil, err
		}
	}
	return medTechs, nil
}

// -- Location Repository --

type locationRepoPG struct{ pool *pgxpool.Pool }

func NewLocationRepoPG(pool *pgxpool.Pool) LocationRepository {
	return &locationRepoPG{pool: pool}
}

const locationCols = `id, status, name, alias, description,
	address_use, address_line, city, district, state, postal_code, country,
	latitude, longitude, altitude,
	managing_org_id, part_of_id, phone, email, created_at, updated_at`

func (r *locationRepoPG) scan(row pgx.Row) (*Location, error) {
	var l Location
	err := row.Scan(&l.ID, &l.Status, &l.Name, &l.Alias, &l.Description,
		&l.Address.Use, &l.Address.Line, &l.Address.City, &l.Address.District,
		&l.Address.State, &l.Address.PostalCode, &l.Address.Country,
		&l.Position.Latitude, &l.Position.Longitude, &l.Position.Altitude,
		&l.ManagingOrgID, &l.PartOfID, &l.Phone, &l.Email, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *locationRepoPG) Create(ctx context.Context, l *Location) error {
	l.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO location (id, status, name, alias, description,
			address_use, address_line, city, district, state, postal_code, country,
			latitude, longitude, altitude, managing_org_id, part_of_id, phone, email)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		l.ID, l.Status, l.Name, l.Alias, l.Description,
		l.Address.Use, l.Address.Line, l.Address.City, l.Address.District,
		l.Address.State, l.Address.PostalCode, l.Address.Country,
		l.Position.Latitude, l.Position.Longitude, l.Position.Altitude,
		l.ManagingOrgID, l.PartOfID, l.Phone, l.Email)
	return err
}

func (r *locationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Location, error) {
	l, err := r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+locationCols+` FROM location WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("Location", id, err)
	}
	return l, nil
}

func (r *locationRepoPG) Update(ctx context.Context, l *Location) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE location SET status = $2, name = $3, alias = $4, description = $5,
			address_use = $6, address_line = $7, city = $8, district = $9,
			state = $10, postal_code = $11, country = $12, latitude = $13,
			longitude = $14, altitude = $15, managing_org_id = $16,
			part_of_id = $17, phone = $18, email = $19, updated_at = NOW()
		WHERE id = $1`,
		l.ID, l.Status, l.Name, l.Alias, l.Description,
		l.Address.Use, l.Address.Line, l.Address.City, l.Address.District,
		l.Address.State, l.Address.PostalCode, l.Address.Country,
		l.Position.Latitude, l.Position.Longitude, l.Position.Altitude,
		l.ManagingOrgID, l.PartOfID, l.Phone, l.Email)
	return err
}

func (r *locationRepoPG) List(ctx context.Context, limit, offset int) ([]*Location, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM location`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+locationCols+` FROM location ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var locations []*Location
	for rows.Next() {
		l, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		locations = append(locations, l)
	}
	return locations, total, rows.Err()
}

// -- Organization Repository --

type orgRepoPG struct{ pool *pgxpool.Pool }

func NewOrganizationRepoPG(pool *pgxpool.Pool) OrganizationRepository {
	return &orgRepoPG{pool: pool}
}

const orgCols = `id, active, name, alias, phone, email, location_id, part_of_id,
	created_at, updated_at`

func (r *orgRepoPG) scan(row pgx.Row) (*Organization, error) {
	var o Organization
	err := row.Scan(&o.ID, &o.Active, &o.Name, &o.Alias, &o.Phone, &o.Email,
		&o.LocationID, &o.PartOfID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orgRepoPG) Create(ctx context.Context, o *Organization) error {
	o.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO organization (id, active, name, alias, phone, email, location_id, part_of_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		o.ID, o.Active, o.Name, o.Alias, o.Phone, o.Email, o.LocationID, o.PartOfID)
	return err
}

func (r *orgRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Organization, error) {
	o, err := r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+orgCols+` FROM organization WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("Organization", id, err)
	}
	return o, nil
}

func (r *orgRepoPG) Update(ctx context.Context, o *Organization) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE organization SET active = $2, name = $3, alias = $4, phone = $5,
			email = $6, location_id = $7, part_of_id = $8, updated_at = NOW()
		WHERE id = $1`,
		o.ID, o.Active, o.Name, o.Alias, o.Phone, o.Email, o.LocationID, o.PartOfID)
	return err
}

func (r *orgRepoPG) List(ctx context.Context, limit, offset int) ([]*Organization, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM organization`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+orgCols+` FROM organization ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		o, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		orgs = append(orgs, o)
	}
	return orgs, total, rows.Err()
}

// -- HealthcareService Repository --

type serviceDefRepoPG struct{ pool *pgxpool.Pool }

func NewServiceDefRepoPG(pool *pgxpool.Pool) ServiceDefRepository {
	return &serviceDefRepoPG{pool: pool}
}

const serviceDefCols = `id, active, name, description, extra_details, program_names,
	appointment_required, device_ids, created_at, updated_at`

func (r *serviceDefRepoPG) scan(row pgx.Row) (*HealthcareService, error) {
	var s HealthcareService
	err := row.Scan(&s.ID, &s.Active, &s.Name, &s.Description, &s.ExtraDetails,
		&s.ProgramNames, &s.AppointmentRequired, &s.DeviceIDs, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *serviceDefRepoPG) Create(ctx context.Context, s *HealthcareService) error {
	s.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO healthcare_service (id, active, name, description, extra_details,
			program_names, appointment_required, device_ids)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		s.ID, s.Active, s.Name, s.Description, s.ExtraDetails,
		s.ProgramNames, s.AppointmentRequired, s.DeviceIDs)
	return err
}

func (r *serviceDefRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*HealthcareService, error) {
	s, err := r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+serviceDefCols+` FROM healthcare_service WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("HealthcareService", id, err)
	}
	return s, nil
}

func (r *serviceDefRepoPG) Update(ctx context.Context, s *HealthcareService) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE healthcare_service SET active = $2, name = $3, description = $4,
			extra_details = $5, program_names = $6, appointment_required = $7,
			device_ids = $8, updated_at = NOW()
		WHERE id = $1`,
		s.ID, s.Active, s.Name, s.Description, s.ExtraDetails,
		s.ProgramNames, s.AppointmentRequired, s.DeviceIDs)
	return err
}

func (r *serviceDefRepoPG) List(ctx context.Context, limit, offset int) ([]*HealthcareService, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM healthcare_service`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+serviceDefCols+` FROM healthcare_service ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var defs []*HealthcareService
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		defs = append(defs, s)
	}
	return defs, total, rows.Err()
}

// -- Device Repository --

type deviceRepoPG struct{ pool *pgxpool.Pool }

func NewDeviceRepoPG(pool *pgxpool.Pool) DeviceRepository {
	return &deviceRepoPG{pool: pool}
}

const deviceCols = `id, udi, status, type, lot_number, manufacturer, manufacture_date,
	expiration_date, model, version, patient_id, owner_org_id, location_id, notes,
	created_at, updated_at`

func (r *deviceRepoPG) scan(row pgx.Row) (*Device, error) {
	var d Device
	err := row.Scan(&d.ID, &d.UDI, &d.Status, &d.Type, &d.LotNumber, &d.Manufacturer,
		&d.ManufactureDate, &d.ExpirationDate, &d.Model, &d.Version,
		&d.PatientID, &d.OwnerOrgID, &d.LocationID, &d.Notes, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *deviceRepoPG) Create(ctx context.Context, d *Device) error {
	d.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO device (id, udi, status, type, lot_number, manufacturer,
			manufacture_date, expiration_date, model, version,
			patient_id, owner_org_id, location_id, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		d.ID, d.UDI, d.Status, d.Type, d.LotNumber, d.Manufacturer,
		d.ManufactureDate, d.ExpirationDate, d.Model, d.Version,
		d.PatientID, d.OwnerOrgID, d.LocationID, d.Notes)
	return err
}

func (r *deviceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Device, error) {
	d, err := r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+deviceCols+` FROM device WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("Device", id, err)
	}
	return d, nil
}

func (r *deviceRepoPG) Update(ctx context.Context, d *Device) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE device SET udi = $2, status = $3, type = $4, lot_number = $5,
			manufacturer = $6, manufacture_date = $7, expiration_date = $8,
			model = $9, version = $10, patient_id = $11, owner_org_id = $12,
			location_id = $13, notes = $14, updated_at = NOW()
		WHERE id = $1`,
		d.ID, d.UDI, d.Status, d.Type, d.LotNumber, d.Manufacturer,
		d.ManufactureDate, d.ExpirationDate, d.Model, d.Version,
		d.PatientID, d.OwnerOrgID, d.LocationID, d.Notes)
	return err
}

func (r *deviceRepoPG) List(ctx context.Context, limit, offset int) ([]*Device, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM device`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+deviceCols+` FROM device ORDER BY created_at LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		d, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		devices = append(devices, d)
	}
	return devices, total, rows.Err()
}

// -- Laboratory Repository --

type labRepoPG struct{ pool *pgxpool.Pool }

func NewLaboratoryRepoPG(pool *pgxpool.Pool) LaboratoryRepository {
	return &labRepoPG{pool: pool}
}

const labCols = `id, active, name, phone, email, location_id, service_ids,
	created_at, updated_at`

func (r *labRepoPG) scan(row pgx.Row) (*Laboratory, error) {
	var l Laboratory
	err := row.Scan(&l.ID, &l.Active, &l.Name, &l.Phone, &l.Email,
		&l.LocationID, &l.ServiceIDs, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *labRepoPG) Create(ctx context.Context, l *Laboratory) error {
	l.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO laboratory (id, active, name, phone, email, location_id, service_ids)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		l.ID, l.Active, l.Name, l.Phone, l.Email, l.LocationID, l.ServiceIDs)
	return err
}

func (r *labRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Laboratory, error) {
	l, err := r.scan(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+labCols+` FROM laboratory WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("Laboratory", id, err)
	}
	return l, nil
}

func (r *labRepoPG) Update(ctx context.Context, l *Laboratory) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE laboratory SET active = $2, name = $3, phone = $4, email = $5,
			location_id = $6, service_ids = $7, updated_at = NOW()
		WHERE id = $1`,
		l.ID, l.Active, l.Name, l.Phone, l.Email, l.LocationID, l.ServiceIDs)
	return err
}

func (r *labRepoPG) List(ctx context.Context, limit, offset int) ([]*Laboratory, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM laboratory`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+labCols+` FROM laboratory ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var labs []*Laboratory
	for rows.Next() {
		l, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		labs = append(labs, l)
	}
	return labs, total, rows.Err()
}
