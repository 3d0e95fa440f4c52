package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/booking/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// pgErr maps driver errors onto the service's error kinds.
func pgErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return notFound(what)
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%w: %s", ErrDuplicate, what)
	case db.IsConstraintViolation(err):
		return validationf("%s violates a constraint", what)
	}
	return err
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

func (r *doctorRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const doctorCols = `d.id, d.name, d.image, d.address, d.lat, d.lng, d.specialty_id, d.availability,
	ARRAY(SELECT dc.cause_id::text FROM doctor_cause dc WHERE dc.doctor_id = d.id ORDER BY dc.cause_id),
	d.created_at, d.updated_at`

func (r *doctorRepoPG) scanDoctor(row pgx.Row) (*Doctor, error) {
	var (
		d        Doctor
		rawAvail []byte
		causes   []string
	)
	err := row.Scan(&d.ID, &d.Name, &d.Image, &d.Address, &d.Location.Lat, &d.Location.Lng,
		&d.SpecialtyID, &rawAvail, &causes, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rawAvail, &d.Availability); err != nil {
		return nil, fmt.Errorf("decode availability of doctor %s: %w", d.ID, err)
	}
	if d.CauseIDs, err = parseUUIDs(causes); err != nil {
		return nil, err
	}
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	avail, err := json.Marshal(d.Availability)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor (id, name, image, address, lat, lng, specialty_id, availability, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)`,
		d.ID, d.Name, d.Image, d.Address, d.Location.Lat, d.Location.Lng, d.SpecialtyID, avail, now)
	if err != nil {
		return pgErr(err, "doctor")
	}
	d.CreatedAt, d.UpdatedAt = now, now
	return r.replaceCauses(ctx, d)
}

func (r *doctorRepoPG) replaceCauses(ctx context.Context, d *Doctor) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor_cause WHERE doctor_id = $1`, d.ID); err != nil {
		return err
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_cause (doctor_id, cause_id)
		SELECT $1, c::uuid FROM unnest($2::text[]) AS c
		ON CONFLICT DO NOTHING`,
		d.ID, uuidStrings(d.CauseIDs))
	return pgErr(err, "doctor causes")
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := r.scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor d WHERE d.id = $1`, id))
	return d, pgErr(err, "doctor")
}

func (r *doctorRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := r.scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor d WHERE d.id = $1 FOR UPDATE OF d`, id))
	return d, pgErr(err, "doctor")
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	avail, err := json.Marshal(d.Availability)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor SET name=$2, image=$3, address=$4, lat=$5, lng=$6, specialty_id=$7,
			availability=$8, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Name, d.Image, d.Address, d.Location.Lat, d.Location.Lng, d.SpecialtyID, avail)
	if err != nil {
		return pgErr(err, "doctor")
	}
	if tag.RowsAffected() == 0 {
		return notFound("doctor")
	}
	return r.replaceCauses(ctx, d)
}

func (r *doctorRepoPG) List(ctx context.Context, specialtyID, causeID *uuid.UUID, limit, offset int) ([]*Doctor, int, error) {
	const filter = `
		WHERE ($1::uuid IS NULL OR d.specialty_id = $1)
		  AND ($2::uuid IS NULL OR EXISTS (
			SELECT 1 FROM doctor_cause dc WHERE dc.doctor_id = d.id AND dc.cause_id = $2))`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor d`+filter, specialtyID, causeID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+doctorCols+` FROM doctor d`+filter+`
		ORDER BY d.name, d.id LIMIT $3 OFFSET $4`, specialtyID, causeID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Doctor
	for rows.Next() {
		d, err := r.scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (id, name, age, created_at, updated_at) VALUES ($1,$2,$3,$4,$4)`,
		p.ID, p.Name, p.Age, now)
	if err != nil {
		return pgErr(err, "patient")
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, name, age, created_at, updated_at FROM patient WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Age, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, pgErr(err, "patient")
	}
	p.CreatedAt, p.UpdatedAt = p.CreatedAt.UTC(), p.UpdatedAt.UTC()
	return &p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE patient SET name=$2, age=$3, updated_at=NOW() WHERE id = $1`,
		p.ID, p.Name, p.Age)
	if err != nil {
		return pgErr(err, "patient")
	}
	if tag.RowsAffected() == 0 {
		return notFound("patient")
	}
	return nil
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const apptCols = `id, doctor_id, patient_id, cause_id, start_date, duration_minutes, status, created_at, updated_at`

const activeStatuses = `('approved', 'rescheduled')`

func (r *appointmentRepoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var (
		a      Appointment
		status string
	)
	err := row.Scan(&a.ID, &a.DoctorID, &a.PatientID, &a.CauseID, &a.StartDate, &a.DurationMinutes,
		&status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	a.StartDate = a.StartDate.UTC()
	a.CreatedAt, a.UpdatedAt = a.CreatedAt.UTC(), a.UpdatedAt.UTC()
	return &a, nil
}

func (r *appointmentRepoPG) collect(rows pgx.Rows, err error) ([]*Appointment, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment (id, doctor_id, patient_id, cause_id, start_date, duration_minutes, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)`,
		a.ID, a.DoctorID, a.PatientID, a.CauseID, a.StartDate, a.DurationMinutes, string(a.Status), now)
	if err != nil {
		return pgErr(err, "appointment")
	}
	a.CreatedAt, a.UpdatedAt = now, now
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := r.scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
	return a, pgErr(err, "appointment")
}

func (r *appointmentRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := r.scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1 FOR UPDATE`, id))
	return a, pgErr(err, "appointment")
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET cause_id=$2, start_date=$3, duration_minutes=$4, status=$5, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.CauseID, a.StartDate, a.DurationMinutes, string(a.Status))
	if err != nil {
		return pgErr(err, "appointment")
	}
	if tag.RowsAffected() == 0 {
		return notFound("appointment")
	}
	return nil
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("appointment")
	}
	return nil
}

func (r *appointmentRepoPG) ListActiveByDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time, excludeID uuid.UUID) ([]*Appointment, error) {
	return r.collect(r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointment
		WHERE doctor_id = $1 AND status IN `+activeStatuses+`
		  AND start_date >= $2 AND start_date < $3 AND id <> $4
		ORDER BY start_date`, doctorID, from, to, excludeID))
}

func (r *appointmentRepoPG) ListActiveByDoctorFrom(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]*Appointment, error) {
	return r.collect(r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointment
		WHERE doctor_id = $1 AND status IN `+activeStatuses+` AND start_date >= $2
		ORDER BY start_date`, doctorID, from))
}

func (r *appointmentRepoPG) CountNonCancelledWithCauses(ctx context.Context, doctorID uuid.UUID, causeIDs []uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment
		WHERE doctor_id = $1 AND status <> 'cancelled' AND cause_id::text = ANY($2::text[])`,
		doctorID, uuidStrings(causeIDs)).Scan(&n)
	return n, err
}

func (r *appointmentRepoPG) CountByDoctor(ctx context.Context, doctorID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment WHERE doctor_id = $1`, doctorID).Scan(&n)
	return n, err
}

func (r *appointmentRepoPG) listBy(ctx context.Context, col string, id uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment WHERE `+col+` = $1`, id).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.collect(r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointment WHERE `+col+` = $1
		ORDER BY start_date LIMIT $2 OFFSET $3`, id, limit, offset))
	return items, total, err
}

func (r *appointmentRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.listBy(ctx, "doctor_id", doctorID, limit, offset)
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.listBy(ctx, "patient_id", patientID, limit, offset)
}

func (r *appointmentRepoPG) idsBy(ctx context.Context, col string, id uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id FROM appointment WHERE `+col+` = $1 ORDER BY start_date, id`, id)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (r *appointmentRepoPG) IDsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]uuid.UUID, error) {
	return r.idsBy(ctx, "doctor_id", doctorID)
}

func (r *appointmentRepoPG) IDsByPatient(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	return r.idsBy(ctx, "patient_id", patientID)
}

func (r *appointmentRepoPG) FinishElapsed(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE appointment SET status = 'finished', updated_at = NOW()
		WHERE status IN `+activeStatuses+`
		  AND start_date + duration_minutes * INTERVAL '1 minute' < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// =========== Specialty Repository ===========

type specialtyRepoPG struct{ pool *pgxpool.Pool }

func NewSpecialtyRepoPG(pool *pgxpool.Pool) SpecialtyRepository { return &specialtyRepoPG{pool: pool} }

func (r *specialtyRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

func (r *specialtyRepoPG) Create(ctx context.Context, s *Specialty) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `INSERT INTO specialty (id, name) VALUES ($1, $2) RETURNING created_at`,
		s.ID, s.Name).Scan(&s.CreatedAt)
	return pgErr(err, "specialty "+s.Name)
}

func (r *specialtyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Specialty, error) {
	var s Specialty
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, name, created_at FROM specialty WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.CreatedAt)
	if err != nil {
		return nil, pgErr(err, "specialty")
	}
	return &s, nil
}

func (r *specialtyRepoPG) List(ctx context.Context) ([]*Specialty, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name, created_at FROM specialty ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Specialty
	for rows.Next() {
		var s Specialty
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}

func (r *specialtyRepoPG) DeleteUnreferenced(ctx context.Context) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM specialty s
		WHERE NOT EXISTS (SELECT 1 FROM doctor d WHERE d.specialty_id = s.id)`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// =========== Cause Repository ===========

type causeRepoPG struct{ pool *pgxpool.Pool }

func NewCauseRepoPG(pool *pgxpool.Pool) CauseRepository { return &causeRepoPG{pool: pool} }

func (r *causeRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const causeCols = `id, specialty_id, name, created_at`

func (r *causeRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Cause, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Cause
	for rows.Next() {
		var c Cause
		if err := rows.Scan(&c.ID, &c.SpecialtyID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}

func (r *causeRepoPG) Create(ctx context.Context, c *Cause) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `INSERT INTO cause (id, specialty_id, name) VALUES ($1, $2, $3) RETURNING created_at`,
		c.ID, c.SpecialtyID, c.Name).Scan(&c.CreatedAt)
	return pgErr(err, "cause "+c.Name)
}

func (r *causeRepoPG) GetMany(ctx context.Context, ids []uuid.UUID) ([]*Cause, error) {
	return r.query(ctx, `SELECT `+causeCols+` FROM cause WHERE id::text = ANY($1::text[]) ORDER BY name`, uuidStrings(ids))
}

func (r *causeRepoPG) ListBySpecialty(ctx context.Context, specialtyID uuid.UUID) ([]*Cause, error) {
	return r.query(ctx, `SELECT `+causeCols+` FROM cause WHERE specialty_id = $1 ORDER BY name`, specialtyID)
}

func (r *causeRepoPG) DeleteUnreferenced(ctx context.Context) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM cause c
		WHERE NOT EXISTS (SELECT 1 FROM doctor_cause dc WHERE dc.cause_id = c.id)`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
