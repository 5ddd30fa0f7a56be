package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

// PgRepository implements Repository, Directory and EventStore on PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, patient_id, doctor_id, start_time, status, notes,
	clinical_observations, clinical_diagnosis, clinical_treatment, clinical_follow_up,
	created_at, updated_at`

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var allergies *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Age,
		&p.Gender,
		&p.Address,
		&p.Phone,
		&p.Email,
		&allergies,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Allergies = allergies
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialty,
		&d.LicenseNumber,
		&d.Phone,
		&d.Email,
		&d.Active,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanAppointment(row pgx.Row) (*scheduling.Appointment, error) {
	var s scheduling.Snapshot
	var observations *string
	var diagnosis, treatment, followUp *string

	err := row.Scan(
		&s.ID,
		&s.PatientID,
		&s.DoctorID,
		&s.StartTime,
		&s.Status,
		&s.Notes,
		&observations,
		&diagnosis,
		&treatment,
		&followUp,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if observations != nil {
		s.ClinicalNotes = &scheduling.ClinicalNotesInput{
			Observations: *observations,
			Diagnosis:    diagnosis,
			Treatment:    treatment,
			FollowUp:     followUp,
		}
	}

	appt, err := scheduling.RestoreAppointment(s)
	if err != nil {
		return nil, fmt.Errorf("restore appointment %s: %w", s.ID, err)
	}
	return appt, nil
}

func collectAppointments(rows pgx.Rows) ([]*scheduling.Appointment, error) {
	defer rows.Close()

	var result []*scheduling.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// Appointments

func (r *PgRepository) Save(ctx context.Context, appt *scheduling.Appointment) error {
	s := appt.Snapshot()
	slot := appt.TimeSlot()

	var observations, diagnosis, treatment, followUp *string
	if s.ClinicalNotes != nil {
		observations = &s.ClinicalNotes.Observations
		diagnosis = s.ClinicalNotes.Diagnosis
		treatment = s.ClinicalNotes.Treatment
		followUp = s.ClinicalNotes.FollowUp
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, start_time, end_time, buffer_end_time, status, notes,
			clinical_observations, clinical_diagnosis, clinical_treatment, clinical_follow_up,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			buffer_end_time = EXCLUDED.buffer_end_time,
			status = EXCLUDED.status,
			notes = EXCLUDED.notes,
			clinical_observations = EXCLUDED.clinical_observations,
			clinical_diagnosis = EXCLUDED.clinical_diagnosis,
			clinical_treatment = EXCLUDED.clinical_treatment,
			clinical_follow_up = EXCLUDED.clinical_follow_up,
			updated_at = EXCLUDED.updated_at
	`,
		s.ID, s.PatientID, s.DoctorID,
		slot.StartTime(), slot.EndTime(), slot.BufferEndTime(),
		s.Status, s.Notes,
		observations, diagnosis, treatment, followUp,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if pgErrorCode(err) == pgExclusionViolation {
			return scheduling.NewError(scheduling.KindSlotConflict,
				"the selected time conflicts with an existing appointment")
		}
		return fmt.Errorf("save appointment: %w", err)
	}

	return nil
}

func (r *PgRepository) FindByID(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindByDoctorAndTimeRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]*scheduling.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND start_time < $3
		  AND buffer_end_time > $2
		  AND status <> 'CANCELLED'
		ORDER BY start_time
	`, doctorID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query doctor appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindByPatientID(ctx context.Context, patientID uuid.UUID) ([]*scheduling.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY start_time
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("query patient appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindByDoctorID(ctx context.Context, doctorID uuid.UUID) ([]*scheduling.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY start_time
	`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("query doctor appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindAll(ctx context.Context) ([]*scheduling.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY start_time
	`)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	return collectAppointments(rows)
}

// Directory

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, age, gender, address, phone, email, allergies, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, license_number, phone, email, active, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) CreatePatient(ctx context.Context, p *Patient) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patients (id, name, age, gender, address, phone, email, allergies, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, p.ID, p.Name, p.Age, p.Gender, p.Address, p.Phone, p.Email, p.Allergies, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return scheduling.NewError(scheduling.KindAlreadyExists, "a patient with this email already exists")
		}
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *PgRepository) CreateDoctor(ctx context.Context, d *Doctor) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doctors (id, name, specialty, license_number, phone, email, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, d.ID, d.Name, d.Specialty, d.LicenseNumber, d.Phone, d.Email, d.Active, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return scheduling.NewError(scheduling.KindAlreadyExists, "a doctor with this license number or email already exists")
		}
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (r *PgRepository) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, age, gender, address, phone, email, allergies, created_at, updated_at
		FROM patients
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialty, license_number, phone, email, active, created_at, updated_at
		FROM doctors
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("query doctors: %w", err)
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Event log

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func (r *PgRepository) FetchUnpublished(ctx context.Context, limit int) ([]EventLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_type, appointment_id, payload, created_at, published_at
		FROM event_logs
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unpublished events: %w", err)
	}
	defer rows.Close()

	var result []EventLog
	for rows.Next() {
		var ev EventLog
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.AppointmentID, &ev.Payload, &ev.CreatedAt, &ev.PublishedAt); err != nil {
			return nil, err
		}
		result = append(result, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE event_logs
		SET published_at = $2
		WHERE id = $1 AND published_at IS NULL
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark event %d published: %w", id, err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
