package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const pgUniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool
	db   querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, db: pool}
}

func (r *PgRepository) WithinTx(ctx context.Context, fn func(tx Repository) error) error {
	// already inside a transaction
	if r.pool == nil {
		return fn(r)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&PgRepository{db: tx})
	})
}

// Helpers

const doctorColumns = `
	d.id, d.user_id, d.rating, d.created_at, d.updated_at,
	COALESCE(array_agg(ds.specialty_id ORDER BY ds.specialty_id) FILTER (WHERE ds.specialty_id IS NOT NULL), '{}')
`

const timeslotColumns = `t.id, t.doctor_id, d.user_id, t.start_time, t.end_time, t.free, t.created_at`

const appointmentColumns = `id, patient_id, timeslot_id, doctor_user_id, start_time, end_time, created_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.Rating,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.Specialties,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanTimeslot(row pgx.Row) (*Timeslot, error) {
	var t Timeslot

	err := row.Scan(
		&t.ID,
		&t.DoctorID,
		&t.DoctorUserID,
		&t.StartTime,
		&t.EndTime,
		&t.Free,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTimeslotNotFound
		}
		return nil, err
	}

	return &t, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.TimeslotID,
		&a.DoctorUserID,
		&a.StartTime,
		&a.EndTime,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	var result []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Doctors

func (r *PgRepository) CreateDoctor(ctx context.Context, userID int64, specialtyIDs []int64) (*Doctor, error) {
	var id int64
	err := r.WithinTx(ctx, func(tx Repository) error {
		db := tx.(*PgRepository).db

		err := db.QueryRow(ctx, `
			INSERT INTO doctors (user_id, created_at, updated_at)
			VALUES ($1, now(), now())
			RETURNING id
		`, userID).Scan(&id)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDoctorExists
			}
			return fmt.Errorf("insert doctor: %w", err)
		}

		if len(specialtyIDs) == 0 {
			return nil
		}

		// unknown specialty ids are skipped
		_, err = db.Exec(ctx, `
			INSERT INTO doctor_specialties (doctor_id, specialty_id)
			SELECT $1::bigint, s.id FROM specialties s WHERE s.id = ANY($2::bigint[])
			ON CONFLICT DO NOTHING
		`, id, specialtyIDs)
		if err != nil {
			return fmt.Errorf("insert doctor specialties: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.GetDoctorByID(ctx, id)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id int64) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors d
		LEFT JOIN doctor_specialties ds ON ds.doctor_id = d.id
		WHERE d.id = $1
		GROUP BY d.id
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetDoctorByUserID(ctx context.Context, userID int64) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors d
		LEFT JOIN doctor_specialties ds ON ds.doctor_id = d.id
		WHERE d.user_id = $1
		GROUP BY d.id
	`, userID)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors d
		LEFT JOIN doctor_specialties ds ON ds.doctor_id = d.id
		GROUP BY d.id
		ORDER BY d.id
	`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDoctor)
}

func (r *PgRepository) UpdateDoctorRating(ctx context.Context, userID int64, rating decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE doctors
		SET rating = $2,
		    updated_at = now()
		WHERE user_id = $1
	`, userID, rating)
	if err != nil {
		return fmt.Errorf("update doctor rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *PgRepository) ListSpecialties(ctx context.Context) ([]Specialty, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, description
		FROM specialties
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (*Specialty, error) {
		var s Specialty
		if err := row.Scan(&s.ID, &s.Name, &s.Description); err != nil {
			return nil, err
		}
		return &s, nil
	})
}

// Timeslots

// CreateTimeslots inserts the whole batch with a single statement.
func (r *PgRepository) CreateTimeslots(ctx context.Context, doctorID int64, ranges []TimeRange) ([]Timeslot, error) {
	if len(ranges) == 0 {
		return nil, nil
	}

	starts := make([]time.Time, len(ranges))
	ends := make([]time.Time, len(ranges))
	for i, tr := range ranges {
		starts[i] = tr.Start
		ends[i] = tr.End
	}

	rows, err := r.db.Query(ctx, `
		WITH inserted AS (
			INSERT INTO timeslots (doctor_id, start_time, end_time, free, created_at)
			SELECT $1::bigint, s, e, true, now()
			FROM unnest($2::timestamptz[], $3::timestamptz[]) AS u(s, e)
			RETURNING id, doctor_id, start_time, end_time, free, created_at
		)
		SELECT t.id, t.doctor_id, d.user_id, t.start_time, t.end_time, t.free, t.created_at
		FROM inserted t
		JOIN doctors d ON d.id = t.doctor_id
		ORDER BY t.id
	`, doctorID, starts, ends)
	if err != nil {
		return nil, fmt.Errorf("insert timeslots: %w", err)
	}
	return collect(rows, scanTimeslot)
}

func (r *PgRepository) GetTimeslotByID(ctx context.Context, id int64) (*Timeslot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+timeslotColumns+`
		FROM timeslots t
		JOIN doctors d ON d.id = t.doctor_id
		WHERE t.id = $1
	`, id)
	return scanTimeslot(row)
}

// ClaimTimeslot flips the free flag only if it is still set. Concurrent
// claims on the same row serialize on the row lock taken by UPDATE; the loser
// sees zero affected rows.
func (r *PgRepository) ClaimTimeslot(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE timeslots
		SET free = false
		WHERE id = $1
		  AND free = true
	`, id)
	if err != nil {
		return fmt.Errorf("claim timeslot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTimeslotTaken
	}
	return nil
}

func (r *PgRepository) ReleaseTimeslot(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE timeslots
		SET free = true
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("release timeslot: %w", err)
	}
	return nil
}

func (r *PgRepository) ListTimeslotsByDoctor(ctx context.Context, doctorID int64) ([]Timeslot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+timeslotColumns+`
		FROM timeslots t
		JOIN doctors d ON d.id = t.doctor_id
		WHERE t.doctor_id = $1
		ORDER BY t.start_time
	`, doctorID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTimeslot)
}

func (r *PgRepository) ListFreeTimeslots(ctx context.Context, doctorIDs []int64, from, to time.Time) ([]Timeslot, error) {
	if doctorIDs == nil {
		doctorIDs = []int64{}
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+timeslotColumns+`
		FROM timeslots t
		JOIN doctors d ON d.id = t.doctor_id
		WHERE t.free = true
		  AND t.start_time >= $1
		  AND t.end_time <= $2
		  AND (cardinality($3::bigint[]) = 0 OR t.doctor_id = ANY($3))
		ORDER BY t.start_time, t.id
	`, from, to, doctorIDs)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTimeslot)
}

// Appointments

func (r *PgRepository) CreateAppointment(ctx context.Context, patientID int64, slot *Timeslot) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (patient_id, timeslot_id, doctor_user_id, start_time, end_time, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING `+appointmentColumns,
		patientID, slot.ID, slot.DoctorUserID, slot.StartTime, slot.EndTime)

	appt, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrTimeslotTaken
		}
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListAppointments(ctx context.Context, limit, offset int) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAppointment)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID int64) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY start_time
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAppointment)
}
