package ratings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PgRepository struct {
	db *sql.DB
	q  dbtx
}

func NewPgRepository(db *sql.DB) *PgRepository {
	return &PgRepository{db: db, q: db}
}

func (r *PgRepository) WithinTx(ctx context.Context, fn func(tx Repository) error) error {
	// already inside a transaction
	if r.db == nil {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&PgRepository{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const surveyColumns = `id, appointment_id, doctor_id, patient_id, start_time, end_time, processed, rating, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSurvey(row scanner) (*Survey, error) {
	var (
		s      Survey
		rating sql.NullInt64
	)

	err := row.Scan(
		&s.ID,
		&s.AppointmentID,
		&s.DoctorID,
		&s.PatientID,
		&s.StartTime,
		&s.EndTime,
		&s.Processed,
		&rating,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSurveyNotFound
		}
		return nil, err
	}

	if rating.Valid {
		v := int(rating.Int64)
		s.Rating = &v
	}

	return &s, nil
}

func (r *PgRepository) querySurveys(ctx context.Context, query string, args ...any) ([]Survey, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query surveys: %w", err)
	}
	defer rows.Close()

	var out []Survey
	for rows.Next() {
		s, err := scanSurvey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan survey: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate surveys: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// Surveys

func (r *PgRepository) CreateSurvey(ctx context.Context, s Survey) (*Survey, error) {
	query := `INSERT INTO surveys (appointment_id, doctor_id, patient_id, start_time, end_time) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`

	err := r.q.QueryRowContext(ctx, query, s.AppointmentID, s.DoctorID, s.PatientID, s.StartTime, s.EndTime).
		Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSurveyExists
		}
		return nil, fmt.Errorf("insert survey: %w", err)
	}

	s.Processed = false
	s.Rating = nil
	return &s, nil
}

func (r *PgRepository) GetSurveyByAppointment(ctx context.Context, appointmentID int64) (*Survey, error) {
	query := `SELECT ` + surveyColumns + ` FROM surveys WHERE appointment_id = $1`
	return scanSurvey(r.q.QueryRowContext(ctx, query, appointmentID))
}

func (r *PgRepository) GetSurveyByAppointmentAndPatient(ctx context.Context, appointmentID, patientID int64) (*Survey, error) {
	query := `SELECT ` + surveyColumns + ` FROM surveys WHERE appointment_id = $1 AND patient_id = $2`
	return scanSurvey(r.q.QueryRowContext(ctx, query, appointmentID, patientID))
}

// SubmitRating stores the rating only if none was stored before, so that
// concurrent submissions for one survey cannot both succeed.
func (r *PgRepository) SubmitRating(ctx context.Context, surveyID int64, rating int) error {
	query := `UPDATE surveys SET rating = $1 WHERE id = $2 AND rating IS NULL`

	res, err := r.q.ExecContext(ctx, query, rating, surveyID)
	if err != nil {
		return fmt.Errorf("update survey rating: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrAlreadySubmitted
	}
	return nil
}

// DeletePendingSurvey removes the survey of an appointment as long as no
// rating was submitted for it. It reports whether a row was removed.
func (r *PgRepository) DeletePendingSurvey(ctx context.Context, appointmentID int64) (bool, error) {
	query := `DELETE FROM surveys WHERE appointment_id = $1 AND rating IS NULL AND processed = false`

	res, err := r.q.ExecContext(ctx, query, appointmentID)
	if err != nil {
		return false, fmt.Errorf("delete survey: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *PgRepository) ListSurveys(ctx context.Context) ([]Survey, error) {
	query := `SELECT ` + surveyColumns + ` FROM surveys ORDER BY id`
	return r.querySurveys(ctx, query)
}

func (r *PgRepository) ListUnprocessedRated(ctx context.Context) ([]Survey, error) {
	query := `SELECT ` + surveyColumns + ` FROM surveys WHERE processed = false AND rating IS NOT NULL ORDER BY doctor_id, id`
	return r.querySurveys(ctx, query)
}

// MarkProcessed flips every survey of ids from unprocessed to processed. If any
// of them was processed already the batch is stale and ErrBatchProcessed is
// returned so the surrounding transaction rolls back.
func (r *PgRepository) MarkProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE surveys SET processed = true WHERE id = ANY($1) AND processed = false`
	res, err := r.q.ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark surveys processed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != int64(len(ids)) {
		return ErrBatchProcessed
	}
	return nil
}

// Ratings

func (r *PgRepository) GetRatingByDoctor(ctx context.Context, doctorID int64) (*Rating, error) {
	var rt Rating

	query := `SELECT id, doctor_id, rating, total_number_of_ratings FROM ratings WHERE doctor_id = $1 FOR UPDATE`
	err := r.q.QueryRowContext(ctx, query, doctorID).Scan(&rt.ID, &rt.DoctorID, &rt.Average, &rt.Count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRatingNotFound
		}
		return nil, fmt.Errorf("scan rating: %w", err)
	}
	return &rt, nil
}

func (r *PgRepository) SaveRating(ctx context.Context, rt Rating) (*Rating, error) {
	query := `INSERT INTO ratings (doctor_id, rating, total_number_of_ratings) VALUES ($1, $2, $3) ` +
		`ON CONFLICT (doctor_id) DO UPDATE SET rating = EXCLUDED.rating, total_number_of_ratings = EXCLUDED.total_number_of_ratings ` +
		`RETURNING id`

	if err := r.q.QueryRowContext(ctx, query, rt.DoctorID, rt.Average, rt.Count).Scan(&rt.ID); err != nil {
		return nil, fmt.Errorf("upsert rating: %w", err)
	}
	return &rt, nil
}
