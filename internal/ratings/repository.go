package ratings

import "context"

type Repository interface {
	// WithinTx runs fn inside one transaction. Statements of the unit of work
	// must go through the repository handed to fn.
	WithinTx(ctx context.Context, fn func(tx Repository) error) error

	// Surveys
	CreateSurvey(ctx context.Context, s Survey) (*Survey, error)
	GetSurveyByAppointment(ctx context.Context, appointmentID int64) (*Survey, error)
	GetSurveyByAppointmentAndPatient(ctx context.Context, appointmentID, patientID int64) (*Survey, error)
	SubmitRating(ctx context.Context, surveyID int64, rating int) error
	DeletePendingSurvey(ctx context.Context, appointmentID int64) (bool, error)
	ListSurveys(ctx context.Context) ([]Survey, error)
	ListUnprocessedRated(ctx context.Context) ([]Survey, error)
	// MarkProcessed fails with ErrBatchProcessed unless every id was still
	// unprocessed.
	MarkProcessed(ctx context.Context, ids []int64) error

	// Ratings
	// GetRatingByDoctor locks the row until the transaction ends.
	GetRatingByDoctor(ctx context.Context, doctorID int64) (*Rating, error)
	SaveRating(ctx context.Context, r Rating) (*Rating, error)
}
