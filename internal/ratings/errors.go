package ratings

import "github.com/hackgods/medifit/internal/apperr"

var (
	ErrInvalidRating = apperr.Validation("invalid_rating", "rating must be between 1 and 5")

	ErrSurveyNotFound = apperr.NotFound("survey", "survey not found")
	ErrRatingNotFound = apperr.NotFound("rating", "rating not found")

	ErrDoctorMismatch = apperr.Forbidden("doctor_mismatch", "survey belongs to a different doctor")

	ErrAlreadySubmitted = apperr.Conflict("already_submitted", "review was already submitted for this survey")
	ErrSurveyExists     = apperr.Conflict("survey_exists", "survey for appointment already exists")

	// ErrBatchProcessed means another aggregation run folded some of the
	// batch's surveys after they were listed.
	ErrBatchProcessed = apperr.Conflict("batch_processed", "surveys were already processed")
)
