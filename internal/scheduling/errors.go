package scheduling

import "github.com/hackgods/medifit/internal/apperr"

var (
	ErrMissingBound  = apperr.Validation("missing_bound", "start and end time have to be set")
	ErrPastTime      = apperr.Validation("past_time", "start and end time must be in the future")
	ErrInvertedRange = apperr.Validation("inverted_range", "start time must be before end time")
	ErrOverlap       = apperr.Validation("overlap", "timeslots overlap")
	ErrInvalidWindow = apperr.Validation("invalid_window", "start date must not be after end date")
	ErrNotADoctor    = apperr.Validation("not_a_doctor", "doctor does not exist")

	ErrDoctorNotFound      = apperr.NotFound("doctor", "doctor not found")
	ErrTimeslotNotFound    = apperr.NotFound("timeslot", "timeslot not found")
	ErrAppointmentNotFound = apperr.NotFound("appointment", "appointment not found")

	ErrTimeslotTaken = apperr.Conflict("already_taken", "timeslot is already taken")
	ErrDoctorExists  = apperr.Conflict("doctor_exists", "doctor already exists for this user")

	ErrSelfBooking = apperr.Forbidden("self_booking", "you can not book your own timeslots")
	ErrTooSoon     = apperr.Forbidden("too_soon", "appointment starts too soon to be cancelled")
)
