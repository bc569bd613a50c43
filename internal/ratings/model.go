package ratings

import (
	"time"

	"github.com/shopspring/decimal"
)

// Survey is created for every booked appointment and waits for the patient's
// rating. Processed flips once the rating was folded into the doctor's
// aggregate.
type Survey struct {
	ID            int64
	AppointmentID int64
	DoctorID      int64 // doctor user id from the appointment event
	PatientID     int64
	StartTime     time.Time
	EndTime       time.Time
	Processed     bool
	Rating        *int
	CreatedAt     time.Time
}

func (s *Survey) Pending() bool {
	return s.Rating == nil && !s.Processed
}

// Rating is a doctor's running mean over all processed surveys.
type Rating struct {
	ID       int64
	DoctorID int64
	Average  decimal.Decimal
	Count    int
}

const (
	MinRating = 1
	MaxRating = 5
)

type SubmitRequest struct {
	AppointmentID int64
	DoctorID      int64
	PatientID     int64
	Rating        int
}
