package scheduling

import (
	"time"

	"github.com/shopspring/decimal"
)

type Specialty struct {
	ID          int64
	Name        string
	Description *string
}

type Doctor struct {
	ID          int64
	UserID      int64
	Rating      decimal.NullDecimal
	Specialties []int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TimeRange is a proposed timeslot window. A zero bound counts as missing.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

type Timeslot struct {
	ID           int64
	DoctorID     int64
	DoctorUserID int64
	StartTime    time.Time
	EndTime      time.Time
	Free         bool
	CreatedAt    time.Time
}

// Appointment keeps a copy of the timeslot window and owner taken at booking
// time, so cancellation checks never depend on the timeslot row.
type Appointment struct {
	ID           int64
	PatientID    int64
	TimeslotID   int64
	DoctorUserID int64
	StartTime    time.Time
	EndTime      time.Time
	CreatedAt    time.Time
}

// FreeTimeslotQuery selects free timeslots fully contained in the days
// [From, To]. Zero dates default to today and one week from today.
type FreeTimeslotQuery struct {
	DoctorIDs []int64
	From      time.Time
	To        time.Time
}
