package scheduling

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// WithinTx runs fn inside one transaction. The repository handed to fn
	// must be used for every statement of the unit of work.
	WithinTx(ctx context.Context, fn func(tx Repository) error) error

	// Doctors
	CreateDoctor(ctx context.Context, userID int64, specialtyIDs []int64) (*Doctor, error)
	GetDoctorByID(ctx context.Context, id int64) (*Doctor, error)
	GetDoctorByUserID(ctx context.Context, userID int64) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	UpdateDoctorRating(ctx context.Context, userID int64, rating decimal.Decimal) error
	ListSpecialties(ctx context.Context) ([]Specialty, error)

	// Timeslots
	CreateTimeslots(ctx context.Context, doctorID int64, ranges []TimeRange) ([]Timeslot, error)
	GetTimeslotByID(ctx context.Context, id int64) (*Timeslot, error)
	ClaimTimeslot(ctx context.Context, id int64) error
	ReleaseTimeslot(ctx context.Context, id int64) error
	ListTimeslotsByDoctor(ctx context.Context, doctorID int64) ([]Timeslot, error)
	ListFreeTimeslots(ctx context.Context, doctorIDs []int64, from, to time.Time) ([]Timeslot, error)

	// Appointments
	CreateAppointment(ctx context.Context, patientID int64, slot *Timeslot) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error)
	DeleteAppointment(ctx context.Context, id int64) error
	ListAppointments(ctx context.Context, limit, offset int) ([]Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID int64) ([]Appointment, error)
}
