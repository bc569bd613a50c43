// Package events holds the message contracts exchanged between the
// scheduling and ratings services and the asynq transport that carries them.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeAppointmentEvent = "appointment:event"
	TypeRatingEvent      = "rating:event"

	QueueAppointments = "appointments"
	QueueRatings      = "ratings"
)

type Action string

const (
	ActionCreate Action = "CREATE"
	ActionDelete Action = "DELETE"
)

func (a Action) Valid() bool {
	return a == ActionCreate || a == ActionDelete
}

// AppointmentEvent is published by scheduling after an appointment was created
// or cancelled. DoctorUserID is the user id of the doctor owning the timeslot.
type AppointmentEvent struct {
	AppointmentID int64     `json:"appointmentId"`
	DoctorUserID  int64     `json:"doctorUserId"`
	PatientID     int64     `json:"patientId"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Action        Action    `json:"action"`
}

// RatingEvent carries a doctor's aggregate rating. DoctorID is the same doctor
// user id that arrived in AppointmentEvent.DoctorUserID.
type RatingEvent struct {
	DoctorID int64           `json:"doctorId"`
	Rating   decimal.Decimal `json:"rating"`
}

var ErrMalformedEvent = errors.New("malformed event")

func EncodeAppointment(ev AppointmentEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeAppointment ignores unknown fields. Action is not checked here so that
// consumers can acknowledge actions they do not handle.
func DecodeAppointment(data []byte) (AppointmentEvent, error) {
	var ev AppointmentEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return AppointmentEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.AppointmentID <= 0 {
		return AppointmentEvent{}, fmt.Errorf("%w: missing appointmentId", ErrMalformedEvent)
	}
	return ev, nil
}

func EncodeRating(ev RatingEvent) ([]byte, error) {
	return json.Marshal(ev)
}

func DecodeRating(data []byte) (RatingEvent, error) {
	var ev RatingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return RatingEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.DoctorID <= 0 {
		return RatingEvent{}, fmt.Errorf("%w: missing doctorId", ErrMalformedEvent)
	}
	return ev, nil
}
