package api

import (
	"time"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Details string `json:"details,omitempty"`
}

type ListResponse[T any] struct {
	Items []T `json:"items"`
}

func listOf[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items}
}

// Scheduling

type CreateDoctorRequest struct {
	UserID      string   `json:"userId"`
	Specialties []string `json:"specialties"`
}

type DoctorResponse struct {
	ID          string   `json:"id"`
	UserID      string   `json:"userId"`
	Rating      *string  `json:"rating"`
	Specialties []string `json:"specialties"`
}

type SpecialtyResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

type TimeslotRequest struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

type CreateTimeslotsRequest struct {
	Timeslots []TimeslotRequest `json:"timeslots"`
}

type TimeslotResponse struct {
	ID        string    `json:"id"`
	Doctor    string    `json:"doctor"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Free      bool      `json:"free"`
}

type CreateAppointmentRequest struct {
	TimeslotID string `json:"timeslotId"`
}

type AppointmentResponse struct {
	ID        string    `json:"id"`
	Timeslot  string    `json:"timeslot"`
	Patient   string    `json:"patient"`
	Doctor    string    `json:"doctor"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// Ratings

type SubmitSurveyRequest struct {
	AppointmentID string `json:"appointmentId"`
	DoctorID      string `json:"doctorId"`
	Rating        int    `json:"rating"`
}

type SurveyResponse struct {
	ID          string    `json:"id"`
	Appointment string    `json:"appointment"`
	Doctor      string    `json:"doctor"`
	Patient     string    `json:"patient"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Rating      *int      `json:"rating"`
	Processed   bool      `json:"processed"`
}
