package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hackgods/medifit/internal/apperr"
	"github.com/hackgods/medifit/internal/idcodec"
	"github.com/hackgods/medifit/internal/scheduling"
)

const dateLayout = "2006-01-02"

var errInvalidDate = apperr.Validation("invalid_date", "dates must be formatted as yyyy-mm-dd")

type SchedulingService interface {
	CreateDoctor(ctx context.Context, userID int64, specialtyIDs []int64) (*scheduling.Doctor, error)
	GetDoctor(ctx context.Context, id int64) (*scheduling.Doctor, error)
	ListDoctors(ctx context.Context) ([]scheduling.Doctor, error)
	ListSpecialties(ctx context.Context) ([]scheduling.Specialty, error)

	CreateTimeslots(ctx context.Context, userID int64, ranges []scheduling.TimeRange) ([]scheduling.Timeslot, error)
	ListTimeslotsByDoctor(ctx context.Context, doctorID int64) ([]scheduling.Timeslot, error)
	ListFreeTimeslots(ctx context.Context, q scheduling.FreeTimeslotQuery) ([]scheduling.Timeslot, error)

	CreateAppointment(ctx context.Context, patientID, timeslotID int64) (*scheduling.Appointment, error)
	CancelAppointment(ctx context.Context, patientID, appointmentID int64) error
	GetAppointment(ctx context.Context, id int64) (*scheduling.Appointment, error)
	ListAppointments(ctx context.Context, limit, offset int) ([]scheduling.Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID int64) ([]scheduling.Appointment, error)
}

type schedulingHandler struct {
	svc SchedulingService
	ids idcodec.Codec
	log *zap.Logger
}

func (h *schedulingHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeFailure(w, r, h.log, err)
}

func (h *schedulingHandler) pathID(r *http.Request) (int64, error) {
	return h.ids.Decode(chi.URLParam(r, "id"))
}

// Doctors

func (h *schedulingHandler) createDoctor(w http.ResponseWriter, r *http.Request) {
	var req CreateDoctorRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	userID, err := h.ids.Decode(req.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	specialties, err := h.ids.DecodeAll(req.Specialties)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	doctor, err := h.svc.CreateDoctor(r.Context(), userID, specialties)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.doctorResponse(doctor))
}

func (h *schedulingHandler) listDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.svc.ListDoctors(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]DoctorResponse, 0, len(doctors))
	for i := range doctors {
		out = append(out, h.doctorResponse(&doctors[i]))
	}
	writeJSON(w, http.StatusOK, listOf(out))
}

func (h *schedulingHandler) getDoctor(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	doctor, err := h.svc.GetDoctor(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.doctorResponse(doctor))
}

func (h *schedulingHandler) listSpecialties(w http.ResponseWriter, r *http.Request) {
	specialties, err := h.svc.ListSpecialties(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]SpecialtyResponse, 0, len(specialties))
	for _, s := range specialties {
		out = append(out, SpecialtyResponse{ID: h.ids.Encode(s.ID), Name: s.Name, Description: s.Description})
	}
	writeJSON(w, http.StatusOK, listOf(out))
}

// Timeslots

func (h *schedulingHandler) createTimeslots(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req CreateTimeslotsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	ranges := make([]scheduling.TimeRange, 0, len(req.Timeslots))
	for _, t := range req.Timeslots {
		ranges = append(ranges, scheduling.TimeRange{Start: t.StartTime, End: t.EndTime})
	}

	created, err := h.svc.CreateTimeslots(r.Context(), caller, ranges)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, listOf(h.timeslotResponses(created)))
}

func (h *schedulingHandler) listFreeTimeslots(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	doctors, err := h.ids.DecodeAll(query["doctor"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	from, err := parseDate(query.Get("startDate"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := parseDate(query.Get("endDate"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	slots, err := h.svc.ListFreeTimeslots(r.Context(), scheduling.FreeTimeslotQuery{
		DoctorIDs: doctors,
		From:      from,
		To:        to,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listOf(h.timeslotResponses(slots)))
}

func (h *schedulingHandler) listDoctorTimeslots(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	slots, err := h.svc.ListTimeslotsByDoctor(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listOf(h.timeslotResponses(slots)))
}

// Appointments

func (h *schedulingHandler) createAppointment(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req CreateAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	timeslotID, err := h.ids.Decode(req.TimeslotID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	appt, err := h.svc.CreateAppointment(r.Context(), caller, timeslotID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.appointmentResponse(appt))
}

func (h *schedulingHandler) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	id, err := h.pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.svc.CancelAppointment(r.Context(), caller, id); err != nil {
		h.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *schedulingHandler) getAppointment(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	id, err := h.pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if appt.PatientID != caller && appt.DoctorUserID != caller {
		h.fail(w, r, scheduling.ErrAppointmentNotFound)
		return
	}

	writeJSON(w, http.StatusOK, h.appointmentResponse(appt))
}

func (h *schedulingHandler) listAppointments(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	appts, err := h.svc.ListAppointments(r.Context(), limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listOf(h.appointmentResponses(appts)))
}

func (h *schedulingHandler) listMyAppointments(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	appts, err := h.svc.ListAppointmentsByPatient(r.Context(), caller)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listOf(h.appointmentResponses(appts)))
}

// Helpers

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, v, time.UTC)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	return t, nil
}

func (h *schedulingHandler) doctorResponse(d *scheduling.Doctor) DoctorResponse {
	resp := DoctorResponse{
		ID:          h.ids.Encode(d.ID),
		UserID:      h.ids.Encode(d.UserID),
		Specialties: make([]string, 0, len(d.Specialties)),
	}
	if d.Rating.Valid {
		rating := d.Rating.Decimal.StringFixed(2)
		resp.Rating = &rating
	}
	for _, s := range d.Specialties {
		resp.Specialties = append(resp.Specialties, h.ids.Encode(s))
	}
	return resp
}

func (h *schedulingHandler) timeslotResponses(slots []scheduling.Timeslot) []TimeslotResponse {
	out := make([]TimeslotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, TimeslotResponse{
			ID:        h.ids.Encode(s.ID),
			Doctor:    h.ids.Encode(s.DoctorID),
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
			Free:      s.Free,
		})
	}
	return out
}

func (h *schedulingHandler) appointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        h.ids.Encode(a.ID),
		Timeslot:  h.ids.Encode(a.TimeslotID),
		Patient:   h.ids.Encode(a.PatientID),
		Doctor:    h.ids.Encode(a.DoctorUserID),
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
	}
}

func (h *schedulingHandler) appointmentResponses(appts []scheduling.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, h.appointmentResponse(&appts[i]))
	}
	return out
}
