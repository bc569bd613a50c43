package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hackgods/medifit/internal/idcodec"
	"github.com/hackgods/medifit/internal/ratings"
)

type SurveyService interface {
	SubmitSurvey(ctx context.Context, req ratings.SubmitRequest) (*ratings.Survey, error)
	GetSurvey(ctx context.Context, appointmentID, patientID int64) (*ratings.Survey, error)
	ListSurveys(ctx context.Context) ([]ratings.Survey, error)
}

type ratingsHandler struct {
	svc SurveyService
	ids idcodec.Codec
	log *zap.Logger
}

func (h *ratingsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeFailure(w, r, h.log, err)
}

func (h *ratingsHandler) getSurvey(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	appointmentID, err := h.ids.Decode(chi.URLParam(r, "appointmentId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	survey, err := h.svc.GetSurvey(r.Context(), appointmentID, caller)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.surveyResponse(survey))
}

func (h *ratingsHandler) submitSurvey(w http.ResponseWriter, r *http.Request) {
	caller, err := callerID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req SubmitSurveyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	appointmentID, err := h.ids.Decode(req.AppointmentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	doctorID, err := h.ids.Decode(req.DoctorID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	survey, err := h.svc.SubmitSurvey(r.Context(), ratings.SubmitRequest{
		AppointmentID: appointmentID,
		DoctorID:      doctorID,
		PatientID:     caller,
		Rating:        req.Rating,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.surveyResponse(survey))
}

func (h *ratingsHandler) listSurveys(w http.ResponseWriter, r *http.Request) {
	surveys, err := h.svc.ListSurveys(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]SurveyResponse, 0, len(surveys))
	for i := range surveys {
		out = append(out, h.surveyResponse(&surveys[i]))
	}
	writeJSON(w, http.StatusOK, listOf(out))
}

func (h *ratingsHandler) surveyResponse(s *ratings.Survey) SurveyResponse {
	return SurveyResponse{
		ID:          h.ids.Encode(s.ID),
		Appointment: h.ids.Encode(s.AppointmentID),
		Doctor:      h.ids.Encode(s.DoctorID),
		Patient:     h.ids.Encode(s.PatientID),
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		Rating:      s.Rating,
		Processed:   s.Processed,
	}
}
