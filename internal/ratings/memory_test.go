package ratings

import (
	"context"
	"sort"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/hackgods/medifit/internal/events"
)

// memoryRepo is an in-memory Repository with snapshot rollback.
type memoryRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID  int64
	surveys map[int64]Survey
	ratings map[int64]Rating // by doctor

	failSaveRating map[int64]error // by doctor
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		surveys:        map[int64]Survey{},
		ratings:        map[int64]Rating{},
		failSaveRating: map[int64]error{},
	}
}

type memoryTx struct{ *memoryRepo }

func (t memoryTx) WithinTx(_ context.Context, fn func(tx Repository) error) error {
	return fn(t)
}

func (r *memoryRepo) WithinTx(_ context.Context, fn func(tx Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	surveys := make(map[int64]Survey, len(r.surveys))
	for k, v := range r.surveys {
		surveys[k] = v
	}
	ratings := make(map[int64]Rating, len(r.ratings))
	for k, v := range r.ratings {
		ratings[k] = v
	}
	r.mu.Unlock()

	if err := fn(memoryTx{r}); err != nil {
		r.mu.Lock()
		r.surveys, r.ratings = surveys, ratings
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memoryRepo) CreateSurvey(_ context.Context, s Survey) (*Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.surveys {
		if existing.AppointmentID == s.AppointmentID {
			return nil, ErrSurveyExists
		}
	}
	r.nextID++
	s.ID = r.nextID
	r.surveys[s.ID] = s
	return &s, nil
}

func (r *memoryRepo) find(match func(Survey) bool) (*Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.surveys {
		if match(s) {
			s := s
			return &s, nil
		}
	}
	return nil, ErrSurveyNotFound
}

func (r *memoryRepo) GetSurveyByAppointment(_ context.Context, appointmentID int64) (*Survey, error) {
	return r.find(func(s Survey) bool { return s.AppointmentID == appointmentID })
}

func (r *memoryRepo) GetSurveyByAppointmentAndPatient(_ context.Context, appointmentID, patientID int64) (*Survey, error) {
	return r.find(func(s Survey) bool { return s.AppointmentID == appointmentID && s.PatientID == patientID })
}

func (r *memoryRepo) SubmitRating(_ context.Context, surveyID int64, rating int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.surveys[surveyID]
	if !ok || s.Rating != nil {
		return ErrAlreadySubmitted
	}
	s.Rating = &rating
	r.surveys[surveyID] = s
	return nil
}

func (r *memoryRepo) DeletePendingSurvey(_ context.Context, appointmentID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.surveys {
		if s.AppointmentID == appointmentID && s.Pending() {
			delete(r.surveys, id)
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) list(keep func(Survey) bool) []Survey {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Survey
	for _, s := range r.surveys {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memoryRepo) ListSurveys(context.Context) ([]Survey, error) {
	return r.list(func(Survey) bool { return true }), nil
}

func (r *memoryRepo) ListUnprocessedRated(context.Context) ([]Survey, error) {
	return r.list(func(s Survey) bool { return !s.Processed && s.Rating != nil }), nil
}

func (r *memoryRepo) MarkProcessed(_ context.Context, ids []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		if s, ok := r.surveys[id]; !ok || s.Processed {
			return ErrBatchProcessed
		}
	}
	for _, id := range ids {
		s := r.surveys[id]
		s.Processed = true
		r.surveys[id] = s
	}
	return nil
}

func (r *memoryRepo) GetRatingByDoctor(_ context.Context, doctorID int64) (*Rating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.ratings[doctorID]
	if !ok {
		return nil, ErrRatingNotFound
	}
	return &rt, nil
}

func (r *memoryRepo) SaveRating(_ context.Context, rt Rating) (*Rating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.failSaveRating[rt.DoctorID]; err != nil {
		return nil, err
	}
	if rt.ID == 0 {
		r.nextID++
		rt.ID = r.nextID
	}
	r.ratings[rt.DoctorID] = rt
	return &rt, nil
}

// rate stores a submitted, unprocessed survey for doctorID.
func (r *memoryRepo) rate(doctorID int64, rating int) Survey {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	s := Survey{ID: r.nextID, AppointmentID: 1000 + r.nextID, DoctorID: doctorID, PatientID: 1, Rating: &rating}
	r.surveys[s.ID] = s
	return s
}

type mockRatingPublisher struct {
	mock.Mock
}

func (m *mockRatingPublisher) PublishRating(ctx context.Context, ev events.RatingEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}
