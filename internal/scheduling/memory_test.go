package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/hackgods/medifit/internal/events"
)

// memoryRepo is an in-memory Repository. Transactions are serialized and
// roll back by restoring a snapshot, which is enough to exercise the unit of
// work semantics the service relies on.
type memoryRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   memState

	failCreateAppointment error
	failUpdateRating      error
}

type memState struct {
	nextID       int64
	doctors      map[int64]Doctor
	timeslots    map[int64]Timeslot
	appointments map[int64]Appointment
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{st: memState{
		doctors:      map[int64]Doctor{},
		timeslots:    map[int64]Timeslot{},
		appointments: map[int64]Appointment{},
	}}
}

func (s memState) clone() memState {
	c := memState{
		nextID:       s.nextID,
		doctors:      make(map[int64]Doctor, len(s.doctors)),
		timeslots:    make(map[int64]Timeslot, len(s.timeslots)),
		appointments: make(map[int64]Appointment, len(s.appointments)),
	}
	for k, v := range s.doctors {
		c.doctors[k] = v
	}
	for k, v := range s.timeslots {
		c.timeslots[k] = v
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	return c
}

func (r *memoryRepo) id() int64 {
	r.st.nextID++
	return r.st.nextID
}

type memoryTx struct{ *memoryRepo }

func (t memoryTx) WithinTx(_ context.Context, fn func(tx Repository) error) error {
	return fn(t)
}

func (r *memoryRepo) WithinTx(_ context.Context, fn func(tx Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapshot := r.st.clone()
	r.mu.Unlock()

	if err := fn(memoryTx{r}); err != nil {
		r.mu.Lock()
		r.st = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memoryRepo) CreateDoctor(_ context.Context, userID int64, specialtyIDs []int64) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.st.doctors {
		if d.UserID == userID {
			return nil, ErrDoctorExists
		}
	}
	d := Doctor{ID: r.id(), UserID: userID, Specialties: specialtyIDs}
	r.st.doctors[d.ID] = d
	return &d, nil
}

func (r *memoryRepo) GetDoctorByID(_ context.Context, id int64) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.st.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *memoryRepo) GetDoctorByUserID(_ context.Context, userID int64) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.st.doctors {
		if d.UserID == userID {
			return &d, nil
		}
	}
	return nil, ErrDoctorNotFound
}

func (r *memoryRepo) ListDoctors(_ context.Context) ([]Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Doctor
	for _, d := range r.st.doctors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) UpdateDoctorRating(_ context.Context, userID int64, rating decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failUpdateRating != nil {
		return r.failUpdateRating
	}
	for id, d := range r.st.doctors {
		if d.UserID == userID {
			d.Rating = decimal.NullDecimal{Decimal: rating, Valid: true}
			r.st.doctors[id] = d
			return nil
		}
	}
	return ErrDoctorNotFound
}

func (r *memoryRepo) ListSpecialties(_ context.Context) ([]Specialty, error) {
	return []Specialty{{ID: 1, Name: "Cardiology"}}, nil
}

func (r *memoryRepo) CreateTimeslots(_ context.Context, doctorID int64, ranges []TimeRange) ([]Timeslot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.st.doctors[doctorID]
	var out []Timeslot
	for _, tr := range ranges {
		t := Timeslot{ID: r.id(), DoctorID: doctorID, DoctorUserID: d.UserID, StartTime: tr.Start, EndTime: tr.End, Free: true}
		r.st.timeslots[t.ID] = t
		out = append(out, t)
	}
	return out, nil
}

func (r *memoryRepo) GetTimeslotByID(_ context.Context, id int64) (*Timeslot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.st.timeslots[id]
	if !ok {
		return nil, ErrTimeslotNotFound
	}
	return &t, nil
}

func (r *memoryRepo) ClaimTimeslot(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.st.timeslots[id]
	if !ok || !t.Free {
		return ErrTimeslotTaken
	}
	t.Free = false
	r.st.timeslots[id] = t
	return nil
}

func (r *memoryRepo) ReleaseTimeslot(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.st.timeslots[id]; ok {
		t.Free = true
		r.st.timeslots[id] = t
	}
	return nil
}

func (r *memoryRepo) ListTimeslotsByDoctor(_ context.Context, doctorID int64) ([]Timeslot, error) {
	return r.filterTimeslots(func(t Timeslot) bool { return t.DoctorID == doctorID }), nil
}

func (r *memoryRepo) ListFreeTimeslots(_ context.Context, doctorIDs []int64, from, to time.Time) ([]Timeslot, error) {
	return r.filterTimeslots(func(t Timeslot) bool {
		if !t.Free || t.StartTime.Before(from) || t.EndTime.After(to) {
			return false
		}
		if len(doctorIDs) == 0 {
			return true
		}
		for _, id := range doctorIDs {
			if id == t.DoctorID {
				return true
			}
		}
		return false
	}), nil
}

func (r *memoryRepo) filterTimeslots(keep func(Timeslot) bool) []Timeslot {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Timeslot
	for _, t := range r.st.timeslots {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (r *memoryRepo) CreateAppointment(_ context.Context, patientID int64, slot *Timeslot) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failCreateAppointment != nil {
		return nil, r.failCreateAppointment
	}
	for _, a := range r.st.appointments {
		if a.TimeslotID == slot.ID {
			return nil, ErrTimeslotTaken
		}
	}
	a := Appointment{
		ID:           r.id(),
		PatientID:    patientID,
		TimeslotID:   slot.ID,
		DoctorUserID: slot.DoctorUserID,
		StartTime:    slot.StartTime,
		EndTime:      slot.EndTime,
	}
	r.st.appointments[a.ID] = a
	return &a, nil
}

func (r *memoryRepo) GetAppointmentByID(_ context.Context, id int64) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.st.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *memoryRepo) DeleteAppointment(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.st.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.st.appointments, id)
	return nil
}

func (r *memoryRepo) ListAppointments(_ context.Context, limit, offset int) ([]Appointment, error) {
	all := r.appointments(func(Appointment) bool { return true })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *memoryRepo) ListAppointmentsByPatient(_ context.Context, patientID int64) ([]Appointment, error) {
	return r.appointments(func(a Appointment) bool { return a.PatientID == patientID }), nil
}

func (r *memoryRepo) appointments(keep func(Appointment) bool) []Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Appointment
	for _, a := range r.st.appointments {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// mockPublisher is a testify mock of events.AppointmentPublisher.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishAppointment(ctx context.Context, ev events.AppointmentEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// countingObserver records observer callbacks.
type countingObserver struct {
	mu        sync.Mutex
	created   int
	cancelled int
	conflicts int
	timeslots int
	ratings   int
}

func (o *countingObserver) AppointmentCreated()    { o.mu.Lock(); o.created++; o.mu.Unlock() }
func (o *countingObserver) AppointmentCancelled()  { o.mu.Lock(); o.cancelled++; o.mu.Unlock() }
func (o *countingObserver) BookingConflict()       { o.mu.Lock(); o.conflicts++; o.mu.Unlock() }
func (o *countingObserver) TimeslotsCreated(n int) { o.mu.Lock(); o.timeslots += n; o.mu.Unlock() }
func (o *countingObserver) RatingApplied()         { o.mu.Lock(); o.ratings++; o.mu.Unlock() }
