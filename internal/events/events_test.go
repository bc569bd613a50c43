package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/medifit/internal/apperr"
	"github.com/hackgods/medifit/internal/events"
)

type recordingConsumer struct {
	appointments []events.AppointmentEvent
	ratings      []events.RatingEvent
	err          error
}

func (c *recordingConsumer) HandleAppointmentEvent(_ context.Context, ev events.AppointmentEvent) error {
	c.appointments = append(c.appointments, ev)
	return c.err
}

func (c *recordingConsumer) HandleRatingEvent(_ context.Context, ev events.RatingEvent) error {
	c.ratings = append(c.ratings, ev)
	return c.err
}

func TestAppointmentEventCodec(t *testing.T) {
	start := time.Date(2030, 3, 1, 9, 0, 0, 0, time.UTC)
	ev := events.AppointmentEvent{
		AppointmentID: 11,
		DoctorUserID:  7,
		PatientID:     3,
		StartTime:     start,
		EndTime:       start.Add(30 * time.Minute),
		Action:        events.ActionCreate,
	}

	data, err := events.EncodeAppointment(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"appointmentId": 11,
		"doctorUserId": 7,
		"patientId": 3,
		"startTime": "2030-03-01T09:00:00Z",
		"endTime": "2030-03-01T09:30:00Z",
		"action": "CREATE"
	}`, string(data))

	decoded, err := events.DecodeAppointment(data)
	require.NoError(t, err)
	assert.Equal(t, ev.AppointmentID, decoded.AppointmentID)
	assert.True(t, ev.StartTime.Equal(decoded.StartTime))
	assert.Equal(t, events.ActionCreate, decoded.Action)
}

func TestDecodeAppointmentIgnoresUnknownFields(t *testing.T) {
	ev, err := events.DecodeAppointment([]byte(`{
		"appointmentId": 5, "doctorUserId": 2, "patientId": 9,
		"startTime": "2030-03-01T09:00:00Z", "endTime": "2030-03-01T09:30:00Z",
		"action": "DELETE", "room": "B-12", "version": 3
	}`))
	require.NoError(t, err)
	assert.Equal(t, int64(5), ev.AppointmentID)
	assert.Equal(t, events.ActionDelete, ev.Action)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := events.DecodeAppointment([]byte(`{not json`))
	assert.ErrorIs(t, err, events.ErrMalformedEvent)

	_, err = events.DecodeAppointment([]byte(`{"action":"CREATE"}`))
	assert.ErrorIs(t, err, events.ErrMalformedEvent)

	_, err = events.DecodeRating([]byte(`{"rating": 4.5}`))
	assert.ErrorIs(t, err, events.ErrMalformedEvent)
}

func TestRatingEventCodec(t *testing.T) {
	data, err := events.EncodeRating(events.RatingEvent{DoctorID: 4, Rating: decimal.RequireFromString("4.50")})
	require.NoError(t, err)

	decoded, err := events.DecodeRating(data)
	require.NoError(t, err)
	assert.Equal(t, int64(4), decoded.DoctorID)
	assert.True(t, decoded.Rating.Equal(decimal.RequireFromString("4.5")))

	// producers that emit a bare JSON number are accepted as well
	decoded, err = events.DecodeRating([]byte(`{"doctorId": 4, "rating": 3.75}`))
	require.NoError(t, err)
	assert.True(t, decoded.Rating.Equal(decimal.RequireFromString("3.75")))
}

func TestHandlers(t *testing.T) {
	log := zap.NewNop()

	t.Run("appointment handler delivers decoded event", func(t *testing.T) {
		c := &recordingConsumer{}
		h := events.AppointmentHandler(c, log)

		err := h(context.Background(), asynq.NewTask(events.TypeAppointmentEvent,
			[]byte(`{"appointmentId":1,"doctorUserId":2,"patientId":3,"action":"CREATE"}`)))
		require.NoError(t, err)
		require.Len(t, c.appointments, 1)
		assert.Equal(t, int64(2), c.appointments[0].DoctorUserID)
	})

	t.Run("malformed payload is not retried", func(t *testing.T) {
		c := &recordingConsumer{}
		h := events.AppointmentHandler(c, log)

		err := h(context.Background(), asynq.NewTask(events.TypeAppointmentEvent, []byte(`garbage`)))
		require.Error(t, err)
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.Empty(t, c.appointments)
	})

	t.Run("consumer failure is returned for redelivery", func(t *testing.T) {
		boom := errors.New("db down")
		c := &recordingConsumer{err: boom}
		h := events.RatingHandler(c, log)

		err := h(context.Background(), asynq.NewTask(events.TypeRatingEvent, []byte(`{"doctorId":1,"rating":"4.00"}`)))
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, asynq.SkipRetry)
		assert.Len(t, c.ratings, 1)
	})

	t.Run("domain error is not retried", func(t *testing.T) {
		invalid := apperr.Validation("invalid_rating", "rating must be between 1 and 5")
		c := &recordingConsumer{err: invalid}
		h := events.AppointmentHandler(c, log)

		err := h(context.Background(), asynq.NewTask(events.TypeAppointmentEvent,
			[]byte(`{"appointmentId":1,"doctorUserId":2,"patientId":3,"action":"DELETE"}`)))
		assert.ErrorIs(t, err, invalid)
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})
}
