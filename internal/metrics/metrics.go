// Package metrics exposes domain observers and HTTP instrumentation as
// Prometheus collectors on a per-process registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry implements scheduling.Observer and ratings.Observer.
type Registry struct {
	reg *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	appointments *prometheus.CounterVec
	conflicts    prometheus.Counter
	timeslots    prometheus.Counter
	ratings      prometheus.Counter

	surveys          *prometheus.CounterVec
	surveysProcessed prometheus.Counter
	aggregation      prometheus.Histogram
	failedGroups     prometheus.Counter
}

func New(service string) *Registry {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"service": service}

	r := &Registry{
		reg: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: labels,
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "Duration of HTTP requests in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}, []string{"method", "route"}),
		appointments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "appointments_total",
			Help:        "Appointments created or cancelled",
			ConstLabels: labels,
		}, []string{"action"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "booking_conflicts_total",
			Help:        "Bookings rejected because the timeslot was already taken",
			ConstLabels: labels,
		}),
		timeslots: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "timeslots_created_total",
			Help:        "Timeslots created by doctors",
			ConstLabels: labels,
		}),
		ratings: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "doctor_ratings_applied_total",
			Help:        "Aggregate ratings applied to doctors",
			ConstLabels: labels,
		}),
		surveys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "surveys_total",
			Help:        "Survey lifecycle transitions",
			ConstLabels: labels,
		}, []string{"state"}),
		surveysProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "surveys_processed_total",
			Help:        "Rated surveys folded into doctor aggregates",
			ConstLabels: labels,
		}),
		aggregation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "rating_aggregation_duration_seconds",
			Help:        "Duration of rating aggregation runs",
			Buckets:     []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			ConstLabels: labels,
		}),
		failedGroups: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rating_aggregation_failed_groups_total",
			Help:        "Doctor groups rolled back during aggregation",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.httpRequests,
		r.httpDuration,
		r.appointments,
		r.conflicts,
		r.timeslots,
		r.ratings,
		r.surveys,
		r.surveysProcessed,
		r.aggregation,
		r.failedGroups,
	)

	return r
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// RecordHTTPRequest records one served request. route is the matched route
// pattern, not the raw path.
func (r *Registry) RecordHTTPRequest(method, route string, status int, took time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

// Scheduling

func (r *Registry) AppointmentCreated()    { r.appointments.WithLabelValues("created").Inc() }
func (r *Registry) AppointmentCancelled()  { r.appointments.WithLabelValues("cancelled").Inc() }
func (r *Registry) BookingConflict()       { r.conflicts.Inc() }
func (r *Registry) TimeslotsCreated(n int) { r.timeslots.Add(float64(n)) }
func (r *Registry) RatingApplied()         { r.ratings.Inc() }

// Ratings

func (r *Registry) SurveyCreated()         { r.surveys.WithLabelValues("created").Inc() }
func (r *Registry) SurveySubmitted()       { r.surveys.WithLabelValues("submitted").Inc() }
func (r *Registry) SurveyDiscarded()       { r.surveys.WithLabelValues("discarded").Inc() }
func (r *Registry) SurveysProcessed(n int) { r.surveysProcessed.Add(float64(n)) }

func (r *Registry) AggregationFinished(took time.Duration, failedGroups int) {
	r.aggregation.Observe(took.Seconds())
	r.failedGroups.Add(float64(failedGroups))
}
