package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)

	RecordsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_records_written_total",
			Help: "Attendance records written by sheet replaces",
		},
	)

	UnknownStudents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_unknown_students_total",
			Help: "Attendance entries naming a student outside the class roster",
		},
	)
)
