// Package metrics declares the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Bookings counts booking attempts by outcome (created or an error code).
	Bookings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorbook_bookings_total",
		Help: "Booking attempts by outcome.",
	}, []string{"outcome"})

	// CalendarSync counts remote event creation results (created, fallback).
	CalendarSync = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorbook_calendar_sync_total",
		Help: "Remote calendar event creation results.",
	}, []string{"result"})

	// TokenRefresh counts OAuth refresh results (success, invalid, unavailable).
	TokenRefresh = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorbook_token_refresh_total",
		Help: "OAuth access token refresh results.",
	}, []string{"result"})

	// Cancellations counts cancellation attempts by outcome.
	Cancellations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorbook_cancellations_total",
		Help: "Cancellation attempts by outcome.",
	}, []string{"outcome"})

	// CalendarCleanup counts compensating event deletions by result.
	CalendarCleanup = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tutorbook_calendar_cleanup_total",
		Help: "Compensating remote calendar event deletions.",
	}, []string{"result"})

	// CompletedSessions counts sessions moved to completed by the sweeper.
	CompletedSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tutorbook_sessions_completed_total",
		Help: "Sessions transitioned to completed after their end time.",
	})

	// HTTPRequestDuration observes request latency by method and status code.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tutorbook_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
)
