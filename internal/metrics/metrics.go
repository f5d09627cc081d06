package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "landpick_sessions_started_total",
		Help: "Total number of questionnaire sessions created.",
	})

	AnswersRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "landpick_answers_recorded_total",
		Help: "Total number of answers recorded across all sessions.",
	})

	TemplatesSelected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landpick_templates_selected_total",
		Help: "Total number of final template selections, labelled by template and priority.",
	}, []string{"template", "priority"})

	QuickSelects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landpick_quick_selects_total",
		Help: "Total number of keyword fast-path lookups, labelled by outcome.",
	}, []string{"outcome"})

	CompatibilityWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "landpick_compatibility_warnings_total",
		Help: "Total number of template/scenario incompatibility warnings emitted.",
	})

	LogicReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landpick_logic_reloads_total",
		Help: "Total number of selection-logic reloads, labelled by status.",
	}, []string{"status"})

	SelectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "landpick_selection_duration_ms",
		Help:    "End-to-end answer-to-result latency in milliseconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
	})
)
