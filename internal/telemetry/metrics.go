package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quizforge"

var (
	GenerationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generation_total",
		Help:      "Quiz generation requests by outcome.",
	}, []string{"outcome"})

	GenerationRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generation_repairs_total",
		Help:      "Repair re-prompts issued by failure class.",
	}, []string{"class"})

	ModelCallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "model_call_duration_seconds",
		Help:      "Duration of language model calls.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
	})

	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "Quiz sessions materialized.",
	})

	SessionsGraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_graded_total",
		Help:      "Quiz sessions graded by letter grade.",
	}, []string{"grade"})

	MalformedAnswers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "malformed_answers_total",
		Help:      "Submitted answers that could not be interpreted, by question type.",
	}, []string{"type"})

	ScorePercentage = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_score_percentage",
		Help:      "Distribution of graded session percentages.",
		Buckets:   prometheus.LinearBuckets(10, 10, 10),
	})
)
