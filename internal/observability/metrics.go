package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	submissionsTotal     *prometheus.CounterVec
	forcedSubmissions    prometheus.Counter
	rankDurationSeconds  prometheus.Histogram
	excludedFactsTotal   prometheus.Counter
	identityFallbacks    prometheus.Counter
	feedPublishFailures  *prometheus.CounterVec
	leaderboardListeners prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the attempt engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_submissions_total",
			Help: "Quiz submissions by outcome.",
		}, []string{"outcome"})

		forcedSubmissions = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_forced_submissions_total",
			Help: "Submissions forced by attempt timer expiry.",
		})

		rankDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quiz_leaderboard_rank_seconds",
			Help:    "Time spent building and ranking a leaderboard.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		})

		excludedFactsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_leaderboard_excluded_facts_total",
			Help: "Attempt facts dropped from leaderboards because they were unreadable.",
		})

		identityFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_identity_fallbacks_total",
			Help: "Leaderboard rows rendered with a placeholder name.",
		})

		feedPublishFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_feed_publish_failures_total",
			Help: "Attempt feed publish failures by transport.",
		}, []string{"transport"})

		leaderboardListeners = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quiz_leaderboard_listeners",
			Help: "Open live leaderboard subscriptions.",
		})

		prometheus.MustRegister(
			submissionsTotal,
			forcedSubmissions,
			rankDurationSeconds,
			excludedFactsTotal,
			identityFallbacks,
			feedPublishFailures,
			leaderboardListeners,
		)
	})
}

// Submissions exposes the submission outcome counter.
func Submissions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// ForcedSubmissions exposes the timer expiry counter.
func ForcedSubmissions() prometheus.Counter {
	RegisterMetrics()
	return forcedSubmissions
}

// RankDuration exposes the ranking latency histogram.
func RankDuration() prometheus.Histogram {
	RegisterMetrics()
	return rankDurationSeconds
}

// ExcludedFacts exposes the excluded fact counter.
func ExcludedFacts() prometheus.Counter {
	RegisterMetrics()
	return excludedFactsTotal
}

// IdentityFallbacks exposes the placeholder name counter.
func IdentityFallbacks() prometheus.Counter {
	RegisterMetrics()
	return identityFallbacks
}

// FeedPublishFailures exposes the feed failure counter.
func FeedPublishFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return feedPublishFailures
}

// LeaderboardListeners exposes the live subscription gauge.
func LeaderboardListeners() prometheus.Gauge {
	RegisterMetrics()
	return leaderboardListeners
}
