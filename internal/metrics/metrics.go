// Package metrics holds the Prometheus collectors shared by the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Game modes, used as the "mode" label.
const (
	ModeRandom = "random"
	ModeSeeded = "seeded"
	ModeDaily  = "daily"
	ModeSocket = "ws"
)

var (
	// GamesStarted counts new sessions by how their tiles are drawn
	GamesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridentify_games_started_total",
		Help: "Games started by mode",
	}, []string{"mode"})

	// GamesFinished counts games played to the end
	GamesFinished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridentify_games_finished_total",
		Help: "Games that reached game over",
	})

	// Moves counts submitted actions by result (accepted, rejected)
	Moves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridentify_moves_total",
		Help: "Submitted moves by result",
	}, []string{"result"})

	FinalScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gridentify_final_score",
		Help:    "Score at game over",
		Buckets: prometheus.ExponentialBuckets(16, 2, 10), // 16 to ~8k
	})

	SolverSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gridentify_solver_seconds",
		Help:    "Wall time of one solver decision",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridentify_rate_limited_total",
		Help: "Requests rejected by the per-IP limiter",
	})
)

// MoveAccepted and MoveRejected are the "result" label values of Moves.
const (
	MoveAccepted = "accepted"
	MoveRejected = "rejected"
)

// Finished records a completed game.
func Finished(score uint64) {
	GamesFinished.Inc()
	FinalScore.Observe(float64(score))
}
