package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"quiz-ledger-service/internal/app"
	"quiz-ledger-service/internal/observability"
)

// Services bundles the use cases the HTTP surface exposes.
type Services struct {
	Submissions  *app.SubmissionService
	Attempts     *app.AttemptService
	Leaderboards *app.LeaderboardService
}

// NewRouter mounts the REST API, the websocket endpoints and the operational routes.
func NewRouter(svc Services, logger zerolog.Logger) http.Handler {
	observability.RegisterMetrics()

	api := NewAPI(svc, logger)
	ws := NewWSHandler(svc, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/quizzes/{quizID}", func(r chi.Router) {
		r.Get("/leaderboard", api.Leaderboard)
		r.Get("/summary", api.Summary)
		r.Route("/students/{studentID}", func(r chi.Router) {
			r.Get("/progress", api.Progress)
			r.Post("/submissions", api.Submit)
			r.Route("/attempt", func(r chi.Router) {
				r.Post("/", api.StartAttempt)
				r.Delete("/", api.AbandonAttempt)
				r.Put("/answers", api.SelectAnswer)
				r.Post("/submit", api.SubmitAttempt)
			})
		})
	})

	r.Get("/ws/attempt", ws.ServeAttempt)
	r.Get("/ws/leaderboard", ws.ServeLeaderboard)
	return r
}
