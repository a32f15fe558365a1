package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// API serves the REST endpoints.
type API struct {
	svc      Services
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewAPI(svc Services, logger zerolog.Logger) *API {
	return &API{
		svc:      svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With().Str("component", "http_api").Logger(),
	}
}

type submitRequest struct {
	Answers []int `json:"answers" validate:"required,min=1"`
}

type selectRequest struct {
	Question *int `json:"question" validate:"required,min=0"`
	Option   *int `json:"option" validate:"required,min=-1"`
}

func (a *API) Leaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := a.svc.Leaderboards.Leaderboard(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (a *API) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := a.svc.Leaderboards.Summary(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) Progress(w http.ResponseWriter, r *http.Request) {
	progress, err := a.svc.Leaderboards.Progress(r.Context(), chi.URLParam(r, "studentID"), chi.URLParam(r, "quizID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// Submit accepts a complete answer set in one request.
func (a *API) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !a.decode(w, r, &req) {
		return
	}
	result, err := a.svc.Submissions.Submit(r.Context(), chi.URLParam(r, "studentID"), chi.URLParam(r, "quizID"), req.Answers)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) StartAttempt(w http.ResponseWriter, r *http.Request) {
	session, err := a.svc.Attempts.Start(r.Context(), chi.URLParam(r, "studentID"), chi.URLParam(r, "quizID"), nil)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (a *API) SelectAnswer(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !a.decode(w, r, &req) {
		return
	}
	session, err := a.svc.Attempts.Select(r.Context(), chi.URLParam(r, "studentID"), chi.URLParam(r, "quizID"), *req.Question, *req.Option)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	result, err := a.svc.Attempts.Submit(r.Context(), chi.URLParam(r, "studentID"), chi.URLParam(r, "quizID"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) AbandonAttempt(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Attempts.Abandon(r.Context(), chi.URLParam(r, "studentID"), chi.URLParam(r, "quizID")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "invalid json body")
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		badRequest(w, err.Error())
		return false
	}
	return true
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	evt := a.logger.Debug()
	if status >= http.StatusInternalServerError {
		evt = a.logger.Error()
	}
	evt.Err(err).Str("path", r.URL.Path).Str("code", code).Msg("request failed")
	writeError(w, err)
}
