package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pavelanni/eduquest/internal/attempt"
	"github.com/pavelanni/eduquest/internal/exam"
	"github.com/pavelanni/eduquest/internal/handler/views"
	appI18n "github.com/pavelanni/eduquest/internal/i18n"
	"github.com/pavelanni/eduquest/internal/model"
	"github.com/pavelanni/eduquest/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	attempts *attempt.Manager
	config   model.ExamConfig
}

// New creates a new Handler.
func New(s *store.Store, m *attempt.Manager, cfg model.ExamConfig) *Handler {
	return &Handler{store: s, attempts: m, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.csrfMiddleware)

	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/", h.handleIndex)
		r.Get("/results/{attemptID}", h.handleResultPage)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleStudent))
			r.Post("/exams/{examID}/start", h.handleStartExam)
			r.Get("/attempts/{attemptID}", h.handleExamPage)
			r.Post("/attempts/{attemptID}/answer", h.handleAnswer)
			r.Post("/attempts/{attemptID}/next", h.handleNext)
			r.Post("/attempts/{attemptID}/previous", h.handlePrevious)
			r.Post("/attempts/{attemptID}/goto", h.handleGoTo)
			r.Post("/attempts/{attemptID}/submit", h.handleSubmit)
			r.Post("/attempts/{attemptID}/cancel", h.handleCancel)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleTeacher))
			r.Get("/teacher", h.handleTeacherPage)
			r.Post("/teacher/exams", h.handleCreateExam)
			r.Post("/teacher/exams/{examID}/delete", h.handleDeleteExam)
		})
	})
}

// BasePathMiddleware exposes the configured URL prefix to the views.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	if user.Role == model.UserRoleTeacher {
		http.Redirect(w, r, h.path("/teacher"), http.StatusSeeOther)
		return
	}

	exams, err := h.store.ListExams(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	results, err := h.store.ListResultsForUser(r.Context(), user.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	active, _ := h.attempts.Active(user.ID)
	render(w, r, http.StatusOK, views.IndexPage(exams, active, results))
}

func (h *Handler) handleStartExam(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	attemptID, err := h.attempts.Start(r.Context(), user.ID, chi.URLParam(r, "examID"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "exam not found", http.StatusNotFound)
		return
	case errors.Is(err, exam.ErrInvalidExam):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, h.path("/attempts/"+attemptID), http.StatusSeeOther)
}

func (h *Handler) handleExamPage(w http.ResponseWriter, r *http.Request) {
	h.renderExam(w, r, http.StatusOK, "")
}

func (h *Handler) renderExam(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	user := model.UserFromContext(r.Context())
	attemptID := chi.URLParam(r, "attemptID")

	snap, err := h.attempts.Snapshot(r.Context(), user.ID, attemptID)
	if err != nil {
		h.attemptError(w, r, attemptID, err)
		return
	}
	if snap.Status != model.StatusInProgress {
		h.finished(w, r, attemptID)
		return
	}
	render(w, r, status, views.ExamPage(snap, errMsg))
}

// finished sends the student to the result of an attempt that no longer runs.
func (h *Handler) finished(w http.ResponseWriter, r *http.Request, attemptID string) {
	user := model.UserFromContext(r.Context())
	res, err := h.store.GetResult(r.Context(), attemptID)
	if err == nil && res.UserID == user.ID {
		http.Redirect(w, r, h.path("/results/"+attemptID), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func (h *Handler) attemptError(w http.ResponseWriter, r *http.Request, attemptID string, err error) {
	switch {
	case errors.Is(err, exam.ErrAlreadyCompleted):
		h.finished(w, r, attemptID)
	case errors.Is(err, attempt.ErrAttemptNotFound):
		user := model.UserFromContext(r.Context())
		if res, rerr := h.store.GetResult(r.Context(), attemptID); rerr == nil && res.UserID == user.ID {
			http.Redirect(w, r, h.path("/results/"+attemptID), http.StatusSeeOther)
			return
		}
		http.Error(w, "attempt not found", http.StatusNotFound)
	case errors.Is(err, exam.ErrInvalidOptionIndex), errors.Is(err, exam.ErrUnknownQuestion):
		h.renderExam(w, r, http.StatusBadRequest, appI18n.T(r.Context(), "InvalidOption"))
	default:
		slog.Error("attempt operation failed", "attempt_id", attemptID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) backToExam(w http.ResponseWriter, r *http.Request, attemptID string, err error) {
	if err != nil {
		h.attemptError(w, r, attemptID, err)
		return
	}
	http.Redirect(w, r, h.path("/attempts/"+attemptID), http.StatusSeeOther)
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	attemptID := chi.URLParam(r, "attemptID")

	questionID, err := strconv.Atoi(r.FormValue("question_id"))
	if err != nil {
		http.Error(w, "invalid question id", http.StatusBadRequest)
		return
	}
	option, err := strconv.Atoi(r.FormValue("option"))
	if err != nil {
		http.Error(w, "invalid option", http.StatusBadRequest)
		return
	}
	err = h.attempts.SelectAnswer(r.Context(), user.ID, attemptID, questionID, option)
	h.backToExam(w, r, attemptID, err)
}

func (h *Handler) handleNext(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	attemptID := chi.URLParam(r, "attemptID")
	h.backToExam(w, r, attemptID, h.attempts.Next(r.Context(), user.ID, attemptID))
}

func (h *Handler) handlePrevious(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	attemptID := chi.URLParam(r, "attemptID")
	h.backToExam(w, r, attemptID, h.attempts.Previous(r.Context(), user.ID, attemptID))
}

func (h *Handler) handleGoTo(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	attemptID := chi.URLParam(r, "attemptID")

	index, err := strconv.Atoi(r.FormValue("index"))
	if err != nil {
		http.Error(w, "invalid question index", http.StatusBadRequest)
		return
	}
	h.backToExam(w, r, attemptID, h.attempts.GoTo(r.Context(), user.ID, attemptID, index))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	attemptID := chi.URLParam(r, "attemptID")

	if _, err := h.attempts.Submit(r.Context(), user.ID, attemptID); err != nil {
		h.attemptError(w, r, attemptID, err)
		return
	}
	http.Redirect(w, r, h.path("/results/"+attemptID), http.StatusSeeOther)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	attemptID := chi.URLParam(r, "attemptID")

	if err := h.attempts.Cancel(r.Context(), user.ID, attemptID); err != nil {
		h.attemptError(w, r, attemptID, err)
		return
	}
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func (h *Handler) handleResultPage(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	res, err := h.store.GetResult(r.Context(), chi.URLParam(r, "attemptID"))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "result not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if res.UserID != user.ID && user.Role != model.UserRoleTeacher {
		http.Error(w, "result not found", http.StatusNotFound)
		return
	}

	owner := user.DisplayName
	if res.UserID != user.ID {
		if u, err := h.store.GetUserByID(res.UserID); err == nil && u != nil {
			owner = u.DisplayName
		}
	}
	render(w, r, http.StatusOK, views.ResultPage(owner, res))
}

func (h *Handler) handleTeacherPage(w http.ResponseWriter, r *http.Request) {
	h.renderTeacher(w, r, http.StatusOK, "")
}

func (h *Handler) renderTeacher(w http.ResponseWriter, r *http.Request, status int, formErr string) {
	exams, err := h.store.ListExams(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	results, err := h.store.ListResults(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	names := make(map[int64]string)
	for _, res := range results {
		if _, ok := names[res.UserID]; ok {
			continue
		}
		if u, err := h.store.GetUserByID(res.UserID); err == nil && u != nil {
			names[res.UserID] = fmt.Sprintf("%s (%s)", u.DisplayName, u.StudentID)
		}
	}
	render(w, r, status, views.TeacherPage(exams, results, names, formErr))
}

// examFromForm builds an exam from the authoring form. Questions without an
// id are numbered by position.
func examFromForm(r *http.Request) (model.Exam, error) {
	minutes, err := strconv.Atoi(strings.TrimSpace(r.FormValue("duration_minutes")))
	if err != nil {
		return model.Exam{}, fmt.Errorf("invalid duration: %w", err)
	}
	var questions []model.Question
	if err := json.Unmarshal([]byte(r.FormValue("questions")), &questions); err != nil {
		return model.Exam{}, fmt.Errorf("invalid questions JSON: %w", err)
	}
	for i := range questions {
		if questions[i].ID == 0 {
			questions[i].ID = i + 1
		}
	}
	imp := model.ExamImport{
		ID:              "exam-" + uuid.NewString(),
		Title:           strings.TrimSpace(r.FormValue("title")),
		Description:     strings.TrimSpace(r.FormValue("description")),
		Category:        strings.TrimSpace(r.FormValue("category")),
		DurationMinutes: minutes,
		Questions:       questions,
	}
	e := imp.Exam(time.Now())
	if err := model.ValidateExam(e); err != nil {
		return model.Exam{}, err
	}
	return e, nil
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	e, err := examFromForm(r)
	if err != nil {
		h.renderTeacher(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.SaveExam(r.Context(), e); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("exam created", "exam_id", e.ID, "questions", len(e.Questions),
		"teacher", model.UserFromContext(r.Context()).Username)
	http.Redirect(w, r, h.path("/teacher"), http.StatusSeeOther)
}

func (h *Handler) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	examID := chi.URLParam(r, "examID")
	if err := h.store.DeleteExam(r.Context(), examID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("exam deleted", "exam_id", examID)
	http.Redirect(w, r, h.path("/teacher"), http.StatusSeeOther)
}
