// Package attempt keeps the live exam sessions of all students, one runner each.
package attempt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/eduquest/internal/exam"
	"github.com/pavelanni/eduquest/internal/model"
)

// ErrAttemptNotFound is returned for an unknown or already finished attempt.
var ErrAttemptNotFound = errors.New("attempt not found")

// ExamSource provides exams to start.
type ExamSource interface {
	GetExam(ctx context.Context, id string) (model.Exam, error)
}

// ResultStore persists finished attempts.
type ResultStore interface {
	SaveResult(ctx context.Context, r model.StoredResult) error
	SetResultFeedback(ctx context.Context, attemptID, feedback string) error
}

// FeedbackGenerator writes advisory commentary for a result.
type FeedbackGenerator interface {
	GenerateFeedback(ctx context.Context, e model.Exam, res model.ExamResult) string
}

// Config configures a Manager.
type Config struct {
	Exams    ExamSource
	Results  ResultStore
	Feedback FeedbackGenerator // optional
	// FeedbackTimeout bounds one feedback request. Zero means 30s.
	FeedbackTimeout time.Duration
	// Ticks builds the tick source for a new attempt. Nil uses a real ticker.
	Ticks  func() <-chan time.Time
	Logger *slog.Logger
}

type entry struct {
	runner *exam.Runner
	userID int64
}

// Manager owns the runners of all active attempts. Attempts share no state;
// the mutex only guards the registry.
type Manager struct {
	cfg    Config
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	attempts map[string]entry
	byUser   map[int64]string

	wg sync.WaitGroup
}

// New creates a Manager. Close stops every active attempt.
func New(cfg Config) *Manager {
	if cfg.FeedbackTimeout <= 0 {
		cfg.FeedbackTimeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		log:      log.With("component", "attempts"),
		ctx:      ctx,
		cancel:   cancel,
		attempts: make(map[string]entry),
		byUser:   make(map[int64]string),
	}
}

// Start begins a new attempt of examID for userID and returns its id.
// A user with an attempt still running gets that attempt back instead.
func (m *Manager) Start(ctx context.Context, userID int64, examID string) (string, error) {
	m.mu.Lock()
	if id, ok := m.byUser[userID]; ok {
		m.mu.Unlock()
		return id, nil
	}
	m.mu.Unlock()

	e, err := m.cfg.Exams.GetExam(ctx, examID)
	if err != nil {
		return "", fmt.Errorf("load exam %s: %w", examID, err)
	}
	sess, err := exam.Start(e)
	if err != nil {
		return "", err
	}

	attemptID := uuid.NewString()
	log := m.log.With("attempt_id", attemptID, "exam_id", e.ID, "user_id", userID)

	var ticks <-chan time.Time
	if m.cfg.Ticks != nil {
		ticks = m.cfg.Ticks()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byUser[userID]; ok {
		return id, nil
	}
	runner := exam.NewRunner(m.ctx, sess, exam.RunnerConfig{
		Ticks:  ticks,
		Logger: log,
		OnComplete: func(res model.ExamResult) {
			m.finish(attemptID, userID, sess.Exam(), res, log)
		},
	})
	m.attempts[attemptID] = entry{runner: runner, userID: userID}
	m.byUser[userID] = attemptID

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		<-runner.Done()
		m.remove(attemptID)
	}()

	log.Info("attempt started", "duration_seconds", e.DurationSeconds, "questions", len(e.Questions))
	return attemptID, nil
}

func (m *Manager) remove(attemptID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.attempts[attemptID]; ok {
		delete(m.attempts, attemptID)
		if m.byUser[e.userID] == attemptID {
			delete(m.byUser, e.userID)
		}
	}
}

// finish runs on the runner goroutine exactly once per submitted attempt.
func (m *Manager) finish(attemptID string, userID int64, e model.Exam, res model.ExamResult, log *slog.Logger) {
	err := m.cfg.Results.SaveResult(context.Background(), model.StoredResult{
		AttemptID: attemptID,
		UserID:    userID,
		ExamTitle: e.Title,
		Result:    res,
	})
	if err != nil {
		log.Error("failed to save result", "error", err)
		return
	}
	log.Info("attempt completed", "score", res.Score, "total_points", res.TotalPoints)

	if m.cfg.Feedback == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.FeedbackTimeout)
		defer cancel()
		text := m.cfg.Feedback.GenerateFeedback(ctx, e, res)
		if err := m.cfg.Results.SetResultFeedback(context.Background(), attemptID, text); err != nil {
			log.Error("failed to save feedback", "error", err)
		}
	}()
}

func (m *Manager) runner(attemptID string, userID int64) (*exam.Runner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.attempts[attemptID]
	if !ok || e.userID != userID {
		return nil, fmt.Errorf("attempt %s: %w", attemptID, ErrAttemptNotFound)
	}
	return e.runner, nil
}

// Active returns the running attempt of a user, if any.
func (m *Manager) Active(userID int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byUser[userID]
	return id, ok
}

// Snapshot returns the current state of an attempt.
func (m *Manager) Snapshot(ctx context.Context, userID int64, attemptID string) (model.SessionSnapshot, error) {
	r, err := m.runner(attemptID, userID)
	if err != nil {
		return model.SessionSnapshot{}, err
	}
	snap, err := r.Snapshot(ctx)
	snap.AttemptID = attemptID
	return snap, err
}

// SelectAnswer records an answer in an attempt.
func (m *Manager) SelectAnswer(ctx context.Context, userID int64, attemptID string, questionID, optionIndex int) error {
	return m.do(ctx, userID, attemptID, func(s *exam.Session) error {
		return s.SelectAnswer(questionID, optionIndex)
	})
}

// GoTo moves the question pointer of an attempt.
func (m *Manager) GoTo(ctx context.Context, userID int64, attemptID string, index int) error {
	return m.do(ctx, userID, attemptID, func(s *exam.Session) error {
		return s.GoTo(index)
	})
}

// Next moves an attempt to its next question.
func (m *Manager) Next(ctx context.Context, userID int64, attemptID string) error {
	return m.do(ctx, userID, attemptID, (*exam.Session).Next)
}

// Previous moves an attempt to its previous question.
func (m *Manager) Previous(ctx context.Context, userID int64, attemptID string) error {
	return m.do(ctx, userID, attemptID, (*exam.Session).Previous)
}

// Submit finalizes an attempt and returns its result.
func (m *Manager) Submit(ctx context.Context, userID int64, attemptID string) (*model.ExamResult, error) {
	r, err := m.runner(attemptID, userID)
	if err != nil {
		return nil, err
	}
	return r.Submit(ctx)
}

// Cancel abandons an attempt without a result.
func (m *Manager) Cancel(ctx context.Context, userID int64, attemptID string) error {
	return m.do(ctx, userID, attemptID, (*exam.Session).Cancel)
}

func (m *Manager) do(ctx context.Context, userID int64, attemptID string, fn func(*exam.Session) error) error {
	r, err := m.runner(attemptID, userID)
	if err != nil {
		return err
	}
	return r.Do(ctx, fn)
}

// Close abandons all running attempts and waits for pending feedback.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}
