package exam

import (
	"fmt"
	"time"

	"github.com/pavelanni/eduquest/internal/model"
)

// Session is one student's attempt at an exam. It is not safe for concurrent
// use; a Runner serializes every call onto a single goroutine.
type Session struct {
	exam      model.Exam
	current   int
	answers   model.Answers
	remaining int
	status    model.SessionStatus
	now       func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the clock used to stamp CompletedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Start begins a new session on a private copy of the exam.
func Start(e model.Exam, opts ...Option) (*Session, error) {
	if len(e.Questions) == 0 {
		return nil, fmt.Errorf("exam %q has no questions: %w", e.ID, ErrInvalidExam)
	}
	if e.DurationSeconds <= 0 {
		return nil, fmt.Errorf("exam %q has duration %ds: %w", e.ID, e.DurationSeconds, ErrInvalidExam)
	}
	s := &Session{
		exam:      e.Clone(),
		answers:   make(model.Answers),
		remaining: e.DurationSeconds,
		status:    model.StatusInProgress,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Exam returns the session's copy of the exam.
func (s *Session) Exam() model.Exam { return s.exam }

// CurrentIndex returns the question pointer.
func (s *Session) CurrentIndex() int { return s.current }

// Answers returns a copy of the recorded answers.
func (s *Session) Answers() model.Answers { return s.answers.Clone() }

// RemainingSeconds returns the time left on the clock.
func (s *Session) RemainingSeconds() int { return s.remaining }

// Status returns the lifecycle state.
func (s *Session) Status() model.SessionStatus { return s.status }

// Snapshot captures the session state for rendering.
func (s *Session) Snapshot() model.SessionSnapshot {
	return model.SessionSnapshot{
		Exam:             s.exam,
		CurrentIndex:     s.current,
		Answers:          s.answers.Clone(),
		RemainingSeconds: s.remaining,
		Status:           s.status,
	}
}

func (s *Session) checkActive() error {
	if s.status != model.StatusInProgress {
		return fmt.Errorf("session is %s: %w", s.status, ErrAlreadyCompleted)
	}
	return nil
}

// SelectAnswer records optionIndex as the answer to questionID, replacing any
// earlier choice.
func (s *Session) SelectAnswer(questionID, optionIndex int) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	q, ok := s.exam.QuestionByID(questionID)
	if !ok {
		return fmt.Errorf("question %d: %w", questionID, ErrUnknownQuestion)
	}
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return fmt.Errorf("question %d has %d options, got %d: %w",
			questionID, len(q.Options), optionIndex, ErrInvalidOptionIndex)
	}
	s.answers.Set(questionID, optionIndex)
	return nil
}

// GoTo moves the pointer to index, clamped to the question range.
func (s *Session) GoTo(index int) error {
	if err := s.checkActive(); err != nil {
		return err
	}
	last := len(s.exam.Questions) - 1
	switch {
	case index < 0:
		index = 0
	case index > last:
		index = last
	}
	s.current = index
	return nil
}

// Next moves to the following question; a no-op on the last one.
func (s *Session) Next() error {
	return s.GoTo(s.current + 1)
}

// Previous moves to the preceding question; a no-op on the first one.
func (s *Session) Previous() error {
	return s.GoTo(s.current - 1)
}

// Tick consumes one second. When the clock runs out the session is finalized
// as if submitted and the result is returned; otherwise the result is nil.
func (s *Session) Tick() (*model.ExamResult, error) {
	if err := s.checkActive(); err != nil {
		return nil, err
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining > 0 {
		return nil, nil
	}
	return s.finalize(), nil
}

// Submit finalizes the session and returns its result.
func (s *Session) Submit() (*model.ExamResult, error) {
	if err := s.checkActive(); err != nil {
		return nil, err
	}
	return s.finalize(), nil
}

// Cancel abandons the session without producing a result.
func (s *Session) Cancel() error {
	if err := s.checkActive(); err != nil {
		return err
	}
	s.status = model.StatusCancelled
	return nil
}

// finalize is the single completion path shared by Submit and Tick.
// Callers must have checked that the session is in progress.
func (s *Session) finalize() *model.ExamResult {
	s.status = model.StatusCompleted
	t := Score(s.exam, s.answers)
	return &model.ExamResult{
		ExamID:      s.exam.ID,
		Score:       t.Score,
		TotalPoints: t.TotalPoints,
		CompletedAt: s.now(),
		Answers:     s.answers.Clone(),
	}
}
