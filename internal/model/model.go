package model

import (
	"context"
	"sort"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
)

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	StudentID    string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// SessionStatus represents the status of an exam session.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusCancelled  SessionStatus = "cancelled"
)

// Question is a single multiple-choice question.
type Question struct {
	ID                 int      `json:"id" validate:"required,gt=0"`
	Prompt             string   `json:"question" validate:"required"`
	Options            []string `json:"options" validate:"required,min=1,dive,required"`
	CorrectOptionIndex int      `json:"correct_answer" validate:"gte=0"`
	Points             float64  `json:"points" validate:"gte=0"`
}

// Exam is a graded question set with a time limit.
type Exam struct {
	ID              string     `json:"id" validate:"required"`
	Title           string     `json:"title" validate:"required"`
	Description     string     `json:"description"`
	DurationSeconds int        `json:"duration_seconds" validate:"gt=0"`
	Category        string     `json:"category"`
	Questions       []Question `json:"questions" validate:"required,min=1,dive"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Clone returns a deep copy of the exam.
func (e Exam) Clone() Exam {
	c := e
	c.Questions = make([]Question, len(e.Questions))
	for i, q := range e.Questions {
		q.Options = append([]string(nil), q.Options...)
		c.Questions[i] = q
	}
	return c
}

// QuestionByID returns the question with the given id.
func (e Exam) QuestionByID(id int) (Question, bool) {
	for _, q := range e.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// TotalPoints sums the points of every question.
func (e Exam) TotalPoints() float64 {
	var total float64
	for _, q := range e.Questions {
		total += q.Points
	}
	return total
}

// Answers maps a question id to the chosen option index.
// A question without an entry is unanswered.
type Answers map[int]int

// Set records a choice, replacing any earlier choice for the question.
func (a Answers) Set(questionID, optionIndex int) {
	a[questionID] = optionIndex
}

// Get returns the chosen option for a question.
func (a Answers) Get(questionID int) (int, bool) {
	idx, ok := a[questionID]
	return idx, ok
}

// Len returns the number of answered questions.
func (a Answers) Len() int {
	return len(a)
}

// Clone returns an independent copy.
func (a Answers) Clone() Answers {
	c := make(Answers, len(a))
	for k, v := range a {
		c[k] = v
	}
	return c
}

// QuestionIDs returns the answered question ids in ascending order.
func (a Answers) QuestionIDs() []int {
	ids := make([]int, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ExamResult is the graded outcome of one completed session.
type ExamResult struct {
	ExamID      string    `json:"exam_id"`
	Score       float64   `json:"score"`
	TotalPoints float64   `json:"total_points"`
	CompletedAt time.Time `json:"completed_at"`
	Answers     Answers   `json:"answers"`
}

// Percent returns the score as a percentage of the total, or 0 for a pointless exam.
func (r ExamResult) Percent() float64 {
	if r.TotalPoints == 0 {
		return 0
	}
	return r.Score / r.TotalPoints * 100
}

// SessionSnapshot is a read-only view of a session for rendering.
type SessionSnapshot struct {
	AttemptID        string
	Exam             Exam
	CurrentIndex     int
	Answers          Answers
	RemainingSeconds int
	Status           SessionStatus
}

// CurrentQuestion returns the question under the pointer.
func (s SessionSnapshot) CurrentQuestion() Question {
	return s.Exam.Questions[s.CurrentIndex]
}

// IsLast reports whether the pointer is on the final question.
func (s SessionSnapshot) IsLast() bool {
	return s.CurrentIndex == len(s.Exam.Questions)-1
}

// StoredResult is a persisted exam result with its owner and feedback.
type StoredResult struct {
	ID          int64
	AttemptID   string
	UserID      int64
	ExamTitle   string
	Result      ExamResult
	Feedback    string
	FeedbackSet bool
}

// ExamConfig holds runtime parameters set via CLI flags.
type ExamConfig struct {
	BasePath      string // URL prefix for sub-path deployments (e.g. "/vi")
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
	Lang          string
}

// ExamImport is used for loading exams from JSON seed files.
type ExamImport struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	DurationMinutes int        `json:"duration_minutes"`
	DurationSeconds int        `json:"duration_seconds"`
	Category        string     `json:"category"`
	Questions       []Question `json:"questions"`
}

// Exam converts an import record, preferring an explicit duration in seconds.
func (ei ExamImport) Exam(createdAt time.Time) Exam {
	dur := ei.DurationSeconds
	if dur == 0 {
		dur = ei.DurationMinutes * 60
	}
	return Exam{
		ID:              ei.ID,
		Title:           ei.Title,
		Description:     ei.Description,
		DurationSeconds: dur,
		Category:        ei.Category,
		Questions:       ei.Questions,
		CreatedAt:       createdAt,
	}
}
