package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/eduquest/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exams (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		duration_seconds INTEGER NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		exam_id TEXT NOT NULL,
		id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		prompt TEXT NOT NULL,
		options TEXT NOT NULL,
		correct_option INTEGER NOT NULL,
		points REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (exam_id, id),
		FOREIGN KEY (exam_id) REFERENCES exams(id)
	);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		attempt_id TEXT NOT NULL UNIQUE,
		user_id INTEGER NOT NULL,
		exam_id TEXT NOT NULL,
		exam_title TEXT NOT NULL DEFAULT '',
		score REAL NOT NULL,
		total_points REAL NOT NULL,
		completed_at DATETIME NOT NULL,
		answers TEXT NOT NULL DEFAULT '{}',
		feedback TEXT NOT NULL DEFAULT '',
		feedback_set INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		student_id TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS exam_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveExam inserts an exam, replacing any stored exam with the same ID.
func (s *Store) SaveExam(ctx context.Context, e model.Exam) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO exams (id, title, description, duration_seconds, category, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = ?, description = ?, duration_seconds = ?, category = ?`,
		e.ID, e.Title, e.Description, e.DurationSeconds, e.Category, e.CreatedAt,
		e.Title, e.Description, e.DurationSeconds, e.Category,
	)
	if err != nil {
		return fmt.Errorf("insert exam %s: %w", e.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE exam_id = ?`, e.ID); err != nil {
		return err
	}
	for i, q := range e.Questions {
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO questions (exam_id, id, position, prompt, options, correct_option, points)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, q.ID, i, q.Prompt, string(opts), q.CorrectOptionIndex, q.Points,
		)
		if err != nil {
			return fmt.Errorf("insert question %d of exam %s: %w", q.ID, e.ID, err)
		}
	}
	return tx.Commit()
}

// DeleteExam removes an exam and its questions. Deleting a missing exam is not an error.
func (s *Store) DeleteExam(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE exam_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM exams WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// GetExam returns an exam with its questions in authored order.
func (s *Store) GetExam(ctx context.Context, id string) (model.Exam, error) {
	var e model.Exam
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, duration_seconds, category, created_at FROM exams WHERE id = ?`, id,
	).Scan(&e.ID, &e.Title, &e.Description, &e.DurationSeconds, &e.Category, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return e, fmt.Errorf("exam %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return e, err
	}
	e.Questions, err = s.questionsForExam(ctx, id)
	return e, err
}

// ListExams returns all exams, newest first.
func (s *Store) ListExams(ctx context.Context) ([]model.Exam, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, duration_seconds, category, created_at FROM exams ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.DurationSeconds, &e.Category, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		exams = append(exams, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range exams {
		if exams[i].Questions, err = s.questionsForExam(ctx, exams[i].ID); err != nil {
			return nil, err
		}
	}
	return exams, nil
}

func (s *Store) questionsForExam(ctx context.Context, examID string) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, prompt, options, correct_option, points FROM questions WHERE exam_id = ? ORDER BY position`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var opts string
		if err := rows.Scan(&q.ID, &q.Prompt, &opts, &q.CorrectOptionIndex, &q.Points); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			return nil, fmt.Errorf("decode options of question %d: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ExamCount returns the number of stored exams.
func (s *Store) ExamCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exams`).Scan(&count)
	return count, err
}
