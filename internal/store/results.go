package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pavelanni/eduquest/internal/model"
)

const resultColumns = `id, attempt_id, user_id, exam_id, exam_title, score, total_points, completed_at, answers, feedback, feedback_set`

// SaveResult stores a finished attempt. Each attempt is stored at most once.
func (s *Store) SaveResult(ctx context.Context, r model.StoredResult) error {
	answers, err := json.Marshal(r.Result.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (attempt_id, user_id, exam_id, exam_title, score, total_points, completed_at, answers)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.AttemptID, r.UserID, r.Result.ExamID, r.ExamTitle, r.Result.Score, r.Result.TotalPoints,
		r.Result.CompletedAt, string(answers),
	)
	if err != nil {
		return fmt.Errorf("insert result for attempt %s: %w", r.AttemptID, err)
	}
	return nil
}

// SetResultFeedback attaches feedback text to a stored result.
func (s *Store) SetResultFeedback(ctx context.Context, attemptID, feedback string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE results SET feedback = ?, feedback_set = 1 WHERE attempt_id = ?`, feedback, attemptID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("result for attempt %s: %w", attemptID, ErrNotFound)
	}
	return nil
}

// GetResult returns the stored result of an attempt.
func (s *Store) GetResult(ctx context.Context, attemptID string) (model.StoredResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM results WHERE attempt_id = ?`, attemptID)
	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return r, fmt.Errorf("result for attempt %s: %w", attemptID, ErrNotFound)
	}
	return r, err
}

// ListResults returns all results, most recent first.
func (s *Store) ListResults(ctx context.Context) ([]model.StoredResult, error) {
	return s.queryResults(ctx, `SELECT `+resultColumns+` FROM results ORDER BY completed_at DESC, id DESC`)
}

// ListResultsForUser returns one user's results, most recent first.
func (s *Store) ListResultsForUser(ctx context.Context, userID int64) ([]model.StoredResult, error) {
	return s.queryResults(ctx,
		`SELECT `+resultColumns+` FROM results WHERE user_id = ? ORDER BY completed_at DESC, id DESC`, userID)
}

func (s *Store) queryResults(ctx context.Context, query string, args ...any) ([]model.StoredResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.StoredResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(sc scanner) (model.StoredResult, error) {
	var r model.StoredResult
	var answers string
	err := sc.Scan(&r.ID, &r.AttemptID, &r.UserID, &r.Result.ExamID, &r.ExamTitle, &r.Result.Score,
		&r.Result.TotalPoints, &r.Result.CompletedAt, &answers, &r.Feedback, &r.FeedbackSet)
	if err != nil {
		return r, err
	}
	r.Result.Answers = make(model.Answers)
	if err := json.Unmarshal([]byte(answers), &r.Result.Answers); err != nil {
		return r, fmt.Errorf("decode answers of attempt %s: %w", r.AttemptID, err)
	}
	return r, nil
}
