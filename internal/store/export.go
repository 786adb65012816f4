package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/pavelanni/eduquest/internal/model"
)

// ExportResults builds export-ready results with per-question detail.
// Results whose exam has since been deleted are exported without questions.
func (s *Store) ExportResults(ctx context.Context) ([]model.StudentResult, error) {
	stored, err := s.ListResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	exams := make(map[string]*model.Exam)
	var results []model.StudentResult
	for _, sr := range stored {
		e, ok := exams[sr.Result.ExamID]
		if !ok {
			got, err := s.GetExam(ctx, sr.Result.ExamID)
			switch {
			case errors.Is(err, ErrNotFound):
			case err != nil:
				return nil, fmt.Errorf("get exam %s: %w", sr.Result.ExamID, err)
			default:
				e = &got
			}
			exams[sr.Result.ExamID] = e
		}

		user, err := s.GetUserByID(sr.UserID)
		if err != nil {
			return nil, fmt.Errorf("get user %d: %w", sr.UserID, err)
		}
		var studentID, displayName string
		if user != nil {
			studentID = user.StudentID
			displayName = user.DisplayName
		}

		var questions []model.QuestionResult
		if e != nil {
			for _, q := range e.Questions {
				qr := model.QuestionResult{
					QuestionID:    q.ID,
					Prompt:        q.Prompt,
					Points:        q.Points,
					CorrectOption: q.CorrectOptionIndex,
				}
				if idx, ok := sr.Result.Answers.Get(q.ID); ok {
					chosen := idx
					qr.ChosenOption = &chosen
					qr.Correct = idx == q.CorrectOptionIndex
				}
				questions = append(questions, qr)
			}
		}

		results = append(results, model.StudentResult{
			AttemptID:   sr.AttemptID,
			StudentID:   studentID,
			DisplayName: displayName,
			ExamID:      sr.Result.ExamID,
			ExamTitle:   sr.ExamTitle,
			Score:       sr.Result.Score,
			TotalPoints: sr.Result.TotalPoints,
			CompletedAt: sr.Result.CompletedAt,
			Questions:   questions,
			Feedback:    sr.Feedback,
		})
	}
	return results, nil
}
