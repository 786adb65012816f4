// Package exam implements the exam-taking state machine and its scorer.
package exam

import "github.com/pavelanni/eduquest/internal/model"

// Tally is the outcome of scoring an answer set.
type Tally struct {
	Score       float64
	TotalPoints float64
}

// Score awards each question's points when its recorded answer matches the
// correct option. Missing answers earn nothing. Score has no side effects.
func Score(e model.Exam, answers model.Answers) Tally {
	var t Tally
	for _, q := range e.Questions {
		t.TotalPoints += q.Points
		if idx, ok := answers.Get(q.ID); ok && idx == q.CorrectOptionIndex {
			t.Score += q.Points
		}
	}
	return t
}
