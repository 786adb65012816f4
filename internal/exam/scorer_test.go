package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pavelanni/eduquest/internal/model"
)

func twoQuestionExam() model.Exam {
	return model.Exam{
		ID:              "exam-1",
		Title:           "Basics",
		DurationSeconds: 60,
		Questions: []model.Question{
			{ID: 1, Prompt: "q1", Options: []string{"a", "b", "c"}, CorrectOptionIndex: 1, Points: 10},
			{ID: 2, Prompt: "q2", Options: []string{"a", "b", "c"}, CorrectOptionIndex: 0, Points: 5},
		},
	}
}

func TestScore(t *testing.T) {
	e := twoQuestionExam()

	tests := []struct {
		name    string
		answers model.Answers
		want    Tally
	}{
		{"empty", model.Answers{}, Tally{Score: 0, TotalPoints: 15}},
		{"nil", nil, Tally{Score: 0, TotalPoints: 15}},
		{"second wrong", model.Answers{1: 1, 2: 2}, Tally{Score: 10, TotalPoints: 15}},
		{"all correct", model.Answers{1: 1, 2: 0}, Tally{Score: 15, TotalPoints: 15}},
		{"only second", model.Answers{2: 0}, Tally{Score: 5, TotalPoints: 15}},
		{"foreign question ignored", model.Answers{99: 0}, Tally{Score: 0, TotalPoints: 15}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(e, tt.answers))
		})
	}
}

func TestScoreBoundedAndDeterministic(t *testing.T) {
	e := twoQuestionExam()
	e.Questions = append(e.Questions, model.Question{
		ID: 3, Prompt: "q3", Options: []string{"x"}, CorrectOptionIndex: 0, Points: 0,
	})

	for _, answers := range []model.Answers{
		{}, {1: 0}, {1: 1, 2: 0, 3: 0}, {3: 0}, {2: 1, 1: 1},
	} {
		first := Score(e, answers)
		second := Score(e, answers)
		assert.Equal(t, first, second)
		assert.LessOrEqual(t, first.Score, first.TotalPoints)
		assert.Equal(t, e.TotalPoints(), first.TotalPoints)
	}
}

func TestScoreDoesNotModifyAnswers(t *testing.T) {
	answers := model.Answers{1: 1}
	Score(twoQuestionExam(), answers)
	assert.Equal(t, model.Answers{1: 1}, answers)
}
