package model

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func examValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterStructValidation(questionStructLevel, Question{})
		validate.RegisterStructValidation(examStructLevel, Exam{})
	})
	return validate
}

func questionStructLevel(sl validator.StructLevel) {
	q := sl.Current().Interface().(Question)
	if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
		sl.ReportError(q.CorrectOptionIndex, "CorrectOptionIndex", "correct_answer", "option_index", "")
	}
}

func examStructLevel(sl validator.StructLevel) {
	e := sl.Current().Interface().(Exam)
	seen := make(map[int]bool, len(e.Questions))
	for _, q := range e.Questions {
		if seen[q.ID] {
			sl.ReportError(e.Questions, "Questions", "questions", "unique_ids", "")
			return
		}
		seen[q.ID] = true
	}
}

// ValidateExam checks an authored exam against the exam invariants.
func ValidateExam(e Exam) error {
	err := examValidator().Struct(e)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid exam: field %s failed %q", fe.Namespace(), fe.Tag())
	}
	return fmt.Errorf("invalid exam: %w", err)
}
