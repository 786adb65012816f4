package exam

import "errors"

var (
	// ErrInvalidExam is returned when an exam cannot be started.
	ErrInvalidExam = errors.New("invalid exam")
	// ErrInvalidOptionIndex is returned when a selected option does not exist.
	ErrInvalidOptionIndex = errors.New("invalid option index")
	// ErrUnknownQuestion is returned when an answer names a question not in the exam.
	ErrUnknownQuestion = errors.New("unknown question")
	// ErrAlreadyCompleted is returned for any operation on a finished session.
	ErrAlreadyCompleted = errors.New("session already completed")
)
