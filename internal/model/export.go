package model

import "time"

// ResultsExport is the top-level JSON structure for exam result export.
type ResultsExport struct {
	ExportedAt time.Time       `json:"exported_at"`
	Results    []StudentResult `json:"results"`
}

// StudentResult holds one student's graded attempt for export.
type StudentResult struct {
	AttemptID   string           `json:"attempt_id"`
	StudentID   string           `json:"student_id"`
	DisplayName string           `json:"display_name"`
	ExamID      string           `json:"exam_id"`
	ExamTitle   string           `json:"exam_title"`
	Score       float64          `json:"score"`
	TotalPoints float64          `json:"total_points"`
	CompletedAt time.Time        `json:"completed_at"`
	Questions   []QuestionResult `json:"questions"`
	Feedback    string           `json:"feedback"`
}

// QuestionResult holds per-question data for export.
type QuestionResult struct {
	QuestionID    int     `json:"question_id"`
	Prompt        string  `json:"question"`
	Points        float64 `json:"points"`
	ChosenOption  *int    `json:"chosen_option,omitempty"`
	CorrectOption int     `json:"correct_option"`
	Correct       bool    `json:"correct"`
}
