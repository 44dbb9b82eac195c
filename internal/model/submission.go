package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmitReason records how an attempt ended.
type SubmitReason string

const (
	SubmitManual   SubmitReason = "manual"
	SubmitTimeUp   SubmitReason = "time_up"
	SubmitExpelled SubmitReason = "expelled"
)

// SubmissionResult is computed once per attempt and delivered once.
type SubmissionResult struct {
	ExamID    uuid.UUID    `json:"exam_id"`
	StudentID int          `json:"student_id"`
	Title     string       `json:"title"`
	Reason    SubmitReason `json:"reason"`
	IsBanned  bool         `json:"is_banned"`
	BanReason string       `json:"ban_reason,omitempty"`

	Answers        []QuestionOutcome `json:"answers"`
	SubjectResults []SubjectResult   `json:"subject_results"`
	QuestionStats  QuestionStats     `json:"question_stats"`
	ResultMetrics  ResultMetrics     `json:"result_metrics"`
	TimeTracking   TimeTracking      `json:"time_tracking"`

	Violations       ViolationCounters `json:"violations"`
	CommonViolations int               `json:"common_violations"`
}

// QuestionOutcome is the graded outcome of one question.
type QuestionOutcome struct {
	Ref           QuestionRef `json:"ref"`
	QuestionID    uuid.UUID   `json:"question_id"`
	Selected      *int        `json:"selected,omitempty"`
	CorrectOption int         `json:"correct_option"`
	IsCorrect     bool        `json:"is_correct"`
	MarkedReview  bool        `json:"marked_review"`
	MarksAwarded  float64     `json:"marks_awarded"`
}

// SubjectResult aggregates one subject.
type SubjectResult struct {
	Name      string  `json:"name"`
	Total     int     `json:"total"`
	Attempted int     `json:"attempted"`
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
	Skipped   int     `json:"skipped"`
	Marks     float64 `json:"marks"`
	MaxMarks  float64 `json:"max_marks"`
}

// QuestionStats counts question states across the exam.
type QuestionStats struct {
	Total           int `json:"total"`
	Attempted       int `json:"attempted"`
	Skipped         int `json:"skipped"`
	MarkedForReview int `json:"marked_for_review"`
	Visited         int `json:"visited"`
}

// ResultMetrics is the headline score.
type ResultMetrics struct {
	CorrectAnswers   int     `json:"correct_answers"`
	IncorrectAnswers int     `json:"incorrect_answers"`
	PositiveMarks    float64 `json:"positive_marks"`
	NegativeMarks    float64 `json:"negative_marks"`
	TotalMarks       float64 `json:"total_marks"`
	MaxMarks         float64 `json:"max_marks"`
	Percentage       float64 `json:"percentage"`
}

// TimeTracking records time usage in seconds.
type TimeTracking struct {
	TimeAllocated int       `json:"time_allocated"`
	TimeConsumed  int       `json:"time_consumed"`
	TimeRemaining int       `json:"time_remaining"`
	StartedAt     time.Time `json:"started_at"`
	SubmittedAt   time.Time `json:"submitted_at"`
}
