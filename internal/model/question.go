package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// OptionCount is the fixed number of options of a multiple-choice question.
const OptionCount = 4

// Difficulty grades a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Subject is an ordered section of an exam.
type Subject struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// Question represents a single exam question.
// QuestionText and Options are pre-sanitised rich text from the authoring
// pipeline and are passed through untouched.
type Question struct {
	ID            uuid.UUID  `json:"id"`
	QuestionText  string     `json:"question_text"`
	Options       []string   `json:"options"`
	CorrectOption int        `json:"correct_option"`
	Marks         float64    `json:"marks"`
	NegativeMarks float64    `json:"negative_marks"`
	Difficulty    Difficulty `json:"difficulty"`
}

// QuestionForStudent is a question without the correct answer.
type QuestionForStudent struct {
	ID            uuid.UUID  `json:"id"`
	QuestionText  string     `json:"question_text"`
	Options       []string   `json:"options"`
	Marks         float64    `json:"marks"`
	NegativeMarks float64    `json:"negative_marks"`
	Difficulty    Difficulty `json:"difficulty"`
}

// QuestionRef addresses a question by (subject index, question index).
// On the wire it is always the string "s:q", whether it is a value
// (snapshot position, review and visited arrays) or a JSON object key
// (answers).
type QuestionRef struct {
	Subject  int
	Question int
}

func (r QuestionRef) String() string {
	return strconv.Itoa(r.Subject) + ":" + strconv.Itoa(r.Question)
}

// MarshalText implements encoding.TextMarshaler.
func (r QuestionRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *QuestionRef) UnmarshalText(b []byte) error {
	s, q, ok := strings.Cut(string(b), ":")
	if !ok {
		return fmt.Errorf("invalid question ref %q", b)
	}
	si, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid subject index %q: %w", s, err)
	}
	qi, err := strconv.Atoi(q)
	if err != nil {
		return fmt.Errorf("invalid question index %q: %w", q, err)
	}
	r.Subject, r.Question = si, qi
	return nil
}

// Less orders refs by subject, then question.
func (r QuestionRef) Less(o QuestionRef) bool {
	if r.Subject != o.Subject {
		return r.Subject < o.Subject
	}
	return r.Question < o.Question
}
