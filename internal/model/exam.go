package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam is the exam definition a student sits. It is loaded from PostgreSQL
// and cached in Redis; the answer key travels with it and is stripped by
// Paper before anything reaches the client.
type Exam struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration_minutes"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Subjects        []Subject `json:"subjects"`
}

// Window returns the absolute open/close instants of the exam.
// An exam without an explicit end closes DurationMinutes after it opens.
func (e *Exam) Window() (time.Time, time.Time) {
	end := e.EndTime
	if end.IsZero() {
		end = e.StartTime.Add(time.Duration(e.DurationMinutes) * time.Minute)
	}
	return e.StartTime, end
}

// AllocatedSeconds is the nominal time budget of the exam.
func (e *Exam) AllocatedSeconds() int {
	return e.DurationMinutes * 60
}

// TotalQuestions counts questions across all subjects.
func (e *Exam) TotalQuestions() int {
	n := 0
	for _, s := range e.Subjects {
		n += len(s.Questions)
	}
	return n
}

// MaxMarks is the sum of marks of every question.
func (e *Exam) MaxMarks() float64 {
	var total float64
	for _, s := range e.Subjects {
		for _, q := range s.Questions {
			total += q.Marks
		}
	}
	return total
}

// Question returns the question at ref, if it exists.
func (e *Exam) Question(ref QuestionRef) (*Question, bool) {
	if ref.Subject < 0 || ref.Subject >= len(e.Subjects) {
		return nil, false
	}
	qs := e.Subjects[ref.Subject].Questions
	if ref.Question < 0 || ref.Question >= len(qs) {
		return nil, false
	}
	return &qs[ref.Question], true
}

// FlatIndex maps a (subject, question) pair onto the flattened index space.
func (e *Exam) FlatIndex(ref QuestionRef) (int, bool) {
	if _, ok := e.Question(ref); !ok {
		return 0, false
	}
	idx := ref.Question
	for i := 0; i < ref.Subject; i++ {
		idx += len(e.Subjects[i].Questions)
	}
	return idx, true
}

// Locate is the inverse of FlatIndex.
func (e *Exam) Locate(flat int) (QuestionRef, bool) {
	if flat < 0 {
		return QuestionRef{}, false
	}
	for si, s := range e.Subjects {
		if flat < len(s.Questions) {
			return QuestionRef{Subject: si, Question: flat}, true
		}
		flat -= len(s.Questions)
	}
	return QuestionRef{}, false
}

// Paper returns the exam as sent to students (no correct answers).
func (e *Exam) Paper() ExamPaper {
	paper := ExamPaper{
		ExamID:          e.ID,
		Title:           e.Title,
		DurationMinutes: e.DurationMinutes,
		StartTime:       e.StartTime,
		EndTime:         e.EndTime,
		Subjects:        make([]SubjectForStudent, 0, len(e.Subjects)),
	}
	for _, s := range e.Subjects {
		sub := SubjectForStudent{Name: s.Name, Questions: make([]QuestionForStudent, 0, len(s.Questions))}
		for _, q := range s.Questions {
			sub.Questions = append(sub.Questions, QuestionForStudent{
				ID:            q.ID,
				QuestionText:  q.QuestionText,
				Options:       q.Options,
				Marks:         q.Marks,
				NegativeMarks: q.NegativeMarks,
				Difficulty:    q.Difficulty,
			})
		}
		paper.Subjects = append(paper.Subjects, sub)
	}
	return paper
}

// ExamPaper is the Redis-cached payload sent to students.
type ExamPaper struct {
	ExamID          uuid.UUID           `json:"exam_id"`
	Title           string              `json:"title"`
	DurationMinutes int                 `json:"duration_minutes"`
	StartTime       time.Time           `json:"start_time"`
	EndTime         time.Time           `json:"end_time"`
	Subjects        []SubjectForStudent `json:"subjects"`
}

// SubjectForStudent is a subject section of an ExamPaper.
type SubjectForStudent struct {
	Name      string               `json:"name"`
	Questions []QuestionForStudent `json:"questions"`
}
