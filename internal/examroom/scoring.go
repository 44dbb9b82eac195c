package examroom

import (
	"math"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// ResultInput carries what ComputeResult needs beyond the paper and state.
type ResultInput struct {
	StudentID   int
	Reason      model.SubmitReason
	TimeLeft    int
	StartedAt   time.Time
	SubmittedAt time.Time
	BanReason   string
}

// ComputeResult grades an attempt.
//
// A correct answer earns the question's marks, a wrong one costs its
// negative marks, a skipped one scores nothing. The total never drops
// below zero.
func ComputeResult(exam *model.Exam, st *model.SessionState, in ResultInput) *model.SubmissionResult {
	res := &model.SubmissionResult{
		ExamID:           exam.ID,
		StudentID:        in.StudentID,
		Title:            exam.Title,
		Reason:           in.Reason,
		IsBanned:         in.Reason == model.SubmitExpelled,
		BanReason:        in.BanReason,
		Answers:          make([]model.QuestionOutcome, 0, exam.TotalQuestions()),
		SubjectResults:   make([]model.SubjectResult, 0, len(exam.Subjects)),
		Violations:       st.Violations,
		CommonViolations: st.CommonViolations,
	}

	m := &res.ResultMetrics
	for si, subj := range exam.Subjects {
		sr := model.SubjectResult{Name: subj.Name, Total: len(subj.Questions)}

		for qi, q := range subj.Questions {
			ref := model.QuestionRef{Subject: si, Question: qi}
			out := model.QuestionOutcome{
				Ref:           ref,
				QuestionID:    q.ID,
				CorrectOption: q.CorrectOption,
				MarkedReview:  st.ReviewMarked.Has(ref),
			}
			sr.MaxMarks += q.Marks

			if sel, ok := st.Answers[ref]; ok {
				out.Selected = &sel
				sr.Attempted++
				if sel == q.CorrectOption {
					out.IsCorrect = true
					out.MarksAwarded = q.Marks
					sr.Correct++
					m.CorrectAnswers++
					m.PositiveMarks += q.Marks
				} else {
					out.MarksAwarded = -q.NegativeMarks
					sr.Incorrect++
					m.IncorrectAnswers++
					m.NegativeMarks += q.NegativeMarks
				}
				sr.Marks += out.MarksAwarded
			} else {
				sr.Skipped++
			}
			res.Answers = append(res.Answers, out)
		}

		res.SubjectResults = append(res.SubjectResults, sr)
		m.MaxMarks += sr.MaxMarks

		res.QuestionStats.Total += sr.Total
		res.QuestionStats.Attempted += sr.Attempted
		res.QuestionStats.Skipped += sr.Skipped
	}

	res.QuestionStats.MarkedForReview = len(st.ReviewMarked)
	res.QuestionStats.Visited = len(st.Visited)

	m.TotalMarks = math.Max(0, m.PositiveMarks-m.NegativeMarks)
	if m.MaxMarks > 0 {
		m.Percentage = round2(m.TotalMarks / m.MaxMarks * 100)
	}

	allocated := exam.AllocatedSeconds()
	left := min(max(in.TimeLeft, 0), allocated)
	res.TimeTracking = model.TimeTracking{
		TimeAllocated: allocated,
		TimeConsumed:  allocated - left,
		TimeRemaining: left,
		StartedAt:     in.StartedAt,
		SubmittedAt:   in.SubmittedAt,
	}
	return res
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
