package model

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates the states of an exam attempt.
type SessionStatus string

const (
	SessionStatusNotStarted           SessionStatus = "NOT_STARTED"
	SessionStatusAwaitingConfirmation SessionStatus = "AWAITING_CONFIRMATION"
	SessionStatusActive               SessionStatus = "ACTIVE"
	SessionStatusCompleted            SessionStatus = "COMPLETED"
	SessionStatusExpelled             SessionStatus = "EXPELLED"
)

// Terminal reports whether no further transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusExpelled
}

// SessionKey namespaces every persisted key of one attempt.
type SessionKey struct {
	ExamID    uuid.UUID
	StudentID int
}

// RefSet is a set of question refs. It encodes as a sorted JSON array.
type RefSet map[QuestionRef]struct{}

// Has reports membership.
func (s RefSet) Has(r QuestionRef) bool {
	_, ok := s[r]
	return ok
}

// Sorted returns the members in subject/question order.
func (s RefSet) Sorted() []QuestionRef {
	out := make([]QuestionRef, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Clone returns an independent copy.
func (s RefSet) Clone() RefSet {
	out := make(RefSet, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}

func (s RefSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *RefSet) UnmarshalJSON(b []byte) error {
	var refs []QuestionRef
	if err := json.Unmarshal(b, &refs); err != nil {
		return err
	}
	out := make(RefSet, len(refs))
	for _, r := range refs {
		out[r] = struct{}{}
	}
	*s = out
	return nil
}

// Answers maps a question to the selected option index.
// A missing key means the question was skipped.
type Answers map[QuestionRef]int

// Clone returns an independent copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// SessionState is everything persisted for one attempt. Time left is not
// part of it; it is always derived from the exam window.
type SessionState struct {
	Answers          Answers           `json:"answers"`
	ReviewMarked     RefSet            `json:"review_marked"`
	Visited          RefSet            `json:"visited_questions"`
	CurrentSubject   int               `json:"current_subject"`
	CurrentQuestion  int               `json:"current_question"`
	Violations       ViolationCounters `json:"violations"`
	CommonViolations int               `json:"common_violations"`
	StartedAt        time.Time         `json:"started_at"` // zero until first confirmed
}

// NewSessionState returns an empty state positioned on the first question.
func NewSessionState() *SessionState {
	return &SessionState{
		Answers:      make(Answers),
		ReviewMarked: make(RefSet),
		Visited:      make(RefSet),
	}
}

// Empty reports whether nothing was ever persisted for the attempt.
func (s *SessionState) Empty() bool {
	return len(s.Answers) == 0 && len(s.ReviewMarked) == 0 && len(s.Visited) == 0 &&
		s.CurrentSubject == 0 && s.CurrentQuestion == 0 &&
		s.Violations == (ViolationCounters{}) && s.CommonViolations == 0 && s.StartedAt.IsZero()
}

// Position returns the cursor.
func (s *SessionState) Position() QuestionRef {
	return QuestionRef{Subject: s.CurrentSubject, Question: s.CurrentQuestion}
}

// SessionPatch carries the subset of SessionState fields to persist.
// Nil fields are left untouched.
type SessionPatch struct {
	Answers          Answers
	ReviewMarked     RefSet
	Visited          RefSet
	CurrentSubject   *int
	CurrentQuestion  *int
	Violations       *ViolationCounters
	CommonViolations *int
	StartedAt        *time.Time
}

// FullPatch returns a patch that rewrites every field of s.
func FullPatch(s *SessionState) SessionPatch {
	cs, cq := s.CurrentSubject, s.CurrentQuestion
	v := s.Violations
	cv := s.CommonViolations
	started := s.StartedAt
	return SessionPatch{
		Answers:          s.Answers.Clone(),
		ReviewMarked:     s.ReviewMarked.Clone(),
		Visited:          s.Visited.Clone(),
		CurrentSubject:   &cs,
		CurrentQuestion:  &cq,
		Violations:       &v,
		CommonViolations: &cv,
		StartedAt:        &started,
	}
}

// Clone returns an independent copy.
func (s *SessionState) Clone() *SessionState {
	c := *s
	c.Answers = s.Answers.Clone()
	c.ReviewMarked = s.ReviewMarked.Clone()
	c.Visited = s.Visited.Clone()
	return &c
}

// Apply writes the non-nil fields of p into s.
func (s *SessionState) Apply(p SessionPatch) {
	if p.Answers != nil {
		s.Answers = p.Answers.Clone()
	}
	if p.ReviewMarked != nil {
		s.ReviewMarked = p.ReviewMarked.Clone()
	}
	if p.Visited != nil {
		s.Visited = p.Visited.Clone()
	}
	if p.CurrentSubject != nil {
		s.CurrentSubject = *p.CurrentSubject
	}
	if p.CurrentQuestion != nil {
		s.CurrentQuestion = *p.CurrentQuestion
	}
	if p.Violations != nil {
		s.Violations = *p.Violations
	}
	if p.CommonViolations != nil {
		s.CommonViolations = *p.CommonViolations
	}
	if p.StartedAt != nil {
		s.StartedAt = *p.StartedAt
	}
}

// ExamStateView is the rehydrated attempt returned to a reloading client.
type ExamStateView struct {
	ExamID          uuid.UUID     `json:"exam_id"`
	StudentID       int           `json:"student_id"`
	Status          SessionStatus `json:"status"`
	State           *SessionState `json:"state"`
	TimeLeftSeconds int           `json:"time_left_seconds"`
}
