package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// Session field names. Every field of one attempt lives under its own key so
// a single change rewrites only what moved.
const (
	FieldAnswers          = "answers"
	FieldReviewMarked     = "reviewMarked"
	FieldVisitedQuestions = "visitedQuestions"
	FieldCurrentSubject   = "currentSubject"
	FieldCurrentQuestion  = "currentQuestion"
	FieldViolations       = "violations"
	FieldCommonViolations = "commonViolations"
	FieldStartedAt        = "session_start"

	// FieldEnded outlives the fields above once an attempt is over. It is
	// not part of SessionFields.
	FieldEnded = "ended"
)

// SessionFields lists every persisted field of an attempt.
var SessionFields = []string{
	FieldAnswers,
	FieldReviewMarked,
	FieldVisitedQuestions,
	FieldCurrentSubject,
	FieldCurrentQuestion,
	FieldViolations,
	FieldCommonViolations,
	FieldStartedAt,
}

// StudentSessionFieldKey returns the cache key of one persisted field of a student's attempt
func (r *CacheKeyStruct) StudentSessionFieldKey(examID string, studentID int, field string) string {
	return fmt.Sprintf("student:%d:exam:%s:%s", studentID, examID, field)
}

// ExamDefinitionKey returns the cache key for an exam's definition (with answer key)
func (r *CacheKeyStruct) ExamDefinitionKey(examID string) string {
	return fmt.Sprintf("exam:%s:definition", examID)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

var CacheKey = NewCacheKeyStruct()
