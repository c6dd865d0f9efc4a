package common

import "fmt"

// Stage names the part of the frame a failure happened in.
type Stage string

const (
	StageExtraction  Stage = "extraction"
	StageShadow      Stage = "shadow"
	StageEnvironment Stage = "environment"
	StagePass        Stage = "pass"
)

// Subject names what Index in a StageError counts.
type Subject string

const (
	SubjectEntity Subject = "entity"
	SubjectLight  Subject = "light"
	SubjectFace   Subject = "face"
	SubjectPass   Subject = "pass"
	SubjectNone   Subject = ""
)

// StageError wraps a failure with the stage and the entity, light, face or pass index it belongs to.
type StageError struct {
	Stage   Stage
	Subject Subject
	Index   int
	Err     error
}

// NewStageError builds a StageError.
//
// Parameters:
//   - stage: the stage that failed
//   - subject: what index counts (entity, light, ...), or SubjectNone
//   - index: the index of the failing subject
//   - err: the cause
//
// Returns:
//   - *StageError: the wrapped error
func NewStageError(stage Stage, subject Subject, index int, err error) *StageError {
	return &StageError{Stage: stage, Subject: subject, Index: index, Err: err}
}

func (e *StageError) Error() string {
	if e.Subject == SubjectNone {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %s %d: %v", e.Stage, e.Subject, e.Index, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
