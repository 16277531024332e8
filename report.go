package postfeed

import (
	"fmt"
	"time"
)

// Stage names the pipeline step an error came from.
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageExtract Stage = "extract"
	StagePersist Stage = "persist"
	StageState   Stage = "state"
)

// StageError is a classified, non-fatal failure during a source run.
type StageError struct {
	Stage  Stage
	Target string
	Err    error
}

func (e *StageError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Target, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// RunReport summarizes one source run.
type RunReport struct {
	SourceID   string
	SourceName string
	StartedAt  time.Time
	FinishedAt time.Time

	Targets       int
	TargetsFailed int
	Candidates    int

	New              int
	DuplicateURL     int
	DuplicateContent int
	Written          []string

	// Skipped is set when the source was not run, with the reason.
	Skipped  string
	Errors   []*StageError
	Warnings []string
}

// Duration returns how long the run took.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed reports whether no target of the source could be fetched.
func (r *RunReport) Failed() bool {
	return r.Targets > 0 && r.TargetsFailed == r.Targets
}

// LastError returns the last recorded error, or nil.
func (r *RunReport) LastError() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[len(r.Errors)-1]
}

func (r *RunReport) addError(stage Stage, target string, err error) *StageError {
	se := &StageError{Stage: stage, Target: target, Err: err}
	r.Errors = append(r.Errors, se)
	return se
}

func (r *RunReport) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
