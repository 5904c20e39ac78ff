package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus enumerates the ingestion job lifecycle.
type JobStatus string

const (
	JobPending         JobStatus = "pending"
	JobRunning         JobStatus = "running"
	JobSucceeded       JobStatus = "succeeded"
	JobPartiallyFailed JobStatus = "partially_failed"
	JobFailed          JobStatus = "failed"
)

// Terminal reports whether the status is a finished state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSucceeded, JobPartiallyFailed, JobFailed:
		return true
	}
	return false
}

// ErrorKind classifies a recorded ingestion failure.
type ErrorKind string

const (
	ErrKindTimeout        ErrorKind = "timeout"
	ErrKindConnection     ErrorKind = "connection"
	ErrKindHTTP           ErrorKind = "http_error"
	ErrKindNoStructure    ErrorKind = "no_matching_structure"
	ErrKindEmptyContent   ErrorKind = "empty_content"
	ErrKindListing        ErrorKind = "listing_failure"
	ErrKindNotImplemented ErrorKind = "not_implemented"
	ErrKindCancelled      ErrorKind = "cancelled"
	ErrKindStorage        ErrorKind = "storage"
)

// ScopeItem is one (source, category) pair processed within a job.
type ScopeItem struct {
	Source   Source
	Category string
}

func (s ScopeItem) String() string {
	return fmt.Sprintf("%s/%s", s.Source, s.Category)
}

// Counters accumulates per-candidate outcomes. Every attempted candidate
// lands in exactly one of the other three buckets.
type Counters struct {
	Attempted        int `json:"attempted"`
	Succeeded        int `json:"succeeded"`
	SkippedDuplicate int `json:"skipped_duplicate"`
	Failed           int `json:"failed"`
}

// Add folds a delta into the receiver.
func (c *Counters) Add(d Counters) {
	c.Attempted += d.Attempted
	c.Succeeded += d.Succeeded
	c.SkippedDuplicate += d.SkippedDuplicate
	c.Failed += d.Failed
}

// JobError is one recorded failure inside a job.
type JobError struct {
	Scope   ScopeItem
	Kind    ErrorKind
	Message string
	At      time.Time
}

// IngestionJob tracks one invocation of the job runner. Once the status
// is terminal the record is never mutated again.
type IngestionJob struct {
	ID         uuid.UUID
	Scope      []ScopeItem
	Status     JobStatus
	StartedAt  *time.Time
	FinishedAt *time.Time
	Counters   Counters
	Errors     []JobError
	CreatedAt  time.Time
}

// FinalStatus derives the terminal status from accumulated counters:
// no failures means success (all-duplicate runs included), failures with
// zero progress means total failure, anything else is partial.
func FinalStatus(c Counters) JobStatus {
	switch {
	case c.Failed == 0:
		return JobSucceeded
	case c.Succeeded == 0 && c.SkippedDuplicate == 0:
		return JobFailed
	default:
		return JobPartiallyFailed
	}
}
