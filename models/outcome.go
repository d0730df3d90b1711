// models/outcome.go
package models

import (
	"errors"
	"fmt"
	"time"
)

// Stage names one step of the download → clean → load pipeline.
type Stage string

const (
	StageDownload Stage = "download"
	StageClean    Stage = "clean"
	StageLoad     Stage = "load"
)

// Outcome records the result of one pipeline unit (one file at one stage).
// The pipeline favors maximum forward progress with a full failure report
// over failing fast, so errors are collected here instead of propagated.
type Outcome struct {
	Table   Table
	Stage   Stage
	Name    string
	Skipped bool // already done (idempotent no-op), or abandoned slot
	Err     error
	Records int
}

func (o Outcome) Success() bool {
	return o.Err == nil && !o.Skipped
}

// NotYetPublished reports whether the unit failed only because the publisher
// has not released the file yet.
func (o Outcome) NotYetPublished() bool {
	return errors.Is(o.Err, ErrNotYetPublished)
}

func (o Outcome) String() string {
	switch {
	case o.Err != nil:
		return fmt.Sprintf("[%s/%s] %s: FAILED: %v", o.Table, o.Stage, o.Name, o.Err)
	case o.Skipped:
		return fmt.Sprintf("[%s/%s] %s: skipped", o.Table, o.Stage, o.Name)
	default:
		return fmt.Sprintf("[%s/%s] %s: ok (%d records)", o.Table, o.Stage, o.Name, o.Records)
	}
}

// Summary is the per-unit outcome report returned by the batch and realtime
// entry points.
type Summary struct {
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome
}

func (s *Summary) Add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
}

func (s *Summary) Counts() (succeeded, skipped, failed int) {
	for _, o := range s.Outcomes {
		switch {
		case o.Err != nil:
			failed++
		case o.Skipped:
			skipped++
		default:
			succeeded++
		}
	}
	return
}

func (s *Summary) String() string {
	succeeded, skipped, failed := s.Counts()
	return fmt.Sprintf("%d succeeded, %d skipped, %d failed in %s",
		succeeded, skipped, failed, s.Finished.Sub(s.Started).Round(time.Millisecond))
}

// PollWindow is the realtime scheduler's per-session state, mutated once per
// iteration and discarded at loop exit.
type PollWindow struct {
	RemainingIterations int
	Interval            time.Duration
	LastSuccess         time.Time
}
