// models/errors.go
package models

import (
	"errors"
	"fmt"
)

// ErrNotYetPublished marks the normal "404 before publication" case when a
// file is requested for a slot the publisher has not released yet. It is an
// expected absence, not a transport failure.
var ErrNotYetPublished = errors.New("file not yet published")

// FetchError is a retryable transport failure while downloading one file.
type FetchError struct {
	Name string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for %s: %v", e.Name, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// CleanError is a file-scoped schema or type mismatch found while
// normalizing one raw file. It names the offending column and never aborts
// sibling files in the same table pass.
type CleanError struct {
	Name   string
	Column string
	Err    error
}

func (e *CleanError) Error() string {
	return fmt.Sprintf("clean failed for %s: column %q: %v", e.Name, e.Column, e.Err)
}

func (e *CleanError) Unwrap() error { return e.Err }

// LoadError is a file-scoped, retryable store write failure.
type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load failed for %s: %v", e.Name, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SchedulerFatal is terminal for a realtime session: the store or local
// storage is unreachable and no further iterations will be attempted.
type SchedulerFatal struct {
	Reason string
	Err    error
}

func (e *SchedulerFatal) Error() string {
	return fmt.Sprintf("scheduler fatal (%s): %v", e.Reason, e.Err)
}

func (e *SchedulerFatal) Unwrap() error { return e.Err }
