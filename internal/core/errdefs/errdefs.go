// Package errdefs holds the error taxonomy shared by the attendance pipeline.
// Every typed error unwraps to one of the sentinels so callers can test the
// category with errors.Is.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrMissingArtifact  = errors.New("missing artifact")
	ErrNoData           = errors.New("no usable training data")
	ErrDevice           = errors.New("capture device error")
	ErrUnreadableSample = errors.New("unreadable sample")
)

// ValidationError reports a rejected enrollment field.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// MissingArtifactError reports a required file (model, identity store,
// cascade) that does not exist.
type MissingArtifactError struct {
	Artifact string
	Path     string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("%s not found at %s", e.Artifact, e.Path)
}

func (e *MissingArtifactError) Unwrap() error { return ErrMissingArtifact }

// NoDataError reports a training attempt without a single usable sample.
type NoDataError struct {
	Dir     string
	Skipped int
}

func (e *NoDataError) Error() string {
	if e.Skipped > 0 {
		return fmt.Sprintf("no usable training samples in %s (%d unreadable)", e.Dir, e.Skipped)
	}
	return fmt.Sprintf("no usable training samples in %s", e.Dir)
}

func (e *NoDataError) Unwrap() error { return ErrNoData }

// DeviceError reports a camera that cannot be opened or read.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("capture device: %s failed", e.Op)
	}
	return fmt.Sprintf("capture device: %s failed: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDevice}
	}
	return []error{ErrDevice, e.Err}
}

// UnreadableSampleError reports a single training file that was skipped.
type UnreadableSampleError struct {
	Path string
	Err  error
}

func (e *UnreadableSampleError) Error() string {
	return fmt.Sprintf("unreadable sample %s: %v", e.Path, e.Err)
}

func (e *UnreadableSampleError) Unwrap() []error {
	return []error{ErrUnreadableSample, e.Err}
}
