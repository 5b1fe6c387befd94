package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of recognition failure kinds.
type ErrorKind string

const (
	ErrorKindNoSpeech     ErrorKind = "no_speech"
	ErrorKindAborted      ErrorKind = "aborted"
	ErrorKindNetwork      ErrorKind = "network"
	ErrorKindAudioCapture ErrorKind = "audio_capture"
	ErrorKindNotAllowed   ErrorKind = "not_allowed"
	ErrorKindUnknown      ErrorKind = "unknown"
)

// Raw codes reported by the recognition capability.
const (
	CodeNoSpeech     = "no-speech"
	CodeAborted      = "aborted"
	CodeNetwork      = "network"
	CodeAudioCapture = "audio-capture"
	CodeNotAllowed   = "not-allowed"
)

// RecoveryAction is the classifier's advice to the monitor.
type RecoveryAction string

const (
	ActionSuppressNextTermination RecoveryAction = "suppress_next_termination"
	ActionFatalStop               RecoveryAction = "fatal_stop"
)

// Classification is the outcome of classifying one raw error code.
type Classification struct {
	Kind    ErrorKind
	Code    string
	Action  RecoveryAction
	Message string
}

// Fatal reports whether the classification ends the listening session.
func (c Classification) Fatal() bool {
	return c.Action == ActionFatalStop
}

// CodedError carries a raw recognition error code across the capability boundary.
type CodedError struct {
	Code string
	Err  error
}

func NewCodedError(code string, err error) *CodedError {
	return &CodedError{Code: code, Err: err}
}

func (e *CodedError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *CodedError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the recognition code from err, falling back when none is attached.
func CodeOf(err error, fallback string) string {
	var coded *CodedError
	if errors.As(err, &coded) && coded.Code != "" {
		return coded.Code
	}
	return fallback
}
