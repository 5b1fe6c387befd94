package domain

import "time"

// RecognitionState models the listening channel lifecycle.
type RecognitionState string

const (
	StateIdle       RecognitionState = "idle"
	StateStarting   RecognitionState = "starting"
	StateListening  RecognitionState = "listening"
	StatePaused     RecognitionState = "paused"
	StateRecovering RecognitionState = "recovering"
	StateError      RecognitionState = "error"
	StateStopped    RecognitionState = "stopped"
)

// AllStates lists every state in lifecycle order.
var AllStates = []RecognitionState{
	StateIdle,
	StateStarting,
	StateListening,
	StatePaused,
	StateRecovering,
	StateError,
	StateStopped,
}

// Live reports whether the channel may still be considered healthy in this state.
func (s RecognitionState) Live() bool {
	switch s {
	case StateStarting, StateListening, StatePaused, StateRecovering:
		return true
	default:
		return false
	}
}

// StateReason provides a structured reason for state transitions.
type StateReason string

const (
	ReasonInitial            StateReason = "initial"
	ReasonStartRequested     StateReason = "start_requested"
	ReasonRecoveryRequested  StateReason = "recovery_requested"
	ReasonListening          StateReason = "listening"
	ReasonRestartCompleted   StateReason = "restart_completed"
	ReasonTransparentRestart StateReason = "transparent_restart"
	ReasonUnannouncedDrop    StateReason = "unannounced_drop"
	ReasonRestarting         StateReason = "restarting"
	ReasonPaused             StateReason = "paused"
	ReasonResumed            StateReason = "resumed"
	ReasonFatalError         StateReason = "fatal_error"
	ReasonRestartFailed      StateReason = "restart_failed"
	ReasonRestartTimeout     StateReason = "restart_timeout"
	ReasonDropLimit          StateReason = "drop_limit"
	ReasonStopped            StateReason = "stopped"
)

// ContinuityFlags tracks whether the logical session has been live without interruption.
type ContinuityFlags struct {
	StartedOnce  bool `json:"startedOnce"`
	NeverStopped bool `json:"neverStopped"`
}

// Stats holds session counters. Zero LastErrorTime and empty LastErrorKind mean no error yet.
type Stats struct {
	StartCount                   int       `json:"startCount"`
	MicrophonePermissionRequests int       `json:"microphonePermissionRequests"`
	ErrorCount                   int       `json:"errorCount"`
	LastErrorTime                time.Time `json:"lastErrorTime"`
	LastErrorKind                ErrorKind `json:"lastErrorKind,omitempty"`
	LastErrorCode                string    `json:"lastErrorCode,omitempty"`
	PauseCount                   int       `json:"pauseCount"`
	ResumeCount                  int       `json:"resumeCount"`
	TransparentRestarts          int       `json:"transparentRestarts"`
	AutoRestarts                 int       `json:"autoRestarts"`
	SessionStartedAt             time.Time `json:"sessionStartedAt"`
}

// Snapshot is the observable engine state handed to readers and subscribers.
type Snapshot struct {
	SessionID string           `json:"sessionId,omitempty"`
	State     RecognitionState `json:"state"`
	Flags     ContinuityFlags  `json:"flags"`
	Stats     Stats            `json:"stats"`
	Reason    StateReason      `json:"reason"`
	Message   string           `json:"message,omitempty"`
	ChangedAt time.Time        `json:"changedAt"`
}

// ErrorStats is the diagnostic read-only error view.
type ErrorStats struct {
	ErrorCount       int       `json:"errorCount"`
	LastErrorTime    time.Time `json:"lastErrorTime"`
	LastErrorKind    ErrorKind `json:"lastErrorKind,omitempty"`
	LastErrorCode    string    `json:"lastErrorCode,omitempty"`
	SuppressionArmed bool      `json:"suppressionArmed"`
}

// EventKind tags the three signals a recognizer emits.
type EventKind string

const (
	EventStarted EventKind = "started"
	EventErrored EventKind = "errored"
	EventEnded   EventKind = "ended"
)

// RecognitionEvent is one signal from the recognition capability. Code is set for errored events.
type RecognitionEvent struct {
	Kind EventKind `json:"kind"`
	Code string    `json:"code,omitempty"`
}

func Started() RecognitionEvent { return RecognitionEvent{Kind: EventStarted} }

func Errored(code string) RecognitionEvent {
	return RecognitionEvent{Kind: EventErrored, Code: code}
}

func Ended() RecognitionEvent { return RecognitionEvent{Kind: EventEnded} }

// TranscriptKind identifies whether recognized text is partial or final.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents incremental recognition output.
type TranscriptEvent struct {
	Kind          TranscriptKind `json:"kind"`
	Text          string         `json:"text"`
	IsSpeechFinal bool           `json:"isSpeechFinal"`
}
