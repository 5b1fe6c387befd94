package ports

import (
	"context"
	"io"

	"steadymic/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// Recognizer is one instance of the continuous recognition capability.
//
// Start and Stop may be called repeatedly on the same instance. A Start that
// returns an error emits no events for that attempt; every other outcome is
// reported in order on Events. Events is closed by Close.
type Recognizer interface {
	Start(ctx context.Context) error
	Stop() error
	Events() <-chan domain.RecognitionEvent
	Close() error
}

// RecognizerFactory creates recognizer instances.
type RecognizerFactory interface {
	NewRecognizer(ctx context.Context) (Recognizer, error)
}

// PermissionRequester asks the platform for microphone access.
type PermissionRequester interface {
	RequestMicrophone(ctx context.Context) (bool, error)
}

// TranscriptSink receives recognized text.
type TranscriptSink interface {
	PartialTranscript(text string)
	FinalTranscript(text string)
}
