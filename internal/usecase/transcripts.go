package usecase

import (
	"strings"
	"sync"

	"steadymic/internal/domain"
	"steadymic/internal/ports"
)

// TranscriptLog accumulates recognized text across restarts of the recognition
// session and forwards every segment to an optional downstream sink.
type TranscriptLog struct {
	next ports.TranscriptSink

	mu         sync.Mutex
	finals     []string
	lastSpoken string
}

func NewTranscriptLog(next ports.TranscriptSink) *TranscriptLog {
	return &TranscriptLog{next: next}
}

func (l *TranscriptLog) PartialTranscript(text string) {
	l.Add(domain.TranscriptEvent{Kind: domain.TranscriptKindPartial, Text: text})
}

func (l *TranscriptLog) FinalTranscript(text string) {
	l.Add(domain.TranscriptEvent{Kind: domain.TranscriptKindFinal, Text: text, IsSpeechFinal: true})
}

// Add records one segment. Blank text is dropped before it reaches the downstream sink.
func (l *TranscriptLog) Add(event domain.TranscriptEvent) {
	text := strings.TrimSpace(event.Text)
	if text == "" {
		return
	}

	l.mu.Lock()
	l.lastSpoken = text
	if event.Kind == domain.TranscriptKindFinal {
		l.finals = append(l.finals, text)
	}
	l.mu.Unlock()

	if l.next == nil {
		return
	}
	if event.Kind == domain.TranscriptKindFinal {
		l.next.FinalTranscript(text)
		return
	}
	l.next.PartialTranscript(text)
}

// Text joins the final segments, falling back to the latest partial when it runs
// past them.
func (l *TranscriptLog) Text() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	joined := strings.TrimSpace(strings.Join(l.finals, " "))
	if joined == "" {
		return l.lastSpoken
	}
	if l.lastSpoken == "" || strings.HasSuffix(joined, l.lastSpoken) {
		return joined
	}
	if len(l.lastSpoken) > len(joined) {
		return strings.TrimSpace(joined + " " + l.lastSpoken)
	}
	return joined
}

// Reset forgets everything recorded so far.
func (l *TranscriptLog) Reset() {
	l.mu.Lock()
	l.finals = nil
	l.lastSpoken = ""
	l.mu.Unlock()
}
