package usecase

import (
	"context"
	"log/slog"
	"sync"

	"steadymic/internal/domain"
	"steadymic/internal/ports"
)

const sessionOpQueue = 32

// recognitionSession owns exactly one recognizer instance. Capability calls run on
// a serial worker so they are applied in issue order without blocking the monitor.
type recognitionSession struct {
	rec         ports.Recognizer
	permissions ports.PermissionRequester
	post        func(message) bool
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	ops    chan func()
	done   chan struct{}
}

func newRecognitionSession(
	parent context.Context,
	rec ports.Recognizer,
	permissions ports.PermissionRequester,
	post func(message) bool,
	logger *slog.Logger,
) *recognitionSession {
	ctx, cancel := context.WithCancel(parent)
	s := &recognitionSession{
		rec:         rec,
		permissions: permissions,
		post:        post,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		ops:         make(chan func(), sessionOpQueue),
		done:        make(chan struct{}),
	}

	go s.work()
	go s.relay()
	return s
}

// start requests microphone access when asked, then begins capture. Failures are
// reported as errored events, never returned.
func (s *recognitionSession) start(requestPermission bool) {
	s.enqueue(func() {
		if requestPermission && s.permissions != nil {
			granted, err := s.permissions.RequestMicrophone(s.ctx)
			if s.ctx.Err() != nil {
				return
			}
			if err != nil || !granted {
				s.logger.Warn("microphone permission not granted", "error", err)
				s.emit(domain.Errored(domain.CodeOf(err, domain.CodeNotAllowed)))
				return
			}
		}

		if err := s.rec.Start(s.ctx); err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Warn("recognizer start failed", "error", err)
			s.emit(domain.Errored(domain.CodeOf(err, domain.CodeAudioCapture)))
		}
	})
}

// stop requests termination. The ended event still arrives asynchronously.
func (s *recognitionSession) stop() {
	s.enqueue(func() {
		if err := s.rec.Stop(); err != nil {
			s.logger.Debug("recognizer stop returned error", "error", err)
		}
	})
}

func (s *recognitionSession) pause() {
	s.stop()
}

func (s *recognitionSession) resume(requestPermission bool) {
	s.start(requestPermission)
}

// teardown stops and releases the recognizer. In-flight permission requests are
// cancelled. Safe to call more than once.
func (s *recognitionSession) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	s.ops <- func() {
		_ = s.rec.Stop()
		if err := s.rec.Close(); err != nil {
			s.logger.Debug("recognizer close returned error", "error", err)
		}
	}
	close(s.ops)
}

func (s *recognitionSession) enqueue(op func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ops <- op
}

func (s *recognitionSession) emit(event domain.RecognitionEvent) {
	s.post(sessionEventMsg{session: s, event: event})
}

func (s *recognitionSession) work() {
	defer close(s.done)
	for op := range s.ops {
		op()
	}
}

func (s *recognitionSession) relay() {
	events := s.rec.Events()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if !s.post(sessionEventMsg{session: s, event: event}) {
				return
			}
		case <-s.done:
			return
		}
	}
}
