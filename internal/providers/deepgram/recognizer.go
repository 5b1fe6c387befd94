package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"steadymic/internal/domain"
	"steadymic/internal/ports"
)

var (
	ErrMissingAPIKey    = errors.New("DEEPGRAM_API_KEY is not configured")
	ErrRecognizerClosed = errors.New("recognizer is closed")
)

// Config controls the Deepgram websocket and the audio it is fed.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool

	SampleRate int
	Channels   int
	ChunkSize  int

	// SilenceTimeout ends a stream that produced no transcript for this long, reported
	// as no-speech. Zero disables it.
	SilenceTimeout time.Duration
}

// Factory creates Deepgram-backed recognizers fed by a microphone capture.
type Factory struct {
	cfg         Config
	capture     ports.AudioCapture
	audio       ports.AudioConfig
	transcripts ports.TranscriptSink
	dialer      *websocket.Dialer
	logger      *slog.Logger
}

func NewFactory(
	cfg Config,
	capture ports.AudioCapture,
	audio ports.AudioConfig,
	transcripts ports.TranscriptSink,
	logger *slog.Logger,
) *Factory {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if audio.SampleRate > 0 {
		cfg.SampleRate = audio.SampleRate
	}
	if audio.Channels > 0 {
		cfg.Channels = audio.Channels
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		cfg:         cfg,
		capture:     capture,
		audio:       audio,
		transcripts: transcripts,
		dialer:      websocket.DefaultDialer,
		logger:      logger,
	}
}

func (f *Factory) NewRecognizer(context.Context) (ports.Recognizer, error) {
	if strings.TrimSpace(f.cfg.APIKey) == "" {
		return nil, domain.NewCodedError(domain.CodeNotAllowed, ErrMissingAPIKey)
	}
	listenURL, err := buildListenURL(f.cfg)
	if err != nil {
		return nil, domain.NewCodedError(domain.CodeNetwork, err)
	}

	return &Recognizer{
		cfg:         f.cfg,
		listenURL:   listenURL,
		capture:     f.capture,
		audio:       f.audio,
		transcripts: f.transcripts,
		dialer:      f.dialer,
		logger:      f.logger,
		events:      make(chan domain.RecognitionEvent, 16),
		closing:     make(chan struct{}),
	}, nil
}

// Recognizer is one continuous recognition capability. Each Start opens a websocket
// stream and a microphone capture; the stream ends on Stop, silence, or failure and
// always reports ended.
type Recognizer struct {
	cfg         Config
	listenURL   string
	capture     ports.AudioCapture
	audio       ports.AudioConfig
	transcripts ports.TranscriptSink
	dialer      *websocket.Dialer
	logger      *slog.Logger

	events    chan domain.RecognitionEvent
	closing   chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	closed  bool
	current *stream
	streams sync.WaitGroup
}

func (r *Recognizer) Events() <-chan domain.RecognitionEvent {
	return r.events
}

// Start is a no-op while a stream is already running.
func (r *Recognizer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecognizerClosed
	}
	if prev := r.current; prev != nil {
		if !prev.halted() {
			return nil
		}
		// A stream that is winding down must report ended before the next one starts.
		r.mu.Unlock()
		<-prev.done
		r.mu.Lock()
		if r.closed {
			return ErrRecognizerClosed
		}
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, resp, err := r.dialer.DialContext(ctx, r.listenURL, headers)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return domain.NewCodedError(dialErrorCode(resp), fmt.Errorf("connect to Deepgram websocket: %w", err))
	}

	capture, err := r.capture.Start(ctx, r.audio)
	if err != nil {
		_ = conn.Close()
		return err
	}

	s := &stream{
		conn:    conn,
		capture: capture,
		halt:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.touch()
	r.current = s

	r.emit(domain.Started())

	r.streams.Add(1)
	go r.supervise(ctx, s)
	return nil
}

// Stop ends the running stream and waits for it to report ended.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	s := r.current
	r.current = nil
	r.mu.Unlock()

	if s == nil {
		return nil
	}
	s.fail("")
	<-s.done
	return nil
}

// Close stops the recognizer and closes Events.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.closeOnce.Do(func() { close(r.closing) })
	err := r.Stop()
	r.streams.Wait()
	close(r.events)
	return err
}

func (r *Recognizer) emit(event domain.RecognitionEvent) {
	select {
	case r.events <- event:
	case <-r.closing:
	}
}

// supervise owns the stream's goroutines and reports its outcome.
func (r *Recognizer) supervise(ctx context.Context, s *stream) {
	defer r.streams.Done()

	pumpDone := make(chan struct{})
	readDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		r.pump(s)
	}()
	go func() {
		defer close(readDone)
		r.read(s)
	}()

	var silence <-chan time.Time
	if r.cfg.SilenceTimeout > 0 {
		ticker := time.NewTicker(silenceCheckInterval(r.cfg.SilenceTimeout))
		defer ticker.Stop()
		silence = ticker.C
	}

wait:
	for {
		select {
		case <-s.halt:
			break wait
		case <-ctx.Done():
			s.fail("")
		case <-silence:
			if s.idleFor() >= r.cfg.SilenceTimeout {
				r.logger.Debug("no transcript within silence timeout", "timeout", r.cfg.SilenceTimeout)
				s.fail(domain.CodeNoSpeech)
			}
		}
	}

	if err := s.capture.Stop(); err != nil {
		r.logger.Debug("capture stop returned error", "error", err)
	}
	<-pumpDone
	_ = s.conn.Close()
	<-readDone

	r.mu.Lock()
	if r.current == s {
		r.current = nil
	}
	r.mu.Unlock()

	if code := s.code(); code != "" {
		r.emit(domain.Errored(code))
	}
	r.emit(domain.Ended())
	close(s.done)
}

// pump forwards microphone audio until the capture ends, then asks Deepgram to flush.
func (r *Recognizer) pump(s *stream) {
	buf := make([]byte, r.cfg.ChunkSize)
	for {
		n, err := s.capture.Read(buf)
		if n > 0 {
			if writeErr := s.write(websocket.BinaryMessage, buf[:n]); writeErr != nil {
				r.logger.Debug("audio send failed", "error", writeErr)
				s.fail(domain.CodeNetwork)
				return
			}
		}
		if err != nil {
			if !s.halted() {
				r.logger.Warn("microphone capture ended", "error", err)
				s.fail(domain.CodeAudioCapture)
			}
			_ = s.write(websocket.TextMessage, []byte(closeStreamFrame))
			return
		}
	}
}

func (r *Recognizer) read(s *stream) {
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			switch {
			case s.halted():
			case isExpectedClose(err):
				r.logger.Info("deepgram closed the stream")
				s.fail("")
			default:
				r.logger.Warn("deepgram stream read failed", "error", err)
				s.fail(domain.CodeNetwork)
			}
			return
		}

		var response deepgramResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if response.isError() {
			r.logger.Warn("deepgram reported an error", "message", response.errorMessage())
			s.fail(domain.CodeAborted)
			return
		}

		transcript := extractTranscript(response)
		if transcript == "" {
			continue
		}
		s.touch()
		r.deliver(transcript, response.IsFinal || response.SpeechFinal)
	}
}

func (r *Recognizer) deliver(text string, final bool) {
	if r.transcripts == nil {
		return
	}
	if final {
		r.transcripts.FinalTranscript(text)
		return
	}
	r.transcripts.PartialTranscript(text)
}

func silenceCheckInterval(timeout time.Duration) time.Duration {
	interval := timeout / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	if interval > 500*time.Millisecond {
		interval = 500 * time.Millisecond
	}
	return interval
}

// stream is one Start..ended cycle.
type stream struct {
	conn    *websocket.Conn
	capture ports.AudioSession

	writeMu sync.Mutex

	haltOnce sync.Once
	halt     chan struct{}
	done     chan struct{}
	failCode string

	lastActivity atomic.Int64
}

// fail halts the stream. The first caller decides the reported code; empty means a
// clean end.
func (s *stream) fail(code string) {
	s.haltOnce.Do(func() {
		s.failCode = code
		close(s.halt)
	})
}

func (s *stream) code() string {
	<-s.halt
	return s.failCode
}

func (s *stream) halted() bool {
	select {
	case <-s.halt:
		return true
	default:
		return false
	}
}

func (s *stream) write(messageType int, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(messageType, payload)
}

func (s *stream) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *stream) idleFor() time.Duration {
	return time.Since(time.Unix(0, s.lastActivity.Load()))
}
