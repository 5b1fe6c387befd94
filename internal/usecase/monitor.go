package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"steadymic/internal/domain"
	"steadymic/internal/ports"
)

var (
	ErrMonitorClosed  = errors.New("continuity monitor is closed")
	ErrAlreadyRunning = errors.New("continuity monitor is already running")
	ErrNoRecognizers  = errors.New("continuity monitor requires a recognizer factory")
)

// Config tunes the recovery policy.
type Config struct {
	SuppressionTTL      time.Duration
	RestartTimeout      time.Duration
	RestartBackoffBase  time.Duration
	RestartBackoffMax   time.Duration
	MaxConsecutiveDrops int
	// StableWindow is how long listening must hold before the next drop counts from one again.
	StableWindow time.Duration
	InboxSize    int
}

func (c *Config) normalize() {
	if c.SuppressionTTL <= 0 {
		c.SuppressionTTL = DefaultSuppressionTTL
	}
	if c.RestartTimeout <= 0 {
		c.RestartTimeout = 5 * time.Second
	}
	if c.RestartBackoffBase < 0 {
		c.RestartBackoffBase = 0
	}
	if c.RestartBackoffMax < c.RestartBackoffBase {
		c.RestartBackoffMax = c.RestartBackoffBase
	}
	if c.MaxConsecutiveDrops < 0 {
		c.MaxConsecutiveDrops = 0
	}
	if c.StableWindow <= 0 {
		c.StableWindow = 30 * time.Second
	}
	if c.InboxSize < 8 {
		c.InboxSize = 64
	}
}

// DefaultConfig returns the production recovery policy.
func DefaultConfig() Config {
	return Config{
		SuppressionTTL:      DefaultSuppressionTTL,
		RestartTimeout:      5 * time.Second,
		RestartBackoffBase:  500 * time.Millisecond,
		RestartBackoffMax:   3 * time.Second,
		MaxConsecutiveDrops: 10,
		StableWindow:        30 * time.Second,
		InboxSize:           64,
	}
}

// AfterFunc schedules f after d and returns a function that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

// Deps are the collaborators injected into a monitor. Only Recognizers is required.
type Deps struct {
	Recognizers ports.RecognizerFactory
	Permissions ports.PermissionRequester
	Classifier  ErrorClassifier
	Gate        *SuppressionGate
	Notifier    *ListenerNotifier
	Logger      *slog.Logger
	Now         func() time.Time
	AfterFunc   AfterFunc
}

// ContinuityMonitor owns the recognition session and drives the listening state machine.
// All state changes happen on the goroutine running Run.
type ContinuityMonitor struct {
	recognizers ports.RecognizerFactory
	permissions ports.PermissionRequester
	classifier  ErrorClassifier
	gate        *SuppressionGate
	notifier    *ListenerNotifier
	logger      *slog.Logger
	now         func() time.Time
	afterFunc   AfterFunc
	cfg         Config

	inbox     chan message
	closed    chan struct{}
	closeOnce sync.Once
	running   atomic.Bool

	// Owned by the Run goroutine.
	runCtx             context.Context
	state              domain.RecognitionState
	reason             domain.StateReason
	statusMessage      string
	changedAt          time.Time
	flags              domain.ContinuityFlags
	stats              statsCollector
	sessionID          string
	session            *recognitionSession
	timerToken         uint64
	stopTimer          func() bool
	autoRestartPending bool
	consecutiveDrops   int
	listeningSince     time.Time

	snapMu sync.RWMutex
	snap   domain.Snapshot
}

func NewContinuityMonitor(deps Deps, cfg Config) (*ContinuityMonitor, error) {
	if deps.Recognizers == nil {
		return nil, ErrNoRecognizers
	}
	cfg.normalize()

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Classifier == nil {
		deps.Classifier = StandardClassifier{}
	}
	if deps.Gate == nil {
		deps.Gate = NewSuppressionGate(cfg.SuppressionTTL, deps.Now)
	}
	if deps.Notifier == nil {
		deps.Notifier = NewListenerNotifier(deps.Logger)
	}
	if deps.AfterFunc == nil {
		deps.AfterFunc = func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		}
	}

	m := &ContinuityMonitor{
		recognizers: deps.Recognizers,
		permissions: deps.Permissions,
		classifier:  deps.Classifier,
		gate:        deps.Gate,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
		now:         deps.Now,
		afterFunc:   deps.AfterFunc,
		cfg:         cfg,
		inbox:       make(chan message, cfg.InboxSize),
		closed:      make(chan struct{}),
		state:       domain.StateIdle,
		reason:      domain.ReasonInitial,
	}
	m.changedAt = m.now()
	m.publish()
	return m, nil
}

// Run processes commands and recognizer events until ctx is cancelled. The active
// session is torn down on return.
func (m *ContinuityMonitor) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	m.runCtx = ctx
	defer m.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-m.inbox:
			m.handle(msg)
		}
	}
}

// Start requests listening. Fire-and-observe: the outcome arrives through Subscribe.
func (m *ContinuityMonitor) Start() error { return m.command(cmdStart) }

// Stop ends the logical session and supersedes any in-flight restart.
func (m *ContinuityMonitor) Stop() error { return m.command(cmdStop) }

// Pause halts capture without ending the logical session.
func (m *ContinuityMonitor) Pause() error { return m.command(cmdPause) }

// Resume restarts capture after Pause.
func (m *ContinuityMonitor) Resume() error { return m.command(cmdResume) }

// GetState returns the latest published snapshot.
func (m *ContinuityMonitor) GetState() domain.Snapshot {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.snap
}

// GetErrorStats returns the diagnostic error view.
func (m *ContinuityMonitor) GetErrorStats() domain.ErrorStats {
	stats := m.GetState().Stats
	return domain.ErrorStats{
		ErrorCount:       stats.ErrorCount,
		LastErrorTime:    stats.LastErrorTime,
		LastErrorKind:    stats.LastErrorKind,
		LastErrorCode:    stats.LastErrorCode,
		SuppressionArmed: m.gate.Armed(),
	}
}

// Subscribe registers fn for transition notifications and returns its unsubscribe handle.
func (m *ContinuityMonitor) Subscribe(fn Listener) func() {
	return m.notifier.Subscribe(fn)
}

func (m *ContinuityMonitor) command(kind commandKind) error {
	if !m.post(commandMsg{kind: kind}) {
		return ErrMonitorClosed
	}
	return nil
}

func (m *ContinuityMonitor) post(msg message) bool {
	select {
	case <-m.closed:
		return false
	default:
	}
	select {
	case m.inbox <- msg:
		return true
	case <-m.closed:
		return false
	}
}

func (m *ContinuityMonitor) shutdown() {
	m.closeOnce.Do(func() { close(m.closed) })
	m.cancelTimer()
	m.teardownSession()
}

func (m *ContinuityMonitor) publish() {
	snap := domain.Snapshot{
		SessionID: m.sessionID,
		State:     m.state,
		Flags:     m.flags,
		Stats:     m.stats.snapshot(),
		Reason:    m.reason,
		Message:   m.statusMessage,
		ChangedAt: m.changedAt,
	}
	m.snapMu.Lock()
	m.snap = snap
	m.snapMu.Unlock()
}

// transition applies a state change, publishes it and notifies every subscriber once.
func (m *ContinuityMonitor) transition(state domain.RecognitionState, reason domain.StateReason, msg string) {
	from := m.state
	m.state = state
	m.reason = reason
	m.statusMessage = msg
	m.changedAt = m.now()
	m.publish()

	m.logger.Info("recognition state changed",
		"session", m.sessionID,
		"from", from,
		"to", state,
		"reason", reason,
	)
	m.notifier.Broadcast(m.GetState())
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdPause
	cmdResume
)

func (k commandKind) String() string {
	switch k {
	case cmdStart:
		return "start"
	case cmdStop:
		return "stop"
	case cmdPause:
		return "pause"
	case cmdResume:
		return "resume"
	default:
		return "unknown"
	}
}

type message interface{ isMessage() }

type commandMsg struct{ kind commandKind }

type sessionEventMsg struct {
	session *recognitionSession
	event   domain.RecognitionEvent
}

type restartDueMsg struct{ token uint64 }

type restartTimeoutMsg struct{ token uint64 }

func (commandMsg) isMessage()        {}
func (sessionEventMsg) isMessage()   {}
func (restartDueMsg) isMessage()     {}
func (restartTimeoutMsg) isMessage() {}
