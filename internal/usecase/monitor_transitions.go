package usecase

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"steadymic/internal/domain"
)

const (
	msgRestartFailed  = "Speech recognition could not be restarted"
	msgRestartTimeout = "Speech recognition did not restart in time"
	msgDropLimit      = "Speech recognition keeps stopping; recreating the recognizer"
	msgStopped        = "Speech recognition stopped"
)

func (m *ContinuityMonitor) handle(msg message) {
	switch msg := msg.(type) {
	case commandMsg:
		m.handleCommand(msg.kind)
	case sessionEventMsg:
		m.handleSessionEvent(msg)
	case restartDueMsg:
		m.handleRestartDue(msg.token)
	case restartTimeoutMsg:
		m.handleRestartTimeout(msg.token)
	}
}

func (m *ContinuityMonitor) handleCommand(kind commandKind) {
	switch kind {
	case cmdStart:
		m.handleStart()
	case cmdStop:
		m.handleStop()
	case cmdPause:
		m.handlePause()
	case cmdResume:
		m.handleResume()
	}
}

func (m *ContinuityMonitor) handleStart() {
	switch m.state {
	case domain.StateStarting, domain.StateListening, domain.StateRecovering:
		m.logger.Debug("start ignored, channel already live", "state", m.state)
	case domain.StatePaused:
		m.handleResume()
	case domain.StateError:
		m.logger.Info("recovering from error state, resetting start counters")
		m.stats.resetOnRecovery()
		m.beginSession(domain.ReasonRecoveryRequested)
	default:
		m.beginSession(domain.ReasonStartRequested)
	}
}

// beginSession creates the recognition session and continuity flags together.
func (m *ContinuityMonitor) beginSession(reason domain.StateReason) {
	m.teardownSession()
	m.sessionID = uuid.NewString()
	m.flags = domain.ContinuityFlags{NeverStopped: true}
	m.consecutiveDrops = 0
	m.autoRestartPending = false
	m.gate.Disarm()
	m.stats.markSessionStart(m.now())

	if err := m.openSession(); err != nil {
		m.transition(domain.StateStarting, reason, "")
		m.failOpen(err)
		return
	}

	requestPermission := m.recordStart()
	m.transition(domain.StateStarting, reason, "")
	m.session.start(requestPermission)
}

func (m *ContinuityMonitor) handleStop() {
	if m.state == domain.StateStopped {
		m.logger.Debug("stop ignored, already stopped")
		return
	}
	m.cancelTimer()
	m.gate.Disarm()
	m.teardownSession()
	m.flags = domain.ContinuityFlags{}
	m.autoRestartPending = false
	m.transition(domain.StateStopped, domain.ReasonStopped, msgStopped)
}

func (m *ContinuityMonitor) handlePause() {
	if m.state != domain.StateListening {
		m.logger.Debug("pause ignored", "state", m.state)
		return
	}
	m.gate.Disarm()
	m.stats.recordPause()
	m.session.pause()
	m.transition(domain.StatePaused, domain.ReasonPaused, "")
}

func (m *ContinuityMonitor) handleResume() {
	if m.state != domain.StatePaused {
		m.logger.Debug("resume ignored", "state", m.state)
		return
	}
	m.stats.recordResume()
	requestPermission := m.recordStart()
	m.transition(domain.StateStarting, domain.ReasonResumed, "")
	m.session.resume(requestPermission)
}

func (m *ContinuityMonitor) handleSessionEvent(msg sessionEventMsg) {
	if m.session == nil || msg.session != m.session {
		if msg.event.Kind == domain.EventStarted {
			m.logger.Info("superseded session reported start, stopping it")
			msg.session.teardown()
			return
		}
		m.logger.Debug("dropping event from superseded session", "kind", msg.event.Kind, "code", msg.event.Code)
		return
	}

	switch msg.event.Kind {
	case domain.EventStarted:
		m.handleStarted()
	case domain.EventErrored:
		m.handleError(msg.event.Code)
	case domain.EventEnded:
		m.handleEnded()
	}
}

func (m *ContinuityMonitor) handleStarted() {
	switch m.state {
	case domain.StateStarting:
		reason := domain.ReasonListening
		if m.autoRestartPending {
			reason = domain.ReasonRestartCompleted
		}
		m.autoRestartPending = false
		m.cancelTimer()
		m.flags.StartedOnce = true
		m.listeningSince = m.now()
		m.transition(domain.StateListening, reason, "")
	case domain.StateRecovering:
		m.cancelTimer()
		m.flags.StartedOnce = true
		m.listeningSince = m.now()
		m.transition(domain.StateListening, domain.ReasonRestartCompleted, "")
	case domain.StatePaused:
		m.logger.Info("capture started while paused, stopping it again")
		m.session.pause()
	default:
		m.logger.Debug("duplicate start event", "state", m.state)
	}
}

func (m *ContinuityMonitor) handleError(code string) {
	class := m.classifier.Classify(code)

	switch m.state {
	case domain.StatePaused:
		m.logger.Debug("error while paused ignored", "kind", class.Kind, "code", class.Code)
		return
	case domain.StateIdle, domain.StateError, domain.StateStopped:
		return
	}

	if !class.Fatal() {
		if m.state == domain.StateListening || m.state == domain.StateRecovering {
			m.gate.Arm()
			m.logger.Debug("benign recognition error, next termination will be suppressed",
				"kind", class.Kind,
				"ttl", m.gate.TTL(),
			)
			return
		}
		m.logger.Debug("benign recognition error ignored", "kind", class.Kind, "state", m.state)
		return
	}

	if class.Kind == domain.ErrorKindUnknown {
		m.logger.Warn("unrecognized recognition error code", "session", m.sessionID, "code", class.Code)
	}
	m.stats.recordError(class, m.now())
	m.fail(domain.ReasonFatalError, class.Message,
		"kind", class.Kind,
		"code", class.Code,
	)
}

func (m *ContinuityMonitor) handleEnded() {
	switch m.state {
	case domain.StateListening:
		if m.gate.ConsumeIfArmed() {
			m.transparentRestart()
			return
		}
		m.unannouncedDrop()
	case domain.StateRecovering:
		if m.gate.ConsumeIfArmed() {
			m.logger.Debug("suppressed termination during recovery, reissuing start")
			m.stats.recordTransparentRestart()
			m.session.start(m.recordStart())
			m.scheduleTimeout()
			m.publish()
			return
		}
		m.unannouncedDrop()
	case domain.StateStarting:
		if m.autoRestartPending {
			m.fail(domain.ReasonRestartFailed, msgRestartFailed)
			return
		}
		m.unannouncedDrop()
	default:
		m.logger.Debug("termination signal ignored", "state", m.state)
	}
}

// transparentRestart makes a benign engine halt invisible: recovering, then listening again.
func (m *ContinuityMonitor) transparentRestart() {
	m.consecutiveDrops = 0
	m.stats.recordTransparentRestart()
	requestPermission := m.recordStart()
	m.transition(domain.StateRecovering, domain.ReasonTransparentRestart, "")
	m.session.start(requestPermission)
	m.scheduleTimeout()
}

// unannouncedDrop makes exactly one bounded restart attempt for a termination nobody asked for.
// Drops count as consecutive until listening holds for StableWindow.
func (m *ContinuityMonitor) unannouncedDrop() {
	if m.state == domain.StateListening && m.now().Sub(m.listeningSince) >= m.cfg.StableWindow {
		m.consecutiveDrops = 0
	}
	m.consecutiveDrops++
	if m.cfg.MaxConsecutiveDrops > 0 && m.consecutiveDrops > m.cfg.MaxConsecutiveDrops {
		m.recreateRecognizer()
		return
	}

	m.logger.Warn("recognition ended unexpectedly, restarting",
		"session", m.sessionID,
		"drops", m.consecutiveDrops,
	)
	if m.state != domain.StateRecovering {
		m.transition(domain.StateRecovering, domain.ReasonUnannouncedDrop, "")
	}
	m.gate.Disarm()
	m.autoRestartPending = true
	m.stats.recordAutoRestart()

	delay := m.backoff()
	if delay > 0 {
		m.transition(domain.StateStarting, domain.ReasonRestarting, fmt.Sprintf("Restarting in %s", delay))
		m.schedule(delay, func(token uint64) message { return restartDueMsg{token: token} })
		return
	}

	requestPermission := m.recordStart()
	m.transition(domain.StateStarting, domain.ReasonRestarting, "")
	m.session.start(requestPermission)
	m.scheduleTimeout()
}

// recreateRecognizer replaces a recognizer that keeps dropping. The logical session keeps
// its ID and flags; the fresh recognizer gets the same bounded restart attempt.
func (m *ContinuityMonitor) recreateRecognizer() {
	m.logger.Warn("recognizer keeps dropping, recreating it",
		"session", m.sessionID,
		"drops", m.consecutiveDrops,
	)
	m.cancelTimer()
	m.gate.Disarm()
	m.teardownSession()
	m.consecutiveDrops = 0

	if err := m.openSession(); err != nil {
		m.failOpen(err)
		return
	}

	m.autoRestartPending = true
	m.stats.recordAutoRestart()
	requestPermission := m.recordStart()
	m.transition(domain.StateStarting, domain.ReasonDropLimit, msgDropLimit)
	m.session.start(requestPermission)
	m.scheduleTimeout()
}

func (m *ContinuityMonitor) handleRestartDue(token uint64) {
	if token != m.timerToken || m.state != domain.StateStarting || !m.autoRestartPending {
		return
	}
	m.session.start(m.recordStart())
	m.scheduleTimeout()
	m.publish()
}

func (m *ContinuityMonitor) handleRestartTimeout(token uint64) {
	if token != m.timerToken {
		return
	}
	switch {
	case m.state == domain.StateRecovering,
		m.state == domain.StateStarting && m.autoRestartPending:
		m.fail(domain.ReasonRestartTimeout, msgRestartTimeout, "timeout", m.cfg.RestartTimeout)
	}
}

// fail tears the logical session down and surfaces the error state.
func (m *ContinuityMonitor) fail(reason domain.StateReason, msg string, attrs ...any) {
	m.logger.Error("listening failed",
		append([]any{"session", m.sessionID, "reason", reason}, attrs...)...,
	)
	m.cancelTimer()
	m.gate.Disarm()
	m.teardownSession()
	m.flags = domain.ContinuityFlags{}
	m.autoRestartPending = false
	m.transition(domain.StateError, reason, msg)
}

// openSession creates a recognizer for the current logical session.
func (m *ContinuityMonitor) openSession() error {
	rec, err := m.recognizers.NewRecognizer(m.runCtx)
	if err != nil {
		return err
	}
	m.session = newRecognitionSession(m.runCtx, rec, m.permissions, m.post, m.logger.With("session", m.sessionID))
	return nil
}

// failOpen surfaces a factory failure. No ended event can follow it, so benign codes fail too.
func (m *ContinuityMonitor) failOpen(err error) {
	class := m.classifier.Classify(domain.CodeOf(err, domain.CodeAudioCapture))
	m.stats.recordError(class, m.now())
	m.fail(domain.ReasonFatalError, class.Message, "error", err)
}

// recordStart counts a capability start and reports whether permission must be requested.
func (m *ContinuityMonitor) recordStart() bool {
	requestPermission := m.stats.needsPermission()
	m.stats.recordStart(requestPermission)
	return requestPermission
}

func (m *ContinuityMonitor) backoff() time.Duration {
	if m.consecutiveDrops <= 1 || m.cfg.RestartBackoffBase <= 0 {
		return 0
	}
	delay := m.cfg.RestartBackoffBase * time.Duration(m.consecutiveDrops-1)
	return min(delay, m.cfg.RestartBackoffMax)
}

func (m *ContinuityMonitor) scheduleTimeout() {
	m.schedule(m.cfg.RestartTimeout, func(token uint64) message { return restartTimeoutMsg{token: token} })
}

// schedule replaces the pending timer. Messages from replaced timers carry a stale token.
func (m *ContinuityMonitor) schedule(d time.Duration, build func(token uint64) message) {
	m.cancelTimer()
	token := m.timerToken
	m.stopTimer = m.afterFunc(d, func() { m.post(build(token)) })
}

func (m *ContinuityMonitor) cancelTimer() {
	m.timerToken++
	if m.stopTimer != nil {
		m.stopTimer()
		m.stopTimer = nil
	}
}

func (m *ContinuityMonitor) teardownSession() {
	if m.session == nil {
		return
	}
	m.session.teardown()
	m.session = nil
}
