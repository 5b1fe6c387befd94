package usecase

import (
	"time"

	"steadymic/internal/domain"
)

// statsCollector is the passive counter record. Only the monitor goroutine touches it.
type statsCollector struct {
	stats domain.Stats
}

func (c *statsCollector) recordStart(permissionRequested bool) {
	c.stats.StartCount++
	if permissionRequested {
		c.stats.MicrophonePermissionRequests++
	}
}

func (c *statsCollector) recordError(class domain.Classification, at time.Time) {
	c.stats.ErrorCount++
	c.stats.LastErrorTime = at
	c.stats.LastErrorKind = class.Kind
	c.stats.LastErrorCode = class.Code
}

// resetOnRecovery zeroes the restart counters. ErrorCount is cumulative for the process.
func (c *statsCollector) resetOnRecovery() {
	c.stats.StartCount = 0
	c.stats.MicrophonePermissionRequests = 0
}

func (c *statsCollector) recordPause()              { c.stats.PauseCount++ }
func (c *statsCollector) recordResume()             { c.stats.ResumeCount++ }
func (c *statsCollector) recordTransparentRestart() { c.stats.TransparentRestarts++ }
func (c *statsCollector) recordAutoRestart()        { c.stats.AutoRestarts++ }

func (c *statsCollector) markSessionStart(at time.Time) {
	c.stats.SessionStartedAt = at
}

func (c *statsCollector) needsPermission() bool {
	return c.stats.MicrophonePermissionRequests == 0
}

func (c *statsCollector) snapshot() domain.Stats {
	return c.stats
}
