package cli

import (
	"context"
	"errors"
	"strings"

	"steadymic/internal/config"
	"steadymic/internal/providers/deepgram"
)

// Exit codes.
const (
	ExitOK        = 0
	ExitGeneral   = 1
	ExitUsage     = 2
	ExitSetup     = 3
	ExitInterrupt = 130
)

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupt
	case isCobraUsageError(err):
		return ExitUsage
	case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, deepgram.ErrMissingAPIKey):
		return ExitSetup
	default:
		return ExitGeneral
	}
}

// Cobra has no typed usage errors, so these message fragments identify them.
var cobraUsageErrorPatterns = []string{
	"required flag",
	"unknown flag",
	"unknown shorthand",
	"flag needs an argument",
	"invalid argument",
	"unknown command",
	"accepts ",
	"requires at least",
	"requires at most",
}

func isCobraUsageError(err error) bool {
	msg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
