package usecase

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"steadymic/internal/domain"
)

// ErrorClassifier maps raw recognition error codes to a kind and recovery advice.
type ErrorClassifier interface {
	Classify(rawCode string) domain.Classification
}

// StandardClassifier implements the fixed code table of the recognition capability.
type StandardClassifier struct{}

var knownClassifications = map[string]domain.Classification{
	domain.CodeNoSpeech: {
		Kind:    domain.ErrorKindNoSpeech,
		Action:  domain.ActionSuppressNextTermination,
		Message: "No speech detected",
	},
	domain.CodeAborted: {
		Kind:    domain.ErrorKindAborted,
		Action:  domain.ActionFatalStop,
		Message: "Speech recognition stopped unexpectedly",
	},
	domain.CodeNetwork: {
		Kind:    domain.ErrorKindNetwork,
		Action:  domain.ActionFatalStop,
		Message: "Check your network connection",
	},
	domain.CodeAudioCapture: {
		Kind:    domain.ErrorKindAudioCapture,
		Action:  domain.ActionFatalStop,
		Message: "There is a problem accessing the microphone",
	},
	domain.CodeNotAllowed: {
		Kind:    domain.ErrorKindNotAllowed,
		Action:  domain.ActionFatalStop,
		Message: "Microphone permission is required",
	},
}

// Classify never fails: unrecognized codes become ErrorKindUnknown with the raw code kept.
func (StandardClassifier) Classify(rawCode string) domain.Classification {
	code := strings.ToLower(strings.TrimSpace(rawCode))
	if c, ok := knownClassifications[code]; ok {
		c.Code = code
		return c
	}
	return domain.Classification{
		Kind:    domain.ErrorKindUnknown,
		Code:    rawCode,
		Action:  domain.ActionFatalStop,
		Message: fmt.Sprintf("An unknown error occurred: %s", rawCode),
	}
}

// KnownCodes returns the raw codes with a fixed classification, sorted.
func KnownCodes() []string {
	codes := lo.Keys(knownClassifications)
	slices.Sort(codes)
	return codes
}
