package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	err := New(ErrCodeValidation, "bad input")
	assert.Equal(t, "[VALIDATION_ERROR] bad input", err.Error())

	wrapped := Wrap(ErrCodeBackend, "save failed", errors.New("disk full"))
	assert.Equal(t, "[BACKEND_ERROR] save failed: disk full", wrapped.Error())
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ErrCodeFatal, "outer", cause)
	assert.ErrorIs(t, err, cause)
}

func TestIsMatchesWrappedClassification(t *testing.T) {
	inner := PrerequisiteNotMet("edge", "readiness flag is false")
	outer := fmt.Errorf("resolving dependencies: %w", inner)

	assert.True(t, Is(outer, ErrCodePrerequisiteNotMet))
	assert.False(t, Is(outer, ErrCodeConflictDetected))
	assert.False(t, Is(errors.New("plain"), ErrCodePrerequisiteNotMet))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeConvergencePending, CodeOf(ConvergencePending("distribution D1")))
	assert.Equal(t, ErrCodeFatal, CodeOf(errors.New("unclassified")))
}

func TestMissingFieldNamesTheField(t *testing.T) {
	err := MissingField("app", "distributionId")
	assert.Equal(t, ErrCodePrerequisiteNotMet, err.Code)
	assert.Contains(t, err.Error(), "distributionId")
	assert.Contains(t, err.Error(), "app")
}

func TestRemediationCoversEveryCode(t *testing.T) {
	codes := []ErrorCode{
		ErrCodePrerequisiteNotMet,
		ErrCodeConflictDetected,
		ErrCodeTransientProvider,
		ErrCodeConvergencePending,
		ErrCodeResourceStillInUse,
		ErrCodeNotFound,
		ErrCodeValidation,
		ErrCodeParse,
		ErrCodeBackend,
		ErrCodeCredentials,
		ErrCodeFatal,
	}
	for _, code := range codes {
		assert.NotEmpty(t, Remediation(New(code, "x")), "remediation missing for %s", code)
	}
}

func TestRemediationForUnclassified(t *testing.T) {
	// Unclassified errors fall back to the fatal guidance.
	assert.Equal(t, remediations[ErrCodeFatal], Remediation(errors.New("anything")))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeNotFound, "missing").WithDetail("stage", "edge")
	assert.Equal(t, "edge", err.Details["stage"])
}
