package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode_NilErrorIsSuccess(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
}

func TestExitCode_UnclassifiedErrorIsGenericFailure(t *testing.T) {
	assert.Equal(t, ExitGenericFailure, ExitCode(errors.New("boom")))
}

func TestExitCode_CanceledContextIsUserInterrupt(t *testing.T) {
	assert.Equal(t, ExitUserInterrupt, ExitCode(context.Canceled))
}

func TestExitCode_RecoversCodeThroughWrapping(t *testing.T) {
	base := withExitCode(ExitValidationError, errors.New("schema failed"))
	wrapped := errorsJoinWrap(base)
	assert.Equal(t, ExitValidationError, ExitCode(wrapped))
}

func TestWithExitCode_NilErrorStaysNil(t *testing.T) {
	assert.NoError(t, withExitCode(ExitConfigError, nil))
}

// errorsJoinWrap wraps err one extra layer so ExitCode's errors.As unwrap
// path is actually exercised, not just the direct-match case.
func errorsJoinWrap(err error) error {
	return &wrappedError{err}
}

type wrappedError struct{ err error }

func (w *wrappedError) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrappedError) Unwrap() error { return w.err }
