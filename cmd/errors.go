// File: cmd/errors.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/fastwork-cli/internal/auth"
	"github.com/xkilldash9x/fastwork-cli/internal/browser"
	"github.com/xkilldash9x/fastwork-cli/internal/marketplace"
	"github.com/xkilldash9x/fastwork-cli/internal/orchestrator"
)

// ErrorCode classifies a failure in the error document. Using a custom type
// keeps callers to the predefined constants.
type ErrorCode string

const (
	// -- Input errors --
	ErrCodeInvalidParameters ErrorCode = "INVALID_PARAMETERS"
	ErrCodeConfigInvalid     ErrorCode = "CONFIG_INVALID"

	// -- Session errors --
	ErrCodeNoCredentials ErrorCode = "NO_CREDENTIALS"
	ErrCodeLoginFailed   ErrorCode = "LOGIN_FAILED"
	ErrCodeBrowserLaunch ErrorCode = "BROWSER_LAUNCH_FAILED"

	// -- Page errors --
	ErrCodeActionFailed    ErrorCode = "ACTION_FAILED"
	ErrCodeNoRecord        ErrorCode = "NO_RECORD"
	ErrCodeElementNotFound ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeTimeoutError    ErrorCode = "TIMEOUT_ERROR"

	// -- Internal errors --
	ErrCodeCanceled         ErrorCode = "CANCELED"
	ErrCodeExecutionFailure ErrorCode = "EXECUTION_FAILURE"
	ErrCodePanic            ErrorCode = "PANIC"
)

// ErrorDocument is written to stdout in place of a result when a command fails.
type ErrorDocument struct {
	Error string    `json:"error"`
	Code  ErrorCode `json:"code"`
	Step  string    `json:"step,omitempty"`
}

type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// PanicError carries a recovered panic value to the error document.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// usageArgs marks argument validation failures as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

// Classify maps err to its code and, for flow failures, the failing step.
func Classify(err error) (ErrorCode, string) {
	var (
		loginErr  *auth.LoginError
		actionErr *marketplace.ActionError
		usageErr  *usageError
		configErr *configError
		panicErr  *PanicError
	)
	switch {
	case errors.As(err, &panicErr):
		return ErrCodePanic, ""
	case errors.As(err, &configErr):
		return ErrCodeConfigInvalid, ""
	case errors.As(err, &usageErr):
		return ErrCodeInvalidParameters, ""
	case errors.Is(err, orchestrator.ErrNoCredentials), errors.Is(err, auth.ErrMissingCredentials):
		return ErrCodeNoCredentials, ""
	case errors.Is(err, context.Canceled):
		// An interrupted flow still names the step it was on.
		return ErrCodeCanceled, stepOf(err)
	case errors.As(err, &loginErr):
		return ErrCodeLoginFailed, loginErr.Step.String()
	case errors.As(err, &actionErr):
		return ErrCodeActionFailed, actionErr.Action + "." + actionErr.Step
	case errors.Is(err, orchestrator.ErrLaunch):
		return ErrCodeBrowserLaunch, ""
	case errors.Is(err, marketplace.ErrNoRecord):
		return ErrCodeNoRecord, ""
	case errors.Is(err, browser.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeoutError, ""
	case errors.Is(err, browser.ErrNotFound):
		return ErrCodeElementNotFound, ""
	default:
		return ErrCodeExecutionFailure, ""
	}
}

func stepOf(err error) string {
	var (
		loginErr  *auth.LoginError
		actionErr *marketplace.ActionError
	)
	switch {
	case errors.As(err, &loginErr):
		return loginErr.Step.String()
	case errors.As(err, &actionErr):
		return actionErr.Action + "." + actionErr.Step
	}
	return ""
}

// WriteError writes the error document for err to w.
func WriteError(w io.Writer, err error) error {
	code, step := Classify(err)
	return writeJSON(w, ErrorDocument{Error: err.Error(), Code: code, Step: step})
}
