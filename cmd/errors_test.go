// File: cmd/errors_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/fastwork-cli/internal/auth"
	"github.com/xkilldash9x/fastwork-cli/internal/browser"
	"github.com/xkilldash9x/fastwork-cli/internal/marketplace"
	"github.com/xkilldash9x/fastwork-cli/internal/orchestrator"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
		wantStep string
	}{
		{"no credentials", orchestrator.ErrNoCredentials, ErrCodeNoCredentials, ""},
		{"missing credential fields", fmt.Errorf("login: %w", auth.ErrMissingCredentials), ErrCodeNoCredentials, ""},
		{"login error", &auth.LoginError{Step: auth.AwaitingConfirmation, Cause: browser.ErrTimeout}, ErrCodeLoginFailed, "AwaitingConfirmation"},
		{"action error", &marketplace.ActionError{Action: "send_message", Step: "fill", Cause: browser.ErrNotFound}, ErrCodeActionFailed, "send_message.fill"},
		{"launch", fmt.Errorf("%w: %w", orchestrator.ErrLaunch, errors.New("exec: chrome not found")), ErrCodeBrowserLaunch, ""},
		{"canceled", fmt.Errorf("navigate: %w", context.Canceled), ErrCodeCanceled, ""},
		{"login interrupted", &auth.LoginError{Step: auth.AwaitingSecret, Cause: context.Canceled}, ErrCodeCanceled, "AwaitingSecret"},
		{"action interrupted", &marketplace.ActionError{Action: "edit_product", Step: "save", Cause: context.Canceled}, ErrCodeCanceled, "edit_product.save"},
		{"login timed out", &auth.LoginError{Step: auth.AwaitingConfirmation, Cause: context.DeadlineExceeded}, ErrCodeLoginFailed, "AwaitingConfirmation"},
		{"no record", fmt.Errorf("profile: %w", marketplace.ErrNoRecord), ErrCodeNoRecord, ""},
		{"timeout", browser.ErrTimeout, ErrCodeTimeoutError, ""},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeoutError, ""},
		{"not found", &browser.LookupError{Selector: browser.CSS(".x"), Err: browser.ErrNotFound}, ErrCodeElementNotFound, ""},
		{"usage", &usageError{err: errors.New("accepts 1 arg(s)")}, ErrCodeInvalidParameters, ""},
		{"config", &configError{err: errors.New("bad")}, ErrCodeConfigInvalid, ""},
		{"panic", &PanicError{Value: "boom"}, ErrCodePanic, ""},
		{"other", errors.New("disk full"), ErrCodeExecutionFailure, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, step := Classify(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStep, step)
		})
	}
}

func TestWriteError(t *testing.T) {
	var buf bytes.Buffer
	err := &auth.LoginError{Step: auth.AwaitingSecret, Cause: browser.ErrNotFound}
	require.NoError(t, WriteError(&buf, err))
	assert.JSONEq(t, fmt.Sprintf(`{"error":%q,"code":"LOGIN_FAILED","step":"AwaitingSecret"}`, err.Error()), buf.String())

	buf.Reset()
	require.NoError(t, WriteError(&buf, errors.New("disk full")))
	assert.JSONEq(t, `{"error":"disk full","code":"EXECUTION_FAILURE"}`, buf.String())
}
