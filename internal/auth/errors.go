package auth

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// ErrMissingCredentials is returned before the flow starts when the identifier or secret is empty.
var ErrMissingCredentials = errors.New("missing login credentials")

// LoginError reports the state whose step failed. Nothing after it ran.
type LoginError struct {
	Step  State
	Cause error
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login failed at %s: %v", e.Step, e.Cause)
}

func (e *LoginError) Unwrap() error { return e.Cause }

// Credential is supplied by the caller. It is never persisted, and its secret
// never reaches a log line.
type Credential struct {
	Identifier string
	Secret     string
}

// Validate checks that both parts are present.
func (c Credential) Validate() error {
	if strings.TrimSpace(c.Identifier) == "" || c.Secret == "" {
		return ErrMissingCredentials
	}
	return nil
}

// String masks the credential so accidental formatting is harmless.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{Identifier: %s, Secret: [REDACTED]}", maskIdentifier(c.Identifier))
}

// MarshalLogObject lets the credential be passed to zap.Object safely.
func (c Credential) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("identifier", maskIdentifier(c.Identifier))
	return nil
}

func maskIdentifier(id string) string {
	if id == "" {
		return ""
	}
	local, domain, ok := strings.Cut(id, "@")
	if !ok {
		if len(id) <= 4 {
			return "****"
		}
		return strings.Repeat("*", len(id)-4) + id[len(id)-4:]
	}
	if local == "" {
		return "*@" + domain
	}
	return local[:1] + "***@" + domain
}
