// internal/browser/state.go
package browser

import (
	"fmt"
	"strings"

	json "github.com/json-iterator/go"
)

// StateVersion is the current layout of the session state blob.
const StateVersion = 1

// Cookie is the persisted form of a browser cookie. It is decoupled from the
// CDP types so the blob layout does not move with protocol revisions.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"` // seconds since epoch; zero or negative means session cookie
	HTTPOnly bool    `json:"http_only,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"same_site,omitempty"`
}

// State is the decoded session state: cookies plus localStorage per origin.
type State struct {
	Version      int                          `json:"version"`
	Cookies      []Cookie                     `json:"cookies"`
	LocalStorage map[string]map[string]string `json:"local_storage,omitempty"`
}

// Encode serializes s.
func (s *State) Encode() ([]byte, error) {
	s.Version = StateVersion
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session state: %w", err)
	}
	return b, nil
}

// DecodeState parses and validates a blob in full. Nothing is applied by this
// call, so a bad blob never leaves a half-restored browser behind.
func DecodeState(blob []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(blob, &s); err != nil {
		return nil, &StateError{Phase: "decode", Err: err}
	}
	if s.Version != StateVersion {
		return nil, &StateError{Phase: "decode", Err: fmt.Errorf("unsupported state version %d", s.Version)}
	}
	for i, c := range s.Cookies {
		if c.Name == "" {
			return nil, &StateError{Phase: "decode", Err: fmt.Errorf("cookie %d has no name", i)}
		}
		if c.Domain == "" {
			return nil, &StateError{Phase: "decode", Err: fmt.Errorf("cookie %q has no domain", c.Name)}
		}
	}
	for origin := range s.LocalStorage {
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return nil, &StateError{Phase: "decode", Err: fmt.Errorf("invalid storage origin %q", origin)}
		}
	}
	return &s, nil
}
