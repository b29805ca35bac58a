// Package session persists the opaque browser session blob between runs.
//
// Every backend stores the blob inside a Snapshot envelope carrying a version
// and a checksum. A snapshot that fails any check is reported as absent
// (ErrNotFound) so a corrupt file never reaches the browser.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// SnapshotVersion is the envelope format written by this build.
const SnapshotVersion = 1

// ErrNotFound means no usable snapshot exists for the account.
var ErrNotFound = errors.New("session snapshot not found")

// Store loads and saves snapshots keyed by account. The empty account is the
// default slot used by single-account runs.
type Store interface {
	// Load returns the stored blob, or ErrNotFound when it is missing or unusable.
	Load(ctx context.Context, account string) ([]byte, error)
	Save(ctx context.Context, account string, state []byte) error
	Close() error
}

// Snapshot is the envelope written to storage.
type Snapshot struct {
	Version  int       `json:"version"`
	Account  string    `json:"account"`
	SavedAt  time.Time `json:"saved_at"`
	Checksum string    `json:"checksum"`
	Data     []byte    `json:"data"`
}

// NewSnapshot wraps state for account.
func NewSnapshot(account string, state []byte, now time.Time) *Snapshot {
	return &Snapshot{
		Version:  SnapshotVersion,
		Account:  account,
		SavedAt:  now.UTC(),
		Checksum: checksum(state),
		Data:     state,
	}
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify checks the envelope against the account it was loaded for.
func (s *Snapshot) Verify(account string) error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	if s.Account != account {
		return fmt.Errorf("snapshot belongs to account %q, not %q", s.Account, account)
	}
	if len(s.Data) == 0 {
		return errors.New("snapshot has no data")
	}
	if got := checksum(s.Data); got != s.Checksum {
		return fmt.Errorf("checksum mismatch: stored %s, computed %s", s.Checksum, got)
	}
	return nil
}

// Encode serializes the envelope.
func (s *Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot parses and verifies raw for account.
func DecodeSnapshot(raw []byte, account string) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := s.Verify(account); err != nil {
		return nil, err
	}
	return &s, nil
}

// unwrap turns a stored envelope into the blob, downgrading every defect to
// ErrNotFound after logging it.
func unwrap(raw []byte, account string, logger *zap.Logger) ([]byte, error) {
	snap, err := DecodeSnapshot(raw, account)
	if err != nil {
		logger.Warn("Discarding unusable session snapshot.", zap.String("account", account), zap.Error(err))
		return nil, ErrNotFound
	}
	logger.Debug("Loaded session snapshot.", zap.String("account", account), zap.Time("saved_at", snap.SavedAt))
	return snap.Data, nil
}

// wrap builds the stored envelope for state.
func wrap(account string, state []byte) ([]byte, *Snapshot, error) {
	if len(state) == 0 {
		return nil, nil, errors.New("refusing to save an empty session state")
	}
	snap := NewSnapshot(account, state, time.Now())
	raw, err := snap.Encode()
	if err != nil {
		return nil, nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return raw, snap, nil
}
