package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

// FileStore keeps one snapshot file per account next to a base path.
type FileStore struct {
	base   string
	logger *zap.Logger
}

// NewFileStore creates a store rooted at path. A leading "~" is expanded.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("session file path is empty")
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand session path: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{base: expanded, logger: logger.Named("session.file")}, nil
}

// PathFor returns the file holding account's snapshot. The default account
// uses the base path; others get "<name>.<account><ext>" beside it.
func (s *FileStore) PathFor(account string) string {
	if account == "" {
		return s.base
	}
	ext := filepath.Ext(s.base)
	stem := strings.TrimSuffix(s.base, ext)
	return stem + "." + sanitizeKey(account) + ext
}

func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
}

// Load reads the snapshot for account.
func (s *FileStore) Load(ctx context.Context, account string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.PathFor(account)
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("No session file; starting fresh.", zap.String("path", path))
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	return unwrap(raw, account, s.logger)
}

// Save writes the snapshot atomically: a temp file in the same directory is
// synced and renamed over the target.
func (s *FileStore) Save(ctx context.Context, account string, state []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, _, err := wrap(account, state)
	if err != nil {
		return err
	}

	path := s.PathFor(account)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	committed = true

	s.logger.Debug("Session saved.", zap.String("path", path), zap.Int("bytes", len(state)))
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
