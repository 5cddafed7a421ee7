package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"spot-swing-bot/internal/logger"
)

const lockRetryDelay = 50 * time.Millisecond

// FileStore keeps the ledger in one JSON file. Writes go through a temp file in the same directory and a
// rename, so readers only ever see a complete document. Mutations are serialized across processes by an
// advisory lock on <path>.lock.
type FileStore struct {
	path        string
	lockTimeout time.Duration

	// rename is os.Rename outside tests.
	rename func(oldpath, newpath string) error
}

func NewFileStore(path string, lockTimeout time.Duration) *FileStore {
	return &FileStore{path: path, lockTimeout: lockTimeout, rename: os.Rename}
}

func (s *FileStore) Path() string { return s.path }

// Load returns an empty ledger when the file is absent. A file that cannot be parsed is also read as
// empty; it is left in place and a copy is kept next to it as <path>.corrupt-<digest>, one per distinct
// content, so a later save cannot lose it.
func (s *FileStore) Load(ctx context.Context) (Positions, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Positions{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	p, skipped, err := Decode(b)
	if err != nil {
		logger.Warn(ctx, "Ledger unreadable, treating as empty",
			"event", "LEDGER_CORRUPT",
			"path", s.path,
			"error", err.Error(),
		)
		if err := s.keepCorrupt(ctx, b); err != nil {
			// without a copy the next save would destroy the document
			return nil, fmt.Errorf("keep corrupt ledger: %w", err)
		}
		return Positions{}, nil
	}
	if len(skipped) > 0 {
		logger.Warn(ctx, "Ledger entries unreadable, kept as stored", "event", "LEDGER_ENTRY_INVALID", "path", s.path, "keys", skipped)
	}
	return p, nil
}

// CorruptPath is where the copy of an unparseable document b is kept.
func (s *FileStore) CorruptPath(b []byte) string { return s.path + ".corrupt-" + digest(b) }

func (s *FileStore) keepCorrupt(ctx context.Context, b []byte) error {
	backup := s.CorruptPath(b)
	if _, err := os.Stat(backup); err == nil {
		return nil
	}
	if err := os.WriteFile(backup, b, 0o600); err != nil {
		return err
	}
	logger.Warn(ctx, "Corrupt ledger copy kept", "path", backup)
	return nil
}

// Save replaces the file atomically: temp file, fsync, close, rename, fsync of the directory.
func (s *FileStore) Save(ctx context.Context, p Positions) error {
	b, err := Encode(p)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ledger dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("ledger temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	if err := s.rename(tmpName, s.path); err != nil {
		return fmt.Errorf("commit ledger: %w", err)
	}
	committed = true

	if d, err := os.Open(dir); err == nil {
		if err := d.Sync(); err != nil {
			logger.Debug(ctx, "Ledger dir sync failed", "dir", dir, "error", err.Error())
		}
		_ = d.Close()
	}
	return nil
}

// Lock takes the cross-process lock, waiting at most the configured timeout.
func (s *FileStore) Lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger dir: %w", err)
	}
	fl := flock.New(s.path + ".lock")
	lctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	ok, err := fl.TryLockContext(lctx, lockRetryDelay)
	if ok {
		return func() {
			if err := fl.Unlock(); err != nil {
				logger.Warn(ctx, "Ledger unlock failed", "path", fl.Path(), "error", err.Error())
			}
		}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s", ErrLockTimeout, s.lockTimeout)
	}
	return nil, fmt.Errorf("ledger lock: %w", err)
}
