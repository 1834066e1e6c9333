package db

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	lockFileName   = "db.lock"
	drainLockName  = "drain.lock"
	defaultTimeout = 2 * time.Second
	initialBackoff = 5 * time.Millisecond
	maxBackoff     = 50 * time.Millisecond
)

// writeLocker serializes writers across processes sharing a data dir
// (the CLI and a running daemon). The OS drops the lock if a holder dies.
type writeLocker struct {
	path string
	f    *os.File
}

func newWriteLocker(baseDir string) *writeLocker {
	return &writeLocker{path: filepath.Join(baseDir, dataDir, lockFileName)}
}

// acquire retries a non-blocking exclusive lock with capped backoff until
// timeout. The error names the current holder when one is recorded.
func (l *writeLocker) acquire(timeout time.Duration) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	l.f = f

	deadline := time.Now().Add(timeout)
	for backoff := initialBackoff; ; backoff = min(backoff*2, maxBackoff) {
		if err := l.tryLock(); err == nil {
			l.stamp()
			return nil
		}
		if time.Now().After(deadline) {
			holder := l.holder()
			l.f.Close()
			l.f = nil
			return fmt.Errorf("write lock timeout after %v (holder %s)", timeout, holder)
		}
		time.Sleep(backoff)
	}
}

// tryAcquire takes the lock only if it is free right now.
func (l *writeLocker) tryAcquire() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return false, fmt.Errorf("open lock file: %w", err)
	}
	l.f = f
	if err := l.tryLock(); err != nil {
		l.f.Close()
		l.f = nil
		return false, nil
	}
	l.stamp()
	return true, nil
}

func (l *writeLocker) release() error {
	if l.f == nil {
		return nil
	}
	l.f.Truncate(0)
	l.unlock()
	err := l.f.Close()
	l.f = nil
	return err
}

// stamp records the holder's pid so a timed-out waiter can report it.
func (l *writeLocker) stamp() {
	l.f.Truncate(0)
	l.f.Seek(0, 0)
	fmt.Fprintf(l.f, "pid:%d\ntime:%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
}

func (l *writeLocker) holder() string {
	f, err := os.Open(l.path)
	if err != nil {
		return "unknown"
	}
	defer f.Close()

	var pid, since string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, val, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			pid = val
		case "time":
			since = val
		}
	}
	if pid == "" {
		return "unknown"
	}
	if n, err := strconv.Atoi(pid); err == nil && !isProcessAlive(n) {
		return fmt.Sprintf("pid:%s since %s, stale", pid, since)
	}
	return fmt.Sprintf("pid:%s since %s", pid, since)
}

// DrainLock marks the one process currently draining a data dir's sync
// queue. It is held for a whole drain, not per transaction.
type DrainLock struct {
	l *writeLocker
}

// TryLockDrain claims the drain lock without waiting. It returns nil and
// no error when another process (or another Store on the same dir) holds
// it. In-memory stores always get the lock.
func (s *Store) TryLockDrain(ctx context.Context) (*DrainLock, error) {
	if s.opts.InMemory {
		return &DrainLock{}, nil
	}
	if _, err := s.db(ctx); err != nil {
		return nil, err
	}
	l := &writeLocker{path: filepath.Join(s.baseDir, dataDir, drainLockName)}
	ok, err := l.tryAcquire()
	if err != nil || !ok {
		return nil, err
	}
	return &DrainLock{l: l}, nil
}

// Release gives the drain lock back. It is safe on a nil lock.
func (d *DrainLock) Release() error {
	if d == nil || d.l == nil {
		return nil
	}
	return d.l.release()
}
