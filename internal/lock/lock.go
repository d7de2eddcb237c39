package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"projmap/internal/errors"
	"projmap/internal/logging"
)

// Options controls how long an acquisition keeps retrying and when a
// held lock is presumed abandoned.
type Options struct {
	Timeout       time.Duration
	RetryInterval time.Duration
	StaleTimeout  time.Duration
	Wait          bool
}

// DefaultOptions waits up to ten seconds, polling every hundred
// milliseconds, and reclaims locks older than ten minutes.
func DefaultOptions() Options {
	return Options{
		Timeout:       10 * time.Second,
		RetryInterval: 100 * time.Millisecond,
		StaleTimeout:  10 * time.Minute,
		Wait:          true,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = def.RetryInterval
	}
	if o.StaleTimeout <= 0 {
		o.StaleTimeout = def.StaleTimeout
	}
	return o
}

// Result reports the outcome of an acquisition attempt. Contention is
// not an error: the caller gets Acquired false and decides what to do.
type Result struct {
	Acquired   bool
	Name       string
	AcquiredAt time.Time
}

// Manager hands out named locks backed by directories under a single
// locks dir. Correctness rests entirely on the atomicity of Mkdir, so
// locks hold across independently started processes.
type Manager struct {
	dir    string
	logger *logging.Logger
}

func NewManager(dir string, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{dir: dir, logger: logger}
}

func (m *Manager) lockPath(name string) string {
	return filepath.Join(m.dir, name+".lock")
}

// Acquire attempts to take the named lock. On contention it reclaims
// the lock if its directory is older than StaleTimeout, otherwise
// retries on a timed interval until the timeout elapses (or returns
// immediately when Wait is false). Only filesystem failures are
// errors; losing the race is a non-acquired Result.
func (m *Manager) Acquire(name string, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, errors.New(errors.IOFailure, "cannot create locks directory", err)
	}

	path := m.lockPath(name)
	deadline := time.Now().Add(opts.Timeout)
	for {
		err := os.Mkdir(path, 0o755)
		if err == nil {
			m.writeHolder(path)
			return &Result{Acquired: true, Name: name, AcquiredAt: time.Now()}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.New(errors.IOFailure, fmt.Sprintf("cannot acquire lock %q", name), err)
		}

		info, statErr := os.Stat(path)
		if statErr != nil {
			if os.IsNotExist(statErr) {
				continue // released between mkdir and stat
			}
			return nil, errors.New(errors.IOFailure, fmt.Sprintf("cannot inspect lock %q", name), statErr)
		}
		if age := time.Since(info.ModTime()); age > opts.StaleTimeout {
			m.logger.Warn("reclaiming stale lock", map[string]interface{}{
				"name": name,
				"age":  age.String(),
			})
			_ = os.RemoveAll(path)
			continue
		}

		if !opts.Wait || !time.Now().Before(deadline) {
			return &Result{Acquired: false, Name: name}, nil
		}
		time.Sleep(opts.RetryInterval)
	}
}

// Release removes the named lock. All errors are swallowed; releasing
// a lock that is already gone is not an error.
func (m *Manager) Release(name string) {
	_ = os.RemoveAll(m.lockPath(name))
}

// IsLocked reports whether the named lock currently exists on disk.
func (m *Manager) IsLocked(name string) bool {
	info, err := os.Stat(m.lockPath(name))
	return err == nil && info.IsDir()
}

// HolderPID returns the recorded holder of the named lock, or zero if
// the lock is free or carries no readable pid.
func (m *Manager) HolderPID(name string) int {
	data, err := os.ReadFile(filepath.Join(m.lockPath(name), "pid"))
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// WithLock runs fn while holding the named lock, releasing it exactly
// once on every exit path. Failure to acquire within the timeout is a
// LockTimeout error.
func (m *Manager) WithLock(name string, opts Options, fn func() error) error {
	res, err := m.Acquire(name, opts)
	if err != nil {
		return err
	}
	if !res.Acquired {
		msg := fmt.Sprintf("lock %q not acquired within %s", name, opts.withDefaults().Timeout)
		if pid := m.HolderPID(name); pid > 0 {
			msg = fmt.Sprintf("%s (held by pid %d)", msg, pid)
		}
		return errors.New(errors.LockTimeout, msg, nil)
	}
	defer m.Release(name)
	return fn()
}

// writeHolder records the holder's pid inside the lock directory for
// diagnostics. Best effort; the directory itself is the lock.
func (m *Manager) writeHolder(path string) {
	_ = os.WriteFile(filepath.Join(path, "pid"), []byte(strconv.Itoa(os.Getpid())), 0o644)
}
