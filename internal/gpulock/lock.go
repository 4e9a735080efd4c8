// Package gpulock serialises gpustack runs that mutate the GPU host
// (compose up, model pulls) with a lease file in the state directory.
package gpulock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gpustack/internal/logging"
)

const (
	// LockFileName is the name of the lock file
	LockFileName = "gpustack.lock"

	// DefaultLeaseTimeout bounds how long a crashed run can block others.
	// Large model pulls can take a while, so this is generous.
	DefaultLeaseTimeout = 30 * time.Minute
)

// Manager manages lock acquisition and release
type Manager struct {
	stateDir     string
	logger       *logging.Logger
	leaseTimeout time.Duration
	now          func() time.Time
}

// NewManager creates a new lock manager
func NewManager(stateDir string, logger *logging.Logger) *Manager {
	return &Manager{
		stateDir:     stateDir,
		logger:       logger,
		leaseTimeout: DefaultLeaseTimeout,
		now:          time.Now,
	}
}

// Path returns the full path to the lock file
func (m *Manager) Path() string {
	return filepath.Join(m.stateDir, LockFileName)
}

// Acquire takes the lock for runID. Re-acquiring with the same runID is a
// no-op; a lease older than the timeout is cleared and taken over.
func (m *Manager) Acquire(holder, runID string) error {
	if runID == "" {
		return errors.New("run id is required")
	}
	if err := os.MkdirAll(m.stateDir, 0o750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	info := LockInfo{Holder: holder, RunID: runID, PID: os.Getpid(), SinceTS: m.now().UTC()}

	// One retry after clearing a stale lease
	for attempt := 0; attempt < 2; attempt++ {
		err := m.create(info)
		if err == nil {
			m.logger.Info("gpu.lock.acquired", "GPU host lock acquired", map[string]interface{}{
				"holder": holder,
				"path":   m.Path(),
			})
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return err
		}

		existing, loadErr := m.loadLock()
		if loadErr != nil {
			if os.IsNotExist(loadErr) {
				continue
			}
			// An empty or truncated lease ages by its mtime
			existing, err = m.unreadableLock(loadErr)
			if err != nil {
				return err
			}
		}
		if existing.RunID == runID {
			return nil
		}

		age := m.now().Sub(existing.SinceTS)
		if age <= m.leaseTimeout {
			return &HeldError{Info: *existing, Age: age}
		}

		m.logger.Warn("gpu.lock.stale_detected", "Stale GPU host lock detected", map[string]interface{}{
			"current_holder": existing.Holder,
			"run_id":         existing.RunID,
			"age_seconds":    age.Seconds(),
		})
		if err := m.remove(); err != nil {
			return fmt.Errorf("failed to clear stale lock: %w", err)
		}
	}

	return fmt.Errorf("failed to acquire lock at %s", m.Path())
}

// Release removes the lock if runID holds it
func (m *Manager) Release(runID string) error {
	existing, err := m.loadLock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read existing lock: %w", err)
	}

	if existing.RunID != runID {
		return fmt.Errorf("cannot release lock: held by run %s, not %s", existing.RunID, runID)
	}
	if err := m.remove(); err != nil {
		return err
	}

	m.logger.Info("gpu.lock.released", "GPU host lock released", map[string]interface{}{
		"holder": existing.Holder,
	})
	return nil
}

// ForceUnlock removes the lock regardless of holder
func (m *Manager) ForceUnlock() (LockInfo, error) {
	existing, err := m.loadLock()
	if err != nil {
		if os.IsNotExist(err) {
			return LockInfo{}, nil
		}
		// An unreadable lock file is still removed
		m.logger.Warn("gpu.lock.corrupt", "Removing unreadable lock file", map[string]interface{}{
			"error": err.Error(),
		})
		return LockInfo{}, m.remove()
	}

	m.logger.Warn("gpu.lock.stolen", "GPU host lock forcibly removed", map[string]interface{}{
		"previous_holder": existing.Holder,
		"run_id":          existing.RunID,
		"age_seconds":     m.now().Sub(existing.SinceTS).Seconds(),
	})
	return *existing, m.remove()
}

// GetStatus returns the current lock holder; a free host yields an empty LockInfo
func (m *Manager) GetStatus() (LockInfo, error) {
	lock, err := m.loadLock()
	if err != nil {
		if os.IsNotExist(err) {
			return LockInfo{}, nil
		}
		return LockInfo{}, fmt.Errorf("failed to read lock: %w", err)
	}
	return *lock, nil
}

// IsLocked reports whether a live (non-stale) lease exists
func (m *Manager) IsLocked() (bool, error) {
	status, err := m.GetStatus()
	if err != nil {
		return false, err
	}
	if status.Free() {
		return false, nil
	}
	return m.now().Sub(status.SinceTS) <= m.leaseTimeout, nil
}

func (m *Manager) unreadableLock(loadErr error) (*LockInfo, error) {
	st, err := os.Stat(m.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to read existing lock: %w", loadErr)
	}
	m.logger.Warn("gpu.lock.corrupt", "Unreadable GPU host lock file", map[string]interface{}{
		"error":    loadErr.Error(),
		"modified": st.ModTime().UTC().Format(time.RFC3339),
	})
	return &LockInfo{SinceTS: st.ModTime().UTC()}, nil
}

func (m *Manager) create(info LockInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lock: %w", err)
	}

	f, err := os.OpenFile(m.Path(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(m.Path())
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	return f.Close()
}

func (m *Manager) remove() error {
	if err := os.Remove(m.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (m *Manager) loadLock() (*LockInfo, error) {
	data, err := os.ReadFile(m.Path())
	if err != nil {
		return nil, err
	}

	var lock LockInfo
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lock: %w", err)
	}
	return &lock, nil
}
