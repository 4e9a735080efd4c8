package gpulock

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gpustack/internal/logging"
)

func newTestManager(t *testing.T) (*Manager, *time.Time) {
	t.Helper()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(t.TempDir(), logging.Nop())
	m.now = func() time.Time { return now }
	return m, &now
}

func TestNewManager(t *testing.T) {
	m := NewManager("/tmp/state", logging.Nop())

	if m.leaseTimeout != DefaultLeaseTimeout {
		t.Errorf("Expected default lease timeout %v, got %v", DefaultLeaseTimeout, m.leaseTimeout)
	}
	if m.Path() != filepath.Join("/tmp/state", LockFileName) {
		t.Errorf("Unexpected lock path %s", m.Path())
	}
}

func TestAcquire_Success(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.Acquire("setup", "run-1"); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if _, err := os.Stat(m.Path()); err != nil {
		t.Fatalf("Lock file was not created: %v", err)
	}

	status, err := m.GetStatus()
	if err != nil {
		t.Fatal(err)
	}
	if status.Holder != "setup" || status.RunID != "run-1" || status.PID != os.Getpid() {
		t.Errorf("Unexpected status %+v", status)
	}
}

func TestAcquire_SameRunIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.Acquire("setup", "run-1"); err != nil {
		t.Fatal(err)
	}
	if err := m.Acquire("setup", "run-1"); err != nil {
		t.Errorf("Expected re-acquire by the same run to succeed, got %v", err)
	}
}

func TestAcquire_HeldByOtherRun(t *testing.T) {
	m, now := newTestManager(t)

	if err := m.Acquire("setup", "run-1"); err != nil {
		t.Fatal(err)
	}
	*now = now.Add(2 * time.Minute)

	err := m.Acquire("pull", "run-2")
	if !errors.Is(err, ErrHeld) {
		t.Fatalf("Expected ErrHeld, got %v", err)
	}
	var held *HeldError
	if !errors.As(err, &held) || held.Info.RunID != "run-1" || held.Age != 2*time.Minute {
		t.Errorf("Unexpected held error %+v", held)
	}
}

func TestAcquire_TakesOverStaleLease(t *testing.T) {
	m, now := newTestManager(t)

	if err := m.Acquire("setup", "run-1"); err != nil {
		t.Fatal(err)
	}
	*now = now.Add(DefaultLeaseTimeout + time.Second)

	if err := m.Acquire("setup", "run-2"); err != nil {
		t.Fatalf("Expected stale lease to be taken over, got %v", err)
	}
	status, _ := m.GetStatus()
	if status.RunID != "run-2" {
		t.Errorf("Expected run-2 to hold the lock, got %s", status.RunID)
	}
}

func TestAcquire_UnreadableFreshLockIsHeld(t *testing.T) {
	m, now := newTestManager(t)
	if err := os.WriteFile(m.Path(), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(m.Path(), *now, now.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	err := m.Acquire("setup", "run-1")
	if !errors.Is(err, ErrHeld) {
		t.Fatalf("Expected ErrHeld for a fresh unreadable lock, got %v", err)
	}
	if !strings.Contains(err.Error(), "unreadable") {
		t.Errorf("Unexpected error message %q", err.Error())
	}
}

func TestAcquire_TakesOverUnreadableStaleLock(t *testing.T) {
	m, now := newTestManager(t)
	if err := os.WriteFile(m.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	old := now.Add(-DefaultLeaseTimeout - time.Minute)
	if err := os.Chtimes(m.Path(), old, old); err != nil {
		t.Fatal(err)
	}

	if err := m.Acquire("setup", "run-1"); err != nil {
		t.Fatalf("Expected stale unreadable lock to be taken over, got %v", err)
	}
	status, err := m.GetStatus()
	if err != nil || status.RunID != "run-1" {
		t.Errorf("Expected run-1 to hold the lock, got %+v (%v)", status, err)
	}
}

func TestAcquire_RequiresRunID(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Acquire("setup", ""); err == nil {
		t.Error("Expected error for empty run id")
	}
}

func TestRelease(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.Acquire("setup", "run-1"); err != nil {
		t.Fatal(err)
	}
	if err := m.Release("run-2"); err == nil {
		t.Error("Expected release by another run to fail")
	}
	if err := m.Release("run-1"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(m.Path()); !os.IsNotExist(err) {
		t.Error("Expected lock file to be removed")
	}
	if err := m.Release("run-1"); err != nil {
		t.Errorf("Expected releasing a free lock to succeed, got %v", err)
	}
}

func TestForceUnlock(t *testing.T) {
	m, _ := newTestManager(t)

	if err := m.Acquire("pull", "run-9"); err != nil {
		t.Fatal(err)
	}
	previous, err := m.ForceUnlock()
	if err != nil {
		t.Fatalf("ForceUnlock() error = %v", err)
	}
	if previous.RunID != "run-9" {
		t.Errorf("Expected previous holder run-9, got %+v", previous)
	}

	locked, err := m.IsLocked()
	if err != nil || locked {
		t.Errorf("Expected host unlocked, got locked=%v err=%v", locked, err)
	}
}

func TestForceUnlock_CorruptFile(t *testing.T) {
	m, _ := newTestManager(t)
	if err := os.WriteFile(m.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := m.ForceUnlock(); err != nil {
		t.Fatalf("ForceUnlock() error = %v", err)
	}
	if _, err := os.Stat(m.Path()); !os.IsNotExist(err) {
		t.Error("Expected corrupt lock file to be removed")
	}
}

func TestIsLocked_StaleLeaseIsFree(t *testing.T) {
	m, now := newTestManager(t)

	if err := m.Acquire("setup", "run-1"); err != nil {
		t.Fatal(err)
	}
	if locked, _ := m.IsLocked(); !locked {
		t.Error("Expected fresh lease to be locked")
	}

	*now = now.Add(DefaultLeaseTimeout + time.Minute)
	if locked, _ := m.IsLocked(); locked {
		t.Error("Expected stale lease to count as unlocked")
	}
}
