package system

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestWithTimeout(t *testing.T) {
	ctx := context.Background()
	derived, cancel := WithTimeout(ctx, 0)
	defer cancel()
	if _, ok := derived.Deadline(); ok {
		t.Fatalf("deadline should be absent when duration <= 0")
	}

	derived, cancel = WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if _, ok := derived.Deadline(); !ok {
		t.Fatalf("expected deadline for positive duration")
	}
}

func TestInstanceLockExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "guildbot.lock")

	first, err := AcquireInstanceLock(path)
	if err != nil {
		t.Fatalf("AcquireInstanceLock() error = %v", err)
	}
	if first.Path() != path {
		t.Fatalf("Path() = %q, want %q", first.Path(), path)
	}

	if _, err := AcquireInstanceLock(path); !errors.Is(err, ErrLocked) {
		t.Fatalf("second AcquireInstanceLock() error = %v, want ErrLocked", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	again, err := AcquireInstanceLock(path)
	if err != nil {
		t.Fatalf("AcquireInstanceLock() after release error = %v", err)
	}
	if err := again.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
}

func TestInstanceLockDisabled(t *testing.T) {
	lock, err := AcquireInstanceLock("")
	if err != nil {
		t.Fatalf("AcquireInstanceLock(\"\") error = %v", err)
	}
	if lock != nil {
		t.Fatalf("expected nil lock for empty path")
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release() on nil lock error = %v", err)
	}
	if lock.Path() != "" {
		t.Fatalf("Path() on nil lock = %q, want empty", lock.Path())
	}
}
