package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"contest-grading-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestLockerSerializesKey(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	locker := NewLocker(newClient(mr), time.Minute)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "c1/u1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !mr.Exists("grading:lock:c1/u1") {
		t.Fatalf("expected lock key to be set")
	}

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(waitCtx, "c1/u1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline while held, got %v", err)
	}

	other, err := locker.Lock(ctx, "c1/u2")
	if err != nil {
		t.Fatalf("independent key should lock: %v", err)
	}
	other()

	unlock()
	unlock()
	if mr.Exists("grading:lock:c1/u1") {
		t.Fatalf("expected lock key to be removed")
	}
	again, err := locker.Lock(ctx, "c1/u1")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
}

func TestLockerDoesNotReleaseForeignLease(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	locker := NewLocker(newClient(mr), time.Second)
	unlock, err := locker.Lock(context.Background(), "c1/u1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	// lease expires and another instance takes it
	mr.FastForward(2 * time.Second)
	if err := mr.Set("grading:lock:c1/u1", "someone-else"); err != nil {
		t.Fatalf("set: %v", err)
	}

	unlock()
	if got, _ := mr.Get("grading:lock:c1/u1"); got != "someone-else" {
		t.Fatalf("expected foreign lease kept, got %q", got)
	}
}

func TestLockerReportsUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	_, err = NewLocker(client, time.Second).Lock(context.Background(), "c1/u1")
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}
