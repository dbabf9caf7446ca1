package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestProgressTrackerMonotonic(t *testing.T) {
	tests := []struct {
		name    string
		updates []int
		want    int
	}{
		{"increasing", []int{10, 20, 30}, 30},
		{"out of order ignored", []int{10, 5, 20}, 20},
		{"repeat ignored", []int{20, 20}, 20},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pt := NewProgressTracker()
			for _, u := range tc.updates {
				pt.Update(u)
			}
			if pt.current != tc.want {
				t.Errorf("current = %d, want %d", pt.current, tc.want)
			}
		})
	}
}

func TestProgressTrackerWaitForImmediate(t *testing.T) {
	pt := NewProgressTracker()
	pt.Update(50)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := pt.WaitFor(ctx, 30); err != nil {
		t.Fatalf("WaitFor: %v", err)
	}
}

func TestProgressTrackerWaitForResolvesOnThresholdCrossing(t *testing.T) {
	pt := NewProgressTracker()
	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- pt.WaitFor(ctx, 75)
	}()

	time.Sleep(10 * time.Millisecond)
	pt.Update(50)

	select {
	case err := <-done:
		t.Fatalf("WaitFor resolved before threshold crossed: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	pt.Update(75)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitFor: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitFor never resolved")
	}
}

func TestProgressTrackerRejectAll(t *testing.T) {
	pt := NewProgressTracker()
	done := make(chan error, 1)
	go func() {
		done <- pt.WaitFor(context.Background(), 90)
	}()
	time.Sleep(10 * time.Millisecond)

	wantErr := errors.New("boom")
	pt.RejectAll(wantErr)

	select {
	case err := <-done:
		if !errors.Is(err, wantErr) {
			t.Fatalf("err = %v, want %v", err, wantErr)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitFor never resolved")
	}

	// Idempotent: a second RejectAll must not panic or change behavior
	// (§8 "cleanup idempotence").
	pt.RejectAll(errors.New("second"))

	if err := pt.WaitFor(context.Background(), 0); !errors.Is(err, wantErr) {
		t.Fatalf("post-reject WaitFor = %v, want %v", err, wantErr)
	}
}

func TestProgressTrackerTimeout(t *testing.T) {
	pt := NewProgressTracker()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := pt.WaitFor(ctx, 50); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}
