package health

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCheckMissingSocketRecordsFailure(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir, filepath.Join(dir, "event.sock"), filepath.Join(dir, "ctrl.sock"), time.Second, 1, nil)

	w.check(context.Background())

	st := w.Status()
	if st.Healthy {
		t.Fatal("expected unhealthy with missing sockets")
	}
	if st.ConsecutiveFails != 1 {
		t.Fatalf("ConsecutiveFails = %d, want 1", st.ConsecutiveFails)
	}
	if st.LastError == "" {
		t.Fatal("expected LastError to be set")
	}
}

func TestCheckStaysHealthyBelowThreshold(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir, filepath.Join(dir, "event.sock"), filepath.Join(dir, "ctrl.sock"), time.Second, 3, nil)

	w.check(context.Background())
	w.check(context.Background())

	st := w.Status()
	if !st.Healthy {
		t.Fatal("expected healthy while failures are below threshold")
	}
	if st.ConsecutiveFails != 2 {
		t.Fatalf("ConsecutiveFails = %d, want 2", st.ConsecutiveFails)
	}
}

func TestCheckUnhealthyAtThreshold(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir, filepath.Join(dir, "event.sock"), filepath.Join(dir, "ctrl.sock"), time.Second, 2, nil)

	w.check(context.Background())
	w.check(context.Background())

	if w.Status().Healthy {
		t.Fatal("expected unhealthy once failures reach threshold")
	}
}

func TestCheckKeepsFailingWithoutPIDFile(t *testing.T) {
	dir := t.TempDir()
	eventSock := filepath.Join(dir, "event.sock")
	ctrlSock := filepath.Join(dir, "ctrl.sock")
	w := NewWatcher(dir, eventSock, ctrlSock, time.Second, 3, nil)

	w.check(context.Background())
	if w.Status().Healthy == false && w.Status().ConsecutiveFails == 0 {
		t.Fatal("sanity check failed")
	}

	if err := os.WriteFile(eventSock, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ctrlSock, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	// compositorPID lookup still fails (no .pid file), so the failure count
	// keeps advancing, but the failure should now be about the PID file, not
	// the sockets.
	w.check(context.Background())
	if w.Status().ConsecutiveFails < 2 {
		t.Fatal("expected failure count to keep advancing without a pid file")
	}
	if !strings.Contains(w.Status().LastError, "/.pid") {
		t.Fatalf("LastError = %q, want a pid file error", w.Status().LastError)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir, filepath.Join(dir, "event.sock"), filepath.Join(dir, "ctrl.sock"), 5*time.Millisecond, 3, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
