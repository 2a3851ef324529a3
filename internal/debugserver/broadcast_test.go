package debugserver

import (
	"testing"
	"time"

	"github.com/hyprtagd/hyprtagd/internal/monitorset"
)

func newTestBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*client]bool),
		ms:       monitorset.New([]monitorset.Info{{ID: 0, Name: "DP-1", Focused: true}}),
		throttle: 5 * time.Millisecond,
	}
}

func TestQueueDeltaFlushesAfterThrottle(t *testing.T) {
	b := newTestBroadcaster()

	done := make(chan struct{})
	b.clients[&client{send: make(chan []byte, 1)}] = true
	var c *client
	for cl := range b.clients {
		c = cl
	}

	go func() {
		<-c.send
		close(done)
	}()

	b.QueueDelta(DeltaPayload{MonitorIndex: 0, Focus: "0xabc"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected a delta frame to be flushed within the throttle window")
	}
}

func TestSnapshotReflectsMonitorSet(t *testing.T) {
	b := newTestBroadcaster()
	snap := b.snapshot()
	if snap.ActiveMonitor != 0 {
		t.Errorf("ActiveMonitor = %d, want 0", snap.ActiveMonitor)
	}
	if len(snap.Monitors) != 1 || snap.Monitors[0].Name != "DP-1" {
		t.Errorf("Monitors = %+v", snap.Monitors)
	}
}

func TestClientCount(t *testing.T) {
	b := newTestBroadcaster()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", b.ClientCount())
	}
	b.clients[&client{send: make(chan []byte, 1)}] = true
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", b.ClientCount())
	}
}
