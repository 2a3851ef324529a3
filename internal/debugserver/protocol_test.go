package debugserver

import (
	"testing"

	"github.com/hyprtagd/hyprtagd/internal/health"
	"github.com/hyprtagd/hyprtagd/internal/monitorset"
	"github.com/hyprtagd/hyprtagd/internal/tagstate"
)

func TestRedactAddrMasksShortAddr(t *testing.T) {
	if got := redactAddr("0x1", true); got != "0x…" {
		t.Errorf("redactAddr short = %q", got)
	}
}

func TestRedactAddrNoop(t *testing.T) {
	if got := redactAddr("0xdeadbeef", false); got != "0xdeadbeef" {
		t.Errorf("redactAddr(false) should pass through, got %q", got)
	}
}

func TestRedactAddrTruncates(t *testing.T) {
	got := redactAddr("0xdeadbeef", true)
	if got != "0xdead…" {
		t.Errorf("redactAddr = %q, want 0xdead…", got)
	}
}

func TestToMonitorPayloadsIncludesWindows(t *testing.T) {
	ts := tagstate.New()
	if err := ts.NewWindowAdded("0xabc123"); err != nil {
		t.Fatal(err)
	}
	monitors := []*monitorset.Monitor{
		{ID: 0, Name: "DP-1", State: ts},
	}

	payloads := toMonitorPayloads(monitors, false)
	if len(payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(payloads))
	}
	p := payloads[0]
	if p.Name != "DP-1" || p.Index != 0 {
		t.Errorf("got %+v", p)
	}
	if len(p.Windows) != 1 || p.Windows[0] != "0xabc123" {
		t.Errorf("Windows = %v", p.Windows)
	}
}

func TestToHealthPayloadCopiesFields(t *testing.T) {
	hp := toHealthPayload(health.Status{Healthy: true, CPUPercent: 4.5, RSSBytes: 1024})
	if !hp.Healthy || hp.CPUPercent != 4.5 || hp.RSSBytes != 1024 {
		t.Errorf("got %+v", hp)
	}
}
