package daemon

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyprtagd/hyprtagd/internal/ctrlsock"
	"github.com/hyprtagd/hyprtagd/internal/debugserver"
	"github.com/hyprtagd/hyprtagd/internal/monitorset"
	"github.com/hyprtagd/hyprtagd/internal/wm"
)

type fakeDebug struct {
	mu     sync.Mutex
	deltas []debugserver.DeltaPayload
}

func (f *fakeDebug) QueueDelta(d debugserver.DeltaPayload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deltas = append(f.deltas, d)
}

func (f *fakeDebug) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deltas)
}

func newTestLoop(t *testing.T, sources []wm.Source, debug Debug) (*EventLoop, *monitorset.MonitorSet) {
	t.Helper()
	ms := monitorset.New([]monitorset.Info{{ID: 0, Name: "DP-1", Focused: true}})
	writer := wm.NewWriter("true", nil)
	ctrl, err := ctrlsock.NewListener(filepath.Join(t.TempDir(), "ctrl.sock"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ctrl.Close() })

	topologyFn := func(context.Context) ([]wm.MonitorInfo, error) {
		return []wm.MonitorInfo{{ID: 0, Name: "DP-1", Focused: true}, {ID: 1, Name: "DP-2"}}, nil
	}
	return New(ms, writer, ctrl, sources, topologyFn, debug, nil), ms
}

func runUntilIdle(t *testing.T, l *EventLoop) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	return cancel
}

func TestEventLoopOpenAndFocusWindow(t *testing.T) {
	src := &wm.FixtureSource{Events: []wm.FixtureEvent{
		{After: time.Millisecond, Event: wm.RawEvent{Name: "activewindowv2", Arg0: "0xabc"}},
	}}
	debug := &fakeDebug{}
	l, ms := newTestLoop(t, []wm.Source{src}, debug)
	cancel := runUntilIdle(t, l)
	defer cancel()

	waitFor(t, func() bool {
		mon := ms.Monitors()[0]
		return mon.State.ActiveWindow() != nil
	})
}

func TestEventLoopCloseWindowUntracked(t *testing.T) {
	src := &wm.FixtureSource{Events: []wm.FixtureEvent{
		{After: time.Millisecond, Event: wm.RawEvent{Name: "closewindow", Arg0: "0xnotthere"}},
	}}
	l, _ := newTestLoop(t, []wm.Source{src}, nil)
	cancel := runUntilIdle(t, l)
	defer cancel()
	time.Sleep(20 * time.Millisecond) // should not panic or deadlock
}

func TestEventLoopCloseWindowUntrackedIsLogged(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	ms := monitorset.New([]monitorset.Info{{ID: 0, Name: "DP-1", Focused: true}})
	writer := wm.NewWriter("true", nil)
	ctrl, err := ctrlsock.NewListener(filepath.Join(t.TempDir(), "ctrl.sock"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ctrl.Close()
	l := New(ms, writer, ctrl, nil, nil, nil, log)

	l.handleEvent(context.Background(), wm.RawEvent{Name: "closewindow", Arg0: "0xnotthere"})

	if !strings.Contains(buf.String(), "closewindow") {
		t.Fatalf("expected an untracked closewindow to be logged, got %q", buf.String())
	}
}

func TestEventLoopControlCommandShow(t *testing.T) {
	debug := &fakeDebug{}
	l, ms := newTestLoop(t, nil, debug)
	cancel := runUntilIdle(t, l)
	defer cancel()

	cmd := ctrlsock.Command{Kind: ctrlsock.CmdShow, Tag: 2}
	l.handleCommand(cmd)

	waitFor(t, func() bool {
		return ms.Monitors()[0].State.VisibleTags()&(1<<1) != 0
	})
	if debug.count() == 0 {
		t.Fatal("expected at least one delta queued to the debug broadcaster")
	}
}

func TestEventLoopMoveToNextMonitor(t *testing.T) {
	ms := monitorset.New([]monitorset.Info{
		{ID: 0, Name: "DP-1", Focused: true},
		{ID: 1, Name: "DP-2"},
	})
	if err := ms.NewWindowAdded("0xabc"); err != nil {
		t.Fatal(err)
	}
	if err := ms.FocusWindowChanged("0xabc"); err != nil {
		t.Fatal(err)
	}

	writer := wm.NewWriter("true", nil)
	ctrl, err := ctrlsock.NewListener(filepath.Join(t.TempDir(), "ctrl.sock"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ctrl.Close()
	l := New(ms, writer, ctrl, nil, nil, nil, nil)

	l.handleMoveToNextMonitor()

	if ms.ActiveMonitorIndex() != 0 {
		// Active monitor focus itself is unaffected by a window move;
		// only membership should change.
		t.Fatalf("ActiveMonitorIndex = %d, want 0", ms.ActiveMonitorIndex())
	}
	found := false
	for _, m := range ms.Monitors() {
		for _, w := range m.State.Tags() {
			for _, addr := range w.Windows() {
				if addr == "0xabc" {
					found = true
				}
			}
		}
	}
	if !found {
		t.Fatal("expected window to still be tracked somewhere after the move")
	}
}

func TestEventLoopMonitorAddedIntegratesAsynchronously(t *testing.T) {
	src := &wm.FixtureSource{Events: []wm.FixtureEvent{
		{After: time.Millisecond, Event: wm.RawEvent{Name: "monitoraddedv2", Arg0: "DP-2"}},
	}}
	l, ms := newTestLoop(t, []wm.Source{src}, nil)
	cancel := runUntilIdle(t, l)
	defer cancel()

	waitFor(t, func() bool {
		return len(ms.Monitors()) == 2
	})
}

func TestEventLoopMonitorAddedUnknownNameIsDropped(t *testing.T) {
	src := &wm.FixtureSource{Events: []wm.FixtureEvent{
		{After: time.Millisecond, Event: wm.RawEvent{Name: "monitoraddedv2", Arg0: "does-not-exist"}},
	}}
	l, ms := newTestLoop(t, []wm.Source{src}, nil)
	cancel := runUntilIdle(t, l)
	defer cancel()

	time.Sleep(30 * time.Millisecond)
	if len(ms.Monitors()) != 1 {
		t.Fatalf("expected monitor set to stay at 1, got %d", len(ms.Monitors()))
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
