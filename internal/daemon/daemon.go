// Package daemon wires the event source, the control socket, the
// monitor-scoped tag state, and the window manager writer into a single
// cooperative event loop (spec §4.4, §5). Grounded on the teacher's
// internal/monitor.Monitor.Start/poll select-loop shape.
package daemon

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hyprtagd/hyprtagd/internal/ctrlsock"
	"github.com/hyprtagd/hyprtagd/internal/debugserver"
	"github.com/hyprtagd/hyprtagd/internal/dispatcher"
	"github.com/hyprtagd/hyprtagd/internal/monitorset"
	"github.com/hyprtagd/hyprtagd/internal/tagstate"
	"github.com/hyprtagd/hyprtagd/internal/wm"
)

const (
	eventOpenWindow     = "openwindow"
	eventCloseWindow    = "closewindow"
	eventActiveWindow   = "activewindowv2"
	eventFocusedMonitor = "focusedmon"
	eventMonitorAdded   = "monitoraddedv2"
	eventMonitorRemoved = "monitorremoved"
)

// errMonitorNotInTopology means a monitoraddedv2 event named a monitor that
// had already disappeared by the time the requery completed.
var errMonitorNotInTopology = errors.New("daemon: monitor not present in requeried topology")

// Debug is the narrow surface the event loop needs from a debug server,
// satisfied by *debugserver.Broadcaster; nil-able so debug mode is optional.
type Debug interface {
	QueueDelta(debugserver.DeltaPayload)
}

// monitorAddedResult is posted back onto the event loop's own channel once
// the detached topology requery (spawned by spawnMonitorAddedRequery) resolves,
// so the actual MonitorSet mutation still happens on the single event-loop
// goroutine (spec §9, original_source/monitor.rs).
type monitorAddedResult struct {
	name string
	info monitorset.Info
	err  error
}

// EventLoop owns the daemon's single piece of mutable state and is the
// only goroutine that mutates it, per spec §5 ("all state mutation happens
// on a single goroutine").
type EventLoop struct {
	ms         *monitorset.MonitorSet
	writer     *wm.Writer
	ctrl       *ctrlsock.Listener
	sources    []wm.Source
	topologyFn func(context.Context) ([]wm.MonitorInfo, error)
	debug      Debug
	log        *slog.Logger

	monitorAdded chan monitorAddedResult
}

// New constructs an EventLoop. topologyFn is injected so monitor-added
// handling can be exercised without shelling out to hyprctl in tests.
func New(ms *monitorset.MonitorSet, writer *wm.Writer, ctrl *ctrlsock.Listener, sources []wm.Source, topologyFn func(context.Context) ([]wm.MonitorInfo, error), debug Debug, log *slog.Logger) *EventLoop {
	if log == nil {
		log = slog.Default()
	}
	return &EventLoop{
		ms: ms, writer: writer, ctrl: ctrl, sources: sources, topologyFn: topologyFn, debug: debug, log: log,
		monitorAdded: make(chan monitorAddedResult, 4),
	}
}

// Run multiplexes event-source output and control commands until ctx is
// cancelled or a source/listener terminates (spec §5: "on EOF of either
// socket... the event loop terminates").
func (l *EventLoop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan wm.RawEvent, 64)
	commands := make(chan ctrlsock.Command, ctrlsock.QueueCapacity)
	done := make(chan error, len(l.sources)+1)

	for _, src := range l.sources {
		src := src
		go func() {
			err := src.Run(ctx, events)
			done <- err
		}()
	}
	go func() {
		err := l.ctrl.Serve(ctx, commands)
		done <- err
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-done:
			cancel()
			return err
		case ev := <-events:
			l.handleEvent(ctx, ev)
		case cmd := <-commands:
			l.handleCommand(cmd)
		case res := <-l.monitorAdded:
			l.integrateMonitorAdded(res)
		}
	}
}

func (l *EventLoop) handleEvent(ctx context.Context, ev wm.RawEvent) {
	switch ev.Name {
	case eventOpenWindow:
		// Window content arrives on activewindowv2; openwindow is
		// intentionally a no-op (original_source/src/main.rs).
	case eventCloseWindow:
		if err := l.ms.WindowRemoved(tagstate.WindowAddr(ev.Arg0)); err != nil {
			l.log.Warn("closewindow", "addr", ev.Arg0, "err", err)
		}
	case eventActiveWindow:
		if err := l.ms.FocusWindowChanged(tagstate.WindowAddr(ev.Arg0)); err != nil {
			l.log.Warn("activewindowv2", "addr", ev.Arg0, "err", err)
		}
	case eventFocusedMonitor:
		if err := l.ms.FocusedMonitorChanged(ev.Arg0); err != nil {
			l.log.Warn("focusedmon", "name", ev.Arg0, "err", err)
		}
	case eventMonitorAdded:
		l.spawnMonitorAddedRequery(ctx, ev.Arg0)
	case eventMonitorRemoved:
		if err := l.ms.MonitorRemoved(ev.Arg0); err != nil {
			l.log.Warn("monitorremoved", "name", ev.Arg0, "err", err)
		}
	default:
		l.log.Debug("ignoring event", "name", ev.Name)
	}
}

// spawnMonitorAddedRequery runs the topology requery on a detached
// goroutine and posts the result back onto l.monitorAdded, so the slow
// subprocess call never blocks the event loop (spec §9, grounded on original_source/monitor.rs's async requery + posted message).
func (l *EventLoop) spawnMonitorAddedRequery(ctx context.Context, name string) {
	go func() {
		topo, err := l.topologyFn(ctx)
		if err != nil {
			l.monitorAdded <- monitorAddedResult{name: name, err: err}
			return
		}
		for _, m := range topo {
			if m.Name == name {
				l.monitorAdded <- monitorAddedResult{
					name: name,
					info: monitorset.Info{ID: m.ID, Name: m.Name, Focused: m.Focused},
				}
				return
			}
		}
		l.monitorAdded <- monitorAddedResult{name: name, err: errMonitorNotInTopology}
	}()
}

// integrateMonitorAdded runs on the event-loop goroutine and performs the
// actual MonitorSet mutation once a requery result arrives.
func (l *EventLoop) integrateMonitorAdded(res monitorAddedResult) {
	if res.err != nil {
		l.log.Warn("monitoraddedv2: topology requery failed", "name", res.name, "err", res.err)
		return
	}
	monitors, err := l.ms.MonitorAdded(res.info)
	if err != nil {
		l.log.Warn("monitoraddedv2", "name", res.name, "err", err)
		return
	}
	l.writer.Dispatch(dispatcher.ResetMonitorWorkspaces(monitors))
}

func (l *EventLoop) handleCommand(cmd ctrlsock.Command) {
	switch cmd.Kind {
	case ctrlsock.CmdShow:
		l.applyChanges(l.ms.SetVisibleTags(1 << uint(cmd.Tag-1)))
	case ctrlsock.CmdToggle:
		l.applyChanges(l.ms.ToggleTag(cmd.Tag))
	case ctrlsock.CmdMove:
		l.applyChanges(l.ms.MoveWindow(cmd.Tag, nil))
	case ctrlsock.CmdRestore:
		l.applyChanges(l.ms.RestorePrevTags())
	case ctrlsock.CmdMoveToNextMonitor:
		l.handleMoveToNextMonitor()
	}
}

func (l *EventLoop) applyChanges(wc monitorset.Changes, err error) {
	if err != nil {
		l.log.Warn("command rejected", "err", err)
		return
	}
	l.writer.Dispatch(dispatcher.Build(wc))
	l.publishDelta(wc)
}

// handleMoveToNextMonitor dispatches the workspace-switch primitive first,
// then mutates state, per spec §4.3/§9: the window-manager side effect and
// the state mutation are not atomic with respect to each other, matching
// original_source's monitor-move handling.
func (l *EventLoop) handleMoveToNextMonitor() {
	dest := l.ms.NextMonitor()
	l.writer.Dispatch(dispatcher.CrossMonitorMove(dest))
	if err := l.ms.MoveWindowToMonitor(dest, nil); err != nil {
		l.log.Warn("move_to_next_monitor", "dest", dest, "err", err)
	}
}

func (l *EventLoop) publishDelta(wc monitorset.Changes) {
	if l.debug == nil {
		return
	}
	d := debugserver.DeltaPayload{MonitorIndex: wc.MonitorIndex}
	for _, w := range wc.Changes.Added {
		d.Added = append(d.Added, string(w.Addr))
	}
	for _, w := range wc.Changes.Removed {
		d.Removed = append(d.Removed, string(w.Addr))
	}
	if wc.Changes.Focus != nil {
		d.Focus = string(*wc.Changes.Focus)
	}
	l.debug.QueueDelta(d)
}
