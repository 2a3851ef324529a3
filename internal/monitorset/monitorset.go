// Package monitorset owns one tagstate.TagState per physical monitor and
// routes events/commands to the currently-focused monitor's TagState.
package monitorset

import (
	"errors"
	"sync"

	"github.com/hyprtagd/hyprtagd/internal/tagstate"
)

// ErrUnknownMonitor is returned when an operation names a monitor that is
// not registered.
var ErrUnknownMonitor = errors.New("monitorset: unknown monitor")

// ErrAlreadyRegistered is returned by MonitorAdded when the name is already
// present.
var ErrAlreadyRegistered = errors.New("monitorset: monitor already registered")

// ErrLastMonitor is returned by MonitorRemoved when asked to remove the
// only remaining monitor (spec §9 open question (b): treated as a hard
// error, the monitor set is left unchanged).
var ErrLastMonitor = errors.New("monitorset: cannot remove the only monitor")

// ErrWindowElsewhere is returned by NewWindowAdded when addr is already
// tracked on a different monitor.
var ErrWindowElsewhere = errors.New("monitorset: window tracked on another monitor")

// Info describes one physical monitor, as reported by the topology query.
type Info struct {
	ID      int
	Name    string
	Focused bool
}

// Monitor pairs a physical monitor's identity with its tag state.
type Monitor struct {
	ID    int
	Name  string
	State *tagstate.TagState
}

// Changes wraps a tagstate.Changes with the monitor index it applies to, so
// the Dispatcher can compute workspace numbers.
type Changes struct {
	MonitorIndex int
	Changes      tagstate.Changes
}

// MonitorSet is the daemon's single top-level piece of state.
type MonitorSet struct {
	mu                 sync.Mutex
	monitors           []*Monitor
	activeMonitorIndex int
}

// New builds a MonitorSet from a topology snapshot, creating one empty
// TagState per monitor and focusing the reported-focused monitor (falling
// back to index 0).
func New(topology []Info) *MonitorSet {
	ms := &MonitorSet{}
	focused := 0
	for i, info := range topology {
		ms.monitors = append(ms.monitors, &Monitor{
			ID:    info.ID,
			Name:  info.Name,
			State: tagstate.New(),
		})
		if info.Focused {
			focused = i
		}
	}
	ms.activeMonitorIndex = focused
	return ms
}

// ActiveMonitorIndex returns the index of the currently-focused monitor.
func (ms *MonitorSet) ActiveMonitorIndex() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.activeMonitorIndex
}

// Monitors returns a shallow copy of the monitor list for read-only use
// (debug server snapshots).
func (ms *MonitorSet) Monitors() []*Monitor {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	out := make([]*Monitor, len(ms.monitors))
	copy(out, ms.monitors)
	return out
}

func (ms *MonitorSet) indexByName(name string) int {
	for i, m := range ms.monitors {
		if m.Name == name {
			return i
		}
	}
	return -1
}

// FocusedMonitorChanged sets the active monitor by name.
func (ms *MonitorSet) FocusedMonitorChanged(name string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	idx := ms.indexByName(name)
	if idx == -1 {
		return ErrUnknownMonitor
	}
	ms.activeMonitorIndex = idx
	return nil
}

// NewWindowAdded refuses addr if it is already tracked on any other
// monitor, then delegates to the active monitor's TagState.
func (ms *MonitorSet) NewWindowAdded(addr tagstate.WindowAddr) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for i, m := range ms.monitors {
		if i == ms.activeMonitorIndex {
			continue
		}
		if monitorHasWindow(m.State, addr) {
			return ErrWindowElsewhere
		}
	}
	return ms.active().NewWindowAdded(addr)
}

func monitorHasWindow(ts *tagstate.TagState, addr tagstate.WindowAddr) bool {
	for _, tag := range ts.Tags() {
		if tag == nil {
			continue
		}
		for _, w := range tag.Windows() {
			if w == addr {
				return true
			}
		}
	}
	return false
}

// WindowRemoved delegates to the active monitor's TagState.
func (ms *MonitorSet) WindowRemoved(addr tagstate.WindowAddr) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.active().WindowRemoved(addr)
}

// FocusWindowChanged delegates to the active monitor's TagState.
func (ms *MonitorSet) FocusWindowChanged(addr tagstate.WindowAddr) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.active().FocusWindowChanged(addr)
}

// SetVisibleTags delegates to the active monitor's TagState and wraps the
// result with the active monitor index.
func (ms *MonitorSet) SetVisibleTags(mask uint32) (Changes, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	c, err := ms.active().SetVisibleTags(mask)
	return Changes{MonitorIndex: ms.activeMonitorIndex, Changes: c}, err
}

// ToggleTag delegates to the active monitor's TagState.
func (ms *MonitorSet) ToggleTag(tag int) (Changes, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	c, err := ms.active().ToggleTag(tag)
	return Changes{MonitorIndex: ms.activeMonitorIndex, Changes: c}, err
}

// RestorePrevTags delegates to the active monitor's TagState.
func (ms *MonitorSet) RestorePrevTags() (Changes, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	c, err := ms.active().RestorePrevTags()
	return Changes{MonitorIndex: ms.activeMonitorIndex, Changes: c}, err
}

// MoveWindow delegates to the active monitor's TagState.
func (ms *MonitorSet) MoveWindow(destTag int, window *tagstate.WindowAddr) (Changes, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	c, err := ms.active().MoveWindow(destTag, window)
	return Changes{MonitorIndex: ms.activeMonitorIndex, Changes: c}, err
}

// NextMonitor returns (activeMonitorIndex + 1) mod N as a 0-based index.
func (ms *MonitorSet) NextMonitor() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return (ms.activeMonitorIndex + 1) % len(ms.monitors)
}

// MoveWindowToMonitor removes window from whichever monitor currently
// holds it (defaulting to the active monitor's active window) and adds it
// to destIdx's TagState.
func (ms *MonitorSet) MoveWindowToMonitor(destIdx int, window *tagstate.WindowAddr) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var addr tagstate.WindowAddr
	if window != nil {
		addr = *window
	} else if aw := ms.active().ActiveWindow(); aw != nil {
		addr = *aw
	} else {
		return tagstate.ErrNoActiveWindow
	}

	found := false
	for _, m := range ms.monitors {
		if err := m.State.WindowRemoved(addr); err == nil {
			found = true
			break
		}
	}
	if !found {
		return tagstate.ErrNotTracked
	}
	if destIdx < 0 || destIdx >= len(ms.monitors) {
		return ErrUnknownMonitor
	}
	return ms.monitors[destIdx].State.NewWindowAdded(addr)
}

// MonitorAdded integrates a newly-discovered monitor (already resolved by
// the caller's topology re-query, per spec §4.2/§9's async-race handling)
// and returns the list of (id, name) pairs to re-assert base workspace
// mappings for every monitor, mirroring original_source's
// reset_monitor_workspaces.
func (ms *MonitorSet) MonitorAdded(info Info) ([]Monitor, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.indexByName(info.Name) != -1 {
		return nil, ErrAlreadyRegistered
	}
	ms.monitors = append(ms.monitors, &Monitor{
		ID:    info.ID,
		Name:  info.Name,
		State: tagstate.New(),
	})
	return ms.snapshotLocked(), nil
}

func (ms *MonitorSet) snapshotLocked() []Monitor {
	out := make([]Monitor, len(ms.monitors))
	for i, m := range ms.monitors {
		out[i] = *m
	}
	return out
}

// MonitorRemoved migrates every window of the departing monitor to the
// first surviving monitor, then drops the Monitor entry. Returns
// ErrLastMonitor if name is the only registered monitor.
func (ms *MonitorSet) MonitorRemoved(name string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	removedIdx := ms.indexByName(name)
	if removedIdx == -1 {
		return ErrUnknownMonitor
	}
	if len(ms.monitors) == 1 {
		return ErrLastMonitor
	}

	survivorIdx := 0
	if removedIdx == 0 {
		survivorIdx = 1
	}

	departing := ms.monitors[removedIdx]
	for _, addr := range allWindowAddrs(departing.State) {
		if err := departing.State.WindowRemoved(addr); err != nil {
			continue
		}
		_ = ms.monitors[survivorIdx].State.NewWindowAdded(addr)
	}

	ms.monitors = append(ms.monitors[:removedIdx], ms.monitors[removedIdx+1:]...)
	if ms.activeMonitorIndex >= len(ms.monitors) {
		ms.activeMonitorIndex = len(ms.monitors) - 1
	} else if ms.activeMonitorIndex > removedIdx {
		ms.activeMonitorIndex--
	}
	return nil
}

func allWindowAddrs(ts *tagstate.TagState) []tagstate.WindowAddr {
	var out []tagstate.WindowAddr
	for _, tag := range ts.Tags() {
		if tag == nil {
			continue
		}
		out = append(out, tag.Windows()...)
	}
	return out
}

func (ms *MonitorSet) active() *tagstate.TagState {
	return ms.monitors[ms.activeMonitorIndex].State
}
