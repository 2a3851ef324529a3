// Package dispatcher translates monitorset.Changes into ordered batches of
// window-manager primitives (spec §4.3).
package dispatcher

import (
	"fmt"

	"github.com/hyprtagd/hyprtagd/internal/monitorset"
	"github.com/hyprtagd/hyprtagd/internal/tagstate"
)

// ParkingBase is added to tag id + 32*monitorIndex to compute a parking
// workspace number for hidden windows (spec §6).
const ParkingBase = 100

// TagsPerMonitor is the per-monitor stride used to keep parking workspaces
// disjoint across monitors.
const TagsPerMonitor = 32

// Primitive is one outbound window-manager command, already formatted as
// the argument to a `hyprctl --batch` dispatch.
type Primitive string

// MoveToWorkspaceSilent hides/reveals addr onto workspace ws without
// switching the visible workspace.
func MoveToWorkspaceSilent(ws int, addr tagstate.WindowAddr) Primitive {
	return Primitive(fmt.Sprintf("dispatch movetoworkspacesilent %d,address:0x%s", ws, addr))
}

// FocusWindow focuses addr.
func FocusWindow(addr tagstate.WindowAddr) Primitive {
	return Primitive(fmt.Sprintf("dispatch focuswindow address:0x%s", addr))
}

// MoveToWorkspace switches the visible workspace to ws.
func MoveToWorkspace(ws int) Primitive {
	return Primitive(fmt.Sprintf("dispatch movetoworkspace %d", ws))
}

// MoveWorkspaceToMonitor reassigns workspace ws to the named monitor.
func MoveWorkspaceToMonitor(ws int, monitorName string) Primitive {
	return Primitive(fmt.Sprintf("dispatch moveworkspacetomonitor %d %s", ws, monitorName))
}

// VisibleWorkspace returns the workspace number holding the currently
// visible windows of the monitor at index monitorIndex (0-based).
func VisibleWorkspace(monitorIndex int) int {
	return monitorIndex + 1
}

// ParkingWorkspace returns the workspace number used to hide windows of
// tagID on the monitor at index monitorIndex.
func ParkingWorkspace(tagID, monitorIndex int) int {
	return tagID + ParkingBase + TagsPerMonitor*monitorIndex
}

// Build translates a wrapped Changes record into an ordered primitive
// batch: removed windows parked first, then added windows revealed, then
// an optional focus command (spec §4.3 steps 1-3).
func Build(wc monitorset.Changes) []Primitive {
	var batch []Primitive
	for _, w := range wc.Changes.Removed {
		ws := ParkingWorkspace(w.Tag, wc.MonitorIndex)
		batch = append(batch, MoveToWorkspaceSilent(ws, w.Addr))
	}
	for _, w := range wc.Changes.Added {
		ws := VisibleWorkspace(wc.MonitorIndex)
		batch = append(batch, MoveToWorkspaceSilent(ws, w.Addr))
	}
	if wc.Changes.Focus != nil {
		batch = append(batch, FocusWindow(*wc.Changes.Focus))
	}
	return batch
}

// CrossMonitorMove returns the primitive batch for a cross-monitor window
// move: a single switch to the destination monitor's visible workspace. The
// state mutation via MonitorSet.MoveWindowToMonitor is left to the caller.
// No differential Changes diff is produced for this operation (spec §4.3).
func CrossMonitorMove(destMonitorIndex int) []Primitive {
	return []Primitive{MoveToWorkspace(VisibleWorkspace(destMonitorIndex))}
}

// ResetMonitorWorkspaces re-asserts every monitor's base workspace mapping,
// used after monitor_added integrates a new monitor (spec SPEC_FULL §"Supplemented
// features", grounded on original_source's reset_monitor_workspaces).
func ResetMonitorWorkspaces(monitors []monitorset.Monitor) []Primitive {
	batch := make([]Primitive, 0, len(monitors))
	for i, m := range monitors {
		batch = append(batch, MoveWorkspaceToMonitor(VisibleWorkspace(i), m.Name))
	}
	return batch
}
