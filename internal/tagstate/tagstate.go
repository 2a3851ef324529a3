// Package tagstate implements the per-monitor dynamic-tagging state machine:
// 32 independent tags, a visibility bitmask, and the active window/tag
// tracking that drives differential window-manager updates.
package tagstate

import (
	"errors"
	"sort"
)

// NumTags is the number of independent tags carried per monitor.
const NumTags = 32

// ErrAlreadyTracked is returned by NewWindowAdded when the address is
// already recorded somewhere in this TagState.
var ErrAlreadyTracked = errors.New("tagstate: window already tracked")

// ErrNotTracked is returned by WindowRemoved and MoveWindow when the
// address is not recorded in this TagState.
var ErrNotTracked = errors.New("tagstate: window not tracked")

// ErrMaskEmpty is returned by SetVisibleTags when the requested mask would
// leave zero tags visible.
var ErrMaskEmpty = errors.New("tagstate: at least one tag must be visible")

// ErrNoActiveWindow is returned by MoveWindow when no window is given and
// none is currently active.
var ErrNoActiveWindow = errors.New("tagstate: no active window")

// ErrSameTag is returned by MoveWindow when the window is already on the
// destination tag.
var ErrSameTag = errors.New("tagstate: window already on destination tag")

// ErrInvalidTag is returned when a tag id outside 1..=32 is supplied.
var ErrInvalidTag = errors.New("tagstate: tag id out of range")

// WindowAddr identifies a window. Assigned by the host window manager;
// opaque and unique across the daemon.
type WindowAddr string

// Tag is one of the 32 independent window groupings per monitor.
type Tag struct {
	ID      int
	windows []WindowAddr
}

func newTag(id int) *Tag {
	return &Tag{ID: id}
}

// Windows returns the tag's windows in insertion order. The returned slice
// must not be mutated by the caller.
func (t *Tag) Windows() []WindowAddr { return t.windows }

// WindowInfo is a value describing a window's current tag. Equality is by
// Addr only — Tag is carried as context for the Dispatcher and must not
// affect set-difference comparisons.
type WindowInfo struct {
	Addr WindowAddr
	Tag  int
}

// Changes is a differential record: windows to reveal, windows to hide, and
// an optional new focus target. Added and Removed are always disjoint.
type Changes struct {
	Added   []WindowInfo
	Removed []WindowInfo
	Focus   *WindowAddr
}

// TagState is the per-monitor tag-visibility state machine described in
// spec §4.1. Zero value is not valid; use New.
type TagState struct {
	tags           [NumTags]*Tag
	visibleTags    uint32
	prevTags       uint32
	activeTagIndex int
	activeWindow   *WindowAddr
}

// New returns a fresh, empty TagState: tag 1 visible, no active window.
func New() *TagState {
	ts := &TagState{
		visibleTags:    1,
		prevTags:       1,
		activeTagIndex: 0,
	}
	for i := range ts.tags {
		ts.tags[i] = newTag(i + 1)
	}
	return ts
}

// VisibleTags returns the current visibility bitmask.
func (ts *TagState) VisibleTags() uint32 { return ts.visibleTags }

// ActiveTagIndex returns the 0-based index of the active tag.
func (ts *TagState) ActiveTagIndex() int { return ts.activeTagIndex }

// ActiveWindow returns the active window address, if any.
func (ts *TagState) ActiveWindow() *WindowAddr { return ts.activeWindow }

// Tags returns the 32 tags in order, for read-only inspection (debug server).
func (ts *TagState) Tags() [NumTags]*Tag { return ts.tags }

// NewWindowAdded adds addr to the tag at activeTagIndex. Fails with
// ErrAlreadyTracked if addr is already recorded anywhere in this TagState.
func (ts *TagState) NewWindowAdded(addr WindowAddr) error {
	if _, _, ok := ts.find(addr); ok {
		return ErrAlreadyTracked
	}
	tag := ts.tags[ts.activeTagIndex]
	tag.windows = append(tag.windows, addr)
	return nil
}

// WindowRemoved removes addr from whichever tag holds it. Fails with
// ErrNotTracked if addr is not recorded.
func (ts *TagState) WindowRemoved(addr WindowAddr) error {
	tagIdx, winIdx, ok := ts.find(addr)
	if !ok {
		return ErrNotTracked
	}
	tag := ts.tags[tagIdx]
	tag.windows = append(tag.windows[:winIdx], tag.windows[winIdx+1:]...)
	if ts.activeWindow != nil && *ts.activeWindow == addr {
		ts.activeWindow = nil
	}
	return nil
}

// FocusWindowChanged records addr as the active window. If addr is unknown
// it is first implicitly added to the active tag (never fails afterward).
func (ts *TagState) FocusWindowChanged(addr WindowAddr) error {
	if _, _, ok := ts.find(addr); !ok {
		if err := ts.NewWindowAdded(addr); err != nil {
			return err
		}
	}
	ts.activeWindow = &addr
	return nil
}

// SetVisibleTags replaces the visibility mask. Fails with ErrMaskEmpty if
// mask == 0. See spec §4.1 for the six-step algorithm implemented here.
func (ts *TagState) SetVisibleTags(mask uint32) (Changes, error) {
	if mask == 0 {
		return Changes{}, ErrMaskEmpty
	}

	w1 := ts.visibleWindows()

	ts.prevTags = ts.visibleTags
	ts.visibleTags = mask

	var firstWindow *WindowAddr
	firstTagIndex := -1
	for n := 0; n < NumTags; n++ {
		if mask&(1<<uint(n)) == 0 {
			continue
		}
		if firstTagIndex == -1 {
			firstTagIndex = n
		}
		if firstWindow == nil && len(ts.tags[n].windows) > 0 {
			w := ts.tags[n].windows[0]
			firstWindow = &w
		}
	}

	w2 := ts.visibleWindows()
	added, removed := windowDiff(w1, w2)

	var focus *WindowAddr
	if ts.activeWindow != nil {
		if tagIdx, _, ok := ts.find(*ts.activeWindow); ok && mask&(1<<uint(tagIdx)) != 0 {
			ts.activeTagIndex = tagIdx
			addr := *ts.activeWindow
			return Changes{Added: added, Removed: removed, Focus: &addr}, nil
		}
	}
	ts.activeTagIndex = firstTagIndex
	ts.activeWindow = nil
	focus = firstWindow

	return Changes{Added: added, Removed: removed, Focus: focus}, nil
}

// RestorePrevTags swaps back to the previously-visible mask. Because
// SetVisibleTags always snapshots the current mask into prevTags before
// applying the new one, calling RestorePrevTags twice in a row returns to
// the original mask.
func (ts *TagState) RestorePrevTags() (Changes, error) {
	return ts.SetVisibleTags(ts.prevTags)
}

// ToggleTag flips the visibility bit for tag (1-based) and delegates to
// SetVisibleTags, which is the sole guard against hiding the last tag.
func (ts *TagState) ToggleTag(tag int) (Changes, error) {
	if tag < 1 || tag > NumTags {
		return Changes{}, ErrInvalidTag
	}
	idx := uint(tag - 1)
	mask := ts.visibleTags ^ (1 << idx)
	return ts.SetVisibleTags(mask)
}

// MoveWindow moves window (defaulting to the active window) to destTag.
// Focus in the returned Changes is always nil — a move never re-focuses.
func (ts *TagState) MoveWindow(destTag int, window *WindowAddr) (Changes, error) {
	if destTag < 1 || destTag > NumTags {
		return Changes{}, ErrInvalidTag
	}
	var addr WindowAddr
	switch {
	case window != nil:
		addr = *window
	case ts.activeWindow != nil:
		addr = *ts.activeWindow
	default:
		return Changes{}, ErrNoActiveWindow
	}

	tagIdx, winIdx, ok := ts.find(addr)
	if !ok {
		return Changes{}, ErrNotTracked
	}
	destIdx := destTag - 1
	if destIdx == tagIdx {
		return Changes{}, ErrSameTag
	}

	w1 := ts.visibleWindows()

	ts.tags[destIdx].windows = append(ts.tags[destIdx].windows, addr)
	src := ts.tags[tagIdx]
	src.windows = append(src.windows[:winIdx], src.windows[winIdx+1:]...)

	w2 := ts.visibleWindows()
	added, removed := windowDiff(w1, w2)

	return Changes{Added: added, Removed: removed, Focus: nil}, nil
}

// visibleWindows returns the WindowInfo for every window in a tag whose bit
// is set in visibleTags, in tag order then insertion order.
func (ts *TagState) visibleWindows() []WindowInfo {
	var out []WindowInfo
	for n := 0; n < NumTags; n++ {
		if ts.visibleTags&(1<<uint(n)) == 0 {
			continue
		}
		tag := ts.tags[n]
		for _, w := range tag.windows {
			out = append(out, WindowInfo{Addr: w, Tag: tag.ID})
		}
	}
	return out
}

// find returns the (tagIndex, windowIndex) of addr, or ok=false.
func (ts *TagState) find(addr WindowAddr) (tagIndex, windowIndex int, ok bool) {
	for i, tag := range ts.tags {
		for j, w := range tag.windows {
			if w == addr {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// windowDiff returns (added, removed) = (b-a, a-b) by address equality,
// sorted by address for deterministic output (the tag annotation never
// participates in the comparison, per spec §3/§9).
func windowDiff(a, b []WindowInfo) (added, removed []WindowInfo) {
	inA := make(map[WindowAddr]WindowInfo, len(a))
	for _, w := range a {
		inA[w.Addr] = w
	}
	inB := make(map[WindowAddr]WindowInfo, len(b))
	for _, w := range b {
		inB[w.Addr] = w
	}
	for addr, w := range inB {
		if _, ok := inA[addr]; !ok {
			added = append(added, w)
		}
	}
	for addr, w := range inA {
		if _, ok := inB[addr]; !ok {
			removed = append(removed, w)
		}
	}
	sort.Slice(added, func(i, j int) bool { return added[i].Addr < added[j].Addr })
	sort.Slice(removed, func(i, j int) bool { return removed[i].Addr < removed[j].Addr })
	return added, removed
}
