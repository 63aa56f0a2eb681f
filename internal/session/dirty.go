package session

import (
	"sync"

	"shadowdeck/internal/events"
)

// Flag is an "unsaved changes" marker.
type Flag struct {
	mu    sync.Mutex
	dirty bool
}

// MarkDirty sets the flag and reports whether it changed.
func (f *Flag) MarkDirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := !f.dirty
	f.dirty = true
	return changed
}

// Clear resets the flag and reports whether it changed.
func (f *Flag) Clear() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := f.dirty
	f.dirty = false
	return changed
}

// IsDirty reports whether there are unsaved changes.
func (f *Flag) IsDirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}

// Tracker holds the two independent flags: one for the current profile,
// one for the misc settings. Every flip is published on the bus.
type Tracker struct {
	profile Flag
	misc    Flag
	bus     *events.Bus
}

// NewTracker returns a clean tracker.
func NewTracker(bus *events.Bus) *Tracker {
	return &Tracker{bus: bus}
}

func (t *Tracker) MarkProfileDirty() {
	if t.profile.MarkDirty() {
		t.bus.Publish(events.ConfigChanged{Saved: false})
	}
}

func (t *Tracker) ClearProfile() {
	if t.profile.Clear() {
		t.bus.Publish(events.ConfigChanged{Saved: true})
	}
}

func (t *Tracker) ProfileDirty() bool {
	return t.profile.IsDirty()
}

func (t *Tracker) MarkMiscDirty() {
	if t.misc.MarkDirty() {
		t.bus.Publish(events.MiscChanged{Saved: false})
	}
}

func (t *Tracker) ClearMisc() {
	if t.misc.Clear() {
		t.bus.Publish(events.MiscChanged{Saved: true})
	}
}

func (t *Tracker) MiscDirty() bool {
	return t.misc.IsDirty()
}
