// Package session holds the in-progress edit of the current profile and
// decides when unsaved changes must be confirmed.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"shadowdeck/internal/config/parser"
	"shadowdeck/internal/core/backend"
	"shadowdeck/internal/core/process"
	"shadowdeck/internal/core/types"
	"shadowdeck/internal/events"
	"shadowdeck/internal/storage"
	"shadowdeck/internal/storage/models"
	pkgerrors "shadowdeck/pkg/errors"
)

// Pending names which set of unsaved changes a confirmation is about.
type Pending int

const (
	PendingProfile Pending = iota
	PendingMisc
)

func (p Pending) String() string {
	if p == PendingMisc {
		return "settings"
	}
	return "profile"
}

// Decision is the answer to a save confirmation.
type Decision int

const (
	Discard Decision = iota
	Save
)

// ConfirmFunc asks the user whether pending changes should be saved. A nil
// ConfirmFunc discards.
type ConfirmFunc func(Pending) Decision

// Controller is the part of the process controller a session drives.
type Controller interface {
	Start(req process.StartRequest) error
	Stop() error
	State() types.State
}

// Options configure a Session.
type Options struct {
	Locator   *backend.Locator
	ExtraArgs []string
	Logger    *slog.Logger
}

// Session is the profile editing session. The working copy is detached from
// the store; edits reach the store only through Save.
type Session struct {
	mu      sync.Mutex
	working models.Profile

	store   *storage.Store
	ctrl    Controller
	bus     *events.Bus
	tracker *Tracker
	locator *backend.Locator
	extra   []string
	logger  *slog.Logger
}

// New creates a session over store and loads the current profile.
func New(store *storage.Store, ctrl Controller, bus *events.Bus, opts Options) *Session {
	if opts.Locator == nil {
		opts.Locator = backend.NewLocator(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Session{
		store:   store,
		ctrl:    ctrl,
		bus:     bus,
		tracker: NewTracker(bus),
		locator: opts.Locator,
		extra:   opts.ExtraArgs,
		logger:  opts.Logger.With("component", "session"),
	}
	s.reload()
	return s
}

// reload replaces the working copy with the stored current profile.
func (s *Session) reload() {
	p, err := s.store.Current()
	if err != nil {
		p = models.Profile{}
	}
	s.mu.Lock()
	s.working = p
	s.mu.Unlock()
}

// Store returns the underlying profile store.
func (s *Session) Store() *storage.Store {
	return s.store
}

// Working returns a copy of the profile being edited.
func (s *Session) Working() models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.working
}

// CurrentIndex returns the selected profile index, or -1.
func (s *Session) CurrentIndex() int {
	return s.store.CurrentIndex()
}

func (s *Session) ProfileDirty() bool { return s.tracker.ProfileDirty() }
func (s *Session) MiscDirty() bool    { return s.tracker.MiscDirty() }

// EnsureProfile publishes EmptyStore and reports false when there is no
// profile to work on.
func (s *Session) EnsureProfile() bool {
	if s.store.Len() > 0 {
		return true
	}
	s.bus.Publish(events.EmptyStore{})
	return false
}

// SetField edits the working copy and marks the profile dirty when the value
// actually changes.
func (s *Session) SetField(f models.Field, value string) error {
	if s.store.Len() == 0 {
		return pkgerrors.ErrNoProfiles
	}

	s.mu.Lock()
	old := s.working.Get(f)
	if !s.working.Set(f, value) {
		s.mu.Unlock()
		return fmt.Errorf("unknown profile field %q", f)
	}
	s.mu.Unlock()

	if old != value {
		s.tracker.MarkProfileDirty()
	}
	return nil
}

// SetAutoHide changes a misc flag and marks misc dirty.
func (s *Session) SetAutoHide(v bool) {
	if s.store.AutoHide() != v {
		s.store.SetAutoHide(v)
		s.tracker.MarkMiscDirty()
	}
}

func (s *Session) SetAutoStart(v bool) {
	if s.store.AutoStart() != v {
		s.store.SetAutoStart(v)
		s.tracker.MarkMiscDirty()
	}
}

func (s *Session) SetDebug(v bool) {
	if s.store.Debug() != v {
		s.store.SetDebug(v)
		s.tracker.MarkMiscDirty()
		s.bus.Publish(events.DebugChanged{Enabled: v})
	}
}

// SetBackendType switches the backend kind, re-resolves the executable and
// marks the profile dirty.
func (s *Session) SetBackendType(t types.BackendType) string {
	s.store.SetBackendType(t)
	path := s.locator.Resolve(t, s.store.BackendPath())
	s.store.SetBackendPath(path)
	s.tracker.MarkProfileDirty()
	s.logger.Debug("backend type changed", "type", t, "path", path)
	return path
}

// SetBackendPath sets an explicit executable, takes its kind from the file
// name and marks the profile dirty.
func (s *Session) SetBackendPath(path string) types.BackendType {
	t := backend.Detect(path)
	s.store.SetBackendPath(path)
	s.store.SetBackendType(t)
	s.tracker.MarkProfileDirty()
	s.logger.Debug("backend path changed", "type", t, "path", path)
	return t
}

// ResolveBackend re-runs executable resolution for the configured kind and
// stores the result.
func (s *Session) ResolveBackend() string {
	t := s.store.BackendType()
	path := s.locator.Resolve(t, s.store.BackendPath())
	s.store.SetBackendPath(path)
	return path
}

// Save writes the working copy into the store and persists it. On failure
// the profile stays dirty and the caller may retry.
func (s *Session) Save() error {
	i := s.store.CurrentIndex()
	if i < 0 {
		return pkgerrors.ErrNoProfiles
	}
	if err := s.store.SetProfile(i, s.Working()); err != nil {
		return err
	}
	if err := s.store.Save(); err != nil {
		s.logger.Error("failed to save profile", "error", err)
		return err
	}
	s.tracker.ClearProfile()
	return nil
}

// SaveMisc persists the misc settings.
func (s *Session) SaveMisc() error {
	if err := s.store.Save(); err != nil {
		s.logger.Error("failed to save settings", "error", err)
		return err
	}
	s.tracker.ClearMisc()
	return nil
}

// Revert drops the working copy edits and reloads the persisted profile and
// backend.
func (s *Session) Revert() error {
	if err := s.store.Revert(); err != nil {
		return err
	}
	s.reload()
	s.tracker.ClearProfile()
	return nil
}

// resolvePending runs the confirmation for unsaved profile edits. A Discard
// answer throws the working copy edits away.
func (s *Session) resolvePending(confirm ConfirmFunc) error {
	if !s.tracker.ProfileDirty() {
		return nil
	}
	if decide(confirm, PendingProfile) == Save {
		return s.Save()
	}
	// Backend edits count as profile edits and are discarded with them.
	if err := s.store.RevertBackend(); err != nil {
		s.logger.Warn("could not restore the saved backend", "error", err)
	}
	s.reload()
	s.tracker.ClearProfile()
	return nil
}

// stopForSwitch stops a backend that was started for the profile being
// left.
func (s *Session) stopForSwitch() {
	if s.ctrl.State() != types.StateIdle {
		s.ctrl.Stop()
	}
}

func decide(confirm ConfirmFunc, what Pending) Decision {
	if confirm == nil {
		return Discard
	}
	return confirm(what)
}

// Select switches to profile i. Unsaved edits go through confirm first and a
// running backend is stopped, since it was started for the old profile.
func (s *Session) Select(i int, confirm ConfirmFunc) error {
	if _, err := s.store.Profile(i); err != nil {
		return err
	}
	if i == s.store.CurrentIndex() {
		return nil
	}
	if err := s.resolvePending(confirm); err != nil {
		return err
	}

	s.stopForSwitch()
	if err := s.store.SetCurrentIndex(i); err != nil {
		return err
	}
	s.selected()
	return nil
}

// selected loads the new current profile and announces it.
func (s *Session) selected() {
	s.reload()
	s.tracker.ClearProfile()
	if i := s.store.CurrentIndex(); i >= 0 {
		s.bus.Publish(events.ProfileSelected{Index: i, Name: s.Working().Name})
	}
}

// Refresh reloads the working copy after the store was changed behind the
// session, for example by an import. Unsaved edits go through confirm first.
func (s *Session) Refresh(confirm ConfirmFunc) error {
	if err := s.resolvePending(confirm); err != nil {
		return err
	}
	s.selected()
	return nil
}

// persistStructure saves after adding or deleting profiles so the file and
// the in-memory indices agree.
func (s *Session) persistStructure() error {
	if err := s.store.Save(); err != nil {
		s.logger.Error("failed to save profiles", "error", err)
		return err
	}
	s.tracker.ClearMisc()
	return nil
}

// AddProfile appends a blank profile and selects it. A running backend is
// stopped.
func (s *Session) AddProfile(name string, confirm ConfirmFunc) (int, error) {
	if err := s.resolvePending(confirm); err != nil {
		return -1, err
	}
	s.stopForSwitch()
	i := s.store.AddProfile(name)
	s.selected()
	return i, s.persistStructure()
}

// AddProfileFromURI appends a profile decoded from an ss:// link and
// selects it. Nothing changes, pending edits included, if the link is
// malformed.
func (s *Session) AddProfileFromURI(name, uri string, confirm ConfirmFunc) (int, error) {
	if _, err := parser.Parse(uri); err != nil {
		return -1, err
	}
	if err := s.resolvePending(confirm); err != nil {
		return -1, err
	}
	s.stopForSwitch()
	i, err := s.store.AddProfileFromURI(name, uri)
	if err != nil {
		return -1, err
	}
	s.selected()
	return i, s.persistStructure()
}

// DuplicateProfile copies profile i and selects the copy.
func (s *Session) DuplicateProfile(i int, confirm ConfirmFunc) (int, error) {
	if _, err := s.store.Profile(i); err != nil {
		return -1, err
	}
	if err := s.resolvePending(confirm); err != nil {
		return -1, err
	}
	s.stopForSwitch()
	n, err := s.store.DuplicateProfile(i)
	if err != nil {
		return -1, err
	}
	s.selected()
	return n, s.persistStructure()
}

// DeleteProfile removes profile i. Deleting the current profile stops a
// running backend. EmptyStore is published when the last profile goes.
func (s *Session) DeleteProfile(i int) error {
	current := s.store.CurrentIndex()
	if _, err := s.store.Profile(i); err != nil {
		return err
	}
	if i == current {
		s.stopForSwitch()
	}
	if err := s.store.DeleteProfile(i); err != nil {
		return err
	}

	if i == current {
		s.selected()
	}
	err := s.persistStructure()
	s.EnsureProfile()
	return err
}

// DismissEmptyStore handles a declined "add profile" prompt: a blank
// unnamed profile is added so there is always one to edit.
func (s *Session) DismissEmptyStore() error {
	if s.store.Len() > 0 {
		return nil
	}
	_, err := s.AddProfile("", nil)
	return err
}

// Validate checks the working copy against the configured backend.
func (s *Session) Validate() error {
	if s.store.Len() == 0 {
		return pkgerrors.ErrNoProfiles
	}
	return s.store.Validate(s.Working())
}

// Start launches the backend for the working copy. Unsaved edits go through
// confirm first; declining starts with the edits unsaved.
func (s *Session) Start(confirm ConfirmFunc) error {
	if s.tracker.ProfileDirty() && decide(confirm, PendingProfile) == Save {
		if err := s.Save(); err != nil {
			return err
		}
	}

	path := s.ResolveBackend()
	if err := s.Validate(); err != nil {
		return err
	}

	req := process.StartRequest{
		Profile: s.Working(),
		Path:    path,
		Type:    s.store.BackendType(),
		Options: backend.ArgsOptions{
			Verbose: s.store.Debug(),
			Extra:   s.extra,
		},
	}
	err := s.ctrl.Start(req)
	if errors.Is(err, pkgerrors.ErrAlreadyRunning) {
		s.logger.Debug("start ignored", "state", s.ctrl.State())
	}
	return err
}

// Stop asks the backend to exit.
func (s *Session) Stop() error {
	return s.ctrl.Stop()
}

// AutoStartReady reports whether the backend should be started right away.
func (s *Session) AutoStartReady() bool {
	return s.store.AutoStart() && s.Validate() == nil
}

// Close runs the pending changes check for both the profile and the misc
// settings before the application exits.
func (s *Session) Close(confirm ConfirmFunc) error {
	var errs []error
	if s.tracker.ProfileDirty() && decide(confirm, PendingProfile) == Save {
		errs = append(errs, s.Save())
	}
	if s.tracker.MiscDirty() && decide(confirm, PendingMisc) == Save {
		errs = append(errs, s.SaveMisc())
	}
	return errors.Join(errs...)
}
