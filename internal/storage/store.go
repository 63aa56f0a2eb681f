// Package storage persists profiles and backend history.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"shadowdeck/internal/config/parser"
	"shadowdeck/internal/core/types"
	"shadowdeck/internal/paths"
	"shadowdeck/internal/storage/models"
	pkgerrors "shadowdeck/pkg/errors"
)

// document is the on-disk layout of gui-config.json.
type document struct {
	Profiles    []models.Profile  `json:"profiles"`
	Index       int               `json:"index"`
	AutoHide    bool              `json:"auto_hide"`
	AutoStart   bool              `json:"auto_start"`
	Debug       bool              `json:"debug"`
	BackendPath string            `json:"backend_path"`
	BackendType types.BackendType `json:"backend_type"`
}

// Store owns the ordered profile list, the current selection and the misc
// flags. The current index is -1 exactly when there are no profiles.
// Profiles are returned by value; callers edit a copy and write it back
// with SetProfile.
type Store struct {
	mu   sync.RWMutex
	path string

	profiles []models.Profile
	current  int

	autoHide    bool
	autoStart   bool
	debug       bool
	backendPath string
	backendType types.BackendType
}

// New returns an empty store bound to path.
func New(path string) *Store {
	return &Store{path: path, current: -1}
}

// Load reads the store at path. A missing file yields an empty store and no
// error. An unreadable or malformed file yields an empty store together with
// a ConfigError so the caller can report it and carry on.
func Load(path string) (*Store, error) {
	s := New(path)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, &pkgerrors.ConfigError{Path: path, Op: "load", Err: err}
	}

	doc, err := decode(data)
	if err != nil {
		return s, &pkgerrors.ConfigError{Path: path, Op: "load", Err: err}
	}

	s.apply(doc)
	return s, nil
}

func decode(data []byte) (*document, error) {
	doc := &document{Index: -1}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	return doc, nil
}

func (s *Store) apply(doc *document) {
	s.profiles = append([]models.Profile(nil), doc.Profiles...)
	s.current = doc.Index
	s.autoHide = doc.AutoHide
	s.autoStart = doc.AutoStart
	s.debug = doc.Debug
	s.backendPath = doc.BackendPath
	s.backendType = doc.BackendType
	s.clampLocked()
}

// clampLocked restores the current index invariant.
func (s *Store) clampLocked() {
	switch {
	case len(s.profiles) == 0:
		s.current = -1
	case s.current < 0:
		s.current = 0
	case s.current >= len(s.profiles):
		s.current = len(s.profiles) - 1
	}
}

// Path returns the file the store was loaded from.
func (s *Store) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Save writes the store back to its own path.
func (s *Store) Save() error {
	return s.SaveTo(s.Path())
}

// SaveTo writes the store to path. The in-memory state is untouched on
// failure so the caller can retry.
func (s *Store) SaveTo(path string) error {
	s.mu.RLock()
	doc := document{
		Profiles:    append([]models.Profile{}, s.profiles...),
		Index:       s.current,
		AutoHide:    s.autoHide,
		AutoStart:   s.autoStart,
		Debug:       s.debug,
		BackendPath: s.backendPath,
		BackendType: s.backendType,
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return &pkgerrors.ConfigError{Path: path, Op: "save", Err: err}
	}

	if err := writeFileAtomic(path, data); err != nil {
		return &pkgerrors.ConfigError{Path: path, Op: "save", Err: err}
	}
	paths.ChownToRealUser(path)
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// readSaved loads the document last written to the store's path. ok is
// false when nothing was saved yet.
func (s *Store) readSaved() (doc *document, ok bool, err error) {
	path := s.Path()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &pkgerrors.ConfigError{Path: path, Op: "load", Err: err}
	}
	if doc, err = decode(data); err != nil {
		return nil, false, &pkgerrors.ConfigError{Path: path, Op: "load", Err: err}
	}
	return doc, true, nil
}

// Revert discards unsaved in-memory changes to the current profile and to
// the backend path and type by reloading them from disk. Nothing changes
// when the store was never saved.
func (s *Store) Revert() error {
	doc, ok, err := s.readSaved()
	if !ok {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current >= 0 && s.current < len(doc.Profiles) {
		s.profiles[s.current] = doc.Profiles[s.current]
	}
	s.backendPath = doc.BackendPath
	s.backendType = doc.BackendType
	return nil
}

// RevertBackend restores only the saved backend path and type.
func (s *Store) RevertBackend() error {
	doc, ok, err := s.readSaved()
	if !ok {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.backendPath = doc.BackendPath
	s.backendType = doc.BackendType
	return nil
}

// Len returns the number of profiles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// Names returns the profile names in order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.profiles))
	for i, p := range s.profiles {
		names[i] = p.Name
	}
	return names
}

// Profiles returns a copy of all profiles.
func (s *Store) Profiles() []models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Profile{}, s.profiles...)
}

// Find returns the index of the first profile called name, or -1.
func (s *Store) Find(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, p := range s.profiles {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Profile returns a copy of the profile at i.
func (s *Store) Profile(i int) (models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkIndexLocked(i); err != nil {
		return models.Profile{}, err
	}
	return s.profiles[i], nil
}

// SetProfile overwrites the profile at i.
func (s *Store) SetProfile(i int, p models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIndexLocked(i); err != nil {
		return err
	}
	s.profiles[i] = p
	return nil
}

// AddProfile appends a blank profile called name and selects it.
func (s *Store) AddProfile(name string) int {
	return s.Append(models.NewProfile(name))
}

// AddProfileFromURI appends a profile decoded from an ss:// link and selects
// it. When name is empty the link's tag is used. The store is unchanged if
// the link is malformed.
func (s *Store) AddProfileFromURI(name, uri string) (int, error) {
	p, err := parser.Parse(uri)
	if err != nil {
		return -1, err
	}
	if name != "" {
		p.Name = name
	}
	return s.Append(p), nil
}

// DuplicateProfile appends a copy of the profile at i and selects it.
func (s *Store) DuplicateProfile(i int) (int, error) {
	p, err := s.Profile(i)
	if err != nil {
		return -1, err
	}
	p.Name = p.Name + " (copy)"
	return s.Append(p), nil
}

// Append adds p at the end and selects it.
func (s *Store) Append(p models.Profile) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = append(s.profiles, p)
	s.current = len(s.profiles) - 1
	return s.current
}

// DeleteProfile removes the profile at i. Later profiles shift down and the
// current index keeps pointing at the same profile, or at its nearest
// neighbour when the current profile itself is removed.
func (s *Store) DeleteProfile(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIndexLocked(i); err != nil {
		return err
	}

	s.profiles = append(s.profiles[:i], s.profiles[i+1:]...)
	if s.current > i {
		s.current--
	}
	s.clampLocked()
	return nil
}

// CurrentIndex returns the selected profile index or -1.
func (s *Store) CurrentIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetCurrentIndex selects the profile at i.
func (s *Store) SetCurrentIndex(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIndexLocked(i); err != nil {
		return err
	}
	s.current = i
	return nil
}

// Current returns a copy of the selected profile.
func (s *Store) Current() (models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current < 0 {
		return models.Profile{}, pkgerrors.ErrNoProfiles
	}
	return s.profiles[s.current], nil
}

func (s *Store) checkIndexLocked(i int) error {
	if i < 0 || i >= len(s.profiles) {
		return &pkgerrors.IndexError{Index: i, Len: len(s.profiles)}
	}
	return nil
}

// Misc settings

func (s *Store) AutoHide() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoHide
}

func (s *Store) SetAutoHide(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoHide = v
}

func (s *Store) AutoStart() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoStart
}

func (s *Store) SetAutoStart(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoStart = v
}

func (s *Store) Debug() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.debug
}

func (s *Store) SetDebug(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debug = v
}

func (s *Store) BackendPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backendPath
}

func (s *Store) SetBackendPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backendPath = path
}

func (s *Store) BackendType() types.BackendType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backendType
}

func (s *Store) SetBackendType(t types.BackendType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backendType = t
}

// Validate reports why p cannot be launched with the configured backend.
func (s *Store) Validate(p models.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if s.BackendPath() == "" {
		return &pkgerrors.ValidationError{
			Field:  "backend_path",
			Reason: pkgerrors.ErrBackendNotFound.Error(),
		}
	}
	return nil
}

// IsValid reports whether p can be launched with the configured backend.
func (s *Store) IsValid(p models.Profile) bool {
	return s.Validate(p) == nil
}
