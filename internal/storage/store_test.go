package storage

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowdeck/internal/core/types"
	"shadowdeck/internal/storage/models"
	pkgerrors "shadowdeck/pkg/errors"
)

func validProfile(name string) models.Profile {
	p := models.NewProfile(name)
	p.Server = "203.0.113.7"
	p.ServerPort = "8388"
	p.Password = "secret"
	return p
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "gui-config.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, -1, s.CurrentIndex())
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gui-config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrConfigLoad))
	require.NotNil(t, s)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, -1, s.CurrentIndex())
}

func TestLoadClampsIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gui-config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"profiles":[{"name":"a"}],"index":7,"backend_type":2}`), 0600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, s.CurrentIndex())
	assert.Equal(t, types.BackendGo, s.BackendType())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gui-config.json")
	s := New(path)
	s.AddProfile("home")
	_, err := s.AddProfileFromURI("work", "ss://YWVzLTI1Ni1jZmI6cGFzc3dvcmRAMS4yLjMuNDo4Mzg4")
	require.NoError(t, err)
	require.NoError(t, s.SetCurrentIndex(0))
	s.SetAutoHide(true)
	s.SetDebug(true)
	s.SetBackendPath("/usr/bin/ss-local")
	s.SetBackendType(types.BackendPython)

	require.NoError(t, s.Save())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s.Profiles(), loaded.Profiles())
	assert.Equal(t, 0, loaded.CurrentIndex())
	assert.True(t, loaded.AutoHide())
	assert.False(t, loaded.AutoStart())
	assert.True(t, loaded.Debug())
	assert.Equal(t, "/usr/bin/ss-local", loaded.BackendPath())
	assert.Equal(t, types.BackendPython, loaded.BackendType())
}

func TestSaveUnwritable(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	s.AddProfile("home")

	err := s.Save()
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrConfigSave))
	assert.Equal(t, 1, s.Len())
}

func TestAddProfileSelectsIt(t *testing.T) {
	s := New("")
	assert.Equal(t, 0, s.AddProfile("a"))
	assert.Equal(t, 1, s.AddProfile("b"))
	assert.Equal(t, 1, s.CurrentIndex())

	p, err := s.Profile(1)
	require.NoError(t, err)
	assert.Equal(t, "b", p.Name)
	assert.Equal(t, models.DefaultLocalPort, p.LocalPort)
}

func TestAddProfileFromURI(t *testing.T) {
	s := New("")

	i, err := s.AddProfileFromURI("imported", "ss://YWVzLTI1Ni1jZmI6cGFzc3dvcmRAMS4yLjMuNDo4Mzg4")
	require.NoError(t, err)

	p, err := s.Profile(i)
	require.NoError(t, err)
	assert.Equal(t, "imported", p.Name)
	assert.Equal(t, "aes-256-cfb", p.Method)
	assert.Equal(t, "password", p.Password)
	assert.Equal(t, "1.2.3.4", p.Server)
	assert.Equal(t, "8388", p.ServerPort)

	_, err = s.AddProfileFromURI("bad", "ss://%%%")
	assert.True(t, errors.Is(err, pkgerrors.ErrURIInvalid))
	assert.Equal(t, 1, s.Len())
}

func TestProfileReturnsCopy(t *testing.T) {
	s := New("")
	s.AddProfile("a")

	p, err := s.Profile(0)
	require.NoError(t, err)
	p.Server = "changed"

	stored, _ := s.Profile(0)
	assert.Empty(t, stored.Server)

	require.NoError(t, s.SetProfile(0, p))
	stored, _ = s.Profile(0)
	assert.Equal(t, "changed", stored.Server)
}

func TestIndexOutOfRange(t *testing.T) {
	s := New("")
	s.AddProfile("a")

	var idxErr *pkgerrors.IndexError
	_, err := s.Profile(1)
	require.ErrorAs(t, err, &idxErr)
	assert.Equal(t, 1, idxErr.Index)

	assert.True(t, errors.Is(s.SetProfile(-1, models.Profile{}), pkgerrors.ErrIndexOutOfRange))
	assert.True(t, errors.Is(s.DeleteProfile(5), pkgerrors.ErrIndexOutOfRange))
	assert.True(t, errors.Is(s.SetCurrentIndex(2), pkgerrors.ErrIndexOutOfRange))
	_, err = s.DuplicateProfile(3)
	assert.True(t, errors.Is(err, pkgerrors.ErrIndexOutOfRange))
}

func TestDeleteCurrentFirst(t *testing.T) {
	s := New("")
	s.AddProfile("home")
	s.AddProfile("work")
	require.NoError(t, s.SetCurrentIndex(0))

	require.NoError(t, s.DeleteProfile(0))
	assert.Equal(t, []string{"work"}, s.Names())
	assert.Equal(t, 0, s.CurrentIndex())
}

func TestDeleteKeepsSelection(t *testing.T) {
	s := New("")
	s.AddProfile("a")
	s.AddProfile("b")
	s.AddProfile("c")

	require.NoError(t, s.DeleteProfile(0))
	assert.Equal(t, 1, s.CurrentIndex())
	p, _ := s.Current()
	assert.Equal(t, "c", p.Name)

	require.NoError(t, s.DeleteProfile(1))
	assert.Equal(t, 0, s.CurrentIndex())

	require.NoError(t, s.DeleteProfile(0))
	assert.Equal(t, -1, s.CurrentIndex())
	_, err := s.Current()
	assert.True(t, errors.Is(err, pkgerrors.ErrNoProfiles))
}

func TestCurrentIndexInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := New("")

	for step := 0; step < 500; step++ {
		if s.Len() == 0 || rng.Intn(2) == 0 {
			s.AddProfile("p")
		} else {
			require.NoError(t, s.DeleteProfile(rng.Intn(s.Len())))
		}

		n, cur := s.Len(), s.CurrentIndex()
		if n == 0 {
			require.Equal(t, -1, cur, "step %d", step)
		} else {
			require.True(t, cur >= 0 && cur < n, "step %d: index %d of %d", step, cur, n)
		}
	}
}

func TestDuplicateProfile(t *testing.T) {
	s := New("")
	s.AddProfile("home")
	s.AddProfile("work")

	i, err := s.DuplicateProfile(0)
	require.NoError(t, err)
	assert.Equal(t, 2, i)
	assert.Equal(t, 2, s.CurrentIndex())
	assert.Equal(t, []string{"home", "work", "home (copy)"}, s.Names())
	assert.Equal(t, 0, s.Find("home"))
	assert.Equal(t, -1, s.Find("nope"))
}

func TestRevert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gui-config.json")
	s := New(path)
	s.AddProfile("home")
	require.NoError(t, s.SetProfile(0, validProfile("home")))
	require.NoError(t, s.Save())

	edited := validProfile("home")
	edited.Server = "198.51.100.1"
	require.NoError(t, s.SetProfile(0, edited))

	require.NoError(t, s.Revert())
	p, _ := s.Profile(0)
	assert.Equal(t, "203.0.113.7", p.Server)

	// Unsaved profiles survive a revert.
	s.AddProfile("new")
	require.NoError(t, s.Revert())
	assert.Equal(t, 2, s.Len())
}

func TestRevertRestoresBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gui-config.json")
	s := New(path)
	s.AddProfile("home")
	require.NoError(t, s.SetProfile(0, validProfile("home")))
	s.SetBackendPath("/usr/bin/ss-local")
	s.SetBackendType(types.BackendLibev)
	require.NoError(t, s.Save())

	s.SetBackendPath("/opt/go/shadowsocks-local")
	s.SetBackendType(types.BackendGo)
	require.NoError(t, s.Revert())
	assert.Equal(t, "/usr/bin/ss-local", s.BackendPath())
	assert.Equal(t, types.BackendLibev, s.BackendType())

	s.SetBackendType(types.BackendGo)
	require.NoError(t, s.RevertBackend())
	assert.Equal(t, types.BackendLibev, s.BackendType())

	// Never saved: nothing to go back to.
	fresh := New(filepath.Join(t.TempDir(), "gui-config.json"))
	fresh.SetBackendPath("/usr/bin/ss-local")
	require.NoError(t, fresh.RevertBackend())
	assert.Equal(t, "/usr/bin/ss-local", fresh.BackendPath())
}

func TestValidate(t *testing.T) {
	s := New("")
	s.SetBackendPath("/usr/bin/ss-local")

	assert.True(t, s.IsValid(validProfile("ok")))

	badPort := validProfile("x")
	badPort.LocalPort = "70000"
	assert.False(t, s.IsValid(badPort))

	badAddr := validProfile("x")
	badAddr.LocalAddr = "999.1.1.1"
	assert.False(t, s.IsValid(badAddr))

	paddedPort := validProfile("x")
	paddedPort.ServerPort = " 8388"
	assert.False(t, s.IsValid(paddedPort))

	paddedAddr := validProfile("x")
	paddedAddr.LocalAddr = "127.0.0.1 "
	assert.False(t, s.IsValid(paddedAddr))

	badMethod := validProfile("x")
	badMethod.Method = "rot13"
	assert.False(t, s.IsValid(badMethod))

	noServer := validProfile("x")
	noServer.Server = ""
	err := s.Validate(noServer)
	assert.True(t, errors.Is(err, pkgerrors.ErrProfileInvalid))

	s.SetBackendPath("")
	var vErr *pkgerrors.ValidationError
	require.ErrorAs(t, s.Validate(validProfile("ok")), &vErr)
	assert.Equal(t, "backend_path", vErr.Field)
}
