package paths

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
)

const (
	// appName is the directory used for shadowdeck's own settings, data and cache.
	appName = "shadowdeck"

	// storeDirName is shared with other shadowsocks GUI clients so an existing
	// gui-config.json is picked up.
	storeDirName = "shadowsocks"

	// StoreFileName is the profile store file name.
	StoreFileName = "gui-config.json"

	// SettingsFileName is the application settings file name.
	SettingsFileName = "shadowdeck.yaml"
)

// HomeDir is the home of the invoking user. Under sudo that is SUDO_USER's
// home, so files land in one place whatever the privilege level.
func HomeDir() (string, error) {
	if name := os.Getenv("SUDO_USER"); name != "" {
		if u, err := user.Lookup(name); err == nil {
			return u.HomeDir, nil
		}
	}
	return os.UserHomeDir()
}

// RealUser reports the uid and gid sudo was invoked by.
func RealUser() (uid, gid int, ok bool) {
	uid, err := strconv.Atoi(os.Getenv("SUDO_UID"))
	if err != nil {
		return 0, 0, false
	}
	gid, _ = strconv.Atoi(os.Getenv("SUDO_GID"))
	return uid, gid, true
}

// ChownToRealUser hands path back to the sudo invoker. Outside sudo it does
// nothing.
func ChownToRealUser(path string) {
	if uid, gid, ok := RealUser(); ok {
		_ = os.Chown(path, uid, gid)
	}
}

// AppDir returns the directory holding the running executable.
func AppDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// StoreDir returns the directory holding gui-config.json: the application
// directory on Windows, ~/.config/shadowsocks elsewhere (created if needed).
func StoreDir() (string, error) {
	if runtime.GOOS == "windows" {
		return AppDir()
	}
	return userDir(".config", storeDirName)
}

// StorePath returns the default profile store location.
func StorePath() (string, error) {
	dir, err := StoreDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, StoreFileName), nil
}

// BinDirs returns the application-local directories searched for a backend
// executable before PATH.
func BinDirs() []string {
	if runtime.GOOS == "windows" {
		if dir, err := AppDir(); err == nil {
			return []string{dir}
		}
		return nil
	}
	home, err := HomeDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(home, ".config", storeDirName, "bin")}
}

// ConfigDir returns ~/.config/shadowdeck, creating it if needed.
func ConfigDir() (string, error) {
	return userDir(".config", appName)
}

// SettingsPath returns the default application settings location.
func SettingsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SettingsFileName), nil
}

// DataDir returns ~/.local/share/shadowdeck, creating it if needed.
func DataDir() (string, error) {
	return userDir(".local", "share", appName)
}

// CacheDir returns ~/.cache/shadowdeck, creating it if needed.
func CacheDir() (string, error) {
	return userDir(".cache", appName)
}

func userDir(elem ...string) (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(append([]string{home}, elem...)...)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	ChownToRealUser(dir)
	return dir, nil
}
