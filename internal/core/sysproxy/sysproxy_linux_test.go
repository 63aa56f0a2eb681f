package sysproxy

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureCommands(t *testing.T, fail string) *[]string {
	t.Helper()
	var got []string
	orig := runCommand
	runCommand = func(name string, args ...string) error {
		line := name + " " + strings.Join(args, " ")
		got = append(got, line)
		if fail != "" && strings.Contains(line, fail) {
			return errors.New("boom")
		}
		return nil
	}
	t.Cleanup(func() { runCommand = orig })
	return &got
}

func TestEnable(t *testing.T) {
	got := captureCommands(t, "")

	require.NoError(t, Enable("127.0.0.1", 1080))
	assert.Equal(t, []string{
		"gsettings set org.gnome.system.proxy.socks host 127.0.0.1",
		"gsettings set org.gnome.system.proxy.socks port 1080",
		"gsettings set org.gnome.system.proxy mode manual",
	}, *got)
}

func TestEnableStopsOnError(t *testing.T) {
	got := captureCommands(t, "socks port")

	err := Enable("127.0.0.1", 1080)
	assert.Error(t, err)
	assert.Len(t, *got, 2, "mode stays untouched")
}

func TestDisable(t *testing.T) {
	got := captureCommands(t, "")

	require.NoError(t, Disable())
	assert.Equal(t, []string{"gsettings set org.gnome.system.proxy mode none"}, *got)
}
