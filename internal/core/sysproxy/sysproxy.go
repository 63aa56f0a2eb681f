// Package sysproxy points the desktop SOCKS proxy setting at the local
// backend listener and restores it afterwards.
package sysproxy

import (
	"fmt"
	"os/exec"
	"strings"
)

// Enable routes desktop traffic through the SOCKS5 listener at host:port.
func Enable(host string, port int) error {
	return enable(host, port)
}

// Disable turns the desktop SOCKS proxy off.
func Disable() error {
	return disable()
}

// runCommand executes a settings tool; replaced in tests.
var runCommand = func(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// outputCommand executes a query tool; replaced in tests.
var outputCommand = func(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}
