package sysproxy

import (
	"fmt"
	"strconv"
)

const gnomeProxy = "org.gnome.system.proxy"

// enable switches the GNOME proxy to manual with only the SOCKS host set.
func enable(host string, port int) error {
	for _, kv := range [][3]string{
		{gnomeProxy + ".socks", "host", host},
		{gnomeProxy + ".socks", "port", strconv.Itoa(port)},
		{gnomeProxy, "mode", "manual"},
	} {
		if err := runCommand("gsettings", "set", kv[0], kv[1], kv[2]); err != nil {
			return fmt.Errorf("gsettings %s %s: %w", kv[0], kv[1], err)
		}
	}
	return nil
}

func disable() error {
	return runCommand("gsettings", "set", gnomeProxy, "mode", "none")
}
