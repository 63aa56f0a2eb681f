package sysproxy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// enable points the SOCKS firewall proxy of each enabled network service at
// host:port.
func enable(host string, port int) error {
	services, err := networkServices()
	if err != nil {
		return err
	}
	for _, svc := range services {
		for _, args := range [][]string{
			{"-setsocksfirewallproxy", svc, host, strconv.Itoa(port)},
			{"-setsocksfirewallproxystate", svc, "on"},
		} {
			if err := runCommand("networksetup", args...); err != nil {
				return fmt.Errorf("networksetup %s %s: %w", args[0], svc, err)
			}
		}
	}
	return nil
}

// disable switches the proxy off on every service and reports all failures.
func disable() error {
	services, err := networkServices()
	if err != nil {
		return err
	}
	var errs []error
	for _, svc := range services {
		errs = append(errs, runCommand("networksetup", "-setsocksfirewallproxystate", svc, "off"))
	}
	return errors.Join(errs...)
}

// networkServices lists the enabled services. networksetup prints a legend
// line first and marks disabled services with a leading asterisk.
func networkServices() ([]string, error) {
	out, err := outputCommand("networksetup", "-listallnetworkservices")
	if err != nil {
		return nil, fmt.Errorf("list network services: %w", err)
	}
	var services []string
	for i, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if i == 0 && strings.Contains(line, "asterisk") || line == "" || line[0] == '*' {
			continue
		}
		services = append(services, line)
	}
	if len(services) == 0 {
		return nil, errors.New("no enabled network services")
	}
	return services, nil
}
