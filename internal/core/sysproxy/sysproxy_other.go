//go:build !linux && !darwin

package sysproxy

import "errors"

func enable(host string, port int) error {
	return errors.ErrUnsupported
}

func disable() error {
	return errors.ErrUnsupported
}
