//go:build !linux

package cmd

import "errors"

var errNoSystemd = errors.New("service management needs systemd (Linux)")

func installService(string) error { return errNoSystemd }

func uninstallService() error { return errNoSystemd }
