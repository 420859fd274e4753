//go:build linux

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

func installService(unit string) error {
	if err := os.WriteFile(servicePath, []byte(unit), 0o644); err != nil {
		return err
	}
	for _, args := range [][]string{{"daemon-reload"}, {"enable", serviceName}, {"restart", serviceName}} {
		if err := systemctl(args...); err != nil {
			return err
		}
	}
	return nil
}

func uninstallService() error {
	var errs []error
	if err := systemctl("disable", "--now", serviceName); err != nil {
		errs = append(errs, err)
	}
	if err := os.Remove(servicePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	if err := systemctl("daemon-reload"); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func systemctl(args ...string) error {
	out, err := exec.Command("systemctl", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
