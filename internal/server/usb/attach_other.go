//go:build !linux

package usb

import "log/slog"

func CheckAttachPrerequisites(logger *slog.Logger) bool {
	logger.Warn("Local attach is only supported on Linux; attach from a usbip client instead")
	return false
}
