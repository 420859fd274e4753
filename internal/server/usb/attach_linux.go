//go:build linux

package usb

import (
	"bytes"
	"log/slog"
	"os"
	"os/exec"
)

// CheckAttachPrerequisites reports whether the usbip tool and the vhci-hcd
// module are available, logging what to install otherwise.
func CheckAttachPrerequisites(logger *slog.Logger) bool {
	ok := true
	if _, err := exec.LookPath("usbip"); err != nil {
		logger.Warn("usbip tool not found in PATH; local attach needs it")
		logger.Info("  Ubuntu/Debian: sudo apt install linux-tools-generic")
		logger.Info("  Arch Linux:    sudo pacman -S usbip")
		ok = false
	}

	data, err := os.ReadFile("/proc/modules")
	switch {
	case err != nil:
		logger.Debug("Could not read /proc/modules", "error", err)
	case !bytes.Contains(data, []byte("vhci_hcd")):
		logger.Warn("Kernel module vhci-hcd is not loaded")
		logger.Info("  sudo modprobe vhci-hcd")
		logger.Info("  echo 'vhci-hcd' | sudo tee /etc/modules-load.d/hshifter.conf")
		ok = false
	}
	return ok
}
