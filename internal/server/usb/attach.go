package usb

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/simrig/hshifter/usbip"
)

// attachArgs builds the usbip(8) command line that imports busID from this
// host.
func attachArgs(port uint16, meta usbip.ExportMeta) []string {
	return []string{
		"--tcp-port", strconv.FormatUint(uint64(port), 10),
		"attach",
		"-r", "localhost",
		"-b", meta.BusIDString(),
	}
}

// AttachLocal imports the exported gamepad into the local kernel with the
// usbip tool so the game sees it without a second machine.
func AttachLocal(ctx context.Context, port uint16, meta usbip.ExportMeta, logger *slog.Logger) error {
	logger.Info("Attaching gamepad locally", "busID", meta.BusIDString(), "port", port)

	out, err := exec.CommandContext(ctx, "usbip", attachArgs(port, meta)...).CombinedOutput()
	if err != nil {
		logger.Error("usbip attach failed", "error", err, "output", string(out))
		return fmt.Errorf("usbip attach %s: %w", meta.BusIDString(), err)
	}
	logger.Debug("usbip attach output", "output", string(out))
	return nil
}
