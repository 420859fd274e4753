package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	serviceName = "hshifter.service"
	servicePath = "/etc/systemd/system/" + serviceName
)

// Service manages a systemd unit that runs serve at boot.
type Service struct {
	Install   ServiceInstall   `cmd:"" help:"Install and start the systemd unit"`
	Uninstall ServiceUninstall `cmd:"" help:"Stop and remove the systemd unit"`
}

type ServiceInstall struct {
	ServeConfig string `name:"serve-config" help:"Config file passed to serve" type:"existingfile"`
}

func (s *ServiceInstall) Run(logger *slog.Logger) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	if exe, err = filepath.EvalSymlinks(exe); err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	cfg := s.ServeConfig
	if cfg != "" {
		if cfg, err = filepath.Abs(cfg); err != nil {
			return err
		}
	}
	if err := installService(unitContent(exe, cfg)); err != nil {
		return err
	}
	logger.Info("Service installed", "unit", servicePath, "exe", exe)
	return nil
}

type ServiceUninstall struct{}

func (ServiceUninstall) Run(logger *slog.Logger) error {
	if err := uninstallService(); err != nil {
		return err
	}
	logger.Info("Service removed", "unit", servicePath)
	return nil
}

func unitContent(exe, config string) string {
	args := []string{strconv.Quote(exe)}
	if config != "" {
		args = append(args, "--config", strconv.Quote(config))
	}
	args = append(args, "serve")

	return fmt.Sprintf(`[Unit]
Description=hshifter H-shifter gamepad
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=%s
WorkingDirectory=%s
Restart=on-failure
RestartSec=2

[Install]
WantedBy=multi-user.target
`, strings.Join(args, " "), filepath.Dir(exe))
}
