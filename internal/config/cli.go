// Package config holds the root command line, bound by kong from flags,
// environment and config files.
package config

import (
	"github.com/alecthomas/kong"

	"github.com/simrig/hshifter/internal/cmd"
	"github.com/simrig/hshifter/internal/log"
)

type CLI struct {
	ConfigFile string           `name:"config" help:"Config file (json, yaml or toml)" env:"HSHIFTER_CONFIG" type:"path"`
	Log        log.Config       `embed:"" prefix:"log."`
	Version    kong.VersionFlag `help:"Print version and exit"`

	Serve    cmd.Serve         `cmd:"" help:"Read the shifter and export it as a USB-IP gamepad"`
	Simulate cmd.Simulate      `cmd:"" help:"Run a recorded trace through the shifter logic and print each tick"`
	Feed     cmd.Feed          `cmd:"" help:"Send a trace to a feed server in place of a sensor board"`
	Keygen   cmd.Keygen        `cmd:"" help:"Generate the pre-shared feed key"`
	Ports    cmd.Ports         `cmd:"" help:"List serial ports"`
	Config   cmd.ConfigCommand `cmd:"" help:"Configuration helpers"`
	Service  cmd.Service       `cmd:"" help:"Run serve as a systemd service"`
}
