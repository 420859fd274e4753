package main

import (
	"os"

	"github.com/simrig/hshifter/internal/config"
	"github.com/simrig/hshifter/internal/configpaths"
	"github.com/simrig/hshifter/internal/log"
	"github.com/simrig/hshifter/internal/telemetry"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
)

var version = "dev"

func main() {
	userCfg := configpaths.FindUserConfig(os.Args[1:])
	jsonPaths, yamlPaths, tomlPaths := configpaths.ConfigCandidatePaths(userCfg)

	var cli config.CLI
	ctx := kong.Parse(&cli,
		kong.Name("hshifter"),
		kong.Description("H-pattern shifter and handbrake as a USB-IP gamepad"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		// flags and env override config values
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	)
	telemetry.Version = version

	logger, closeFiles, err := log.SetupLogger(cli.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() {
		for _, c := range closeFiles {
			_ = c.Close()
		}
	}()

	rawLogger, rawFiles, err := log.SetupRawLogger(cli.Log)
	if err != nil {
		logger.Error("Failed to open raw log file", "file", cli.Log.RawFile, "error", err)
	}
	closeFiles = append(closeFiles, rawFiles...)
	if rawLogger == nil {
		rawLogger = log.NewRaw(nil)
	}

	ctx.Bind(logger)
	ctx.BindTo(rawLogger, (*log.RawLogger)(nil))

	err = ctx.Run()
	ctx.FatalIfErrorf(err)
}
