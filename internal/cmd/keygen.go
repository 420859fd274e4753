package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/simrig/hshifter/internal/auth"
	"github.com/simrig/hshifter/internal/configpaths"
)

// Keygen creates the pre-shared feed key used by serve and feed.
type Keygen struct {
	Output string `help:"Key file path (defaults to the config dir)" type:"path"`
	Force  bool   `help:"Replace an existing key"`

	out io.Writer `kong:"-"`
}

func (k *Keygen) Run(logger *slog.Logger) error {
	path := k.Output
	if path == "" {
		p, err := configpaths.DefaultKeyPath()
		if err != nil {
			return fmt.Errorf("resolve key path: %w", err)
		}
		path = p
	}
	if !k.Force {
		if _, err := os.Stat(path); err == nil {
			return errors.New("key file exists; use --force to replace it")
		}
	}

	key, err := auth.GenerateKey()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(key+"\n"), 0o600); err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	logger.Info("Feed key written", "path", path)

	out := k.out
	if out == nil {
		out = os.Stdout
	}
	_, err = fmt.Fprintln(out, key)
	return err
}
