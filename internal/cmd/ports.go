package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/simrig/hshifter/input/serial"
)

// Ports lists serial ports a sensor board could be attached to.
type Ports struct {
	out io.Writer `kong:"-"`
}

func (p *Ports) Run() error {
	ports, err := serial.Ports()
	if err != nil {
		return err
	}
	out := p.out
	if out == nil {
		out = os.Stdout
	}
	if len(ports) == 0 {
		_, err := fmt.Fprintln(out, "no serial ports found")
		return err
	}
	for _, name := range ports {
		if _, err := fmt.Fprintln(out, name); err != nil {
			return err
		}
	}
	return nil
}
