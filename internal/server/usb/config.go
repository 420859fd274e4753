package usb

import "time"

// ServerConfig is the USB-IP export configuration.
type ServerConfig struct {
	Addr              string        `help:"USB-IP server listen address" default:":3241" env:"HSHIFTER_USB_ADDR" yaml:"addr"`
	ConnectionTimeout time.Duration `help:"Time a client has to send its first request" default:"10s" yaml:"connectionTimeout"`
	PollInterval      time.Duration `help:"Minimum time between interrupt IN replies; 0 answers immediately" default:"1ms" yaml:"pollInterval"`
}
