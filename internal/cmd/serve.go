package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/simrig/hshifter/device"
	"github.com/simrig/hshifter/device/gamepad"
	"github.com/simrig/hshifter/input"
	"github.com/simrig/hshifter/internal/controller"
	"github.com/simrig/hshifter/internal/log"
	"github.com/simrig/hshifter/internal/server/usb"
	"github.com/simrig/hshifter/internal/telemetry"
	"github.com/simrig/hshifter/shifter"
	"github.com/simrig/hshifter/virtualbus"
)

// busID is the only bus; the gamepad is exported as 1-1.
const busID = 1

type Serve struct {
	Input  Input              `embed:"" prefix:"input." yaml:"input"`
	Gate   shifter.Thresholds `embed:"" prefix:"gate." yaml:"gate"`
	Sensor input.Conditioner  `embed:"" prefix:"sensor." yaml:"sensor"`

	USB        usb.ServerConfig `embed:"" prefix:"usb." yaml:"usb"`
	DeviceID   device.USBID     `help:"USB vendor:product reported by the gamepad" default:"1209:0012" name:"device-id" yaml:"deviceId"`
	Serial     string           `help:"USB serial number string" default:"HSH-0001" yaml:"serial"`
	AutoAttach bool             `help:"Attach the gamepad to this machine with usbip once exported" yaml:"autoAttach"`

	Telemetry telemetry.Config `embed:"" prefix:"nats." yaml:"nats"`
}

// Run is called by Kong when the serve command is executed.
func (s *Serve) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Start(ctx, logger, rawLogger)
}

// Start runs the export and the control loop until ctx is done.
func (s *Serve) Start(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	if err := s.Gate.Validate(); err != nil {
		return fmt.Errorf("invalid gate thresholds: %w", err)
	}

	src, err := s.Input.Open(logger)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer src.Close()

	pad := gamepad.New(s.DeviceID.Options(s.Serial))
	bus, err := virtualbus.New(busID)
	if err != nil {
		return err
	}
	defer bus.Close()
	devCtx, err := bus.Add(pad)
	if err != nil {
		return fmt.Errorf("add gamepad: %w", err)
	}
	meta := device.GetDeviceMeta(devCtx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	usbSrv := usb.New(s.USB, bus, logger, rawLogger)
	usbErrCh := make(chan error, 1)
	go func() {
		usbErrCh <- usbSrv.ListenAndServe(ctx)
	}()
	select {
	case err := <-usbErrCh:
		return err
	case <-usbSrv.Ready():
	}
	logger.Info("Gamepad exported", "busID", meta.BusIDString(), "addr", usbSrv.Addr().String(), "id", s.DeviceID.String())

	events, err := telemetry.Connect(s.Telemetry, logger)
	if err != nil {
		return err
	}
	defer events.Close()

	if s.AutoAttach {
		if usb.CheckAttachPrerequisites(logger) {
			go func() {
				_ = usb.AttachLocal(ctx, usbSrv.ListenPort(), *meta, logger)
			}()
		} else {
			logger.Warn("Skipping local attach")
		}
	}

	ctrl := controller.New(s.Sensor, s.Gate, pad, events, logger)
	loopErrCh := make(chan error, 1)
	go func() {
		loopErrCh <- ctrl.Run(ctx, src)
	}()

	for {
		select {
		case <-ctx.Done():
			_ = usbSrv.Close()
			<-usbErrCh
			if loopErrCh != nil {
				<-loopErrCh
			}
			return nil
		case err := <-usbErrCh:
			cancel()
			if loopErrCh != nil {
				<-loopErrCh
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case err := <-loopErrCh:
			if err != nil {
				cancel()
				_ = usbSrv.Close()
				<-usbErrCh
				return err
			}
			logger.Info("Input ended; gamepad stays exported until shutdown", "ticks", ctrl.Ticks())
			loopErrCh = nil
		}
	}
}
