// Package telemetry publishes gear changes to NATS so dashboards and
// overlays can follow the shifter without attaching to USB.
package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
)

// Event describes the engaged gear after a change. Gear is 1..6, or 0 in
// neutral. Slot is the pressed gear button, -1 in neutral.
type Event struct {
	Gear     int       `json:"gear"`
	Modified bool      `json:"modified"`
	Neutral  bool      `json:"neutral"`
	Slot     int       `json:"slot"`
	Brake    int       `json:"brake"`
	At       time.Time `json:"at"`
}

// Publisher receives every gear change.
type Publisher interface {
	Publish(Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(Event) error { return nil }
func (Nop) Close() error        { return nil }

type Config struct {
	URL         string `help:"NATS server URL; empty disables telemetry" env:"HSHIFTER_NATS_URL" yaml:"url"`
	Subject     string `help:"Subject prefix; events go to <prefix>.gear" default:"hshifter" yaml:"subject"`
	Name        string `help:"NATS connection and service name" default:"hshifter" yaml:"name"`
	Credentials string `help:"NATS user credentials file" type:"path" yaml:"credentials"`
}

// Version is reported by the status service.
var Version = "0.0.0-dev"

// msgPublisher is the part of *nats.Conn the publisher uses.
type msgPublisher interface {
	Publish(subj string, data []byte) error
}

// NATS publishes events on <subject>.gear and answers status requests on
// <subject>.status with the last event.
type NATS struct {
	conn    msgPublisher
	subject string

	nc  *nats.Conn
	svc micro.Service

	mu   sync.Mutex
	last Event
}

// Connect returns Nop when no URL is configured.
func Connect(cfg Config, logger *slog.Logger) (Publisher, error) {
	if cfg.URL == "" {
		return Nop{}, nil
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if cfg.Credentials != "" {
		opts = append(opts, nats.UserCredentials(cfg.Credentials))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	p := newNATS(nc, cfg.Subject)
	p.nc = nc

	svc, err := micro.AddService(nc, micro.Config{
		Name:        cfg.Name,
		Version:     Version,
		Description: "H-shifter gear state",
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("add nats service: %w", err)
	}
	err = svc.AddEndpoint("status", micro.HandlerFunc(func(r micro.Request) {
		_ = r.RespondJSON(p.Last())
	}), micro.WithEndpointSubject(cfg.Subject+".status"))
	if err != nil {
		_ = svc.Stop()
		nc.Close()
		return nil, fmt.Errorf("add status endpoint: %w", err)
	}
	p.svc = svc

	logger.Info("Telemetry connected", "url", nc.ConnectedUrl(), "subject", p.GearSubject())
	return p, nil
}

func newNATS(conn msgPublisher, subject string) *NATS {
	return &NATS{conn: conn, subject: subject, last: Event{Neutral: true, Slot: -1}}
}

// GearSubject is where events are published.
func (p *NATS) GearSubject() string {
	return p.subject + ".gear"
}

func (p *NATS) Publish(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.last = e
	p.mu.Unlock()
	return p.conn.Publish(p.GearSubject(), data)
}

// Last returns the most recently published event.
func (p *NATS) Last() Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *NATS) Close() error {
	if p.svc != nil {
		_ = p.svc.Stop()
	}
	if p.nc != nil {
		return p.nc.Drain()
	}
	return nil
}
