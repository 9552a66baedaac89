// Package discovery advertises a CAN node's transport endpoint on the
// local network via mDNS/DNS-SD, so peers do not need a hardcoded
// address. Grounded directly on dns_sd.go, which uses the pure-Go
// github.com/brutella/dnssd package for the same reason: no system daemon
// or cgo dependency, unlike dns_sd_avahi.go's Avahi binding.
package discovery

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
	"github.com/rs/xid"
)

// ServiceType is the DNS-SD service type this controller advertises under,
// named by analogy with dns_sd.go's "_kiss-tnc._tcp" for direwolf's KISS
// TCP transport.
const ServiceType = "_sdcc-can._tcp"

// Announcer advertises one node's transport endpoint.
type Announcer struct {
	responder dnssd.Responder
	cancel    context.CancelFunc
}

// Announce registers and starts responding to mDNS queries for a service
// named "instance" on the given port, returning an Announcer whose Stop
// method ends the responder goroutine. An empty instance name gets a
// generated one (xid.New, a sortable globally-unique ID with no
// coordination needed across nodes coming up independently) so two nodes
// started from the same configuration template never collide on the
// service name mDNS advertises under.
func Announce(instance string, port int) (*Announcer, error) {
	if instance == "" {
		instance = "sdcc-" + xid.New().String()
	}

	cfg := dnssd.Config{
		Name: instance,
		Type: ServiceType,
		Port: port,
	}

	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: create service: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("discovery: create responder: %w", err)
	}

	if _, err := responder.Add(svc); err != nil {
		return nil, fmt.Errorf("discovery: add service: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- responder.Respond(ctx)
	}()

	return &Announcer{responder: responder, cancel: cancel}, nil
}

// Stop ends the mDNS responder.
func (a *Announcer) Stop() {
	a.cancel()
}
