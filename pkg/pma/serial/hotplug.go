//go:build linux

package serial

import (
	"context"
	"fmt"

	"github.com/jochenvg/go-udev"
)

// WaitForDevice blocks until a tty device node is added to the system,
// returning its device node path (e.g. "/dev/ttyUSB0"). Intended for a
// USB-serial CAN bridge that may not be plugged in yet when the
// controller starts: the GPIO and SPI backends are both wired to a fixed
// line or bus that exists at boot, but a serial bridge is exactly the
// kind of removable peripheral udev exists to report on.
func WaitForDevice(ctx context.Context) (string, error) {
	u := udev.Udev{}
	mon := u.NewMonitorFromNetlink("udev")
	if err := mon.FilterAddMatchSubsystem("tty"); err != nil {
		return "", fmt.Errorf("pma/serial: hotplug filter: %w", err)
	}

	devCh, errCh, err := mon.DeviceChan(ctx)
	if err != nil {
		return "", fmt.Errorf("pma/serial: hotplug monitor: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case err := <-errCh:
			return "", fmt.Errorf("pma/serial: hotplug: %w", err)
		case dev := <-devCh:
			if dev == nil || dev.Action() != "add" {
				continue
			}
			if node := dev.Devnode(); node != "" {
				return node, nil
			}
		}
	}
}

// OpenAuto opens the serial PMA at cfg.Device, or, if cfg.Device is
// empty, blocks until a bridge is plugged in via WaitForDevice and opens
// that instead.
func OpenAuto(ctx context.Context, cfg Config) (*PMA, error) {
	if cfg.Device == "" {
		dev, err := WaitForDevice(ctx)
		if err != nil {
			return nil, err
		}
		cfg.Device = dev
	}
	return Open(cfg)
}
