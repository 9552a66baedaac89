// Package config loads the node's bit-timing and transport configuration
// from a YAML file. Grounded on the teacher's deviceid.go (gopkg.in/yaml.v3
// unmarshaled straight into plain Go structs, loaded once at startup from
// an OS-specific search path) generalized from device-identifier tables to
// bit-timing parameters and PMA backend selection.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/minimap-xl/sdcc/pkg/pcs"
)

// BitTiming mirrors pcs.Parameters for YAML unmarshaling; kept distinct so
// the wire/file format is insulated from internal field renames.
type BitTiming struct {
	PrescalerM int `yaml:"prescaler_m"`
	SyncSeg    int `yaml:"sync_seg"`
	PropSeg    int `yaml:"prop_seg"`
	PhaseSeg1  int `yaml:"phase_seg1"`
	PhaseSeg2  int `yaml:"phase_seg2"`
	SJW        int `yaml:"sjw"`
}

// ToParameters converts to pcs.Parameters.
func (b BitTiming) ToParameters() pcs.Parameters {
	return pcs.Parameters{
		PrescalerM: b.PrescalerM,
		SyncSeg:    b.SyncSeg,
		PropSeg:    b.PropSeg,
		PhaseSeg1:  b.PhaseSeg1,
		PhaseSeg2:  b.PhaseSeg2,
		SJW:        b.SJW,
	}
}

// PMA selects and configures a transport backend (spec.md §6.1).
type PMA struct {
	Backend string `yaml:"backend"` // "sim", "gpio", "spi", "serial"

	// gpio
	Chip     string `yaml:"chip,omitempty"`
	TxOffset int    `yaml:"tx_offset,omitempty"`
	RxOffset int    `yaml:"rx_offset,omitempty"`

	// spi
	SPIPort string `yaml:"spi_port,omitempty"`

	// serial
	Device string `yaml:"device,omitempty"`
	Baud   int    `yaml:"baud,omitempty"`

	NodeClockMicros int `yaml:"node_clock_micros,omitempty"`
}

// Discovery configures optional mDNS advertisement of this node.
type Discovery struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance,omitempty"`
}

// Node is a single CAN node's complete configuration.
type Node struct {
	Name      string    `yaml:"name"`
	BitTiming BitTiming `yaml:"bit_timing"`
	PMA       PMA       `yaml:"pma"`
	Discovery Discovery `yaml:"discovery"`
	LogLevel  int       `yaml:"log_level"`
	LogDir    string    `yaml:"log_dir,omitempty"`
}

// Load reads and unmarshals a Node configuration from path, grounded on
// deviceid_init's read-then-unmarshal shape.
func Load(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var n Node
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := n.BitTiming.ToParameters().Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	switch n.PMA.Backend {
	case "sim", "gpio", "spi", "serial":
	case "":
		return nil, fmt.Errorf("config: %s: pma.backend is required", path)
	default:
		return nil, fmt.Errorf("config: %s: unknown pma.backend %q", path, n.PMA.Backend)
	}

	return &n, nil
}
