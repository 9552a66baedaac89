package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minimap-xl/sdcc/pkg/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
name: node-a
bit_timing:
  prescaler_m: 4
  sync_seg: 1
  prop_seg: 2
  phase_seg1: 3
  phase_seg2: 2
  sjw: 1
pma:
  backend: sim
log_level: 3
`)

	n, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "node-a", n.Name)
	assert.Equal(t, 4, n.BitTiming.PrescalerM)
	assert.Equal(t, "sim", n.PMA.Backend)
	assert.Equal(t, 8, n.BitTiming.ToParameters().QuantaPerBit())
}

func TestLoadRejectsInvalidBitTiming(t *testing.T) {
	path := writeConfig(t, `
name: node-b
bit_timing:
  prescaler_m: 0
  sync_seg: 1
  prop_seg: 2
  phase_seg1: 3
  phase_seg2: 2
  sjw: 1
pma:
  backend: sim
`)

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, `
name: node-c
bit_timing:
  prescaler_m: 1
  sync_seg: 1
  prop_seg: 2
  phase_seg1: 3
  phase_seg2: 2
  sjw: 1
pma:
  backend: carrier-pigeon
`)

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingBackend(t *testing.T) {
	path := writeConfig(t, `
name: node-d
bit_timing:
  prescaler_m: 1
  sync_seg: 1
  prop_seg: 2
  phase_seg1: 3
  phase_seg2: 2
  sjw: 1
`)

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
