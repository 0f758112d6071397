package nandprog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, s string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nandprog.yaml")
	if err := os.WriteFile(path, []byte(s), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
page_size: 2112
oob_size: 64
block_size: 135168
block_count: 2
chip_select: manual
chip_select_mask: 0x3F
address_mode: "4"
poll_interval: 5ms
busy_timeout: 2s
retries: 3
verify_reads: true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BlockCount != 2 || cfg.ChipSelectMask != 0x3F || cfg.Retries != 3 || !cfg.VerifyReads {
		t.Errorf("got %+v", cfg)
	}
	if cfg.PollInterval != 5*time.Millisecond || cfg.BusyTimeout != 2*time.Second {
		t.Errorf("durations %v %v", cfg.PollInterval, cfg.BusyTimeout)
	}
	// Unset keys keep their defaults.
	if cfg.MinChipRevision != 0x30 {
		t.Errorf("min chip revision %#x", cfg.MinChipRevision)
	}
	if mode, _ := cfg.ResolveAddressMode(); mode != FourByte {
		t.Errorf("address mode %s, want forced 4-byte", mode)
	}
	if end, _ := cfg.chipSelectEnd(); end != CSManual {
		t.Errorf("chip select %s", end)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name, yaml string
	}{
		{"unknown key", "page_sise: 2112\n"},
		{"bad address mode", "address_mode: five\n"},
		{"mask without D0", "chip_select_mask: 0x28\n"},
		{"bad geometry", "block_size: 1000\n"},
		{"cs index", "chip_select_index: 3\n"},
		{"negative retries", "retries: -1\n"},
	}
	for _, tt := range tests {
		if _, err := LoadConfig(writeConfig(t, tt.yaml)); err == nil {
			t.Errorf("%s: accepted", tt.name)
		}
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Geometry() != DefaultGeometry {
		t.Errorf("geometry %s", cfg.Geometry())
	}
	if mode, _ := cfg.ResolveAddressMode(); mode != FourByte {
		t.Errorf("default address mode %s, want 4-byte for a 1 Gbit chip", mode)
	}
}
