package nandprog

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config holds the session configuration. The zero value of a field means
// "use the default" except for booleans.
type Config struct {
	// DeviceIndex selects the adapter when several are attached.
	DeviceIndex int `yaml:"device_index"`
	// Exclusive claims the adapter for this process.
	Exclusive bool `yaml:"exclusive"`
	// MinChipRevision is the lowest adapter revision with SPI streaming.
	MinChipRevision int `yaml:"min_chip_revision"`

	PageSize   int `yaml:"page_size"`
	OOBSize    int `yaml:"oob_size"`
	BlockSize  int `yaml:"block_size"`
	BlockCount int `yaml:"block_count"`

	// ChipSelect is "hardware" or "manual".
	ChipSelect string `yaml:"chip_select"`
	// ChipSelectIndex picks the adapter CS line (D0-D2).
	ChipSelectIndex int `yaml:"chip_select_index"`
	// ChipSelectMask is the pin direction mask used when CS is driven
	// through the pins.
	ChipSelectMask byte `yaml:"chip_select_mask"`
	// AddressMode is "auto", "3" or "4". Chips close to 16 MiB sometimes
	// need it forced.
	AddressMode string `yaml:"address_mode"`

	PollInterval time.Duration `yaml:"poll_interval"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
	// Retries is how many times a failed page read is reissued.
	Retries int `yaml:"retries"`
	// VerifyReads reads every page twice and compares checksums.
	VerifyReads bool `yaml:"verify_reads"`
	// SkipBenchmark disables the page latency measurement at open.
	SkipBenchmark bool `yaml:"skip_benchmark"`
}

// DefaultConfig returns the configuration for a CH341A with a 1 Gbit SPI
// NAND.
func DefaultConfig() Config {
	return Config{
		MinChipRevision: 0x30,
		PageSize:        DefaultGeometry.PageSize,
		OOBSize:         DefaultGeometry.OOBSize,
		BlockSize:       DefaultGeometry.BlockSize,
		BlockCount:      DefaultGeometry.BlockCount,
		ChipSelect:      "hardware",
		ChipSelectMask:  DefaultChipSelectMask,
		AddressMode:     "auto",
		PollInterval:    100 * time.Millisecond,
		BusyTimeout:     5 * time.Second,
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, cfg.Validate()
}

// Geometry returns the chip geometry described by the config.
func (c Config) Geometry() Geometry {
	return Geometry{
		PageSize:   c.PageSize,
		OOBSize:    c.OOBSize,
		BlockSize:  c.BlockSize,
		BlockCount: c.BlockCount,
	}
}

// ResolveAddressMode applies the override, falling back to the capacity
// threshold.
func (c Config) ResolveAddressMode() (AddressMode, error) {
	mode, forced, err := ParseAddressMode(c.AddressMode)
	if err != nil {
		return 0, err
	}
	if forced {
		return mode, nil
	}
	return AddressModeFor(c.Geometry().ChipSize()), nil
}

func (c Config) chipSelectEnd() (ChipSelect, error) {
	switch c.ChipSelect {
	case "", "hardware":
		return CSHardware, nil
	case "manual":
		return CSManual, nil
	}
	return 0, errors.Errorf("unknown chip select mode %q", c.ChipSelect)
}

// Validate checks the config for values the session cannot work with.
func (c Config) Validate() error {
	if err := c.Geometry().Validate(); err != nil {
		return err
	}
	if _, err := c.ResolveAddressMode(); err != nil {
		return err
	}
	if _, err := c.chipSelectEnd(); err != nil {
		return err
	}
	if c.ChipSelectMask&pinCS == 0 {
		return errors.Errorf("chip select mask 0x%02X does not drive D0", c.ChipSelectMask)
	}
	if c.ChipSelectIndex < 0 || c.ChipSelectIndex > 2 {
		return errors.Errorf("chip select index %d out of range 0-2", c.ChipSelectIndex)
	}
	if c.PollInterval <= 0 {
		return errors.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.Retries < 0 {
		return errors.Errorf("retries must not be negative, got %d", c.Retries)
	}
	return nil
}
