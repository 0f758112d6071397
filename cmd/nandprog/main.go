package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/gentam/nandprog"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfg     = nandprog.DefaultConfig()
	cfgFile string
	simFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "nandprog",
	Short: "Read and write SPI NAND/NOR flash through a USB-SPI bridge",
	Long: `nandprog reads chip IDs, dumps page ranges to a file and programs
files back page by page. OOB bytes are copied as they are.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
		nandprog.SetLogger(log.StandardLogger())
		return loadConfig(cmd)
	},
}

// Flag values applied on top of the config file when set.
var flagCfg = nandprog.DefaultConfig()

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	pf.StringVar(&simFile, "sim", "", "use a simulated chip backed by this image file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	pf.IntVarP(&flagCfg.DeviceIndex, "device", "d", flagCfg.DeviceIndex, "adapter index")
	pf.IntVar(&flagCfg.PageSize, "page-size", flagCfg.PageSize, "page size including OOB")
	pf.IntVar(&flagCfg.OOBSize, "oob-size", flagCfg.OOBSize, "OOB bytes per page")
	pf.IntVar(&flagCfg.BlockSize, "block-size", flagCfg.BlockSize, "block size in bytes")
	pf.IntVar(&flagCfg.BlockCount, "block-count", flagCfg.BlockCount, "number of blocks")
	pf.StringVar(&flagCfg.ChipSelect, "chip-select", flagCfg.ChipSelect, "chip select mode: hardware or manual")
	pf.StringVar(&flagCfg.AddressMode, "address-mode", flagCfg.AddressMode, "address mode: auto, 3 or 4")
	pf.IntVar(&flagCfg.Retries, "retries", flagCfg.Retries, "page read retries")
	pf.BoolVar(&flagCfg.VerifyReads, "verify-reads", flagCfg.VerifyReads, "read every page twice and compare checksums")
	pf.DurationVar(&flagCfg.PollInterval, "poll-interval", flagCfg.PollInterval, "busy poll interval")
	pf.DurationVar(&flagCfg.BusyTimeout, "busy-timeout", flagCfg.BusyTimeout, "busy poll timeout")

	rootCmd.AddCommand(infoCmd, statusCmd, readCmd, writeCmd, unlockCmd)
}

func loadConfig(cmd *cobra.Command) error {
	if cfgFile != "" {
		c, err := nandprog.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		cfg = c
	}

	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	set("device", func() { cfg.DeviceIndex = flagCfg.DeviceIndex })
	set("page-size", func() { cfg.PageSize = flagCfg.PageSize })
	set("oob-size", func() { cfg.OOBSize = flagCfg.OOBSize })
	set("block-size", func() { cfg.BlockSize = flagCfg.BlockSize })
	set("block-count", func() { cfg.BlockCount = flagCfg.BlockCount })
	set("chip-select", func() { cfg.ChipSelect = flagCfg.ChipSelect })
	set("address-mode", func() { cfg.AddressMode = flagCfg.AddressMode })
	set("retries", func() { cfg.Retries = flagCfg.Retries })
	set("verify-reads", func() { cfg.VerifyReads = flagCfg.VerifyReads })
	set("poll-interval", func() { cfg.PollInterval = flagCfg.PollInterval })
	set("busy-timeout", func() { cfg.BusyTimeout = flagCfg.BusyTimeout })

	if simFile != "" && !cmd.Flags().Changed("poll-interval") {
		cfg.PollInterval = time.Millisecond
	}
	return cfg.Validate()
}

func main() {
	// Interrupts stop transfers between pages.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
