package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Clear the block protection of the whole chip",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDevice()
		if err != nil {
			return err
		}
		defer d.close()

		log.Info("Unlocking...")
		if err := d.Unlock(); err != nil {
			return fmt.Errorf("unlock failed: %w", err)
		}
		sr1, _, err := d.StatusRegisters()
		if err != nil {
			return fmt.Errorf("read flash status register failed: %w", err)
		}
		if sr1.BlockProtect0() || sr1.BlockProtect1() || sr1.BlockProtect2() {
			log.Warnf("Block protect bits still set: %s", sr1)
			return nil
		}
		log.Info("Chip is unlocked.")
		return nil
	},
}
