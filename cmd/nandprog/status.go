package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the flash status registers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDevice()
		if err != nil {
			return err
		}
		defer d.close()

		sr1, sr2, err := d.StatusRegisters()
		if err != nil {
			return fmt.Errorf("read flash status register failed: %w", err)
		}
		fmt.Println("SR1:", sr1)
		fmt.Println("SR2:", sr2)
		fmt.Println("Lock bits set:", sr2.LockBits() != 0 || sr2.StatusRegisterLock())
		return nil
	},
}
