package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"periph.io/x/host/v3/ftdi"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print adapter and chip information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDevice()
		if err != nil {
			return err
		}
		defer d.close()

		if d.ftdi != nil {
			if err := printFTDI(d.ftdi.Dev); err != nil {
				return err
			}
		} else {
			fmt.Printf("Adapter:         simulated (%s)\n", simFile)
		}

		id := d.Identity()
		f := id.Fields()
		fmt.Printf("JEDEC ID (9F):   %s\n", orDash(f[0x9F]))
		fmt.Printf("Legacy ID (90):  %s\n", orDash(f[0x90]))
		fmt.Printf("Alt ID (AB):     %s\n", orDash(f[0xAB]))
		fmt.Printf("Ext ID (15):     %s\n", orDash(f[0x15]))
		if mt, ok := id.MemoryType(); ok {
			fmt.Printf("Memory type:     %s (%#02x)\n", mt, id.JEDEC[1])
		} else {
			fmt.Printf("Memory type:     unknown (%#02x)\n", id.JEDEC[1])
		}
		if name, ok := id.Known(); ok {
			fmt.Printf("Chip:            %s\n", name)
		} else {
			fmt.Printf("Chip:            unknown\n")
		}

		geo := d.Geometry()
		fmt.Printf("Chip size:       %d (%s)\n", geo.ChipSize(), formatSize(geo.ChipSize()))
		fmt.Printf("Block size:      %d (%d pages)\n", geo.BlockSize, geo.PagesPerBlock())
		fmt.Printf("Page size:       %d (%d + %d)\n", geo.PageSize, geo.PageDataSize(), geo.OOBSize)
		fmt.Printf("Address mode:    %s\n", d.AddressMode())
		if lat := d.PageLatency(); lat > 0 {
			fmt.Printf("Page time:       %s\n", formatDuration(lat))
		}
		return nil
	},
}

// Reference: https://github.com/periph/cmd/tree/main/ftdi-list
func printFTDI(ft *ftdi.FT232H) error {
	i := ftdi.Info{}
	ft.Info(&i)
	fmt.Printf("Type:            %s\n", i.Type)
	fmt.Printf("Vendor ID:       %#04x\n", i.VenID)
	fmt.Printf("Device ID:       %#04x\n", i.DevID)

	ee := ftdi.EEPROM{}
	if err := ft.EEPROM(&ee); err != nil {
		return fmt.Errorf("failed to read EEPROM: %w", err)
	}
	fmt.Printf("Manufacturer:    %s\n", ee.Manufacturer)
	fmt.Printf("ManufacturerID:  %s\n", ee.ManufacturerID)
	fmt.Printf("Desc:            %s\n", ee.Desc)
	fmt.Printf("Serial:          %s\n", ee.Serial)

	h := ee.AsHeader()
	fmt.Printf("MaxPower:        %dmA\n", h.MaxPower)
	fmt.Printf("SelfPowered:     %x\n", h.SelfPowered)

	for _, p := range ft.Header() {
		fmt.Printf("%s: %s\n", p, p.Function())
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
