package main

import (
	"errors"
	"fmt"

	"github.com/gentam/nandprog"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var writeOpts struct {
	filename   string
	format     string
	page       int
	offset     int
	excludeOOB bool
	verify     bool
}

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write a file into flash",
	Long: `Program a raw binary or Intel HEX file page by page, starting at a
page or at the page holding a byte offset. Intel HEX files are placed at
their own start address unless a position is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if writeOpts.filename == "" {
			return errors.New("input file is required")
		}
		img, err := nandprog.LoadImageFile(writeOpts.filename, nandprog.ImageFormat(writeOpts.format), cfg.Geometry().ChipSize())
		if err != nil {
			return fmt.Errorf("failed to load image: %w", err)
		}

		d, err := openDevice()
		if err != nil {
			return err
		}
		defer d.close()

		geo := d.Geometry()
		offset := writeOpts.offset
		byOffset := cmd.Flags().Changed("offset")
		if !byOffset && !cmd.Flags().Changed("page") && img.Offset != 0 {
			offset, byOffset = img.Offset, true
		}
		unit := geo.PageSize
		if writeOpts.excludeOOB {
			unit = geo.PageDataSize()
		}
		if byOffset && offset%unit != 0 {
			return fmt.Errorf("offset 0x%X is not on a page boundary (%d bytes)", offset, unit)
		}

		log.Infof("Start writing %d bytes (%s)", len(img.Data), formatSize(len(img.Data)))
		var res *nandprog.WriteResult
		if byOffset {
			res, err = d.WriteBytes(cmd.Context(), offset, img.Data, writeOpts.excludeOOB, writeOpts.verify)
		} else {
			res, err = d.WriteRange(cmd.Context(), writeOpts.page, img.Data, writeOpts.verify)
		}
		if res != nil {
			log.Infof("Total bytes written: %d of %d", res.Written, res.Expected)
			if res.Verified {
				if res.Changed {
					log.Info("Flash contents changed")
				} else {
					log.Info("Flash contents unchanged")
				}
			}
		}
		var mismatch *nandprog.VerificationMismatchError
		if errors.As(err, &mismatch) {
			return fmt.Errorf("verify failed at page %d: %w", res.Start+mismatch.Offset/geo.PageSize, err)
		}
		if err != nil {
			return fmt.Errorf("write flash failed: %w", err)
		}
		return nil
	},
}

func init() {
	f := writeCmd.Flags()
	f.StringVarP(&writeOpts.filename, "file", "f", "", "input file")
	f.StringVar(&writeOpts.format, "format", "", "input format: bin or hex (default: by extension)")
	f.IntVarP(&writeOpts.page, "page", "p", 0, "first page")
	f.IntVar(&writeOpts.offset, "offset", 0, "byte offset (instead of a page)")
	f.BoolVar(&writeOpts.excludeOOB, "exclude-oob", false, "byte offset counts data bytes only")
	f.BoolVar(&writeOpts.verify, "verify", true, "read the range back and compare")
}
