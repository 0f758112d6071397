package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/gentam/nandprog"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var readOpts struct {
	start, end     int
	offset, length int
	excludeOOB     bool
	dataOnly       bool
	outFile        string
}

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read a page range",
	Long: `Read pages [start, end) or the pages holding a byte range. The output
is a raw dump with OOB bytes included unless --data-only is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDevice()
		if err != nil {
			return err
		}
		defer d.close()

		geo := d.Geometry()
		byBytes := cmd.Flags().Changed("offset") || cmd.Flags().Changed("length")
		req := nandprog.TransferRequest{Start: readOpts.start, End: readOpts.end}
		if byBytes {
			req, err = geo.RequestForBytes(readOpts.offset, readOpts.length, readOpts.excludeOOB)
			if err != nil {
				return err
			}
		} else if req.End < 0 {
			req.End = req.Start + 1
		}

		log.Infof("Reading from page %d to %d", req.Start, req.End)
		if est := d.Estimate(req.End - req.Start); est > 0 {
			log.Infof("Reading time: %s", formatDuration(est))
		}

		res, err := d.ReadRange(cmd.Context(), req.Start, req.End)
		if err != nil {
			return fmt.Errorf("read flash failed: %w", err)
		}
		log.Infof("Total bytes read: %d %s", res.Bytes, formatSize(res.Bytes))
		log.Infof("Total data bytes: %d %s", res.DataBytes, formatSize(res.DataBytes))
		log.Infof("CRC32: %08X", res.CRC32)

		data := res.Data
		if readOpts.dataOnly {
			data = geo.StripOOB(data)
		}
		if readOpts.outFile == "" {
			fmt.Println(hex.Dump(data))
			return nil
		}
		return os.WriteFile(readOpts.outFile, data, 0644)
	},
}

func init() {
	f := readCmd.Flags()
	f.IntVarP(&readOpts.start, "start", "s", 0, "first page")
	f.IntVarP(&readOpts.end, "end", "e", -1, "end page, exclusive (default start+1)")
	f.IntVar(&readOpts.offset, "offset", 0, "byte offset (instead of pages)")
	f.IntVarP(&readOpts.length, "length", "n", 0, "byte length (instead of pages)")
	f.BoolVar(&readOpts.excludeOOB, "exclude-oob", false, "byte offsets count data bytes only")
	f.BoolVar(&readOpts.dataOnly, "data-only", false, "drop OOB bytes from the output")
	f.StringVarP(&readOpts.outFile, "output", "o", "", "output file (default: hexdump)")
}
