package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"openenterprise/bleota/wire"
)

func newOTAFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ota-file <firmware-file>",
		Short: "Inspect a firmware image before pushing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOTAFile(cmd, args[0])
		},
	}
}

// runOTAFile reports the same sector/CRC breakdown the device computes
// while flashing, without a container format to unwrap: SPEC_FULL.md's
// image model has no UF2-style header, just raw bytes framed by wire.
func runOTAFile(cmd *cobra.Command, path string) error {
	image, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read firmware: %w", err)
	}

	length := uint32(len(image))
	numSectors := wire.NumSectors(length)
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "File:    %s\n", path)
	fmt.Fprintf(out, "Size:    %d bytes\n", length)
	fmt.Fprintf(out, "Sectors: %d (%d bytes each, last may be short)\n", numSectors, wire.SectorSize)
	fmt.Fprintln(out)

	for s := 0; s < numSectors; s++ {
		start, end := wire.SectorBounds(length, s)
		crc := wire.CRC16(image[start:end])
		fmt.Fprintf(out, "  sector %-4d  [%8d, %8d)  %5d bytes  crc16=%04x\n",
			s, start, end, end-start, crc)
	}

	return nil
}
