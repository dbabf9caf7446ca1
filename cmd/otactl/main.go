// Command otactl is the operator-facing counterpart to cmd/otafirmware: it
// pushes a firmware image to a device over BLE, inspects a firmware file
// before pushing it, and reports whether a device's OTA profile is
// reachable at all.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "otactl",
		Short: "Push and inspect BLE OTA firmware updates",
	}
	root.AddCommand(newPushCmd(), newOTAFileCmd(), newInfoCmd())
	return root
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
