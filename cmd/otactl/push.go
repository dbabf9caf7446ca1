package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"openenterprise/bleota/client"
	"openenterprise/bleota/client/goble"
)

func newPushCmd() *cobra.Command {
	var connectTimeout time.Duration
	var yes bool

	cmd := &cobra.Command{
		Use:   "push <address> <firmware-file>",
		Short: "Push a firmware image to a device over BLE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(cmd, args[0], args[1], connectTimeout, yes)
		},
	}
	cmd.Flags().DurationVar(&connectTimeout, "connect-timeout", 10*time.Second, "BLE connect timeout")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func runPush(cmd *cobra.Command, address, fwPath string, connectTimeout time.Duration, yes bool) error {
	image, err := os.ReadFile(fwPath)
	if err != nil {
		return fmt.Errorf("read firmware: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Firmware: %s (%d bytes)\n", fwPath, len(image))

	if !yes && !confirm() {
		return fmt.Errorf("push cancelled")
	}

	logger := newLogger()
	ctx := context.Background()

	fmt.Fprintf(cmd.OutOrStdout(), "Connecting to %s...\n", address)
	transport, err := goble.Dial(ctx, address, connectTimeout)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer transport.Close()

	controller := client.NewSessionController(transport, logger)
	fmt.Fprintln(cmd.OutOrStdout(), "Streaming firmware...")
	if err := controller.RunOTA(ctx, image); err != nil {
		return fmt.Errorf("ota failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Update complete. Device will reboot to the new partition.")
	return nil
}

// confirm prompts the operator before a push begins; a disruptive action
// on a physical device warrants the same deliberate pause the donor CLI
// used for its console password.
func confirm() bool {
	fmt.Print("Push firmware to this device? [y/N] ")
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "Y" || response == "yes"
}
