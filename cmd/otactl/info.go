package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"openenterprise/bleota/client"
	"openenterprise/bleota/client/goble"
)

func newInfoCmd() *cobra.Command {
	var connectTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "info <address>",
		Short: "Report which OTA characteristics a device exposes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd, args[0], connectTimeout)
		},
	}
	cmd.Flags().DurationVar(&connectTimeout, "connect-timeout", 10*time.Second, "BLE connect timeout")
	return cmd
}

func runInfo(cmd *cobra.Command, address string, connectTimeout time.Duration) error {
	ctx := context.Background()

	transport, err := goble.Dial(ctx, address, connectTimeout)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer transport.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Device: %s\n", address)

	all := []client.Characteristic{
		client.CharRecvFW, client.CharProgress, client.CharCommand, client.CharCustomer,
	}
	complete := true
	for _, ch := range all {
		resolved := transport.Resolved(ch)
		status := "resolved"
		if !resolved {
			status = "MISSING"
			complete = false
		}
		fmt.Fprintf(out, "  %-10s %s\n", ch.String(), status)
	}

	if !complete {
		return fmt.Errorf("device profile incomplete, push would fail")
	}
	fmt.Fprintln(out, "Profile complete.")
	return nil
}
