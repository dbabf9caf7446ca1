package device

import (
	"log/slog"

	"openenterprise/bleota/partition"
)

// BootCommit cancels a pending rollback on the running partition (§4.7).
// It runs once at device startup, before the OTA helper is reachable at
// all — independent of, but idempotent with, the same check FlashWriter
// makes at the start of Run, so a device that never opens a connection is
// still protected.
func BootCommit(api partition.API, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	running, err := api.Current()
	if err != nil {
		return err
	}

	state, err := api.State(running)
	if err != nil {
		return err
	}
	if state != partition.StatePendingVerify {
		return nil
	}

	if err := api.SetState(running, partition.StateValid); err != nil {
		return err
	}
	logger.Info("device:boot-commit", slog.String("partition", running.String()))
	return nil
}
