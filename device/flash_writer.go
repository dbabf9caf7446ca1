package device

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"openenterprise/bleota/config"
	"openenterprise/bleota/partition"
)

// rebootDelay is the fixed grace period before any exit path reboots the
// device (§4.6 step 6, §7).
const rebootDelay = 2 * time.Second

// Device error kinds, all abort-to-reboot (§7).
var (
	ErrPartitionLookup    = errors.New("device: partition lookup failed")
	ErrZeroFirmwareLength = errors.New("device: zero firmware length")
	ErrFirmwareTooLarge   = errors.New("device: firmware length exceeds the partition's usable size")
	ErrBeginFailed        = errors.New("device: ota_begin failed")
	ErrRingTimeout        = errors.New("device: ring receive timed out")
	ErrSemaphoreTimeout   = errors.New("device: semaphore take timed out")
	ErrWriteFailed        = errors.New("device: flash write failed")
	ErrEndFailed          = errors.New("device: ota_end failed")
)

// ProgressFunc reports device-side progress (0-100), the source of the
// progress-characteristic notification (§6).
type ProgressFunc func(pct int)

// FlashWriter consumes the ring buffer and writes the standby partition
// (§4.6). Exactly one instance runs per OTA session, spawned lazily by
// IngressPump's first write.
type FlashWriter struct {
	api        partition.API
	ring       *Ring
	lengths    *FirmwareLengthStash
	onProgress ProgressFunc
	logger     *slog.Logger
	sem        *semaphore.Weighted
}

// NewFlashWriter builds a writer over api and ring. lengths must be the
// same stash the command-characteristic handler populates. A nil
// onProgress is a no-op.
func NewFlashWriter(api partition.API, ring *Ring, lengths *FirmwareLengthStash, onProgress ProgressFunc, logger *slog.Logger) *FlashWriter {
	if onProgress == nil {
		onProgress = func(int) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FlashWriter{
		api:        api,
		ring:       ring,
		lengths:    lengths,
		onProgress: onProgress,
		logger:     logger,
		sem:        semaphore.NewWeighted(1),
	}
}

// Run executes the full lifecycle of §4.6, steps 1-6. Any returned error
// is one of the device error kinds above; the caller is expected to
// reboot regardless (see RunAndReboot).
func (w *FlashWriter) Run(ctx context.Context) error {
	running, err := w.api.Current()
	if err != nil {
		return ErrPartitionLookup
	}

	state, err := w.api.State(running)
	if err != nil {
		return ErrPartitionLookup
	}
	if state == partition.StatePendingVerify {
		if err := w.api.SetState(running, partition.StateValid); err != nil {
			return ErrPartitionLookup
		}
		w.logger.Info("device:rollback-cancelled", slog.String("partition", running.String()))
	}

	target, err := w.api.Standby()
	if err != nil {
		return ErrPartitionLookup
	}

	fwLength, ok := w.lengths.Get()
	if !ok || fwLength == 0 {
		return ErrZeroFirmwareLength
	}
	if fwLength > partition.MaxImageSize {
		return ErrFirmwareTooLarge
	}

	handle, err := w.api.Begin(target, partition.UnknownSize)
	if err != nil {
		return ErrBeginFailed
	}

	var recvLen uint32
	for recvLen < fwLength {
		recvCtx, cancelRecv := context.WithTimeout(ctx, config.RingRecvTimeout())
		item, err := w.ring.Recv(recvCtx)
		cancelRecv()
		if err != nil {
			return ErrRingTimeout
		}

		semCtx, cancelSem := context.WithTimeout(ctx, config.SemaphoreWait())
		acquireErr := w.sem.Acquire(semCtx, 1)
		cancelSem()
		if acquireErr != nil {
			return ErrSemaphoreTimeout
		}

		writeErr := w.api.Write(handle, item)
		if writeErr != nil {
			w.sem.Release(1)
			return ErrWriteFailed
		}
		recvLen += uint32(len(item))
		pct := int(uint64(recvLen) * 100 / uint64(fwLength))
		w.sem.Release(1)
		w.onProgress(pct)
	}

	if err := w.api.End(handle); err != nil {
		return ErrEndFailed
	}
	if err := w.api.SetBootPartition(target); err != nil {
		return ErrEndFailed
	}

	w.logger.Info("device:ota-complete", slog.String("target", target.String()))
	return nil
}

// RunAndReboot runs the full lifecycle and always reboots the device
// after rebootDelay, on both success and failure (§4.6, §7): the running
// partition was marked VALID (or already was) before any write began, so
// the device comes back up bootable regardless of how this session ended.
func (w *FlashWriter) RunAndReboot(ctx context.Context) error {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("device:flashwriter-panic-recovered")
		}
		w.api.Reboot(rebootDelay)
	}()

	err := w.Run(ctx)
	if err != nil {
		w.logger.Error("device:flashwriter-failed", slog.String("err", err.Error()))
	}
	return err
}
