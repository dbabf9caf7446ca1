// Package client implements the client-side half of the OTA protocol
// engine: framing the image, streaming it over a Transport, and tracking
// device-reported progress (§4.2-§4.4).
package client

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"openenterprise/bleota/config"
	"openenterprise/bleota/wire"
)

var allCharacteristics = [...]Characteristic{CharRecvFW, CharProgress, CharCommand, CharCustomer}

// SessionController owns the end-to-end OTA session lifecycle (§4.2). Only
// one session may run at a time per controller; a concurrent call to
// RunOTA fails immediately with ErrBusy.
type SessionController struct {
	transport Transport
	logger    *slog.Logger
	chunkSize int

	mu     sync.Mutex
	active bool
}

// NewSessionController builds a controller over transport. A nil logger
// falls back to slog.Default().
func NewSessionController(transport Transport, logger *slog.Logger) *SessionController {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionController{
		transport: transport,
		logger:    logger,
		chunkSize: config.ChunkSize(),
	}
}

// RunOTA drives one complete OTA session for image: subscribe, send the
// start command, stream every sector gated on device-reported progress,
// wait for completion, and always tear down (§4.2).
func (c *SessionController) RunOTA(ctx context.Context, image []byte) error {
	if !c.acquire() {
		return &OtaError{Reason: ErrBusy}
	}
	defer c.release()

	sessionID := uuid.NewString()
	log := c.logger.With(slog.String("session", sessionID), slog.Int("length", len(image)))

	for _, ch := range allCharacteristics {
		if !c.transport.Resolved(ch) {
			log.Error("ota:profile-incomplete", slog.String("characteristic", ch.String()))
			return &OtaError{Reason: ErrProfileIncomplete, Detail: ch.String()}
		}
	}

	mux := NewNotificationMux(c.transport)
	tracker := NewProgressTracker()
	ack := newAckSignal()

	subCtx, cancelSub := context.WithCancel(ctx)

	var torndown atomic.Bool
	teardown := func() {
		if !torndown.CompareAndSwap(false, true) {
			return
		}
		cancelSub()
		mux.Stop()
		tracker.RejectAll(&OtaError{Reason: ErrDisconnected})
		ack.reject(&OtaError{Reason: ErrDisconnected})
		log.Info("ota:teardown")
	}
	defer teardown()

	if err := mux.Start(subCtx); err != nil {
		log.Error("ota:subscribe-failed", slog.String("err", err.Error()))
		return &OtaError{Reason: ErrSubscriptionError, Detail: err.Error()}
	}

	go func() {
		for ev := range mux.Events() {
			switch ev.Kind {
			case EventStartAck:
				ack.resolve()
			case EventProgress:
				tracker.Update(int(ev.Progress))
			case EventSubscriptionError:
				subErr := &OtaError{Reason: ErrSubscriptionError, Detail: ev.Err.Error()}
				ack.reject(subErr)
				tracker.RejectAll(subErr)
			}
		}
	}()

	log.Info("ota:start")
	if err := c.transport.Write(ctx, CharCommand, wire.MakeStartCommand(uint32(len(image)))); err != nil {
		return &OtaError{Reason: ErrDisconnected, Detail: err.Error()}
	}

	ackCtx, cancelAck := context.WithTimeout(ctx, config.StartAckTimeout())
	err := ack.wait(ackCtx)
	cancelAck()
	if err != nil {
		if oe, ok := err.(*OtaError); ok {
			return oe
		}
		log.Warn("ota:start-timeout")
		return &OtaError{Reason: ErrStartTimeout}
	}
	log.Info("ota:start-acked")

	if streamErr := c.stream(ctx, image, tracker); streamErr != nil {
		log.Warn("ota:stream-failed", slog.String("err", streamErr.Error()))
		return streamErr
	}

	log.Info("ota:complete")
	return nil
}

// stream emits every sector in order, waiting after each one for the
// device to report progress at least at that sector's expected
// percentage, then waits for the final 100% (§4.2 steps 4-5).
func (c *SessionController) stream(ctx context.Context, image []byte, tracker *ProgressTracker) error {
	length := uint32(len(image))
	numSectors := wire.NumSectors(length)

	if numSectors == 0 {
		// No sector is ever streamed, so there is no per-sector expected
		// percentage to gate on; the only remaining signal is the
		// device's own 100% report (§8 "empty-image guard" — a
		// zero-length transfer still fails with ProgressStall, since the
		// device never sends any progress for a zero-length image).
		waitCtx, cancel := context.WithTimeout(ctx, config.SectorTimeout())
		defer cancel()
		if err := tracker.WaitFor(waitCtx, 100); err != nil {
			return c.progressWaitError(err, ErrProgressStall)
		}
		return nil
	}

	var emitted uint32
	for s := 0; s < numSectors; s++ {
		start, end := wire.SectorBounds(length, s)
		for _, p := range wire.SectorPackets(s, image[start:end], c.chunkSize) {
			if err := c.transport.Write(ctx, CharRecvFW, p.Encode()); err != nil {
				return &OtaError{Reason: ErrDisconnected, Detail: err.Error()}
			}
		}
		emitted += end - start
		expectedPct := int(uint64(emitted) * 100 / uint64(length))

		waitCtx, cancel := context.WithTimeout(ctx, config.SectorTimeout())
		err := tracker.WaitFor(waitCtx, expectedPct)
		cancel()
		if err != nil {
			return c.progressWaitError(err, ErrProgressStall)
		}
	}

	finalCtx, cancel := context.WithTimeout(ctx, config.FinalTimeout())
	defer cancel()
	if err := tracker.WaitFor(finalCtx, 100); err != nil {
		return c.progressWaitError(err, ErrFinalProgressTimeout)
	}
	return nil
}

// progressWaitError maps a ProgressTracker.WaitFor error to an OtaError:
// a rejection carries its own OtaError through unchanged, while a context
// deadline becomes the supplied reason.
func (c *SessionController) progressWaitError(err error, timeoutReason error) *OtaError {
	if oe, ok := err.(*OtaError); ok {
		return oe
	}
	return &OtaError{Reason: timeoutReason}
}

func (c *SessionController) acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return false
	}
	c.active = true
	return true
}

func (c *SessionController) release() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}
