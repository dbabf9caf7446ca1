// Package config holds the session tunables for the OTA engine: the
// client's three timeouts, the device's two timeouts, the reference chunk
// size, and the ring buffer capacity. Defaults match §4-§5 of the
// specification; each can be overridden by placing a non-empty value in
// the corresponding .text file, the same shape as the teacher's
// wake/schedule-interval overrides.
package config

import (
	_ "embed"
	"strconv"
	"strings"
	"time"

	"openenterprise/bleota/wire"
)

// Defaults for session parameters (§4.2, §4.5, §4.6, §3).
const (
	DefaultChunkSize       = 492
	DefaultRingCapacity    = 8192
	DefaultStartAckTimeout = 3 * time.Second
	DefaultSectorTimeout   = 5 * time.Second
	DefaultFinalTimeout    = 5 * time.Second
	DefaultRingRecvTimeout = 10 * time.Second
	DefaultSemaphoreWait   = 10 * time.Second
)

// Optional overrides (empty file = use default).
var (
	//go:embed chunk_size.text
	chunkSizeOverride string

	//go:embed ring_capacity.text
	ringCapacityOverride string

	//go:embed start_ack_timeout.text
	startAckTimeoutOverride string

	//go:embed sector_timeout.text
	sectorTimeoutOverride string

	//go:embed final_timeout.text
	finalTimeoutOverride string

	//go:embed ring_recv_timeout.text
	ringRecvTimeoutOverride string

	//go:embed semaphore_wait.text
	semaphoreWaitOverride string
)

// ChunkSize returns the reference payload size in bytes per data packet
// (§4.1). Returns DefaultChunkSize unless overridden via chunk_size.text;
// an override below wire.MinChunkSize is rejected in favor of the default
// rather than silently colliding sector sequence numbers (wire.SectorPackets
// would otherwise have to clamp it for us).
func ChunkSize() int {
	if n, ok := overrideInt(chunkSizeOverride); ok && n >= wire.MinChunkSize {
		return n
	}
	return DefaultChunkSize
}

// RingCapacity returns the device-side ring buffer capacity in bytes (§3).
func RingCapacity() int {
	if n, ok := overrideInt(ringCapacityOverride); ok {
		return n
	}
	return DefaultRingCapacity
}

// StartAckTimeout returns how long the client waits for the start
// acknowledgement on the command characteristic (§4.2 step 3).
func StartAckTimeout() time.Duration {
	if d, ok := overrideDuration(startAckTimeoutOverride); ok {
		return d
	}
	return DefaultStartAckTimeout
}

// SectorTimeout returns how long the client waits, per sector, for the
// device-reported progress to reach the sector's expected percentage
// (§4.2 step 4).
func SectorTimeout() time.Duration {
	if d, ok := overrideDuration(sectorTimeoutOverride); ok {
		return d
	}
	return DefaultSectorTimeout
}

// FinalTimeout returns how long the client waits for progress to reach
// 100 after the last sector is streamed (§4.2 step 5).
func FinalTimeout() time.Duration {
	if d, ok := overrideDuration(finalTimeoutOverride); ok {
		return d
	}
	return DefaultFinalTimeout
}

// RingRecvTimeout returns how long the device's flash writer waits for the
// next ring-buffer item before aborting (§4.6 step 5, §5).
func RingRecvTimeout() time.Duration {
	if d, ok := overrideDuration(ringRecvTimeoutOverride); ok {
		return d
	}
	return DefaultRingRecvTimeout
}

// SemaphoreWait returns how long the device's flash writer waits to
// acquire the flash semaphore before aborting (§4.6 step 5, §5).
func SemaphoreWait() time.Duration {
	if d, ok := overrideDuration(semaphoreWaitOverride); ok {
		return d
	}
	return DefaultSemaphoreWait
}

func overrideInt(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func overrideDuration(raw string) (time.Duration, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, true
}
