// Package device implements the device-side half of the OTA protocol
// engine: the GATT write ingress, the flash-writing consumer, and the
// rollback-aware boot commit (§4.5-§4.7).
package device

import (
	"context"
	"sync/atomic"
)

// Ring is a fixed-capacity, single-producer single-consumer byte ring
// (§3, §5). Items are variable-length GATT write payloads, delivered to
// Recv in submission order — the channel discipline already gives
// single-producer/single-consumer safety without extra locking, which is
// the idiomatic Go rendering of the spec's lock-free byte ring.
type Ring struct {
	items    chan []byte
	capacity int64
	used     atomic.Int64
}

// NewRing returns a ring bounded to capacityBytes total in-flight payload
// bytes (§3: reference value 8192).
func NewRing(capacityBytes int) *Ring {
	return &Ring{
		items:    make(chan []byte, 1024),
		capacity: int64(capacityBytes),
	}
}

// Push enqueues payload without blocking. If doing so would exceed the
// ring's byte budget, payload is dropped and Push returns false — the
// pump logs and moves on; there is no inline overflow signal (§4.5 step
// 2, §9 open question).
func (r *Ring) Push(payload []byte) bool {
	n := int64(len(payload))
	for {
		used := r.used.Load()
		if used+n > r.capacity {
			return false
		}
		if r.used.CompareAndSwap(used, used+n) {
			break
		}
	}
	select {
	case r.items <- payload:
		return true
	default:
		r.used.Add(-n)
		return false
	}
}

// Recv returns the next item, blocking until one arrives or ctx is done.
func (r *Ring) Recv(ctx context.Context) ([]byte, error) {
	select {
	case item := <-r.items:
		r.used.Add(-int64(len(item)))
		return item, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
