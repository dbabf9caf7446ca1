// Package goble implements client.Transport over a real BLE GATT central,
// github.com/go-ble/ble. It resolves the service 0x8018's four
// characteristics (§6) during Dial and drives write-with-response and
// subscribe-for-notifications through the library's ble.Client.
package goble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"

	"openenterprise/bleota/client"
)

// ServiceUUID is the OTA service's 16-bit UUID, expanded to the Bluetooth
// base UUID (§6).
var ServiceUUID = ble.UUID16(0x8018)

var characteristicUUIDs = map[client.Characteristic]ble.UUID{
	client.CharRecvFW:   ble.UUID16(0x8020),
	client.CharProgress: ble.UUID16(0x8021),
	client.CharCommand:  ble.UUID16(0x8022),
	client.CharCustomer: ble.UUID16(0x8023),
}

// Transport wraps a connected ble.Client, resolving the OTA service's four
// characteristics once at Dial time.
type Transport struct {
	client ble.Client

	mu    sync.Mutex
	chars map[client.Characteristic]*ble.Characteristic
}

// Dial connects to addr, discovers its GATT profile, and resolves the OTA
// service's characteristics. Any characteristic not found is simply absent
// from the resolved set — client.Transport.Resolved reports it as such and
// SessionController fails fast with ProfileIncomplete rather than this
// package inventing a synthetic handle.
func Dial(ctx context.Context, addr string, connectTimeout time.Duration) (*Transport, error) {
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	cln, err := ble.Dial(dialCtx, ble.NewAddr(addr))
	if err != nil {
		return nil, fmt.Errorf("goble: dial %s: %w", addr, err)
	}

	profile, err := cln.DiscoverProfile(true)
	if err != nil {
		cln.CancelConnection()
		return nil, fmt.Errorf("goble: discover profile: %w", err)
	}

	t := &Transport{
		client: cln,
		chars:  make(map[client.Characteristic]*ble.Characteristic),
	}

	for _, svc := range profile.Services {
		if !svc.UUID.Equal(ServiceUUID) {
			continue
		}
		for _, c := range svc.Characteristics {
			for which, uuid := range characteristicUUIDs {
				if c.UUID.Equal(uuid) {
					t.chars[which] = c
				}
			}
		}
	}

	return t, nil
}

// Close cancels the underlying connection.
func (t *Transport) Close() error {
	return t.client.CancelConnection()
}

// Resolved implements client.Transport.
func (t *Transport) Resolved(ch client.Characteristic) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.chars[ch]
	return ok
}

// Write implements client.Transport via a write-with-response.
// go-ble has no per-call context support; ctx cancellation is honored only
// before the call begins (§6 assumes write-with-response already exists).
func (t *Transport) Write(ctx context.Context, ch client.Characteristic, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, ok := t.resolve(ch)
	if !ok {
		return fmt.Errorf("goble: characteristic %s not resolved", ch)
	}
	return t.client.WriteCharacteristic(c, payload, false)
}

// Subscribe implements client.Transport. The returned notification channel
// is closed and the subscription torn down when ctx is cancelled; a
// go-ble Subscribe error is delivered once on the error channel.
func (t *Transport) Subscribe(ctx context.Context, ch client.Characteristic) (<-chan []byte, <-chan error, error) {
	c, ok := t.resolve(ch)
	if !ok {
		return nil, nil, fmt.Errorf("goble: characteristic %s not resolved", ch)
	}

	notifyCh := make(chan []byte, 32)
	errCh := make(chan error, 1)

	err := t.client.Subscribe(c, false, func(data []byte) {
		select {
		case notifyCh <- append([]byte{}, data...):
		default:
		}
	})
	if err != nil {
		close(notifyCh)
		errCh <- fmt.Errorf("goble: subscribe %s: %w", ch, err)
		close(errCh)
		return notifyCh, errCh, nil
	}

	go func() {
		<-ctx.Done()
		if unsubErr := t.client.Unsubscribe(c, false); unsubErr != nil {
			select {
			case errCh <- fmt.Errorf("goble: unsubscribe %s: %w", ch, unsubErr):
			default:
			}
		}
		close(notifyCh)
		close(errCh)
	}()

	return notifyCh, errCh, nil
}

func (t *Transport) resolve(ch client.Characteristic) (*ble.Characteristic, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.chars[ch]
	return c, ok
}
