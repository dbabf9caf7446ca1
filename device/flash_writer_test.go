//go:build !tinygo

package device

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"openenterprise/bleota/partition"
)

func TestFlashWriterHappyPath(t *testing.T) {
	api := partition.NewMemory(partition.SlotA, partition.StateValid)
	ring := NewRing(8192)
	lengths := &FirmwareLengthStash{}

	image := bytes.Repeat([]byte{0xAB}, 10)
	lengths.Set(uint32(len(image)))

	var progress []int
	w := NewFlashWriter(api, ring, lengths, func(pct int) { progress = append(progress, pct) }, nil)

	chunks := [][]byte{image[0:4], image[4:7], image[7:10]}
	for _, c := range chunks {
		if !ring.Push(c) {
			t.Fatalf("ring push rejected chunk of %d bytes", len(c))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	standby, _ := api.Standby()
	if !bytes.Equal(api.Written(standby), image) {
		t.Fatalf("Written = %v, want %v", api.Written(standby), image)
	}
	if len(progress) == 0 || progress[len(progress)-1] != 100 {
		t.Fatalf("final progress = %v, want last=100", progress)
	}
}

func TestFlashWriterCancelsPendingRollback(t *testing.T) {
	api := partition.NewMemory(partition.SlotA, partition.StatePendingVerify)
	ring := NewRing(8192)
	lengths := &FirmwareLengthStash{}
	lengths.Set(3)
	ring.Push([]byte{1, 2, 3})

	w := NewFlashWriter(api, ring, lengths, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	state, _ := api.State(partition.SlotA)
	if state != partition.StateValid {
		t.Fatalf("running state = %v, want VALID", state)
	}
}

func TestFlashWriterZeroFirmwareLength(t *testing.T) {
	api := partition.NewMemory(partition.SlotA, partition.StateValid)
	ring := NewRing(8192)
	lengths := &FirmwareLengthStash{}

	w := NewFlashWriter(api, ring, lengths, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := w.Run(ctx)
	if !errors.Is(err, ErrZeroFirmwareLength) {
		t.Fatalf("err = %v, want ErrZeroFirmwareLength", err)
	}
}

func TestFlashWriterFirmwareTooLarge(t *testing.T) {
	api := partition.NewMemory(partition.SlotA, partition.StateValid)
	ring := NewRing(8192)
	lengths := &FirmwareLengthStash{}
	lengths.Set(partition.MaxImageSize + 1)

	w := NewFlashWriter(api, ring, lengths, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := w.Run(ctx)
	if !errors.Is(err, ErrFirmwareTooLarge) {
		t.Fatalf("err = %v, want ErrFirmwareTooLarge", err)
	}
}

func TestFlashWriterRingTimeout(t *testing.T) {
	api := partition.NewMemory(partition.SlotA, partition.StateValid)
	ring := NewRing(8192)
	lengths := &FirmwareLengthStash{}
	lengths.Set(10)

	w := NewFlashWriter(api, ring, lengths, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := w.Run(ctx)
	if !errors.Is(err, ErrRingTimeout) {
		t.Fatalf("err = %v, want ErrRingTimeout", err)
	}
}

func TestFlashWriterBootsStandbyAfterSuccessfulRun(t *testing.T) {
	api := partition.NewMemory(partition.SlotA, partition.StateValid)
	ring := NewRing(8192)
	lengths := &FirmwareLengthStash{}
	lengths.Set(3)
	ring.Push([]byte{1, 2, 3})

	w := NewFlashWriter(api, ring, lengths, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rebootedTo := make(chan partition.Slot, 1)
	api.OnReboot = func(target partition.Slot) { rebootedTo <- target }
	api.Reboot(0)

	select {
	case target := <-rebootedTo:
		if target != partition.SlotB {
			t.Fatalf("reboot target = %v, want B", target)
		}
	case <-time.After(time.Second):
		t.Fatal("reboot never observed")
	}
}

func TestFlashWriterRunAndRebootAlwaysReboots(t *testing.T) {
	api := partition.NewMemory(partition.SlotA, partition.StateValid)
	ring := NewRing(8192)
	lengths := &FirmwareLengthStash{}

	w := NewFlashWriter(api, ring, lengths, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = w.RunAndReboot(ctx)
	if !api.Rebooted() {
		t.Fatal("RunAndReboot should reboot even on failure")
	}
}
