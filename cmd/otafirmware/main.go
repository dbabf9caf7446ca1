//go:build tinygo

package main

// WARNING: default -scheduler=cores unsupported, compile with -scheduler=tasks set!

import (
	"context"
	"log/slog"
	"machine"
	"time"

	"openenterprise/bleota/config"
	"openenterprise/bleota/device"
	"openenterprise/bleota/device/peripheral"
	"openenterprise/bleota/partition"
	"openenterprise/bleota/telemetry"
	"openenterprise/bleota/version"

	"github.com/soypat/cyw43439"
)

func main() {
	api := partition.NewRP2350()

	// Cancel a pending-verify rollback before anything else can fail and
	// force a revert of a good image (§4.7, mirrors the donor's
	// confirm-before-delay ordering).
	logger := slog.New(telemetry.NewSlogHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	if err := device.BootCommit(api, logger); err != nil {
		logger.Error("boot:commit-failed", slog.String("err", err.Error()))
	}

	time.Sleep(2 * time.Second) // let USB serial enumerate before the banner.
	println("========================================")
	println("  BLE OTA firmware engine")
	println("  Version:", version.Version)
	println("  Git SHA:", version.GitSHA)
	println("  Built:  ", version.BuildDate)
	println("========================================")

	running, err := api.Current()
	if err != nil {
		logger.Error("boot:partition-lookup-failed", slog.String("err", err.Error()))
	} else {
		logger.Info("boot:running", slog.String("partition", running.String()))
	}

	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 8000})
	machine.Watchdog.Start()
	logger.Info("init:watchdog-started")

	devcfg := cyw43439.DefaultWifiConfig()
	devcfg.Logger = logger
	dev := cyw43439.NewPicoWDevice()
	if err := dev.Init(devcfg); err != nil {
		logger.Error("radio:init-failed", slog.String("err", err.Error()))
		api.Reboot(2 * time.Second)
		return
	}

	radio, err := peripheral.NewRadio(dev, logger)
	if err != nil {
		logger.Error("radio:hci-failed", slog.String("err", err.Error()))
		api.Reboot(2 * time.Second)
		return
	}
	defer radio.Close()

	ring := device.NewRing(config.RingCapacity())
	lengths := &device.FirmwareLengthStash{}

	radio.OnWrite(peripheral.CharCommand, func(_ peripheral.Characteristic, payload []byte) {
		length, ok := device.DecodeStartCommand(payload)
		if !ok {
			logger.Warn("command:decode-failed", slog.Int("bytes", len(payload)))
			return
		}
		lengths.Set(length)
		logger.Info("command:start-received", slog.Uint64("length", uint64(length)))
	})

	onProgress := func(pct int) {
		buf := []byte{byte(pct)}
		if err := radio.Notify(peripheral.CharProgress, buf); err != nil {
			logger.Warn("progress:notify-failed", slog.String("err", err.Error()))
		}
	}

	pump := device.NewIngressPump(ring, func() {
		writer := device.NewFlashWriter(api, ring, lengths, onProgress, logger)
		go writer.RunAndReboot(context.Background())
	}, logger)

	radio.OnWrite(peripheral.CharRecvFW, func(_ peripheral.Characteristic, payload []byte) {
		pump.OnWrite(payload)
	})

	logger.Info("init:complete")

	for {
		machine.Watchdog.Update()
		time.Sleep(2 * time.Second)
	}
}
