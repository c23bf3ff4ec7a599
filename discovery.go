package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"

	"blegw/ble"
)

func doDeviceDiscovery(cfg config) {
  log.Info().Msg("Starting in device discovery mode - collecting devices for 5 seconds...")

  handle, err := ble.Init(cfg.BluetoothDeviceId, ble.FlagScanTypeActive)

  if err != nil {
    log.Fatal().Err(err).Msg("Failed to initialize Bluetooth device")
  }

  ctx := ble.WrapContextWithSigHandler(
    context.WithTimeout(
      context.Background(),
      5 * time.Second,
    ),
  )

  type deviceInfo struct {
    name string
    rssi int
    manufacturers map[string]bool
  }

  devices := make(map[string]*deviceInfo)

  err = handle.ScanAll(ctx, func(a ble.Advertisement) {
    addr := a.Addr().String()
    info := devices[addr]

    if info == nil {
      info = &deviceInfo{manufacturers: make(map[string]bool)}
      devices[addr] = info
    }

    if info.name == "" {
      info.name = a.LocalName()
    }

    info.rssi = a.RSSI()

    // the first two bytes of a manufacturer-data field are the little-endian
    // company id; that's what -manufacturer expects.
    if md := a.ManufacturerData(); len(md) >= 2 {
      info.manufacturers[fmt.Sprintf("0x%04X", binary.LittleEndian.Uint16(md))] = true
    }
  })

  if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
    log.Fatal().Err(err).Msg("Failed to initiate scan")
  }

  log.Info().Int("Found", len(devices)).Msg("Finished device discovery")

  for addr, info := range devices {
    log.Info().
      Str("Addr", addr).
      Str("Name", info.name).
      Int("RSSI", info.rssi).
      Strs("Manufacturers", maps.Keys(info.manufacturers)).
      Msg("Found device")
  }
}
