package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"blegw/ble"
	"blegw/gateway"
	"blegw/relay"
	"blegw/utils"
)

func main() {
  zerolog.DurationFieldUnit = time.Second
  zerolog.TimeFieldFormat = time.RFC3339Nano

  log.Logger = log.Output(zerolog.ConsoleWriter{
    Out: os.Stderr,
    TimeFormat: "15:04:05.000",
  })

  cfg := ParseArgs()

  if cfg.Trace || os.Getenv("TRACE") != "" {
      zerolog.SetGlobalLevel(zerolog.TraceLevel)
  } else if cfg.Debug || os.Getenv("DEBUG") != "" {
      zerolog.SetGlobalLevel(zerolog.DebugLevel)
  } else {
      zerolog.SetGlobalLevel(zerolog.InfoLevel)
  }

  if cfg.DiscoverDevices {
    doDeviceDiscovery(cfg)
    return
  }

  log.Info().
    Str("Endpoint", cfg.Endpoint).
    Str("BindAddr", cfg.BindAddress).
    Int("BluetoothDeviceID", cfg.BluetoothDeviceId).
    Array("Manufacturers", manufacturersToZeroLogArray(cfg.AllowList)).
    Msg("Starting with the specified configuration")

  bleHandle, err := ble.Init(cfg.BluetoothDeviceId, 0)

  if err != nil {
    log.Fatal().Err(err).Msg("Failed to initialize Bluetooth device")
  }

  gw := gateway.New(gateway.Config{
    AllowList: cfg.AllowList,
    RateLimit: cfg.RateLimit,
    MaxTrackedDevices: cfg.MaxTrackedDevices,
    CleanupInterval: cfg.CleanupInterval,
    SendTimeout: cfg.SendTimeout,
  }, relay.NewClient(cfg.Endpoint))

  // resolve the gateway identity without holding up the pipeline; telemetry
  // sent before this lands carries the all-zero sentinel.
  go resolveGatewayAddress(bleHandle, gw)

  ctx, cancel := context.WithCancel(context.Background())
  ctx = ble.WrapContextWithSigHandler(ctx, cancel)

  registry := prometheus.NewRegistry()
  gateway.RegisterMetrics(registry)

  mux := http.NewServeMux()
  mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
  srv := &http.Server{Addr: cfg.BindAddress, Handler: mux}

  var eg errgroup.Group

  eg.Go(func() error {
    return gw.Run(ctx)
  })

  eg.Go(func() error {
    return bleHandle.ScanAll(ctx, func(a ble.Advertisement) {
      gw.HandleAdvertisement(gateway.Advertisement{
        Addr: a.Addr().String(),
        RSSI: a.RSSI(),
        Payload: ble.RawPayload(a),
      })
    })
  })

  eg.Go(func() error {
    log.Info().Str("ListenAddress", cfg.BindAddress).Msg("Starting metrics server")

    if err := srv.ListenAndServe(); err != http.ErrServerClosed {
      return err
    }

    return nil
  })

  eg.Go(func() error {
    <-ctx.Done()
    return srv.Close()
  })

  err = eg.Wait()

  if err != nil && !utils.ErrorIsAnyOf(err, context.Canceled, context.DeadlineExceeded) {
    log.Fatal().Err(err).Msg("Gateway terminated with an error")
  }
}

func resolveGatewayAddress(h *ble.Handle, gw *gateway.Gateway) {
  addr, err := h.Address()

  if err != nil {
    log.Error().
      Err(err).
      Msg("Failed to resolve the gateway address - telemetry will carry the zero identity")
    return
  }

  gw.SetGatewayAddress(addr.String())
}

func manufacturersToZeroLogArray(ids []uint16) *zerolog.Array {
  arr := zerolog.Arr()

  for _, id := range ids {
    arr = arr.Str(fmt.Sprintf("0x%04X", id))
  }

  return arr
}
