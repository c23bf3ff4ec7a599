package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"blegw/gateway"
)

type config struct {
  Debug, Trace bool
  BindAddress string
  DiscoverDevices bool
  BluetoothDeviceId int
  Endpoint string
  AllowList []uint16
  RateLimit time.Duration
  MaxTrackedDevices int
  CleanupInterval time.Duration
  SendTimeout time.Duration
}

// Repeatable flag collecting manufacturer ids given as hex ("0499" or "0x0499").
type manufacturerList struct {
  list *[]uint16
}

func (m *manufacturerList) String() string {
  return ""
}

func (m *manufacturerList) Set(v string) error {
  v = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(v)), "0x")

  id, err := strconv.ParseUint(v, 16, 16)

  if err != nil {
    return fmt.Errorf("invalid manufacturer id %q: %w", v, err)
  }

  *m.list = append(*m.list, uint16(id))

  return nil
}

func ParseArgs() config {
  var cfg config

  flag.StringVar(&cfg.Endpoint, "endpoint", "", "Collector URL where telemetry is POSTed")
  flag.StringVar(&cfg.BindAddress, "bind", "localhost:9102", "Where the metrics endpoint will bind to")
  flag.IntVar(&cfg.BluetoothDeviceId, "bluetooth-device", 0, "Bluetooth (HCI) device ID")
  flag.BoolVar(&cfg.DiscoverDevices, "discover", false, "Discover nearby BLE devices and quit")
  flag.Var(&manufacturerList{list: &cfg.AllowList}, "manufacturer",
    "Manufacturer id (hex, e.g. `0499`) whose devices are forwarded. Repeatable; when omitted, "+
    "every device is forwarded")
  flag.DurationVar(&cfg.RateLimit, "rate-limit", gateway.DefaultRateLimit,
    "Minimum time between forwarded packets per device")
  flag.IntVar(&cfg.MaxTrackedDevices, "max-devices", gateway.DefaultMaxTrackedDevices,
    "How many devices the rate limiter tracks before evicting the oldest")
  flag.DurationVar(&cfg.CleanupInterval, "cleanup-interval", gateway.DefaultCleanupInterval,
    "Period of the device-tracker eviction pass")
  flag.DurationVar(&cfg.SendTimeout, "send-timeout", gateway.DefaultSendTimeout,
    "How long to wait for a telemetry POST before abandoning it")
  flag.BoolVar(&cfg.Debug, "debug", false, "Enable debug logs")
  flag.BoolVar(&cfg.Trace, "trace", false, "Enable trace logs")

  flag.Parse()

  if !cfg.DiscoverDevices && cfg.Endpoint == "" {
    fmt.Fprintln(os.Stderr, "Error: a collector endpoint is required!")
    flag.Usage()
    os.Exit(1)
  }

  return cfg
}
