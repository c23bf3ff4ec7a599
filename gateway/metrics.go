package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
  dropMalformed = "malformed"
  dropFiltered = "filtered"
  dropRateLimited = "rate_limited"
  dropSlotBusy = "slot_busy"
  dropCooldown = "cooldown"
  dropQueueFull = "queue_full"

  resultSuccess = "success"
  resultTransportError = "transport_error"
  resultHTTPError = "http_error"
  resultWatchdogTimeout = "watchdog_timeout"
)

var (
	advertisementsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ble_gateway_advertisements_total",
	})
	droppedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ble_gateway_dropped_packets_total",
	}, []string{"reason"})
	deliveriesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ble_gateway_deliveries_total",
	}, []string{"result"})
	evictionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ble_gateway_evicted_devices_total",
	})
	trackedDevicesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ble_gateway_tracked_devices",
	})
)

func RegisterMetrics(reg prometheus.Registerer) {
  reg.MustRegister(
    advertisementsCounter,
    droppedCounter,
    deliveriesCounter,
    evictionsCounter,
    trackedDevicesGauge,
  )
}
