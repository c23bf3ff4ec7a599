package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"blegw/relay"
)

const (
  DefaultRateLimit = 10 * time.Second
  DefaultMaxTrackedDevices = 100
  DefaultCleanupInterval = 60 * time.Second
)

// ZeroGatewayMac is the identity sentinel used in telemetry sent before the
// adapter address has been resolved.
const ZeroGatewayMac = "00:00:00:00:00:00"

const eventQueueSize = 64

type Config struct {
  // Manufacturer-id allow-list; empty accepts every device.
  AllowList []uint16
  RateLimit time.Duration
  MaxTrackedDevices int
  CleanupInterval time.Duration
  SendTimeout time.Duration
}

type advEvent struct {
  adv Advertisement
}

type completionEvent struct {
  seq uint64
  res relay.Result
}

type watchdogEvent struct {
  seq uint64
}

type identityEvent struct {
  mac string
}

// Gateway wires the pipeline together: Filter -> DedupStore -> Backoff ->
// DeliverySlot. All state is owned by the goroutine running Run(); every
// other goroutine (scan callback, transport completion, watchdog timer,
// identity resolver) only enqueues events, so handlers run to completion one
// at a time and the components need no locking.
type Gateway struct {
  cfg Config

  store *DedupStore
  backoff *Backoff
  slot *DeliverySlot

  gwMac string
  events chan any
}

func New(cfg Config, sender Sender) *Gateway {
  if cfg.RateLimit <= 0 {
    cfg.RateLimit = DefaultRateLimit
  }

  if cfg.MaxTrackedDevices <= 0 {
    cfg.MaxTrackedDevices = DefaultMaxTrackedDevices
  }

  if cfg.CleanupInterval <= 0 {
    cfg.CleanupInterval = DefaultCleanupInterval
  }

  g := &Gateway{
    cfg: cfg,
    store: NewDedupStore(cfg.RateLimit, cfg.MaxTrackedDevices),
    backoff: &Backoff{},
    gwMac: ZeroGatewayMac,
    events: make(chan any, eventQueueSize),
  }

  // completions and expiries block rather than drop: the loop always drains,
  // and losing one of these could wedge the slot for a full timeout or more.
  g.slot = NewDeliverySlot(
    sender,
    g.backoff,
    func(seq uint64, res relay.Result) {
      g.events <- completionEvent{seq: seq, res: res}
    },
    func(seq uint64) {
      g.events <- watchdogEvent{seq: seq}
    },
  )

  if cfg.SendTimeout > 0 {
    g.slot.Timeout = cfg.SendTimeout
  }

  return g
}

// HandleAdvertisement enqueues a scanned advertisement for processing. It
// never blocks: the scanner offers no backpressure, so when the pipeline is
// saturated the packet is simply dropped.
func (g *Gateway) HandleAdvertisement(adv Advertisement) {
  select {
  case g.events <- advEvent{adv: adv}:
  default:
    droppedCounter.WithLabelValues(dropQueueFull).Inc()
  }
}

// SetGatewayAddress installs the resolved adapter address. Safe to call from
// any goroutine; the update is applied by the event loop.
func (g *Gateway) SetGatewayAddress(mac string) {
  g.events <- identityEvent{mac: NormalizeAddr(mac)}
}

// Run processes events until the context is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
  log.Info().
    Dur("RateLimitSec", g.cfg.RateLimit).
    Int("MaxTrackedDevices", g.cfg.MaxTrackedDevices).
    Dur("CleanupIntervalSec", g.cfg.CleanupInterval).
    Dur("SendTimeoutSec", g.slot.Timeout).
    Int("AllowListedManufacturers", len(g.cfg.AllowList)).
    Msg("Starting gateway pipeline")

  cleanup := time.NewTicker(g.cfg.CleanupInterval)
  defer cleanup.Stop()

  for {
    select {
    case <-ctx.Done():
      log.Info().Msg("Gateway pipeline is shutting down")
      return ctx.Err()
    case now := <-cleanup.C:
      g.runCleanup(now)
    case ev := <-g.events:
      g.dispatch(ev)
    }
  }
}

func (g *Gateway) dispatch(ev any) {
  switch ev := ev.(type) {
  case advEvent:
    g.handleAdvertisement(ev.adv, time.Now())
  case completionEvent:
    g.slot.OnComplete(ev.seq, ev.res, time.Now())
  case watchdogEvent:
    g.slot.OnWatchdog(ev.seq, time.Now())
  case identityEvent:
    g.gwMac = ev.mac
    log.Info().Str("GatewayMac", ev.mac).Msg("Gateway identity resolved")
  default:
    panic(fmt.Sprintf("unknown gateway event type %T", ev))
  }
}

func (g *Gateway) runCleanup(now time.Time) {
  evicted := g.store.Cleanup(now)
  trackedDevicesGauge.Set(float64(g.store.Len()))

  if evicted > 0 {
    evictionsCounter.Add(float64(evicted))

    log.Debug().
      Int("Evicted", evicted).
      Int("Tracked", g.store.Len()).
      Msg("Dedup store cleanup evicted the oldest devices")
  }
}

func (g *Gateway) handleAdvertisement(adv Advertisement, now time.Time) {
  advertisementsCounter.Inc()

  if len(adv.Payload) == 0 {
    droppedCounter.WithLabelValues(dropMalformed).Inc()
    return
  }

  if !Qualifies(adv.Payload, g.cfg.AllowList) {
    droppedCounter.WithLabelValues(dropFiltered).Inc()
    return
  }

  addr := NormalizeAddr(adv.Addr)

  if !g.store.ShouldSend(addr, now) {
    droppedCounter.WithLabelValues(dropRateLimited).Inc()
    log.Trace().Str("Device", addr).Msg("Rate limit active, dropping packet")
    return
  }

  // mark the device as sent before the post settles, so a burst from the
  // same device can't re-trigger while its send is still in flight. A failed
  // send intentionally does not roll this back: the rate limit counts
  // attempts, not confirmed deliveries.
  g.store.Record(addr, now)
  trackedDevicesGauge.Set(float64(g.store.Len()))

  envelope := relay.NewEnvelope(g.gwMac, addr, adv.RSSI, adv.Payload, now)

  if !g.slot.TrySend(envelope, addr, now) {
    reason := dropSlotBusy

    if !g.slot.InFlight() {
      reason = dropCooldown
    }

    droppedCounter.WithLabelValues(reason).Inc()
  }
}
