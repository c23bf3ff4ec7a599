package gateway

import (
	"time"

	"github.com/rs/zerolog/log"

	"blegw/relay"
)

const DefaultSendTimeout = 10 * time.Second

// Sender dispatches a telemetry envelope and reports the outcome exactly
// once through the callback, from a separate goroutine.
type Sender interface {
  Send(e relay.Envelope, done func(relay.Result))
}

// DeliverySlot admits at most one outbound delivery at a time. Every
// accepted send arms a watchdog; whichever of the transport completion and
// the watchdog expiry reaches the slot first releases it, and the loser is
// recognized as stale by its generation number and ignored. The watchdog
// guarantees the slot is never wedged by a transport that never calls back.
//
// All methods must be called from the gateway event loop goroutine.
type DeliverySlot struct {
  Timeout time.Duration

  sender Sender
  backoff *Backoff

  // post a watchdog expiry / transport completion back into the event loop.
  expire func(seq uint64)
  complete func(seq uint64, res relay.Result)

  inFlight bool
  seq uint64
  target string
  watchdog *time.Timer
}

func NewDeliverySlot(
  sender Sender,
  backoff *Backoff,
  complete func(seq uint64, res relay.Result),
  expire func(seq uint64),
) *DeliverySlot {
  return &DeliverySlot{
    Timeout: DefaultSendTimeout,
    sender: sender,
    backoff: backoff,
    complete: complete,
    expire: expire,
  }
}

func (s *DeliverySlot) InFlight() bool {
  return s.inFlight
}

// TrySend admits the envelope unless a delivery is already in flight or the
// backoff controller reports an active cooldown, and reports whether the
// send was accepted. A rejected packet is gone; there is no queue.
func (s *DeliverySlot) TrySend(e relay.Envelope, target string, now time.Time) bool {
  if s.inFlight {
    log.Debug().Str("Device", target).Msg("delivery: slot busy, dropping packet")
    return false
  }

  if s.backoff.InCooldown(now) {
    log.Debug().
      Str("Device", target).
      Int("ConsecutiveFailures", s.backoff.Failures()).
      Msg("delivery: in cooldown, dropping packet")
    return false
  }

  s.inFlight = true
  s.seq += 1
  s.target = target

  seq := s.seq
  s.watchdog = time.AfterFunc(s.Timeout, func() {
    s.expire(seq)
  })

  s.sender.Send(e, func(res relay.Result) {
    s.complete(seq, res)
  })

  return true
}

// OnComplete handles a transport completion. A completion for a send that
// the watchdog already resolved is stale and ignored.
func (s *DeliverySlot) OnComplete(seq uint64, res relay.Result, now time.Time) {
  if !s.inFlight || seq != s.seq {
    log.Debug().Uint64("Seq", seq).Stringer("Result", res).
      Msg("delivery: ignoring stale completion")
    return
  }

  target := s.target
  s.release()

  if res.Success() {
    deliveriesCounter.WithLabelValues(resultSuccess).Inc()
    s.backoff.OnSuccess()

    log.Debug().
      Str("Device", target).
      Int("Status", res.Status).
      Msg("delivery: telemetry forwarded")

    return
  }

  result := resultHTTPError

  if res.Err != nil {
    result = resultTransportError
  }

  deliveriesCounter.WithLabelValues(result).Inc()
  s.backoff.OnFailure(now)

  log.Warn().
    Str("Device", target).
    Int("Status", res.Status).
    Err(res.Err).
    Int("ConsecutiveFailures", s.backoff.Failures()).
    Msg("delivery: telemetry post failed")
}

// OnWatchdog handles a watchdog expiry: the stuck send is abandoned, the
// slot freed and a failure recorded. An expiry racing a completion that
// already won is ignored.
func (s *DeliverySlot) OnWatchdog(seq uint64, now time.Time) {
  if !s.inFlight || seq != s.seq {
    return
  }

  target := s.target
  s.release()

  deliveriesCounter.WithLabelValues(resultWatchdogTimeout).Inc()
  s.backoff.OnFailure(now)

  log.Warn().
    Str("Device", target).
    Dur("TimeoutSec", s.Timeout).
    Int("ConsecutiveFailures", s.backoff.Failures()).
    Msg("delivery: no completion within timeout, releasing slot")
}

func (s *DeliverySlot) release() {
  if s.watchdog != nil {
    s.watchdog.Stop()
    s.watchdog = nil
  }

  s.inFlight = false
  s.target = ""
}
