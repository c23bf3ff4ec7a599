package gateway

import (
	"time"
)

const (
  // Consecutive failures tolerated before any cooldown kicks in, so isolated
  // transient errors don't suppress traffic.
  backoffFailureGrace = 3
  backoffStep = 5 * time.Second
  backoffMax = 60 * time.Second
)

// Backoff suppresses new deliveries for a while after repeated failures.
// Escalation is linear in the consecutive-failure count (5s per failure,
// capped at 60s) and a single success clears the penalty entirely.
type Backoff struct {
  failures int
  cooldownUntil time.Time
}

func (b *Backoff) OnSuccess() {
  b.failures = 0
  b.cooldownUntil = time.Time{}
}

func (b *Backoff) OnFailure(now time.Time) {
  b.failures += 1

  if b.failures <= backoffFailureGrace {
    return
  }

  cooldown := time.Duration(b.failures) * backoffStep

  if cooldown > backoffMax {
    cooldown = backoffMax
  }

  b.cooldownUntil = now.Add(cooldown)
}

func (b *Backoff) InCooldown(now time.Time) bool {
  return b.cooldownUntil.After(now)
}

func (b *Backoff) Failures() int {
  return b.failures
}
