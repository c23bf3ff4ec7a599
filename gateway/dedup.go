package gateway

import (
	"sort"
	"time"
)

// DedupStore tracks, per device, when a packet was last forwarded. It
// enforces the per-device rate limit and keeps memory bounded through
// periodic eviction of the oldest entries. The bound is enforced by Cleanup
// alone, so the store may transiently exceed MaxEntries between passes.
type DedupStore struct {
  RateLimit time.Duration
  MaxEntries int

  lastSent map[string]time.Time
}

func NewDedupStore(rateLimit time.Duration, maxEntries int) *DedupStore {
  return &DedupStore{
    RateLimit: rateLimit,
    MaxEntries: maxEntries,
    lastSent: make(map[string]time.Time),
  }
}

// ShouldSend reports whether a packet from the device may be forwarded at
// `now`. Devices never seen before are always eligible.
func (s *DedupStore) ShouldSend(addr string, now time.Time) bool {
  last, ok := s.lastSent[addr]

  if !ok {
    return true
  }

  return now.Sub(last) >= s.RateLimit
}

// Record marks the device as forwarded at `now`. The capacity bound is not
// enforced here, that's Cleanup's job.
func (s *DedupStore) Record(addr string, now time.Time) {
  s.lastSent[addr] = now
}

func (s *DedupStore) Len() int {
  return len(s.lastSent)
}

// Cleanup evicts the entries with the greatest age until at most MaxEntries
// remain, and returns how many were evicted.
func (s *DedupStore) Cleanup(now time.Time) int {
  excess := len(s.lastSent) - s.MaxEntries

  if excess <= 0 {
    return 0
  }

  type entry struct {
    addr string
    age time.Duration
  }

  entries := make([]entry, 0, len(s.lastSent))

  for addr, last := range s.lastSent {
    entries = append(entries, entry{addr: addr, age: now.Sub(last)})
  }

  sort.SliceStable(entries, func(i, j int) bool {
    return entries[i].age > entries[j].age
  })

  for _, e := range entries[:excess] {
    delete(s.lastSent, e.addr)
  }

  return excess
}
