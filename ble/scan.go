package ble

import (
	"context"
	"fmt"

	"github.com/go-ble/ble"
)

func WrapContextWithSigHandler(ctx context.Context, cancel func()) context.Context {
  return ble.WithSigHandler(ctx, cancel)
}

// Scan continuously (duplicates included) and pass every advertisement to the
// handler. Blocks until the context is cancelled.
func (h *Handle) ScanAll(ctx context.Context, onDevice func(Advertisement)) error {
  err := h.dev.Scan(ctx, true, onDevice)

  if err != nil {
    return fmt.Errorf("failed to initiate scan: %w", err)
  }

  return nil
}

// RawPayload extracts the raw advertising data from an advertisement. The
// portable Advertisement interface does not expose it, but the linux
// implementation does; when it's unavailable, the manufacturer-data AD
// structure (length, 0xFF marker, data) is reconstructed instead, which is
// all the downstream filter looks at.
func RawPayload(a Advertisement) []byte {
  if raw, ok := a.(interface{ Data() []byte }); ok {
    if data := raw.Data(); len(data) > 0 {
      return data
    }
  }

  md := a.ManufacturerData()

  if len(md) == 0 {
    return nil
  }

  out := make([]byte, 0, len(md) + 2)
  out = append(out, byte(len(md) + 1), 0xff)
  out = append(out, md...)

  return out
}
