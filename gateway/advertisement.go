package gateway

import (
	"strings"
)

// Advertisement is a single broadcast packet as delivered by the scanner.
// Packets are immutable and consumed once.
type Advertisement struct {
  Addr string
  RSSI int
  Payload []byte
}

// NormalizeAddr converts a device address to the canonical form used as the
// dedup key and in outbound telemetry: uppercase hex pairs separated by
// colons. Addresses arriving without separators get one inserted after every
// two characters.
func NormalizeAddr(addr string) string {
  addr = strings.ToUpper(addr)

  if strings.Contains(addr, ":") {
    return addr
  }

  var b strings.Builder

  for i := 0; i < len(addr); i += 2 {
    if i > 0 {
      b.WriteByte(':')
    }

    end := i + 2

    if end > len(addr) {
      end = len(addr)
    }

    b.WriteString(addr[i:end])
  }

  return b.String()
}
