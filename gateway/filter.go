package gateway

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Manufacturer-data fields in advertising payloads are tagged with AD type 0xFF.
const manufacturerDataMarker = "FF"

// Qualifies reports whether an advertisement payload matches the
// manufacturer-id allow-list. An empty allow-list accepts everything.
//
// This is deliberately a substring scan over the hex-encoded payload, not a
// structured decode of the AD fields: it looks for the 0xFF field marker
// immediately followed by the little-endian id. A 0xFF byte showing up
// elsewhere in the payload can produce a false positive; that approximation
// is part of the contract.
func Qualifies(payload []byte, allowList []uint16) bool {
  if len(allowList) == 0 {
    return true
  }

  encoded := strings.ToUpper(hex.EncodeToString(payload))

  for _, id := range allowList {
    needle := fmt.Sprintf("%s%02X%02X", manufacturerDataMarker, byte(id), byte(id>>8))

    if strings.Contains(encoded, needle) {
      return true
    }
  }

  return false
}
