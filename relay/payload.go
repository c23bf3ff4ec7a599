package relay

import (
	"encoding/hex"
	"math/rand"
	"strings"
	"time"
)

// Envelope is the collector wire format. Exactly one device goes into Tags
// per request: the protocol forwards one advertisement per HTTP call, not a
// batch.
type Envelope struct {
  Data Data `json:"data"`
}

type Data struct {
  Coordinates string `json:"coordinates"`
  Timestamp int64 `json:"timestamp"`
  Nonce int32 `json:"nonce"`
  GwMac string `json:"gw_mac"`
  Tags map[string]Tag `json:"tags"`
}

type Tag struct {
  RSSI int `json:"rssi"`
  Timestamp int64 `json:"timestamp"`
  Data string `json:"data"`
}

// NewEnvelope builds the outbound record for a single advertisement. Both
// addresses must already be in colon-separated uppercase form.
func NewEnvelope(gwMac, deviceAddr string, rssi int, payload []byte, now time.Time) Envelope {
  ts := now.Unix()

  return Envelope{
    Data: Data{
      Timestamp: ts,
      Nonce: rand.Int31n(1<<31 - 1),
      GwMac: gwMac,
      Tags: map[string]Tag{
        deviceAddr: {
          RSSI: rssi,
          Timestamp: ts,
          Data: strings.ToUpper(hex.EncodeToString(payload)),
        },
      },
    },
  }
}
