package gateway_test

import (
  "context"
  "testing"
  "time"

  "blegw/gateway"
  "blegw/relay"
)

type chanSender struct {
  sent chan relay.Envelope
  done chan func(relay.Result)
}

func newChanSender() *chanSender {
  return &chanSender{
    sent: make(chan relay.Envelope, 4),
    done: make(chan func(relay.Result), 4),
  }
}

func (c *chanSender) Send(e relay.Envelope, done func(relay.Result)) {
  c.sent <- e
  c.done <- done
}

func (c *chanSender) waitEnvelope(t *testing.T) relay.Envelope {
  t.Helper()

  select {
  case e := <-c.sent:
    return e
  case <-time.After(time.Second):
    t.Fatal("no envelope reached the sender")
    panic("unreachable")
  }
}

func (c *chanSender) expectNoEnvelope(t *testing.T) {
  t.Helper()

  select {
  case e := <-c.sent:
    t.Fatalf("unexpected envelope reached the sender: %+v", e)
  case <-time.After(100 * time.Millisecond):
  }
}

func startGateway(t *testing.T, cfg gateway.Config, sender gateway.Sender) *gateway.Gateway {
  t.Helper()

  gw := gateway.New(cfg, sender)

  ctx, cancel := context.WithCancel(context.Background())
  t.Cleanup(cancel)

  go gw.Run(ctx)

  return gw
}

func TestGateway_ForwardsQualifyingAdvertisement(t *testing.T) {
  sender := newChanSender()
  gw := startGateway(t, gateway.Config{
    AllowList: []uint16{0x0499},
    CleanupInterval: time.Hour,
  }, sender)

  gw.HandleAdvertisement(gateway.Advertisement{
    Addr: "aabbccddeeff",
    RSSI: -61,
    Payload: mustHex(t, "0201061BFF990405138A5CC4E0"),
  })

  e := sender.waitEnvelope(t)

  tag, ok := e.Data.Tags["AA:BB:CC:DD:EE:FF"]

  if !ok {
    t.Fatalf("envelope tags %v are missing the normalized device address", e.Data.Tags)
  }

  if len(e.Data.Tags) != 1 {
    t.Fatalf("envelope carries %d tags, want exactly 1", len(e.Data.Tags))
  }

  if tag.RSSI != -61 {
    t.Fatalf("tag RSSI = %d, want -61", tag.RSSI)
  }

  if tag.Data != "0201061BFF990405138A5CC4E0" {
    t.Fatalf("tag data = %q, want the uppercase hex payload", tag.Data)
  }

  // identity has not been resolved, so the sentinel is used.
  if e.Data.GwMac != gateway.ZeroGatewayMac {
    t.Fatalf("gateway MAC = %q, want the all-zero sentinel", e.Data.GwMac)
  }
}

func TestGateway_DropsNonQualifyingAdvertisement(t *testing.T) {
  sender := newChanSender()
  gw := startGateway(t, gateway.Config{
    AllowList: []uint16{0x0499},
    CleanupInterval: time.Hour,
  }, sender)

  gw.HandleAdvertisement(gateway.Advertisement{
    Addr: "aabbccddeeff",
    RSSI: -61,
    Payload: mustHex(t, "0201060AFFAA0105138A5CC4E0"),
  })

  sender.expectNoEnvelope(t)
}

func TestGateway_DropsEmptyPayload(t *testing.T) {
  sender := newChanSender()
  gw := startGateway(t, gateway.Config{CleanupInterval: time.Hour}, sender)

  gw.HandleAdvertisement(gateway.Advertisement{Addr: "aabbccddeeff", RSSI: -61})

  sender.expectNoEnvelope(t)
}

func TestGateway_RateLimitsPerDevice(t *testing.T) {
  sender := newChanSender()
  gw := startGateway(t, gateway.Config{
    RateLimit: time.Hour,
    CleanupInterval: time.Hour,
  }, sender)

  payload := mustHex(t, "0201061BFF990405138A5CC4E0")

  gw.HandleAdvertisement(gateway.Advertisement{Addr: "aabbccddeeff", RSSI: -61, Payload: payload})
  sender.waitEnvelope(t)
  (<-sender.done)(relay.Result{Status: 200})

  // the same device is rate-limited even though the previous delivery
  // already completed, because Record happens at admission time.
  gw.HandleAdvertisement(gateway.Advertisement{Addr: "aabbccddeeff", RSSI: -61, Payload: payload})
  sender.expectNoEnvelope(t)

  // a different device is unaffected.
  gw.HandleAdvertisement(gateway.Advertisement{Addr: "112233445566", RSSI: -61, Payload: payload})
  sender.waitEnvelope(t)
}

func TestGateway_DropsWhileSlotBusy(t *testing.T) {
  sender := newChanSender()
  gw := startGateway(t, gateway.Config{CleanupInterval: time.Hour}, sender)

  payload := mustHex(t, "0201061BFF990405138A5CC4E0")

  gw.HandleAdvertisement(gateway.Advertisement{Addr: "aabbccddeeff", RSSI: -61, Payload: payload})
  sender.waitEnvelope(t)

  // the first delivery has not completed; a packet from another device is
  // dropped, not queued.
  gw.HandleAdvertisement(gateway.Advertisement{Addr: "112233445566", RSSI: -61, Payload: payload})
  sender.expectNoEnvelope(t)

  (<-sender.done)(relay.Result{Status: 200})

  // the dropped packet is gone; a fresh one goes through now.
  gw.HandleAdvertisement(gateway.Advertisement{Addr: "665544332211", RSSI: -61, Payload: payload})
  sender.waitEnvelope(t)
}

func TestGateway_UsesResolvedIdentity(t *testing.T) {
  sender := newChanSender()
  gw := startGateway(t, gateway.Config{CleanupInterval: time.Hour}, sender)

  gw.SetGatewayAddress("c0:ff:ee:c0:ff:ee")

  gw.HandleAdvertisement(gateway.Advertisement{
    Addr: "aabbccddeeff",
    RSSI: -61,
    Payload: mustHex(t, "0201061BFF990405138A5CC4E0"),
  })

  e := sender.waitEnvelope(t)

  if e.Data.GwMac != "C0:FF:EE:C0:FF:EE" {
    t.Fatalf("gateway MAC = %q, want C0:FF:EE:C0:FF:EE", e.Data.GwMac)
  }
}
