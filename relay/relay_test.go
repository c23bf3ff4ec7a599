package relay_test

import (
  "encoding/json"
  "net/http"
  "net/http/httptest"
  "testing"
  "time"

  "blegw/relay"
)

func waitResult(t *testing.T, results chan relay.Result) relay.Result {
  t.Helper()

  select {
  case r := <-results:
    return r
  case <-time.After(time.Second):
    t.Fatal("completion callback never invoked")
    panic("unreachable")
  }
}

func TestClient_SuccessfulPost(t *testing.T) {
  received := make(chan relay.Envelope, 1)

  srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
    if ct := r.Header.Get("Content-Type"); ct != "application/json" {
      t.Errorf("content type = %q, want application/json", ct)
    }

    var e relay.Envelope

    if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
      t.Errorf("failed to decode request body: %v", err)
    }

    received <- e
  }))
  defer srv.Close()

  c := relay.NewClient(srv.URL)
  results := make(chan relay.Result, 2)

  e := relay.NewEnvelope("AA:AA:AA:AA:AA:AA", "BB:BB:CC:DD:EE:FF", -70,
    []byte{0x02, 0x01, 0x06}, time.Unix(1700000000, 0))

  c.Send(e, func(r relay.Result) {
    results <- r
  })

  r := waitResult(t, results)

  if !r.Success() {
    t.Fatalf("result %v should be a success", r)
  }

  if r.Status != 200 {
    t.Fatalf("status = %d, want 200", r.Status)
  }

  got := <-received

  if got.Data.GwMac != "AA:AA:AA:AA:AA:AA" {
    t.Fatalf("server saw gateway MAC %q, want AA:AA:AA:AA:AA:AA", got.Data.GwMac)
  }

  // completion must be reported exactly once.
  select {
  case r := <-results:
    t.Fatalf("completion callback invoked twice, second result: %v", r)
  case <-time.After(100 * time.Millisecond):
  }
}

func TestClient_NonSuccessStatusIsFailure(t *testing.T) {
  srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
    w.WriteHeader(http.StatusServiceUnavailable)
  }))
  defer srv.Close()

  c := relay.NewClient(srv.URL)
  results := make(chan relay.Result, 1)

  c.Send(relay.Envelope{}, func(r relay.Result) {
    results <- r
  })

  r := waitResult(t, results)

  if r.Success() {
    t.Fatalf("result %v should be a failure", r)
  }

  if r.Status != 503 || r.Err != nil {
    t.Fatalf("got %v, want a plain 503 result", r)
  }
}

func TestClient_TransportErrorIsFailure(t *testing.T) {
  srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
  srv.Close() // nothing is listening anymore

  c := relay.NewClient(srv.URL)
  results := make(chan relay.Result, 1)

  c.Send(relay.Envelope{}, func(r relay.Result) {
    results <- r
  })

  r := waitResult(t, results)

  if r.Success() {
    t.Fatalf("result %v should be a failure", r)
  }

  if r.Err == nil {
    t.Fatal("expected a transport error")
  }
}
