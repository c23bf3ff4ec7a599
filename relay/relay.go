package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Result is the outcome of a single delivery attempt. Status is 0 when no
// response was received at all.
type Result struct {
  Status int
  Err error
}

// A response with 2xx status is a success; a transport error, a non-2xx
// response and a missing response all count as failures.
func (r Result) Success() bool {
  return r.Err == nil && r.Status >= 200 && r.Status < 300
}

func (r Result) String() string {
  if r.Err != nil {
    return fmt.Sprintf("result:error(%v)", r.Err)
  }

  return fmt.Sprintf("result:status(%d)", r.Status)
}

// Client posts telemetry envelopes to the collector endpoint. Sends are
// asynchronous and completion is reported exactly once through a callback,
// from a separate goroutine.
type Client struct {
  endpoint string
  http *http.Client
}

func NewClient(endpoint string) *Client {
  return &Client{
    endpoint: endpoint,
    http: &http.Client{
      // the delivery watchdog is the real deadline; this only makes sure an
      // abandoned request doesn't hold its connection forever.
      Timeout: 30 * time.Second,
    },
  }
}

func (c *Client) Send(e Envelope, done func(Result)) {
  go func() {
    done(c.post(e))
  }()
}

func (c *Client) post(e Envelope) Result {
  body, err := json.Marshal(e)

  if err != nil {
    return Result{Err: errors.Wrap(err, "failed to encode telemetry")}
  }

  log.Trace().
    Str("Endpoint", c.endpoint).
    RawJSON("Body", body).
    Msg("relay: posting telemetry")

  resp, err := c.http.Post(c.endpoint, "application/json", bytes.NewReader(body))

  if err != nil {
    return Result{Err: errors.Wrap(err, "failed to post telemetry")}
  }

  defer resp.Body.Close()
  io.Copy(io.Discard, resp.Body)

  return Result{Status: resp.StatusCode}
}
