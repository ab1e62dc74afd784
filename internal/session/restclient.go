package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/imroc/req/v3"
	"github.com/sirupsen/logrus"

	"github.com/cardroom/cardroom/internal/packet"
)

const restRequestTimeout = 30 * time.Second

// restClient forwards packets to the remote host owning a table over its
// REST endpoint. One restClient serves one (session, game) pair for its
// lifetime; Cancel aborts whatever is in flight.
type restClient struct {
	http   *req.Client
	path   string
	log    *logrus.Entry
	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	outstanding     int
	pendingLongPoll bool
}

// NewRestClient returns a RemoteClient for the given host and request path.
func NewRestClient(host string, port int, path string, logger *logrus.Logger) RemoteClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &restClient{
		http: req.C().
			SetBaseURL(fmt.Sprintf("http://%s:%d", host, port)).
			SetTimeout(restRequestTimeout),
		path:   path,
		log:    logger.WithField("remote", fmt.Sprintf("%s:%d", host, port)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Send forwards the packet's encoded form and yields the decoded response
// batch on the returned channel. The outstanding counter is decremented
// before the result is delivered so a retirement check triggered by the
// result sees this round trip as finished.
func (c *restClient) Send(pkt *packet.Packet, data []byte) <-chan RemoteResult {
	c.mu.Lock()
	c.outstanding++
	if pkt.Type == packet.LongPollType {
		c.pendingLongPoll = true
	}
	c.mu.Unlock()

	out := make(chan RemoteResult, 1)
	go func() {
		res := c.roundTrip(data)

		c.mu.Lock()
		c.outstanding--
		if pkt.Type == packet.LongPollType {
			c.pendingLongPoll = false
		}
		c.mu.Unlock()

		out <- res
	}()
	return out
}

func (c *restClient) roundTrip(data []byte) RemoteResult {
	resp, err := c.http.R().
		SetContext(c.ctx).
		SetBodyJsonBytes(data).
		Post(c.path)
	if err != nil {
		return RemoteResult{Err: err}
	}
	if !resp.IsSuccess() {
		return RemoteResult{Err: fmt.Errorf("remote host returned status %d", resp.StatusCode)}
	}

	var pkts []*packet.Packet
	if err := resp.UnmarshalJson(&pkts); err != nil {
		return RemoteResult{Err: fmt.Errorf("malformed remote response: %w", err)}
	}
	return RemoteResult{Packets: pkts}
}

func (c *restClient) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outstanding
}

func (c *restClient) PendingLongPoll() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLongPoll
}

// Cancel aborts outstanding round trips. In-flight requests fail with a
// context error and deliver it through their result channels.
func (c *restClient) Cancel() {
	c.cancel()
}
