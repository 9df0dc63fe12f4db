package reporting

import (
	"context"

	"github.com/pithecene-io/rpbridge/metrics"
)

// InstrumentedClient wraps a Client and records transport metrics.
// Each call increments remote_call_success or remote_call_failure on the
// collector. A finish rejected with ErrAlreadyFinished counts as a failure;
// the bridge counts the duplicate separately.
type InstrumentedClient struct {
	inner     Client
	collector *metrics.Collector
}

// NewInstrumentedClient wraps a client with metrics instrumentation.
func NewInstrumentedClient(inner Client, collector *metrics.Collector) *InstrumentedClient {
	return &InstrumentedClient{inner: inner, collector: collector}
}

func (c *InstrumentedClient) observe(err error) error {
	if err != nil {
		c.collector.IncRemoteCallFailure()
	} else {
		c.collector.IncRemoteCallSuccess()
	}
	return err
}

// StartLaunch delegates to the inner client and records the outcome.
func (c *InstrumentedClient) StartLaunch(ctx context.Context, req *StartLaunchRequest) (string, error) {
	id, err := c.inner.StartLaunch(ctx, req)
	return id, c.observe(err)
}

// FinishLaunch delegates to the inner client and records the outcome.
func (c *InstrumentedClient) FinishLaunch(ctx context.Context, launchID string, req *FinishLaunchRequest) error {
	return c.observe(c.inner.FinishLaunch(ctx, launchID, req))
}

// StartItem delegates to the inner client and records the outcome.
func (c *InstrumentedClient) StartItem(ctx context.Context, launchID, parentID string, req *StartItemRequest) (string, error) {
	id, err := c.inner.StartItem(ctx, launchID, parentID, req)
	return id, c.observe(err)
}

// FinishItem delegates to the inner client and records the outcome.
func (c *InstrumentedClient) FinishItem(ctx context.Context, launchID, itemID string, req *FinishItemRequest) error {
	return c.observe(c.inner.FinishItem(ctx, launchID, itemID, req))
}

// AddLog delegates to the inner client and records the outcome.
func (c *InstrumentedClient) AddLog(ctx context.Context, launchID, itemID string, req *LogRequest) error {
	return c.observe(c.inner.AddLog(ctx, launchID, itemID, req))
}

// Sync delegates to the inner client and records the outcome.
func (c *InstrumentedClient) Sync(ctx context.Context) error {
	return c.observe(c.inner.Sync(ctx))
}

// Close delegates to the inner client. Not counted.
func (c *InstrumentedClient) Close() error {
	return c.inner.Close()
}

// Verify InstrumentedClient implements Client.
var _ Client = (*InstrumentedClient)(nil)
