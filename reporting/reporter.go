package reporting

import (
	"context"
	"errors"
	"fmt"
)

// ErrLaunchNotStarted is returned by LaunchReporter operations that need a
// launch ID before Start has succeeded.
var ErrLaunchNotStarted = errors.New("reporting: launch not started")

// Reporter is a handle bound to one open suite or test item.
type Reporter interface {
	// ID returns the remote item ID.
	ID() string

	// Log attaches a log entry to the item.
	Log(ctx context.Context, req *LogRequest) error

	// StartChild starts an item nested under this one.
	StartChild(ctx context.Context, req *StartItemRequest) (Reporter, error)

	// Finish closes the item.
	Finish(ctx context.Context, req *FinishItemRequest) error
}

// LaunchReporter is the handle for the launch at the root of the hierarchy.
type LaunchReporter struct {
	client Client
	req    *StartLaunchRequest
	id     string
}

// NewLaunchReporter prepares a launch. Nothing is sent until Start.
func NewLaunchReporter(client Client, req *StartLaunchRequest) *LaunchReporter {
	return &LaunchReporter{client: client, req: req}
}

// Start creates the launch on the service.
func (l *LaunchReporter) Start(ctx context.Context) error {
	id, err := l.client.StartLaunch(ctx, l.req)
	if err != nil {
		return fmt.Errorf("start launch %q: %w", l.req.Name, err)
	}
	l.id = id
	return nil
}

// ID returns the launch ID, or "" before Start.
func (l *LaunchReporter) ID() string {
	return l.id
}

// Name returns the configured launch name.
func (l *LaunchReporter) Name() string {
	return l.req.Name
}

// StartChild starts a root item of the launch.
func (l *LaunchReporter) StartChild(ctx context.Context, req *StartItemRequest) (Reporter, error) {
	if l.id == "" {
		return nil, ErrLaunchNotStarted
	}
	item, err := startItem(ctx, l.client, l.id, "", req)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Finish closes the launch.
func (l *LaunchReporter) Finish(ctx context.Context, req *FinishLaunchRequest) error {
	if l.id == "" {
		return ErrLaunchNotStarted
	}
	if err := l.client.FinishLaunch(ctx, l.id, req); err != nil {
		return fmt.Errorf("finish launch %s: %w", l.id, err)
	}
	return nil
}

// Sync waits for the transport to deliver everything sent so far.
func (l *LaunchReporter) Sync(ctx context.Context) error {
	if err := l.client.Sync(ctx); err != nil {
		return fmt.Errorf("sync launch %s: %w", l.id, err)
	}
	return nil
}

type itemReporter struct {
	client   Client
	launchID string
	id       string
	name     string
}

func startItem(ctx context.Context, client Client, launchID, parentID string, req *StartItemRequest) (*itemReporter, error) {
	id, err := client.StartItem(ctx, launchID, parentID, req)
	if err != nil {
		return nil, fmt.Errorf("start %s item %q: %w", req.Type, req.Name, err)
	}
	return &itemReporter{client: client, launchID: launchID, id: id, name: req.Name}, nil
}

func (r *itemReporter) ID() string {
	return r.id
}

func (r *itemReporter) Log(ctx context.Context, req *LogRequest) error {
	if err := r.client.AddLog(ctx, r.launchID, r.id, req); err != nil {
		return fmt.Errorf("log to item %q: %w", r.name, err)
	}
	return nil
}

func (r *itemReporter) StartChild(ctx context.Context, req *StartItemRequest) (Reporter, error) {
	item, err := startItem(ctx, r.client, r.launchID, r.id, req)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *itemReporter) Finish(ctx context.Context, req *FinishItemRequest) error {
	if err := r.client.FinishItem(ctx, r.launchID, r.id, req); err != nil {
		return fmt.Errorf("finish item %q: %w", r.name, err)
	}
	return nil
}
