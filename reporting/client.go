// Package reporting defines the remote reporting transport boundary.
//
// A Client speaks to a hierarchical test reporting service: one launch per
// session, suite and test items beneath it, and log entries attached to
// items. Reporter handles in reporter.go bind a Client to one open item so
// the bridge never passes raw IDs around.
//
// Transports live in subpackages: portal (ReportPortal HTTP API), redis
// (pub/sub mirror) and archive (lode dataset on object storage).
package reporting

import (
	"context"
	"errors"
	"time"

	"github.com/pithecene-io/rpbridge/types"
)

// ErrAlreadyFinished is returned by FinishItem when the service rejects a
// finish for an item that is already finished. Callers that finish items
// speculatively are expected to tolerate it.
var ErrAlreadyFinished = errors.New("reporting: item already finished")

// StartLaunchRequest describes a new launch.
type StartLaunchRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	StartTime   time.Time         `json:"start_time"`
	Attributes  []types.Attribute `json:"attributes,omitempty"`
	Mode        types.LaunchMode  `json:"mode,omitempty"`
}

// FinishLaunchRequest closes a launch.
type FinishLaunchRequest struct {
	EndTime time.Time `json:"end_time"`
}

// StartItemRequest describes a new suite or test item.
type StartItemRequest struct {
	Name      string         `json:"name"`
	Type      types.ItemType `json:"type"`
	StartTime time.Time      `json:"start_time"`
}

// FinishItemRequest closes an item. An empty Status leaves the final
// status to the service.
type FinishItemRequest struct {
	EndTime time.Time    `json:"end_time"`
	Status  types.Status `json:"status,omitempty"`
}

// LogRequest is a single log entry, optionally carrying an attachment.
type LogRequest struct {
	Time       time.Time         `json:"time"`
	Level      types.LogLevel    `json:"level"`
	Message    string            `json:"message"`
	Attachment *types.Attachment `json:"attachment,omitempty"`
}

// Client is the remote reporting transport.
// Calls are synchronous; no implementation retries.
type Client interface {
	// StartLaunch creates a launch and returns its ID.
	StartLaunch(ctx context.Context, req *StartLaunchRequest) (string, error)

	// FinishLaunch closes a launch.
	FinishLaunch(ctx context.Context, launchID string, req *FinishLaunchRequest) error

	// StartItem creates an item under parentID, or at the launch root when
	// parentID is empty, and returns its ID.
	StartItem(ctx context.Context, launchID, parentID string, req *StartItemRequest) (string, error)

	// FinishItem closes an item. Returns an error wrapping
	// ErrAlreadyFinished when the item was already closed.
	FinishItem(ctx context.Context, launchID, itemID string, req *FinishItemRequest) error

	// AddLog attaches a log entry to an item.
	AddLog(ctx context.Context, launchID, itemID string, req *LogRequest) error

	// Sync blocks until every previously accepted call is delivered.
	Sync(ctx context.Context) error

	// Close releases transport resources.
	Close() error
}
