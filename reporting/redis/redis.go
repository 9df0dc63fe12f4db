// Package redis implements reporting.Client as a Redis pub/sub mirror.
//
// Every operation is published as one JSON Message to a channel. Launch and
// item IDs are generated locally, so downstream consumers can rebuild the
// hierarchy from the stream alone. Publishing is fire-and-forget from
// Redis's point of view; there are no retries.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/rpbridge/reporting"
	"github.com/pithecene-io/rpbridge/types"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "rpbridge:reporting"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// Message types.
const (
	TypeLaunchStarted  = "launch_started"
	TypeLaunchFinished = "launch_finished"
	TypeItemStarted    = "item_started"
	TypeItemFinished   = "item_finished"
	TypeLogAdded       = "log_added"
)

// Config configures the Redis pub/sub client.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: rpbridge:reporting).
	Channel string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
}

// Message is the JSON payload published for every operation.
type Message struct {
	ContractVersion string `json:"contract_version"`
	Type            string `json:"type"`
	LaunchID        string `json:"launch_id"`
	ItemID          string `json:"item_id,omitempty"`
	ParentID        string `json:"parent_id,omitempty"`

	Launch *reporting.StartLaunchRequest  `json:"launch,omitempty"`
	Item   *reporting.StartItemRequest    `json:"item,omitempty"`
	Finish *FinishPayload                 `json:"finish,omitempty"`
	Log    *LogPayload                    `json:"log,omitempty"`
	End    *reporting.FinishLaunchRequest `json:"end,omitempty"`
}

// FinishPayload carries an item finish.
type FinishPayload struct {
	EndTime time.Time    `json:"end_time"`
	Status  types.Status `json:"status,omitempty"`
}

// LogPayload carries a log entry. Attachment data is base64 in JSON.
type LogPayload struct {
	Time       time.Time          `json:"time"`
	Level      types.LogLevel     `json:"level"`
	Message    string             `json:"message"`
	Attachment *AttachmentPayload `json:"attachment,omitempty"`
}

// AttachmentPayload carries attachment bytes inline.
type AttachmentPayload struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Client publishes reporting operations to Redis.
type Client struct {
	config Config
	client *goredis.Client
	newID  func() string

	mu       sync.Mutex
	finished map[string]bool
}

// New creates a Redis pub/sub client from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis client requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis client: invalid URL: %w", err)
	}

	// go-redis retries failed commands by default; -1 disables that.
	opts.MaxRetries = -1

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		config:   cfg,
		client:   goredis.NewClient(opts),
		newID:    uuid.NewString,
		finished: make(map[string]bool),
	}, nil
}

// publish sends one message with the per-publish timeout.
func (c *Client) publish(ctx context.Context, msg *Message) error {
	msg.ContractVersion = types.ContractVersion
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: marshal %s: %w", msg.Type, err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	if err := c.client.Publish(publishCtx, c.config.Channel, body).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", msg.Type, err)
	}
	return nil
}

// StartLaunch implements reporting.Client.
func (c *Client) StartLaunch(ctx context.Context, req *reporting.StartLaunchRequest) (string, error) {
	id := c.newID()
	if err := c.publish(ctx, &Message{Type: TypeLaunchStarted, LaunchID: id, Launch: req}); err != nil {
		return "", err
	}
	return id, nil
}

// FinishLaunch implements reporting.Client.
func (c *Client) FinishLaunch(ctx context.Context, launchID string, req *reporting.FinishLaunchRequest) error {
	return c.publish(ctx, &Message{Type: TypeLaunchFinished, LaunchID: launchID, End: req})
}

// StartItem implements reporting.Client.
func (c *Client) StartItem(ctx context.Context, launchID, parentID string, req *reporting.StartItemRequest) (string, error) {
	id := c.newID()
	msg := &Message{Type: TypeItemStarted, LaunchID: launchID, ItemID: id, ParentID: parentID, Item: req}
	if err := c.publish(ctx, msg); err != nil {
		return "", err
	}
	return id, nil
}

// FinishItem implements reporting.Client.
// A second finish of the same item is rejected locally with
// reporting.ErrAlreadyFinished and not published.
func (c *Client) FinishItem(ctx context.Context, launchID, itemID string, req *reporting.FinishItemRequest) error {
	c.mu.Lock()
	if c.finished[itemID] {
		c.mu.Unlock()
		return fmt.Errorf("redis: item %s: %w", itemID, reporting.ErrAlreadyFinished)
	}
	c.mu.Unlock()

	msg := &Message{
		Type:     TypeItemFinished,
		LaunchID: launchID,
		ItemID:   itemID,
		Finish:   &FinishPayload{EndTime: req.EndTime, Status: req.Status},
	}
	if err := c.publish(ctx, msg); err != nil {
		return err
	}

	c.mu.Lock()
	c.finished[itemID] = true
	c.mu.Unlock()
	return nil
}

// AddLog implements reporting.Client.
func (c *Client) AddLog(ctx context.Context, launchID, itemID string, req *reporting.LogRequest) error {
	payload := &LogPayload{Time: req.Time, Level: req.Level, Message: req.Message}
	if a := req.Attachment; a != nil {
		payload.Attachment = &AttachmentPayload{Name: a.Name, MimeType: a.MimeType, Data: a.Data}
	}
	return c.publish(ctx, &Message{Type: TypeLogAdded, LaunchID: launchID, ItemID: itemID, Log: payload})
}

// Sync implements reporting.Client. PUBLISH is acknowledged synchronously,
// so Sync only checks the connection is still usable.
func (c *Client) Sync(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: sync: %w", err)
	}
	return nil
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// Verify Client implements reporting.Client.
var _ reporting.Client = (*Client)(nil)
