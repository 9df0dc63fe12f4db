// Package archive implements reporting.Client on top of a lode dataset.
//
// Every operation is written immediately as one JSONL record, partitioned
// by day/launch_id/record_kind. Attachments bypass the dataset and are put
// into the store under the launch's files/ prefix. The dataset is the
// durable record of the launch; nothing is buffered locally.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/rpbridge/reporting"
)

// DefaultDataset is the default lode dataset ID.
const DefaultDataset = "rpbridge"

// Config configures the archive client.
type Config struct {
	// Dataset is the lode dataset ID (default: rpbridge).
	Dataset string
}

// Client writes reporting operations to a lode dataset.
type Client struct {
	config       Config
	dataset      lode.Dataset
	storeFactory lode.StoreFactory
	newID        func() string

	storeOnce sync.Once
	store     lode.Store
	storeErr  error

	mu       sync.Mutex
	seq      int64
	days     map[string]string // launch ID → partition day
	finished map[string]bool
}

// New creates an archive client over the given store factory.
// Use lode.NewMemoryFactory() for testing and NewS3Factory in production.
func New(cfg Config, factory lode.StoreFactory) (*Client, error) {
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	ds, err := NewDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, wrap("init", cfg.Dataset, err)
	}
	return &Client{
		config:       cfg,
		dataset:      ds,
		storeFactory: factory,
		newID:        uuid.NewString,
		days:         make(map[string]string),
		finished:     make(map[string]bool),
	}, nil
}

// NewDataset opens the dataset with the archive's layout and codec.
// Readers must use it so paths and encoding match the write path.
func NewDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// write commits one record as its own snapshot. Records carry a per-client
// sequence number so readers can order and deduplicate them.
func (c *Client) write(ctx context.Context, record map[string]any) error {
	c.mu.Lock()
	c.seq++
	record["seq"] = c.seq
	c.mu.Unlock()

	if _, err := c.dataset.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		return wrap("write", fmt.Sprint(record["record_kind"]), err)
	}
	return nil
}

// dayFor returns the partition day recorded when the launch started.
func (c *Client) dayFor(launchID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	day, ok := c.days[launchID]
	if !ok {
		return "", fmt.Errorf("archive: launch %s: %w", launchID, ErrNotFound)
	}
	return day, nil
}

// getOrCreateStore lazily initializes the Store from the factory.
func (c *Client) getOrCreateStore() (lode.Store, error) {
	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	return c.store, c.storeErr
}

// StartLaunch implements reporting.Client.
func (c *Client) StartLaunch(ctx context.Context, req *reporting.StartLaunchRequest) (string, error) {
	id := c.newID()
	day := dayOf(req.StartTime)
	if err := c.write(ctx, launchStartedRecord(day, id, req)); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.days[id] = day
	c.mu.Unlock()
	return id, nil
}

// FinishLaunch implements reporting.Client.
func (c *Client) FinishLaunch(ctx context.Context, launchID string, req *reporting.FinishLaunchRequest) error {
	day, err := c.dayFor(launchID)
	if err != nil {
		return err
	}
	return c.write(ctx, launchFinishedRecord(day, launchID, req))
}

// StartItem implements reporting.Client.
func (c *Client) StartItem(ctx context.Context, launchID, parentID string, req *reporting.StartItemRequest) (string, error) {
	day, err := c.dayFor(launchID)
	if err != nil {
		return "", err
	}
	id := c.newID()
	if err := c.write(ctx, itemStartedRecord(day, launchID, id, parentID, req)); err != nil {
		return "", err
	}
	return id, nil
}

// FinishItem implements reporting.Client.
// A second finish of the same item returns reporting.ErrAlreadyFinished
// without writing.
func (c *Client) FinishItem(ctx context.Context, launchID, itemID string, req *reporting.FinishItemRequest) error {
	day, err := c.dayFor(launchID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	done := c.finished[itemID]
	c.mu.Unlock()
	if done {
		return fmt.Errorf("archive: item %s: %w", itemID, reporting.ErrAlreadyFinished)
	}

	if err := c.write(ctx, itemFinishedRecord(day, launchID, itemID, req)); err != nil {
		return err
	}
	c.mu.Lock()
	c.finished[itemID] = true
	c.mu.Unlock()
	return nil
}

// AddLog implements reporting.Client.
// The attachment, if any, is stored before the record that references it.
func (c *Client) AddLog(ctx context.Context, launchID, itemID string, req *reporting.LogRequest) error {
	day, err := c.dayFor(launchID)
	if err != nil {
		return err
	}

	logID := c.newID()
	var fp string
	if a := req.Attachment; a != nil {
		store, err := c.getOrCreateStore()
		if err != nil {
			return wrap("init", c.config.Dataset, err)
		}
		fp = filePath(c.config.Dataset, day, launchID, logID, a.Name)
		if err := store.Put(ctx, fp, bytes.NewReader(a.Data)); err != nil {
			return wrap("put", fp, err)
		}
	}
	return c.write(ctx, logRecord(day, launchID, itemID, logID, fp, req))
}

// Sync implements reporting.Client. Each write is already a committed
// snapshot, so there is nothing to flush.
func (c *Client) Sync(_ context.Context) error {
	return nil
}

// Close releases client resources.
func (c *Client) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

// Verify Client implements reporting.Client.
var _ reporting.Client = (*Client)(nil)

// NewFS creates an archive client writing under root on the local filesystem.
func NewFS(cfg Config, root string) (*Client, error) {
	if root == "" {
		return nil, wrap("init", cfg.Dataset, errors.New("filesystem root is required"))
	}
	return New(cfg, lode.NewFSFactory(root))
}
