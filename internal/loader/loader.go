package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/loomhq/loom/engine/internal/rowstore"
	"github.com/loomhq/loom/engine/internal/schema"
	"github.com/loomhq/loom/engine/internal/shareddoc"
)

var (
	// ErrLoadSuperseded indicates that a newer load request for the same row
	// started before this one finished; the stale result must be discarded.
	ErrLoadSuperseded = errors.New("loader: load superseded by newer request")
	errMissingStore   = errors.New("snapshot store is required")
)

const (
	defaultRetryCount  = 3
	defaultBackoffStep = 50 * time.Millisecond
)

// SnapshotStore is the loader's backing source, normally the local SQLite
// cache.
type SnapshotStore interface {
	Fetch(ctx context.Context, rowID string) (string, error)
	Save(ctx context.Context, rowID, payloadJSON string, updatedAtSeconds int64) error
}

// Loader materializes row backing documents on demand. Loads retry a small
// fixed number of times with linear backoff; a row with no snapshot is
// materialized as an empty document on first access rather than failing.
type Loader struct {
	store   SnapshotStore
	clock   func() time.Time
	logger  *zap.Logger
	retries int
	backoff time.Duration

	mu        sync.Mutex
	sequences map[string]uint64
}

// LoaderConfig describes the inputs required to build a Loader.
type LoaderConfig struct {
	Store       SnapshotStore
	Clock       func() time.Time
	Logger      *zap.Logger
	RetryCount  int
	BackoffStep time.Duration
}

// NewLoader validates the configuration and returns a Loader.
func NewLoader(cfg LoaderConfig) (*Loader, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retries := cfg.RetryCount
	if retries <= 0 {
		retries = defaultRetryCount
	}
	backoff := cfg.BackoffStep
	if backoff <= 0 {
		backoff = defaultBackoffStep
	}
	return &Loader{
		store:     cfg.Store,
		clock:     clock,
		logger:    logger,
		retries:   retries,
		backoff:   backoff,
		sequences: make(map[string]uint64),
	}, nil
}

// LoadRow fetches a row's backing document. Each call takes a fresh request
// sequence number for the row; if a newer call starts before this one
// finishes, the stale result is discarded and ErrLoadSuperseded returned.
func (loader *Loader) LoadRow(ctx context.Context, rowID, databaseID string) (schema.Row, error) {
	sequence := loader.nextSequence(rowID)

	payload, err := loader.fetchWithRetry(ctx, rowID)
	if errors.Is(err, rowstore.ErrSnapshotNotFound) {
		return loader.materializeRow(ctx, rowID, databaseID, sequence)
	}
	if err != nil {
		return schema.Row{}, err
	}

	if loader.superseded(rowID, sequence) {
		return schema.Row{}, ErrLoadSuperseded
	}

	doc, err := shareddoc.NewDocument(shareddoc.DocumentConfig{Clock: loader.clock})
	if err != nil {
		return schema.Row{}, err
	}
	row, err := DecodeRowSnapshot(doc, payload)
	if err != nil {
		loader.logger.Warn("row snapshot decode failed",
			zap.String("row_id", rowID),
			zap.Error(err))
		return schema.Row{}, fmt.Errorf("decode row %s: %w", rowID, err)
	}
	return row, nil
}

func (loader *Loader) fetchWithRetry(ctx context.Context, rowID string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= loader.retries; attempt++ {
		payload, err := loader.store.Fetch(ctx, rowID)
		if err == nil {
			return payload, nil
		}
		if errors.Is(err, rowstore.ErrSnapshotNotFound) {
			return "", err
		}
		lastErr = err
		loader.logger.Debug("row snapshot fetch failed",
			zap.String("row_id", rowID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == loader.retries {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * loader.backoff):
		}
	}
	return "", lastErr
}

// materializeRow answers the not-found case by creating an empty row
// document and persisting its first snapshot.
func (loader *Loader) materializeRow(ctx context.Context, rowID, databaseID string, sequence uint64) (schema.Row, error) {
	if loader.superseded(rowID, sequence) {
		return schema.Row{}, ErrLoadSuperseded
	}
	doc, err := shareddoc.NewDocument(shareddoc.DocumentConfig{Clock: loader.clock})
	if err != nil {
		return schema.Row{}, err
	}
	now := loader.clock()
	row := schema.InitRow(doc, rowID, databaseID, now)
	payload, err := EncodeRowSnapshot(row)
	if err != nil {
		return schema.Row{}, err
	}
	if err := loader.store.Save(ctx, rowID, payload, now.UTC().Unix()); err != nil {
		loader.logger.Warn("row snapshot save failed",
			zap.String("row_id", rowID),
			zap.Error(err))
	}
	loader.logger.Info("row document materialized",
		zap.String("row_id", rowID),
		zap.String("database_id", databaseID))
	return row, nil
}

// SaveRow writes a row document back to the snapshot cache.
func (loader *Loader) SaveRow(ctx context.Context, row schema.Row) error {
	payload, err := EncodeRowSnapshot(row)
	if err != nil {
		return err
	}
	return loader.store.Save(ctx, row.ID(), payload, loader.clock().UTC().Unix())
}

func (loader *Loader) nextSequence(rowID string) uint64 {
	loader.mu.Lock()
	defer loader.mu.Unlock()
	loader.sequences[rowID]++
	return loader.sequences[rowID]
}

func (loader *Loader) superseded(rowID string, sequence uint64) bool {
	loader.mu.Lock()
	defer loader.mu.Unlock()
	return loader.sequences[rowID] != sequence
}
