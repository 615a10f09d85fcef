package rowstore

import (
	"context"
	"errors"
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrSnapshotNotFound indicates that no snapshot exists for the row.
	ErrSnapshotNotFound = errors.New("rowstore: snapshot not found")
	errMissingDatabase  = errors.New("database handle is required")
	errMissingRowID     = errors.New("row identifier is required")
)

// RowSnapshot is the locally cached JSON snapshot of one row's backing
// document. The cache is a read-through source for the lazy loader; it is
// not the replication transport.
type RowSnapshot struct {
	WorkspaceID      string `gorm:"column:workspace_id;primaryKey;size:190;not null"`
	RowID            string `gorm:"column:row_id;primaryKey;size:190;not null"`
	PayloadJSON      string `gorm:"column:payload_json;type:text;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (RowSnapshot) TableName() string {
	return "row_snapshots"
}

// OpenSQLite establishes a SQLite connection and migrates the snapshot
// schema.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&RowSnapshot{}); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("row snapshot cache initialized", zap.String("path", path))
	}

	return db, nil
}

// Store reads and writes row snapshots for one workspace.
type Store struct {
	db          *gorm.DB
	workspaceID string
	logger      *zap.Logger
}

// StoreConfig describes the inputs required to build a Store.
type StoreConfig struct {
	Database    *gorm.DB
	WorkspaceID string
	Logger      *zap.Logger
}

// NewStore validates the configuration and returns a Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:          cfg.Database,
		workspaceID: cfg.WorkspaceID,
		logger:      logger,
	}, nil
}

// Fetch returns the stored snapshot payload for a row, or ErrSnapshotNotFound.
func (store *Store) Fetch(ctx context.Context, rowID string) (string, error) {
	if rowID == "" {
		return "", errMissingRowID
	}
	var snapshot RowSnapshot
	err := store.db.WithContext(ctx).
		Where("workspace_id = ? AND row_id = ?", store.workspaceID, rowID).
		Take(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrSnapshotNotFound
	}
	if err != nil {
		return "", err
	}
	return snapshot.PayloadJSON, nil
}

// Save upserts a row's snapshot payload.
func (store *Store) Save(ctx context.Context, rowID, payloadJSON string, updatedAtSeconds int64) error {
	if rowID == "" {
		return errMissingRowID
	}
	snapshot := RowSnapshot{
		WorkspaceID:      store.workspaceID,
		RowID:            rowID,
		PayloadJSON:      payloadJSON,
		UpdatedAtSeconds: updatedAtSeconds,
	}
	return store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "workspace_id"}, {Name: "row_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload_json", "updated_at_s"}),
		}).
		Create(&snapshot).Error
}

// Delete removes a row's snapshot.
func (store *Store) Delete(ctx context.Context, rowID string) error {
	if rowID == "" {
		return errMissingRowID
	}
	return store.db.WithContext(ctx).
		Where("workspace_id = ? AND row_id = ?", store.workspaceID, rowID).
		Delete(&RowSnapshot{}).Error
}
