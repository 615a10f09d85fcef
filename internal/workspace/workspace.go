package workspace

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/loomhq/loom/engine/internal/cells"
	"github.com/loomhq/loom/engine/internal/loader"
	"github.com/loomhq/loom/engine/internal/query"
	"github.com/loomhq/loom/engine/internal/schema"
)

var (
	errMissingLoader = errors.New("row loader is required")
)

// ViewMeta is the resolved metadata of a view, used to follow relation
// fields into their related database.
type ViewMeta struct {
	ViewID     string
	DatabaseID string
}

// ViewMetaLoader resolves a view id to its metadata. Failures mean "no
// access": callers degrade to an empty result instead of propagating the
// error.
type ViewMetaLoader func(viewID string) (ViewMeta, error)

// Workspace owns the row-lookup map the engine consults: row id to loaded
// backing document. Engine components read through LookupRow and never
// mutate the map; loading goes through EnsureRow.
type Workspace struct {
	mu       sync.RWMutex
	database schema.Database
	rows     map[string]schema.Row
	loader   *loader.Loader
	views    ViewMetaLoader
	logger   *zap.Logger
}

// Config describes the inputs required to build a Workspace.
type Config struct {
	Database  schema.Database
	Loader    *loader.Loader
	ViewMetas ViewMetaLoader
	Logger    *zap.Logger
}

// New validates the configuration and returns a Workspace.
func New(cfg Config) (*Workspace, error) {
	if cfg.Loader == nil {
		return nil, errMissingLoader
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workspace{
		database: cfg.Database,
		rows:     make(map[string]schema.Row),
		loader:   cfg.Loader,
		views:    cfg.ViewMetas,
		logger:   logger,
	}, nil
}

// Database returns the workspace's database aggregate.
func (workspace *Workspace) Database() schema.Database {
	return workspace.database
}

// LookupRow consults the row map. Absence means "not yet loaded" and is
// indistinguishable from "does not exist" by design.
func (workspace *Workspace) LookupRow(rowID string) (schema.Row, bool) {
	workspace.mu.RLock()
	defer workspace.mu.RUnlock()
	row, ok := workspace.rows[rowID]
	return row, ok
}

// RowLookup adapts the workspace to the query engine's lookup shape.
func (workspace *Workspace) RowLookup() query.RowLookup {
	return workspace.LookupRow
}

// EnsureRow returns the row's backing document, loading it on demand. A
// superseded load leaves the map untouched.
func (workspace *Workspace) EnsureRow(ctx context.Context, rowID string) (schema.Row, error) {
	if row, ok := workspace.LookupRow(rowID); ok {
		return row, nil
	}
	row, err := workspace.loader.LoadRow(ctx, rowID, workspace.database.ID())
	if errors.Is(err, loader.ErrLoadSuperseded) {
		return schema.Row{}, err
	}
	if err != nil {
		return schema.Row{}, err
	}
	workspace.mu.Lock()
	workspace.rows[rowID] = row
	workspace.mu.Unlock()
	return row, nil
}

// LoadAllRows eagerly loads every row referenced by the database's row
// order. Individual failures are logged and skipped so one bad snapshot
// cannot block the view.
func (workspace *Workspace) LoadAllRows(ctx context.Context) {
	for _, rowID := range workspace.database.RowOrder() {
		if _, err := workspace.EnsureRow(ctx, rowID); err != nil {
			workspace.logger.Warn("row load failed",
				zap.String("row_id", rowID),
				zap.Error(err))
		}
	}
}

// VisibleRows returns the view's row ids after filtering and sorting.
// Unloaded rows pass through the sort with sentinel ordering and are
// excluded by any active filter.
func (workspace *Workspace) VisibleRows(view schema.View) []string {
	fields := workspace.database.Fields()
	rowIDs := workspace.database.RowOrder()
	rowIDs = query.FilterRows(rowIDs, view.Filters, view.FilterOperator, fields, workspace.LookupRow)
	return query.SortRows(rowIDs, view.Sorts, fields, workspace.LookupRow)
}

// GroupRows computes the view's derived group buckets, empty when the view
// has no grouping field or the field cannot group.
func (workspace *Workspace) GroupRows(view schema.View) map[string][]string {
	field, ok := workspace.database.Field(view.GroupFieldID)
	if !ok {
		return map[string][]string{}
	}
	fields := workspace.database.Fields()
	rowIDs := workspace.database.RowOrder()
	switch field.Type {
	case schema.FieldTypeCheckbox:
		return query.GroupByCheckbox(rowIDs, field, view.Filters, view.FilterOperator, fields, workspace.LookupRow)
	case schema.FieldTypeSingleSelect, schema.FieldTypeMultiSelect:
		return query.GroupBySelectOption(rowIDs, field, view.Filters, view.FilterOperator, fields, workspace.LookupRow)
	default:
		return map[string][]string{}
	}
}

// RelatedRowTitles resolves a relation cell into the primary-field text of
// each loaded linked row. Unloaded rows and failed view lookups resolve to
// nothing, never to an error.
func (workspace *Workspace) RelatedRowTitles(relation cells.RelationValue) []string {
	primary, ok := workspace.database.PrimaryField()
	if !ok {
		return nil
	}
	titles := make([]string, 0, len(relation.RowIDs))
	for _, rowID := range relation.RowIDs {
		row, loaded := workspace.LookupRow(rowID)
		if !loaded {
			continue
		}
		value := cells.DecodeCell(row, primary)
		if title := cells.DisplayText(value, primary); title != "" {
			titles = append(titles, title)
		}
	}
	return titles
}

// RelatedViewMeta follows a relation field's configured view id; any load
// failure degrades to "no access".
func (workspace *Workspace) RelatedViewMeta(viewID string) (ViewMeta, bool) {
	if workspace.views == nil || viewID == "" {
		return ViewMeta{}, false
	}
	meta, err := workspace.views(viewID)
	if err != nil {
		workspace.logger.Debug("view metadata unavailable",
			zap.String("view_id", viewID),
			zap.Error(err))
		return ViewMeta{}, false
	}
	return meta, true
}
