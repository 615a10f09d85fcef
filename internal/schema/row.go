package schema

import (
	"time"

	"github.com/loomhq/loom/engine/internal/shareddoc"
)

// Row wraps the backing document of a single row. A row document is loaded
// lazily; callers holding no Row must treat the row as absent, not as an
// error.
type Row struct {
	doc *shareddoc.Document
}

// NewRow wraps an existing row document.
func NewRow(doc *shareddoc.Document) Row {
	return Row{doc: doc}
}

// Doc exposes the underlying shared document.
func (row Row) Doc() *shareddoc.Document {
	return row.doc
}

// InitRow writes the identity and timestamps of a freshly materialized row
// document.
func InitRow(doc *shareddoc.Document, rowID, databaseID string, createdAt time.Time) Row {
	row := Row{doc: doc}
	root := doc.Root()
	root.Set(KeyRowID, rowID)
	root.Set(KeyRowDatabaseID, databaseID)
	root.Set(KeyRowVisibility, true)
	seconds := createdAt.UTC().Unix()
	root.Set(KeyRowCreatedAt, seconds)
	root.Set(KeyRowLastModified, seconds)
	return row
}

// ID returns the row identifier.
func (row Row) ID() string {
	value, _ := row.doc.Root().Get(KeyRowID)
	return AsString(value)
}

// DatabaseID returns the owning database identifier.
func (row Row) DatabaseID() string {
	value, _ := row.doc.Root().Get(KeyRowDatabaseID)
	return AsString(value)
}

// Visibility reports whether the row is visible; missing values default to
// visible.
func (row Row) Visibility() bool {
	value, ok := row.doc.Root().Get(KeyRowVisibility)
	if !ok {
		return true
	}
	return AsBool(value)
}

// Height returns the configured row height, 0 when unset.
func (row Row) Height() int64 {
	value, _ := row.doc.Root().Get(KeyRowHeight)
	return AsInt64(value)
}

// CreatedAt returns the creation timestamp in unix seconds.
func (row Row) CreatedAt() int64 {
	value, _ := row.doc.Root().Get(KeyRowCreatedAt)
	return AsInt64(value)
}

// LastModified returns the last modification timestamp in unix seconds.
func (row Row) LastModified() int64 {
	value, _ := row.doc.Root().Get(KeyRowLastModified)
	return AsInt64(value)
}

// Touch bumps the last-modified timestamp.
func (row Row) Touch(at time.Time) {
	row.doc.Root().Set(KeyRowLastModified, at.UTC().Unix())
}

// Cell returns the cell node stored for fieldID, or nil when the cell has
// never been written. A nil cell decodes as the field type's empty value.
func (row Row) Cell(fieldID string) *shareddoc.MapNode {
	cells := row.doc.Root().GetMap(KeyRowCells)
	if cells == nil {
		return nil
	}
	return cells.GetMap(fieldID)
}

// EnsureCell returns the cell node for fieldID, materializing it with
// timestamps and the field type on first write.
func (row Row) EnsureCell(fieldID string, fieldType FieldType, at time.Time) *shareddoc.MapNode {
	cells := row.doc.Root().EnsureMap(KeyRowCells)
	cell := cells.GetMap(fieldID)
	if cell == nil {
		cell = cells.EnsureMap(fieldID)
		cell.Set(KeyCellCreatedAt, at.UTC().Unix())
	}
	cell.Set(KeyCellFieldType, string(fieldType))
	cell.Set(KeyCellLastModified, at.UTC().Unix())
	return cell
}

// Meta returns the row's side metadata map, creating it on demand.
func (row Row) Meta() *shareddoc.MapNode {
	return row.doc.Root().EnsureMap(KeyRowMeta)
}

// MetaValue reads a single row metadata entry.
func (row Row) MetaValue(key string) string {
	meta := row.doc.Root().GetMap(KeyRowMeta)
	if meta == nil {
		return ""
	}
	value, _ := meta.Get(key)
	return AsString(value)
}

// Comments returns the row's comment collection, creating it on demand when
// ensure is set.
func (row Row) Comments(ensure bool) *shareddoc.ListNode {
	if ensure {
		return row.doc.Root().EnsureList(KeyRowComments)
	}
	return row.doc.Root().GetList(KeyRowComments)
}

// CellData reads the raw data payload of a cell; a missing cell yields nil.
func CellData(cell *shareddoc.MapNode) any {
	if cell == nil {
		return nil
	}
	value, _ := cell.Get(KeyCellData)
	return value
}
