package schema

import (
	"encoding/json"

	"github.com/loomhq/loom/engine/internal/shareddoc"
)

// Database wraps the shared document holding a database aggregate: its field
// definitions, field order, views, and row order. Rows live in their own
// documents and are reached through the row lookup, never through this one.
type Database struct {
	doc *shareddoc.Document
}

// NewDatabase wraps an existing database document.
func NewDatabase(doc *shareddoc.Document) Database {
	return Database{doc: doc}
}

// Doc exposes the underlying shared document.
func (database Database) Doc() *shareddoc.Document {
	return database.doc
}

// ID returns the database identifier.
func (database Database) ID() string {
	value, _ := database.doc.Root().Get(KeyDatabaseID)
	return AsString(value)
}

// SetID writes the database identifier.
func (database Database) SetID(id string) {
	database.doc.Root().Set(KeyDatabaseID, id)
}

func (database Database) fieldsNode() *shareddoc.MapNode {
	return database.doc.Root().GetMap(KeyFields)
}

// Field decodes the field definition stored under fieldID.
func (database Database) Field(fieldID string) (Field, bool) {
	fields := database.fieldsNode()
	if fields == nil {
		return Field{}, false
	}
	node := fields.GetMap(fieldID)
	if node == nil {
		return Field{}, false
	}
	return decodeField(node), true
}

// Fields returns every field definition in column order. Fields missing from
// the order list are appended after the ordered ones.
func (database Database) Fields() []Field {
	fields := database.fieldsNode()
	if fields == nil {
		return nil
	}
	seen := make(map[string]bool)
	decoded := make([]Field, 0, fields.Len())
	if order := database.doc.Root().GetList(KeyFieldOrder); order != nil {
		for _, rawID := range order.Values() {
			fieldID := AsString(rawID)
			if fieldID == "" || seen[fieldID] {
				continue
			}
			if node := fields.GetMap(fieldID); node != nil {
				decoded = append(decoded, decodeField(node))
				seen[fieldID] = true
			}
		}
	}
	for _, fieldID := range fields.Keys() {
		if seen[fieldID] {
			continue
		}
		if node := fields.GetMap(fieldID); node != nil {
			decoded = append(decoded, decodeField(node))
		}
	}
	return decoded
}

// PrimaryField returns the database's primary field when one exists.
func (database Database) PrimaryField() (Field, bool) {
	for _, field := range database.Fields() {
		if field.IsPrimary {
			return field, true
		}
	}
	return Field{}, false
}

// WriteField persists a field definition and appends it to the column order
// when it is not yet present.
func (database Database) WriteField(field Field) {
	if field.ID == "" {
		return
	}
	fields := database.doc.Root().EnsureMap(KeyFields)
	node := fields.EnsureMap(field.ID)
	node.Set(KeyFieldID, field.ID)
	node.Set(KeyFieldName, field.Name)
	node.Set(KeyFieldType, string(field.Type))
	node.Set(KeyFieldIsPrimary, field.IsPrimary)
	if len(field.Options) > 0 {
		database.WriteFieldOptions(field.ID, field.Options)
	}
	if field.DateFormat != "" || field.TimeFormat != "" || field.IncludeTime {
		database.WriteFieldDateFormat(field.ID, field.DateFormat, field.TimeFormat, field.IncludeTime)
	}
	order := database.doc.Root().EnsureList(KeyFieldOrder)
	if order.IndexOf(field.ID) < 0 {
		order.Push(field.ID)
	}
}

// WriteFieldOptions replaces the configured options of a select or checklist
// field.
func (database Database) WriteFieldOptions(fieldID string, options []SelectOption) {
	fields := database.doc.Root().EnsureMap(KeyFields)
	node := fields.GetMap(fieldID)
	if node == nil {
		return
	}
	typeOption := node.EnsureMap(KeyFieldTypeOpt)
	list := typeOption.EnsureList(KeyTypeOptionOptions)
	for list.Len() > 0 {
		list.RemoveAt(0)
	}
	for _, option := range options {
		encoded, err := json.Marshal(option)
		if err != nil {
			continue
		}
		list.Push(string(encoded))
	}
}

// WriteFieldDateFormat updates a date field's formatting type option. Empty
// format strings stay readable as "unset" so the viewer preference still
// applies.
func (database Database) WriteFieldDateFormat(fieldID, dateFormat, timeFormat string, includeTime bool) {
	fields := database.doc.Root().EnsureMap(KeyFields)
	node := fields.GetMap(fieldID)
	if node == nil {
		return
	}
	typeOption := node.EnsureMap(KeyFieldTypeOpt)
	typeOption.Set(KeyTypeOptionDateFormat, dateFormat)
	typeOption.Set(KeyTypeOptionTimeFormat, timeFormat)
	typeOption.Set(KeyTypeOptionIncludeTime, includeTime)
}

// DeleteField removes a field definition and its order entry. The primary
// field is never deleted.
func (database Database) DeleteField(fieldID string) bool {
	field, ok := database.Field(fieldID)
	if !ok || field.IsPrimary {
		return false
	}
	if fields := database.fieldsNode(); fields != nil {
		fields.Delete(fieldID)
	}
	if order := database.doc.Root().GetList(KeyFieldOrder); order != nil {
		if index := order.IndexOf(fieldID); index >= 0 {
			order.RemoveAt(index)
		}
	}
	return true
}

// RowOrder returns the ordered row identifiers referenced by the database.
func (database Database) RowOrder() []string {
	order := database.doc.Root().GetList(KeyRowOrder)
	if order == nil {
		return nil
	}
	values := order.Values()
	rowIDs := make([]string, 0, len(values))
	for _, value := range values {
		if rowID := AsString(value); rowID != "" {
			rowIDs = append(rowIDs, rowID)
		}
	}
	return rowIDs
}

// AppendRow adds a row id to the end of the row order.
func (database Database) AppendRow(rowID string) {
	if rowID == "" {
		return
	}
	database.doc.Root().EnsureList(KeyRowOrder).Push(rowID)
}

// MoveRow relocates a row id within the row order.
func (database Database) MoveRow(fromIndex, toIndex int) {
	if order := database.doc.Root().GetList(KeyRowOrder); order != nil {
		order.Move(fromIndex, toIndex)
	}
}

// RemoveRow drops a row id from the row order.
func (database Database) RemoveRow(rowID string) {
	order := database.doc.Root().GetList(KeyRowOrder)
	if order == nil {
		return
	}
	if index := order.IndexOf(rowID); index >= 0 {
		order.RemoveAt(index)
	}
}

func decodeField(node *shareddoc.MapNode) Field {
	rawID, _ := node.Get(KeyFieldID)
	rawName, _ := node.Get(KeyFieldName)
	rawType, _ := node.Get(KeyFieldType)
	rawPrimary, _ := node.Get(KeyFieldIsPrimary)
	field := Field{
		ID:        AsString(rawID),
		Name:      AsString(rawName),
		Type:      ParseFieldType(AsString(rawType)),
		IsPrimary: AsBool(rawPrimary),
	}
	if typeOption := node.GetMap(KeyFieldTypeOpt); typeOption != nil {
		if list := typeOption.GetList(KeyTypeOptionOptions); list != nil {
			field.Options = decodeOptions(list.Values())
		}
		rawDate, _ := typeOption.Get(KeyTypeOptionDateFormat)
		rawTime, _ := typeOption.Get(KeyTypeOptionTimeFormat)
		rawInclude, _ := typeOption.Get(KeyTypeOptionIncludeTime)
		field.DateFormat = AsString(rawDate)
		field.TimeFormat = AsString(rawTime)
		field.IncludeTime = AsBool(rawInclude)
	}
	return field
}
