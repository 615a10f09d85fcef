package dispatch

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/loomhq/loom/engine/internal/cells"
	"github.com/loomhq/loom/engine/internal/schema"
)

var (
	errMissingRowResolver = errors.New("row resolver is required")
	errMissingIDProvider  = errors.New("id provider is required")
	errMissingFieldID     = errors.New("field identifier is required")
	errMissingFieldName   = errors.New("field name is required")
	errPrimaryField       = errors.New("primary field cannot be deleted")
	noOpLogger            = zap.NewNop()
)

// DispatchError carries an operation.reason code alongside the cause, so
// every failed write is auditable by code.
type DispatchError struct {
	code string
	err  error
}

func (e *DispatchError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *DispatchError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason code.
func (e *DispatchError) Code() string {
	return e.code
}

func newDispatchError(operation, reason string, cause error) error {
	return &DispatchError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

const (
	opDispatcherNew      = "dispatch.new"
	opAddField           = "dispatch.add_field"
	opRenameField        = "dispatch.rename_field"
	opDeleteField        = "dispatch.delete_field"
	opUpdateFieldOptions = "dispatch.update_field_options"
	opUpdateDateFormat   = "dispatch.update_date_format"
	opAddRow             = "dispatch.add_row"
	opMoveRow            = "dispatch.move_row"
	opDeleteRow          = "dispatch.delete_row"
	opSetRowMeta         = "dispatch.set_row_meta"
)

// RowResolver maps a row id onto its loaded backing document. Absence means
// the row is not yet loaded; dispatch operations no-op silently in that case
// because dispatches racing the asynchronous loader are expected, not
// exceptional.
type RowResolver func(rowID string) (schema.Row, bool)

// IDProvider issues identifiers for new rows, fields, tasks and comments.
type IDProvider interface {
	NewID() (string, error)
}

// DispatcherConfig describes the inputs required to build a Dispatcher.
type DispatcherConfig struct {
	Rows       RowResolver
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Dispatcher is the only component allowed to mutate the shared documents.
// Every write is a named operation; all writes are local-first and
// synchronous, with replication handled entirely by the document substrate.
type Dispatcher struct {
	rows       RowResolver
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewDispatcher validates the configuration and returns a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Rows == nil {
		return nil, newDispatchError(opDispatcherNew, "missing_row_resolver", errMissingRowResolver)
	}
	if cfg.IDProvider == nil {
		return nil, newDispatchError(opDispatcherNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Dispatcher{
		rows:       cfg.Rows,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// resolveRow looks up a row's backing document, logging the silent no-op at
// debug level when the row has not loaded yet.
func (dispatcher *Dispatcher) resolveRow(operation, rowID string) (schema.Row, bool) {
	row, ok := dispatcher.rows(rowID)
	if !ok {
		dispatcher.logger.Debug("dispatch no-op on unloaded row",
			zap.String("operation", operation),
			zap.String("row_id", rowID))
		return schema.Row{}, false
	}
	return row, true
}

// AddField appends a new field definition to the database and returns it.
func (dispatcher *Dispatcher) AddField(database schema.Database, name string, fieldType schema.FieldType) (schema.Field, error) {
	if name == "" {
		return schema.Field{}, newDispatchError(opAddField, "missing_name", errMissingFieldName)
	}
	fieldID, err := dispatcher.idProvider.NewID()
	if err != nil {
		return schema.Field{}, newDispatchError(opAddField, "id_generation_failed", err)
	}
	field := schema.Field{ID: fieldID, Name: name, Type: fieldType}
	database.WriteField(field)
	dispatcher.logger.Info("field added",
		zap.String("operation", opAddField),
		zap.String("field_id", fieldID),
		zap.String("field_type", string(fieldType)))
	return field, nil
}

// RenameField updates a field's display name in place.
func (dispatcher *Dispatcher) RenameField(database schema.Database, fieldID, name string) error {
	if fieldID == "" {
		return newDispatchError(opRenameField, "missing_field_id", errMissingFieldID)
	}
	field, ok := database.Field(fieldID)
	if !ok {
		return nil
	}
	field.Name = name
	database.WriteField(field)
	return nil
}

// DeleteField removes a non-primary field definition.
func (dispatcher *Dispatcher) DeleteField(database schema.Database, fieldID string) error {
	field, ok := database.Field(fieldID)
	if !ok {
		return nil
	}
	if field.IsPrimary {
		return newDispatchError(opDeleteField, "primary_field", errPrimaryField)
	}
	database.DeleteField(fieldID)
	return nil
}

// UpdateFieldOptions replaces a select or checklist field's configured
// options.
func (dispatcher *Dispatcher) UpdateFieldOptions(database schema.Database, fieldID string, options []schema.SelectOption) error {
	if fieldID == "" {
		return newDispatchError(opUpdateFieldOptions, "missing_field_id", errMissingFieldID)
	}
	database.WriteFieldOptions(fieldID, options)
	return nil
}

// UpdateDateFieldFormat replaces a date field's formatting type option.
func (dispatcher *Dispatcher) UpdateDateFieldFormat(database schema.Database, fieldID string, dateFormat cells.DateFormat, timeFormat cells.TimeFormat, includeTime bool) error {
	if fieldID == "" {
		return newDispatchError(opUpdateDateFormat, "missing_field_id", errMissingFieldID)
	}
	database.WriteFieldDateFormat(fieldID, string(dateFormat), string(timeFormat), includeTime)
	return nil
}

// AddRow appends a new row id to the database's row order and returns it.
// The row's backing document is materialized lazily on first access.
func (dispatcher *Dispatcher) AddRow(database schema.Database) (string, error) {
	rowID, err := dispatcher.idProvider.NewID()
	if err != nil {
		return "", newDispatchError(opAddRow, "id_generation_failed", err)
	}
	database.AppendRow(rowID)
	dispatcher.logger.Info("row added",
		zap.String("operation", opAddRow),
		zap.String("row_id", rowID))
	return rowID, nil
}

// MoveRow reorders the database's row order.
func (dispatcher *Dispatcher) MoveRow(database schema.Database, fromIndex, toIndex int) {
	database.MoveRow(fromIndex, toIndex)
}

// DeleteRow removes a row id from the database's row order. The backing
// document is left to the store's garbage collection.
func (dispatcher *Dispatcher) DeleteRow(database schema.Database, rowID string) {
	database.RemoveRow(rowID)
	dispatcher.logger.Info("row removed",
		zap.String("operation", opDeleteRow),
		zap.String("row_id", rowID))
}

// SetRowMeta writes one entry of a row's side metadata map (icon, cover,
// linked sub-document id).
func (dispatcher *Dispatcher) SetRowMeta(rowID, key, value string) {
	row, ok := dispatcher.resolveRow(opSetRowMeta, rowID)
	if !ok {
		return
	}
	row.Meta().Set(key, value)
	row.Touch(dispatcher.clock())
}
