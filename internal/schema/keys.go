package schema

// Canonical key vocabulary for the database and row documents. Every reader
// and writer in the engine goes through these constants; nothing else may
// address the shared document by literal key.
const (
	KeyDatabaseID = "database_id"
	KeyFields     = "fields"
	KeyFieldOrder = "field_order"
	KeyViews      = "views"
	KeyRowOrder   = "row_order"

	KeyFieldID        = "id"
	KeyFieldName      = "name"
	KeyFieldType      = "type"
	KeyFieldTypeOpt   = "type_option"
	KeyFieldIsPrimary = "is_primary"

	KeyTypeOptionOptions     = "options"
	KeyTypeOptionDateFormat  = "date_format"
	KeyTypeOptionTimeFormat  = "time_format"
	KeyTypeOptionIncludeTime = "include_time"

	KeyViewID            = "id"
	KeyViewName          = "name"
	KeyViewLayout        = "layout"
	KeyViewFieldSettings = "field_settings"
	KeyViewFilters       = "filters"
	KeyViewFilterOp      = "filter_operator"
	KeyViewSorts         = "sorts"
	KeyViewGroupField    = "group_field_id"

	KeyRowID           = "id"
	KeyRowDatabaseID   = "database_id"
	KeyRowVisibility   = "visibility"
	KeyRowHeight       = "height"
	KeyRowCreatedAt    = "created_at"
	KeyRowLastModified = "last_modified"
	KeyRowCells        = "cells"
	KeyRowMeta         = "meta"
	KeyRowComments     = "comments"

	KeyMetaIcon       = "icon"
	KeyMetaCover      = "cover"
	KeyMetaDocumentID = "document_id"

	KeyCellCreatedAt    = "created_at"
	KeyCellLastModified = "last_modified"
	KeyCellFieldType    = "field_type"
	KeyCellData         = "data"
)

// ViewLayout enumerates the supported view arrangements.
type ViewLayout string

const (
	ViewLayoutGrid     ViewLayout = "Grid"
	ViewLayoutBoard    ViewLayout = "Board"
	ViewLayoutCalendar ViewLayout = "Calendar"
)

// FilterOperator composes a view's filters.
type FilterOperator string

const (
	FilterOperatorAnd FilterOperator = "And"
	FilterOperatorOr  FilterOperator = "Or"
)

// SortCondition is the direction of a sort key.
type SortCondition string

const (
	SortAscending  SortCondition = "Ascending"
	SortDescending SortCondition = "Descending"
)
