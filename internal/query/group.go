package query

import (
	"github.com/loomhq/loom/engine/internal/cells"
	"github.com/loomhq/loom/engine/internal/schema"
)

// Group bucket names for checkbox fields.
const (
	GroupBucketYes = "Yes"
	GroupBucketNo  = "No"
)

// GroupColumn is one derived bucket of a grouped view. Groups are computed,
// never persisted as rows.
type GroupColumn struct {
	ID   string
	Name string
}

// GroupColumns returns the bucket list for a grouping field after removing
// buckets excluded by filters that target the field. For select fields the
// final column is the no-selection bucket, keyed by the field id itself; for
// checkbox fields the buckets are the fixed Yes/No pair.
func GroupColumns(field schema.Field, filters []schema.Filter) []GroupColumn {
	if field.Type == schema.FieldTypeCheckbox {
		columns := make([]GroupColumn, 0, 2)
		for _, name := range []string{GroupBucketYes, GroupBucketNo} {
			if checkboxBucketAllowed(name, field, filters) {
				columns = append(columns, GroupColumn{ID: name, Name: name})
			}
		}
		return columns
	}

	columns := make([]GroupColumn, 0, len(field.Options)+1)
	for _, option := range field.Options {
		if selectBucketAllowed([]string{option.ID}, field, filters) {
			columns = append(columns, GroupColumn{ID: option.ID, Name: option.Name})
		}
	}
	if selectBucketAllowed(nil, field, filters) {
		columns = append(columns, GroupColumn{ID: field.ID, Name: field.Name})
	}
	return columns
}

// GroupBySelectOption buckets rows by their selected option ids. A row fans
// out into every bucket of a selected option; a row with no selection lands
// in the field-id bucket. Buckets excluded by a filter on the grouping field
// are omitted from the result map entirely, and fan-out into an omitted
// bucket is skipped. Unloaded rows appear in no bucket.
func GroupBySelectOption(rowIDs []string, field schema.Field, filters []schema.Filter, operator schema.FilterOperator, fields []schema.Field, lookup RowLookup) map[string][]string {
	buckets := make(map[string][]string)
	for _, option := range field.Options {
		if selectBucketAllowed([]string{option.ID}, field, filters) {
			buckets[option.ID] = []string{}
		}
	}
	noSelectionAllowed := selectBucketAllowed(nil, field, filters)
	if noSelectionAllowed {
		buckets[field.ID] = []string{}
	}

	for _, rowID := range rowIDs {
		row, loaded := lookup(rowID)
		if !loaded {
			continue
		}
		if !RowMatchesFilters(row, true, filters, operator, fields) {
			continue
		}
		value := cells.DecodeCell(row, field)
		selectValue, ok := value.(cells.SelectValue)
		if !ok {
			continue
		}
		placed := false
		for _, optionID := range selectValue.SelectedOptionIDs {
			if _, allowed := buckets[optionID]; allowed {
				buckets[optionID] = append(buckets[optionID], rowID)
				placed = true
			}
		}
		if !placed && len(selectValue.SelectedOptionIDs) == 0 && noSelectionAllowed {
			buckets[field.ID] = append(buckets[field.ID], rowID)
		}
	}
	return buckets
}

// GroupByCheckbox partitions rows into the fixed Yes/No buckets, minus any
// bucket excluded by a checkbox filter on the grouping field.
func GroupByCheckbox(rowIDs []string, field schema.Field, filters []schema.Filter, operator schema.FilterOperator, fields []schema.Field, lookup RowLookup) map[string][]string {
	buckets := make(map[string][]string)
	for _, name := range []string{GroupBucketYes, GroupBucketNo} {
		if checkboxBucketAllowed(name, field, filters) {
			buckets[name] = []string{}
		}
	}

	for _, rowID := range rowIDs {
		row, loaded := lookup(rowID)
		if !loaded {
			continue
		}
		if !RowMatchesFilters(row, true, filters, operator, fields) {
			continue
		}
		value := cells.DecodeCell(row, field)
		checkboxValue, ok := value.(cells.CheckboxValue)
		if !ok {
			continue
		}
		name := GroupBucketNo
		if checkboxValue.Checked {
			name = GroupBucketYes
		}
		if _, allowed := buckets[name]; allowed {
			buckets[name] = append(buckets[name], rowID)
		}
	}
	return buckets
}

// selectBucketAllowed tests a bucket's synthetic selection against every
// filter targeting the grouping field; a bucket survives only when all of
// them pass.
func selectBucketAllowed(selectedIDs []string, field schema.Field, filters []schema.Filter) bool {
	for _, filter := range filters {
		if filter.FieldID != field.ID {
			continue
		}
		if !matchSelect(selectedIDs, filter) {
			return false
		}
	}
	return true
}

func checkboxBucketAllowed(name string, field schema.Field, filters []schema.Filter) bool {
	checked := name == GroupBucketYes
	for _, filter := range filters {
		if filter.FieldID != field.ID {
			continue
		}
		if !matchCheckbox(cells.CheckboxValue{Checked: checked}, filter.Condition) {
			return false
		}
	}
	return true
}
