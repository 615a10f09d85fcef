package query

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/loomhq/loom/engine/internal/cells"
	"github.com/loomhq/loom/engine/internal/schema"
)

// RowLookup resolves a row id to its loaded backing document. Absence means
// "not yet loaded" and must never be treated as an error; the query layer
// degrades by substituting per-type defaults instead.
type RowLookup func(rowID string) (schema.Row, bool)

type sortKeyKind int

const (
	sortKeyText sortKeyKind = iota
	sortKeyNumber
	sortKeyBool
)

// sortKey is one comparable value of a row under one sort entry. A missing
// key (row unloaded, cell never written) sorts after every present key in
// both directions; a missing checkbox resolves to false instead.
type sortKey struct {
	missing bool
	kind    sortKeyKind
	text    string
	number  float64
	boolean bool
}

// SortRows orders rowIDs by the view's sort entries: multi-key, stable,
// left-to-right with ties preserving input order. Locale-aware numeric
// collation orders "2" before "10" and "apple" before "Banana". With no
// sorts, rows, or fields the input is returned untouched.
func SortRows(rowIDs []string, sorts []schema.Sort, fields []schema.Field, lookup RowLookup) []string {
	if len(sorts) == 0 || len(rowIDs) == 0 || len(fields) == 0 {
		return rowIDs
	}

	fieldByID := make(map[string]schema.Field, len(fields))
	for _, field := range fields {
		fieldByID[field.ID] = field
	}

	activeSorts := make([]schema.Sort, 0, len(sorts))
	for _, entry := range sorts {
		if _, ok := fieldByID[entry.FieldID]; ok {
			activeSorts = append(activeSorts, entry)
		}
	}
	if len(activeSorts) == 0 {
		return rowIDs
	}

	keys := make([][]sortKey, len(rowIDs))
	for index, rowID := range rowIDs {
		row, loaded := lookup(rowID)
		rowKeys := make([]sortKey, len(activeSorts))
		for sortIndex, entry := range activeSorts {
			rowKeys[sortIndex] = computeSortKey(row, loaded, fieldByID[entry.FieldID])
		}
		keys[index] = rowKeys
	}

	collator := collate.New(language.Und, collate.Numeric, collate.IgnoreCase)
	order := make([]int, len(rowIDs))
	for index := range order {
		order[index] = index
	}
	sort.SliceStable(order, func(left, right int) bool {
		for sortIndex, entry := range activeSorts {
			result := compareKeys(collator, keys[order[left]][sortIndex], keys[order[right]][sortIndex], entry.Condition)
			if result != 0 {
				return result < 0
			}
		}
		return false
	})

	sorted := make([]string, len(rowIDs))
	for index, position := range order {
		sorted[index] = rowIDs[position]
	}
	return sorted
}

func computeSortKey(row schema.Row, loaded bool, field schema.Field) sortKey {
	switch field.Type {
	case schema.FieldTypeCreatedTime:
		if !loaded {
			return sortKey{missing: true, kind: sortKeyNumber}
		}
		return sortKey{kind: sortKeyNumber, number: float64(row.CreatedAt())}
	case schema.FieldTypeLastEditedTime:
		if !loaded {
			return sortKey{missing: true, kind: sortKeyNumber}
		}
		return sortKey{kind: sortKeyNumber, number: float64(row.LastModified())}
	}

	var cellPresent bool
	var value cells.Value
	if loaded {
		if cell := row.Cell(field.ID); cell != nil {
			cellPresent = true
			value = cells.Decode(field.Type, schema.CellData(cell))
		}
	}

	switch field.Type {
	case schema.FieldTypeNumber:
		if !cellPresent {
			return sortKey{missing: true, kind: sortKeyNumber}
		}
		return sortKey{kind: sortKeyNumber, number: value.(cells.NumberValue).Float()}
	case schema.FieldTypeDateTime:
		if !cellPresent {
			return sortKey{missing: true, kind: sortKeyNumber}
		}
		return sortKey{kind: sortKeyNumber, number: float64(value.(cells.DateValue).Timestamp)}
	case schema.FieldTypeChecklist:
		if !cellPresent {
			return sortKey{missing: true, kind: sortKeyNumber}
		}
		return sortKey{kind: sortKeyNumber, number: value.(cells.ChecklistValue).Data.Percentage()}
	case schema.FieldTypeCheckbox:
		if !cellPresent {
			return sortKey{kind: sortKeyBool}
		}
		return sortKey{kind: sortKeyBool, boolean: value.(cells.CheckboxValue).Checked}
	default:
		if !cellPresent {
			return sortKey{missing: true, kind: sortKeyText}
		}
		return sortKey{kind: sortKeyText, text: cells.DisplayText(value, field)}
	}
}

// compareKeys returns a negative, zero, or positive ordering for two keys.
// Missing keys order after present keys in both directions.
func compareKeys(collator *collate.Collator, left, right sortKey, condition schema.SortCondition) int {
	if left.missing != right.missing {
		if left.missing {
			return 1
		}
		return -1
	}
	if left.missing {
		return 0
	}

	var result int
	switch left.kind {
	case sortKeyText:
		result = collator.CompareString(left.text, right.text)
	case sortKeyNumber:
		switch {
		case left.number < right.number:
			result = -1
		case left.number > right.number:
			result = 1
		}
	case sortKeyBool:
		switch {
		case !left.boolean && right.boolean:
			result = -1
		case left.boolean && !right.boolean:
			result = 1
		}
	}
	if condition == schema.SortDescending {
		result = -result
	}
	return result
}
