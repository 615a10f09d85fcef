package query

import (
	"reflect"
	"testing"

	"github.com/loomhq/loom/engine/internal/schema"
)

func TestSortRowsNoSortsReturnsInput(testContext *testing.T) {
	fixture := newTestRows()
	fixture.addRow(testContext, "row-1", map[string]any{"field-title": "b"})
	fixture.addRow(testContext, "row-2", map[string]any{"field-title": "a"})

	input := []string{"row-1", "row-2"}
	got := SortRows(input, nil, []schema.Field{{ID: "field-title", Type: schema.FieldTypeRichText}}, fixture.lookup)
	if !reflect.DeepEqual(got, input) {
		testContext.Fatalf("expected input order untouched, got %v", got)
	}
}

func TestSortRowsLocaleCaseInsensitive(testContext *testing.T) {
	fixture := newTestRows()
	fixture.addRow(testContext, "row-banana", map[string]any{"field-title": "Banana"})
	fixture.addRow(testContext, "row-apple", map[string]any{"field-title": "apple"})
	fixture.addRow(testContext, "row-cherry", map[string]any{"field-title": "Cherry"})

	fields := []schema.Field{{ID: "field-title", Type: schema.FieldTypeRichText}}
	sorts := []schema.Sort{{FieldID: "field-title", Condition: schema.SortAscending}}

	got := SortRows([]string{"row-banana", "row-apple", "row-cherry"}, sorts, fields, fixture.lookup)
	want := []string{"row-apple", "row-banana", "row-cherry"}
	if !reflect.DeepEqual(got, want) {
		testContext.Fatalf("expected case-insensitive order %v, got %v", want, got)
	}
}

func TestSortRowsNumericCollation(testContext *testing.T) {
	fixture := newTestRows()
	fixture.addRow(testContext, "row-10", map[string]any{"field-title": "item 10"})
	fixture.addRow(testContext, "row-2", map[string]any{"field-title": "item 2"})

	fields := []schema.Field{{ID: "field-title", Type: schema.FieldTypeRichText}}
	sorts := []schema.Sort{{FieldID: "field-title", Condition: schema.SortAscending}}

	got := SortRows([]string{"row-10", "row-2"}, sorts, fields, fixture.lookup)
	if got[0] != "row-2" {
		testContext.Fatalf("expected numeric-aware ordering, got %v", got)
	}
}

func TestSortRowsMissingSortsLastBothDirections(testContext *testing.T) {
	fixture := newTestRows()
	fixture.addRow(testContext, "row-present", map[string]any{"field-title": "zzz"})
	fixture.addRow(testContext, "row-missing", nil)

	fields := []schema.Field{{ID: "field-title", Type: schema.FieldTypeRichText}}

	ascending := SortRows([]string{"row-missing", "row-present"},
		[]schema.Sort{{FieldID: "field-title", Condition: schema.SortAscending}}, fields, fixture.lookup)
	if ascending[1] != "row-missing" {
		testContext.Fatalf("expected missing cell last ascending, got %v", ascending)
	}

	descending := SortRows([]string{"row-missing", "row-present"},
		[]schema.Sort{{FieldID: "field-title", Condition: schema.SortDescending}}, fields, fixture.lookup)
	if descending[1] != "row-missing" {
		testContext.Fatalf("expected missing cell last descending too, got %v", descending)
	}
}

func TestSortRowsUnloadedRowSortsLast(testContext *testing.T) {
	fixture := newTestRows()
	fixture.addRow(testContext, "row-loaded", map[string]any{"field-title": "a"})

	fields := []schema.Field{{ID: "field-title", Type: schema.FieldTypeRichText}}
	sorts := []schema.Sort{{FieldID: "field-title", Condition: schema.SortAscending}}

	got := SortRows([]string{"row-ghost", "row-loaded"}, sorts, fields, fixture.lookup)
	if got[0] != "row-loaded" || got[1] != "row-ghost" {
		testContext.Fatalf("expected unloaded row last, got %v", got)
	}
}

func TestSortRowsMissingCheckboxIsFalse(testContext *testing.T) {
	fixture := newTestRows()
	fixture.addRow(testContext, "row-checked", map[string]any{"field-done": true})
	fixture.addRow(testContext, "row-unset", nil)

	fields := []schema.Field{{ID: "field-done", Type: schema.FieldTypeCheckbox}}
	sorts := []schema.Sort{{FieldID: "field-done", Condition: schema.SortDescending}}

	// Descending puts checked first; the unset checkbox counts as false, not
	// as missing, so it participates instead of dropping to the tail rule.
	got := SortRows([]string{"row-unset", "row-checked"}, sorts, fields, fixture.lookup)
	if got[0] != "row-checked" {
		testContext.Fatalf("expected checked row first descending, got %v", got)
	}
}

func TestSortRowsNumberField(testContext *testing.T) {
	fixture := newTestRows()
	fixture.addRow(testContext, "row-a", map[string]any{"field-score": "10"})
	fixture.addRow(testContext, "row-b", map[string]any{"field-score": "2"})
	fixture.addRow(testContext, "row-c", map[string]any{"field-score": "2.5"})

	fields := []schema.Field{{ID: "field-score", Type: schema.FieldTypeNumber}}
	sorts := []schema.Sort{{FieldID: "field-score", Condition: schema.SortAscending}}

	got := SortRows([]string{"row-a", "row-b", "row-c"}, sorts, fields, fixture.lookup)
	want := []string{"row-b", "row-c", "row-a"}
	if !reflect.DeepEqual(got, want) {
		testContext.Fatalf("expected numeric order %v, got %v", want, got)
	}
}

func TestSortRowsMultiKeyTieBreak(testContext *testing.T) {
	fixture := newTestRows()
	fixture.addRow(testContext, "row-1", map[string]any{"field-group": "a", "field-score": "2"})
	fixture.addRow(testContext, "row-2", map[string]any{"field-group": "a", "field-score": "1"})
	fixture.addRow(testContext, "row-3", map[string]any{"field-group": "b", "field-score": "0"})

	fields := []schema.Field{
		{ID: "field-group", Type: schema.FieldTypeRichText},
		{ID: "field-score", Type: schema.FieldTypeNumber},
	}
	sorts := []schema.Sort{
		{FieldID: "field-group", Condition: schema.SortAscending},
		{FieldID: "field-score", Condition: schema.SortAscending},
	}

	got := SortRows([]string{"row-1", "row-2", "row-3"}, sorts, fields, fixture.lookup)
	want := []string{"row-2", "row-1", "row-3"}
	if !reflect.DeepEqual(got, want) {
		testContext.Fatalf("expected multi-key order %v, got %v", want, got)
	}
}

func TestSortRowsStableOnTies(testContext *testing.T) {
	fixture := newTestRows()
	fixture.addRow(testContext, "row-1", map[string]any{"field-group": "same"})
	fixture.addRow(testContext, "row-2", map[string]any{"field-group": "same"})
	fixture.addRow(testContext, "row-3", map[string]any{"field-group": "same"})

	fields := []schema.Field{{ID: "field-group", Type: schema.FieldTypeRichText}}
	sorts := []schema.Sort{{FieldID: "field-group", Condition: schema.SortAscending}}

	input := []string{"row-2", "row-3", "row-1"}
	got := SortRows(input, sorts, fields, fixture.lookup)
	if !reflect.DeepEqual(got, input) {
		testContext.Fatalf("expected ties to keep input order, got %v", got)
	}
}

func TestSortRowsIgnoresSortsOnUnknownFields(testContext *testing.T) {
	fixture := newTestRows()
	fixture.addRow(testContext, "row-1", map[string]any{"field-title": "b"})
	fixture.addRow(testContext, "row-2", map[string]any{"field-title": "a"})

	fields := []schema.Field{{ID: "field-title", Type: schema.FieldTypeRichText}}
	sorts := []schema.Sort{{FieldID: "field-deleted", Condition: schema.SortAscending}}

	input := []string{"row-1", "row-2"}
	got := SortRows(input, sorts, fields, fixture.lookup)
	if !reflect.DeepEqual(got, input) {
		testContext.Fatalf("expected sort on deleted field to be a no-op, got %v", got)
	}
}

func TestSortRowsChecklistByPercentage(testContext *testing.T) {
	fixture := newTestRows()
	fixture.addRow(testContext, "row-half", map[string]any{
		"field-tasks": `{"options":[{"id":"t1","name":"a"},{"id":"t2","name":"b"}],"selected_option_ids":["t1"]}`,
	})
	fixture.addRow(testContext, "row-done", map[string]any{
		"field-tasks": `{"options":[{"id":"t1","name":"a"}],"selected_option_ids":["t1"]}`,
	})
	fixture.addRow(testContext, "row-none", map[string]any{
		"field-tasks": `{"options":[{"id":"t1","name":"a"}],"selected_option_ids":[]}`,
	})

	fields := []schema.Field{{ID: "field-tasks", Type: schema.FieldTypeChecklist}}
	sorts := []schema.Sort{{FieldID: "field-tasks", Condition: schema.SortAscending}}

	got := SortRows([]string{"row-half", "row-done", "row-none"}, sorts, fields, fixture.lookup)
	want := []string{"row-none", "row-half", "row-done"}
	if !reflect.DeepEqual(got, want) {
		testContext.Fatalf("expected completion order %v, got %v", want, got)
	}
}
