package query

import (
	"testing"
	"time"

	"github.com/loomhq/loom/engine/internal/schema"
	"github.com/loomhq/loom/engine/internal/shareddoc"
)

// testRows builds an in-memory row set and a lookup over it. Rows are written
// through the same document wrappers production code reads through.
type testRows struct {
	rows map[string]schema.Row
}

func newTestRows() *testRows {
	return &testRows{rows: make(map[string]schema.Row)}
}

func (fixture *testRows) lookup(rowID string) (schema.Row, bool) {
	row, ok := fixture.rows[rowID]
	return row, ok
}

func (fixture *testRows) addRow(testContext *testing.T, rowID string, cellData map[string]any) schema.Row {
	testContext.Helper()
	document, err := shareddoc.NewDocument(shareddoc.DocumentConfig{
		ActorID: "test-actor",
		Clock: func() time.Time {
			return time.Unix(1700000000, 0).UTC()
		},
	})
	if err != nil {
		testContext.Fatalf("failed to create row document: %v", err)
	}
	row := schema.InitRow(document, rowID, "db-1", time.Unix(1700000000, 0).UTC())
	for fieldID, data := range cellData {
		cell := row.EnsureCell(fieldID, schema.FieldTypeRichText, time.Unix(1700000000, 0).UTC())
		cell.Set(schema.KeyCellData, data)
	}
	fixture.rows[rowID] = row
	return row
}
