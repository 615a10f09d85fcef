package workspace

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/loomhq/loom/engine/internal/cells"
	"github.com/loomhq/loom/engine/internal/loader"
	"github.com/loomhq/loom/engine/internal/query"
	"github.com/loomhq/loom/engine/internal/rowstore"
	"github.com/loomhq/loom/engine/internal/schema"
	"github.com/loomhq/loom/engine/internal/shareddoc"
)

// memoryStore is a minimal in-memory snapshot store for workspace tests.
type memoryStore struct {
	mu        sync.Mutex
	snapshots map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{snapshots: make(map[string]string)}
}

func (store *memoryStore) Fetch(ctx context.Context, rowID string) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	payload, ok := store.snapshots[rowID]
	if !ok {
		return "", rowstore.ErrSnapshotNotFound
	}
	return payload, nil
}

func (store *memoryStore) Save(ctx context.Context, rowID, payloadJSON string, updatedAtSeconds int64) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.snapshots[rowID] = payloadJSON
	return nil
}

type workspaceFixture struct {
	workspace *Workspace
	database  schema.Database
	store     *memoryStore
	now       time.Time
}

func newWorkspaceFixture(testContext *testing.T) *workspaceFixture {
	testContext.Helper()
	fixture := &workspaceFixture{
		store: newMemoryStore(),
		now:   time.Unix(1700000000, 0).UTC(),
	}

	document, err := shareddoc.NewDocument(shareddoc.DocumentConfig{
		ActorID: "test-actor",
		Clock:   func() time.Time { return fixture.now },
	})
	if err != nil {
		testContext.Fatalf("failed to create document: %v", err)
	}
	fixture.database = schema.NewDatabase(document)
	fixture.database.SetID("db-1")

	rowLoader, err := loader.NewLoader(loader.LoaderConfig{
		Store:       fixture.store,
		Clock:       func() time.Time { return fixture.now },
		RetryCount:  1,
		BackoffStep: time.Millisecond,
	})
	if err != nil {
		testContext.Fatalf("failed to create loader: %v", err)
	}

	engineWorkspace, err := New(Config{
		Database: fixture.database,
		Loader:   rowLoader,
	})
	if err != nil {
		testContext.Fatalf("failed to create workspace: %v", err)
	}
	fixture.workspace = engineWorkspace
	return fixture
}

// seedRow persists a snapshot with the given cell payloads and registers the
// row in the database's order.
func (fixture *workspaceFixture) seedRow(testContext *testing.T, rowID string, cellData map[string]string) {
	testContext.Helper()
	document, err := shareddoc.NewDocument(shareddoc.DocumentConfig{
		ActorID: "seed-actor",
		Clock:   func() time.Time { return fixture.now },
	})
	if err != nil {
		testContext.Fatalf("failed to create document: %v", err)
	}
	row := schema.InitRow(document, rowID, "db-1", fixture.now)
	for fieldID, data := range cellData {
		cell := row.EnsureCell(fieldID, schema.FieldTypeRichText, fixture.now)
		cell.Set(schema.KeyCellData, data)
	}
	payload, err := loader.EncodeRowSnapshot(row)
	if err != nil {
		testContext.Fatalf("failed to encode snapshot: %v", err)
	}
	fixture.store.snapshots[rowID] = payload
	fixture.database.AppendRow(rowID)
}

func TestNewRequiresLoader(testContext *testing.T) {
	if _, err := New(Config{}); err == nil {
		testContext.Fatalf("expected missing loader to fail")
	}
}

func TestEnsureRowLoadsAndCaches(testContext *testing.T) {
	fixture := newWorkspaceFixture(testContext)
	fixture.seedRow(testContext, "row-1", map[string]string{"field-title": "hello"})

	if _, loaded := fixture.workspace.LookupRow("row-1"); loaded {
		testContext.Fatalf("expected row absent before loading")
	}

	row, err := fixture.workspace.EnsureRow(context.Background(), "row-1")
	if err != nil {
		testContext.Fatalf("unexpected error: %v", err)
	}
	if row.ID() != "row-1" {
		testContext.Fatalf("unexpected row: %q", row.ID())
	}

	if _, loaded := fixture.workspace.LookupRow("row-1"); !loaded {
		testContext.Fatalf("expected row cached after loading")
	}
}

func TestEnsureRowMaterializesUnknownRow(testContext *testing.T) {
	fixture := newWorkspaceFixture(testContext)

	row, err := fixture.workspace.EnsureRow(context.Background(), "row-new")
	if err != nil {
		testContext.Fatalf("unexpected error: %v", err)
	}
	if row.DatabaseID() != "db-1" {
		testContext.Fatalf("expected materialized row bound to the database, got %q", row.DatabaseID())
	}
}

func TestLoadAllRows(testContext *testing.T) {
	fixture := newWorkspaceFixture(testContext)
	fixture.seedRow(testContext, "row-1", map[string]string{"field-title": "a"})
	fixture.seedRow(testContext, "row-2", map[string]string{"field-title": "b"})

	fixture.workspace.LoadAllRows(context.Background())

	for _, rowID := range []string{"row-1", "row-2"} {
		if _, loaded := fixture.workspace.LookupRow(rowID); !loaded {
			testContext.Fatalf("expected %s loaded", rowID)
		}
	}
}

func TestVisibleRowsFiltersAndSorts(testContext *testing.T) {
	fixture := newWorkspaceFixture(testContext)
	fixture.database.WriteField(schema.Field{ID: "field-title", Name: "Title", Type: schema.FieldTypeRichText, IsPrimary: true})
	fixture.seedRow(testContext, "row-b", map[string]string{"field-title": "banana"})
	fixture.seedRow(testContext, "row-skip", map[string]string{"field-title": "skip me"})
	fixture.seedRow(testContext, "row-a", map[string]string{"field-title": "apple"})
	fixture.workspace.LoadAllRows(context.Background())

	view := schema.View{
		ID:             "view-1",
		FilterOperator: schema.FilterOperatorAnd,
		Filters: []schema.Filter{
			{FieldID: "field-title", Condition: query.TextDoesNotContain, Content: "skip"},
		},
		Sorts: []schema.Sort{
			{FieldID: "field-title", Condition: schema.SortAscending},
		},
	}

	got := fixture.workspace.VisibleRows(view)
	want := []string{"row-a", "row-b"}
	if !reflect.DeepEqual(got, want) {
		testContext.Fatalf("expected %v, got %v", want, got)
	}
}

func TestGroupRowsDispatchesOnFieldType(testContext *testing.T) {
	fixture := newWorkspaceFixture(testContext)
	fixture.database.WriteField(schema.Field{
		ID:   "field-status",
		Name: "Status",
		Type: schema.FieldTypeSingleSelect,
		Options: []schema.SelectOption{
			{ID: "opt-a", Name: "Todo"},
		},
	})
	fixture.seedRow(testContext, "row-1", map[string]string{"field-status": "opt-a"})
	fixture.seedRow(testContext, "row-2", nil)
	fixture.workspace.LoadAllRows(context.Background())

	view := schema.View{ID: "view-1", GroupFieldID: "field-status", FilterOperator: schema.FilterOperatorAnd}
	buckets := fixture.workspace.GroupRows(view)

	if !reflect.DeepEqual(buckets["opt-a"], []string{"row-1"}) {
		testContext.Fatalf("unexpected opt-a bucket: %v", buckets["opt-a"])
	}
	if !reflect.DeepEqual(buckets["field-status"], []string{"row-2"}) {
		testContext.Fatalf("expected no-selection bucket, got %v", buckets)
	}
}

func TestGroupRowsUnknownFieldYieldsEmpty(testContext *testing.T) {
	fixture := newWorkspaceFixture(testContext)
	view := schema.View{ID: "view-1", GroupFieldID: "field-gone"}
	if buckets := fixture.workspace.GroupRows(view); len(buckets) != 0 {
		testContext.Fatalf("expected empty buckets, got %v", buckets)
	}
}

func TestGroupRowsUngroupableFieldYieldsEmpty(testContext *testing.T) {
	fixture := newWorkspaceFixture(testContext)
	fixture.database.WriteField(schema.Field{ID: "field-title", Name: "Title", Type: schema.FieldTypeRichText})
	view := schema.View{ID: "view-1", GroupFieldID: "field-title"}
	if buckets := fixture.workspace.GroupRows(view); len(buckets) != 0 {
		testContext.Fatalf("expected text fields not to group, got %v", buckets)
	}
}

func TestRelatedRowTitles(testContext *testing.T) {
	fixture := newWorkspaceFixture(testContext)
	fixture.database.WriteField(schema.Field{ID: "field-title", Name: "Title", Type: schema.FieldTypeRichText, IsPrimary: true})
	fixture.seedRow(testContext, "row-1", map[string]string{"field-title": "First"})
	fixture.seedRow(testContext, "row-2", map[string]string{"field-title": "Second"})
	fixture.workspace.LoadAllRows(context.Background())

	titles := fixture.workspace.RelatedRowTitles(cells.RelationValue{RowIDs: []string{"row-1", "row-ghost", "row-2"}})
	want := []string{"First", "Second"}
	if !reflect.DeepEqual(titles, want) {
		testContext.Fatalf("expected %v, got %v", want, titles)
	}
}

func TestRelatedRowTitlesWithoutPrimaryField(testContext *testing.T) {
	fixture := newWorkspaceFixture(testContext)
	if titles := fixture.workspace.RelatedRowTitles(cells.RelationValue{RowIDs: []string{"row-1"}}); titles != nil {
		testContext.Fatalf("expected nil without a primary field, got %v", titles)
	}
}

func TestRelatedViewMetaDegradesToNoAccess(testContext *testing.T) {
	fixture := newWorkspaceFixture(testContext)

	// No loader wired at all.
	if _, ok := fixture.workspace.RelatedViewMeta("view-1"); ok {
		testContext.Fatalf("expected no access without a view meta loader")
	}

	store := newMemoryStore()
	rowLoader, err := loader.NewLoader(loader.LoaderConfig{Store: store})
	if err != nil {
		testContext.Fatalf("failed to create loader: %v", err)
	}
	withViews, err := New(Config{
		Database: fixture.database,
		Loader:   rowLoader,
		ViewMetas: func(viewID string) (ViewMeta, error) {
			if viewID == "view-known" {
				return ViewMeta{ViewID: viewID, DatabaseID: "db-2"}, nil
			}
			return ViewMeta{}, errors.New("forbidden")
		},
	})
	if err != nil {
		testContext.Fatalf("failed to create workspace: %v", err)
	}

	meta, ok := withViews.RelatedViewMeta("view-known")
	if !ok || meta.DatabaseID != "db-2" {
		testContext.Fatalf("expected resolved metadata, got %+v", meta)
	}
	if _, ok := withViews.RelatedViewMeta("view-secret"); ok {
		testContext.Fatalf("expected lookup failure to read as no access")
	}
}
