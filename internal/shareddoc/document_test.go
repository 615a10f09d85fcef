package shareddoc

import (
	"testing"
	"time"
)

func mustDocument(testContext *testing.T, actorID string) *Document {
	testContext.Helper()
	document, err := NewDocument(DocumentConfig{
		ActorID: actorID,
		Clock: func() time.Time {
			return time.Unix(1700000000, 0).UTC()
		},
	})
	if err != nil {
		testContext.Fatalf("failed to create document: %v", err)
	}
	return document
}

func TestNewDocumentGeneratesActorID(testContext *testing.T) {
	document, err := NewDocument(DocumentConfig{})
	if err != nil {
		testContext.Fatalf("failed to create document: %v", err)
	}
	if document.ActorID() == "" {
		testContext.Fatalf("expected generated actor id")
	}
}

func TestMapSetAndGet(testContext *testing.T) {
	document := mustDocument(testContext, "actor-a")
	document.Root().Set("title", "hello")

	value, ok := document.Root().Get("title")
	if !ok {
		testContext.Fatalf("expected value under title")
	}
	if value != "hello" {
		testContext.Fatalf("expected hello, got %v", value)
	}
}

func TestMergeValueLastWriterWins(testContext *testing.T) {
	document := mustDocument(testContext, "actor-a")
	document.Root().MergeValue("title", "older", 100, "actor-b")
	document.Root().MergeValue("title", "newer", 200, "actor-c")
	document.Root().MergeValue("title", "stale", 150, "actor-d")

	value, _ := document.Root().Get("title")
	if value != "newer" {
		testContext.Fatalf("expected newest write to win, got %v", value)
	}
}

func TestMergeValueTiesBreakOnActorID(testContext *testing.T) {
	document := mustDocument(testContext, "actor-a")
	document.Root().MergeValue("title", "from-b", 100, "actor-b")
	document.Root().MergeValue("title", "from-z", 100, "actor-z")
	document.Root().MergeValue("title", "from-c", 100, "actor-c")

	value, _ := document.Root().Get("title")
	if value != "from-z" {
		testContext.Fatalf("expected lexically greater actor to win ties, got %v", value)
	}
}

func TestObserveFiresOnDeepChange(testContext *testing.T) {
	document := mustDocument(testContext, "actor-a")
	nested := document.Root().EnsureMap("cells")

	notifications := 0
	subscription := document.Observe(func() {
		notifications++
	})
	defer subscription.Close()

	nested.Set("field-1", "value")
	if notifications != 1 {
		testContext.Fatalf("expected one notification, got %d", notifications)
	}
}

func TestSubscriptionCloseStopsNotifications(testContext *testing.T) {
	document := mustDocument(testContext, "actor-a")

	notifications := 0
	subscription := document.Observe(func() {
		notifications++
	})
	subscription.Close()
	subscription.Close()

	document.Root().Set("title", "hello")
	if notifications != 0 {
		testContext.Fatalf("expected no notifications after close, got %d", notifications)
	}
}

func TestListOperations(testContext *testing.T) {
	document := mustDocument(testContext, "actor-a")
	list := document.Root().EnsureList("row_order")

	list.Push("a")
	list.Push("b")
	list.Push("c")
	list.Move(0, 2)

	values := list.Values()
	if len(values) != 3 {
		testContext.Fatalf("expected 3 values, got %d", len(values))
	}
	if values[0] != "b" || values[1] != "c" || values[2] != "a" {
		testContext.Fatalf("unexpected order after move: %v", values)
	}

	if index := list.IndexOf("c"); index != 1 {
		testContext.Fatalf("expected index 1 for c, got %d", index)
	}

	list.RemoveAt(1)
	if list.Len() != 2 {
		testContext.Fatalf("expected 2 values after removal, got %d", list.Len())
	}

	list.RemoveAt(99)
	if list.Len() != 2 {
		testContext.Fatalf("expected out-of-range removal to be ignored")
	}
}

func TestListInsertClampsIndex(testContext *testing.T) {
	document := mustDocument(testContext, "actor-a")
	list := document.Root().EnsureList("row_order")

	list.Insert(5, "a")
	list.Insert(-1, "b")

	values := list.Values()
	if values[0] != "b" || values[1] != "a" {
		testContext.Fatalf("unexpected order after clamped inserts: %v", values)
	}
}

func TestEnsureMapReusesExisting(testContext *testing.T) {
	document := mustDocument(testContext, "actor-a")
	first := document.Root().EnsureMap("cells")
	first.Set("field-1", "value")

	second := document.Root().EnsureMap("cells")
	if second.Len() != 1 {
		testContext.Fatalf("expected EnsureMap to reuse the existing node")
	}
}
