package comments

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/loomhq/loom/engine/internal/shareddoc"
)

func mustComment(testContext *testing.T, raw string) Comment {
	testContext.Helper()
	comment, ok := Decode(raw)
	if !ok {
		testContext.Fatalf("failed to decode comment: %q", raw)
	}
	return comment
}

func TestEncodeDecodeRoundTrip(testContext *testing.T) {
	original := Comment{
		ID:         "comment-1",
		Content:    "looks good",
		AuthorID:   "user-1",
		IsResolved: true,
		ResolvedBy: "user-2",
		CreatedAt:  1700000000,
		Reactions:  map[string][]string{"👍": {"user-2"}},
	}
	encoded, ok := Encode(original)
	if !ok {
		testContext.Fatalf("failed to encode comment")
	}
	decoded := mustComment(testContext, encoded)
	if decoded.ID != original.ID || decoded.Content != original.Content {
		testContext.Fatalf("round trip mismatch: %+v", decoded)
	}
	if !decoded.IsResolved || decoded.ResolvedBy != "user-2" {
		testContext.Fatalf("expected resolution fields to round-trip, got %+v", decoded)
	}
	if len(decoded.Reactions["👍"]) != 1 {
		testContext.Fatalf("expected reactions to round-trip, got %v", decoded.Reactions)
	}
}

func TestEncodeOmitsEmptyOptionalFields(testContext *testing.T) {
	encoded, _ := Encode(Comment{ID: "comment-1", Content: "hi", AuthorID: "user-1", CreatedAt: 1})
	var generic map[string]any
	if err := json.Unmarshal([]byte(encoded), &generic); err != nil {
		testContext.Fatalf("unexpected marshal output: %v", err)
	}
	for _, key := range []string{"parent_comment_id", "resolved_by", "reactions"} {
		if _, present := generic[key]; present {
			testContext.Fatalf("expected %q omitted when empty", key)
		}
	}
	if _, present := generic["is_resolved"]; !present {
		testContext.Fatalf("expected is_resolved always present")
	}
}

func TestDecodeRejectsMalformedPayloads(testContext *testing.T) {
	if _, ok := Decode("{broken"); ok {
		testContext.Fatalf("expected malformed JSON rejected")
	}
	if _, ok := Decode(`{"content":"no id"}`); ok {
		testContext.Fatalf("expected comment without id rejected")
	}
}

func TestDecodeAllSkipsBadEntries(testContext *testing.T) {
	document, err := shareddoc.NewDocument(shareddoc.DocumentConfig{
		ActorID: "test-actor",
		Clock:   func() time.Time { return time.Unix(1700000000, 0).UTC() },
	})
	if err != nil {
		testContext.Fatalf("failed to create document: %v", err)
	}
	list := document.Root().EnsureList("comments")
	list.Push(`{"id":"comment-1","content":"a","author_id":"user-1","created_at":1}`)
	list.Push("garbage")
	list.Push(`{"id":"comment-2","content":"b","author_id":"user-1","created_at":2}`)

	decoded := DecodeAll(list)
	if len(decoded) != 2 {
		testContext.Fatalf("expected 2 decodable comments, got %d", len(decoded))
	}
}

func TestDecodeAllNilList(testContext *testing.T) {
	if got := DecodeAll(nil); got != nil {
		testContext.Fatalf("expected nil for missing collection, got %v", got)
	}
}

func TestToggleReaction(testContext *testing.T) {
	comment := Comment{ID: "comment-1"}

	comment = ToggleReaction(comment, "👍", "user-1")
	comment = ToggleReaction(comment, "👍", "user-2")
	if len(comment.Reactions["👍"]) != 2 {
		testContext.Fatalf("expected two reactors, got %v", comment.Reactions)
	}

	comment = ToggleReaction(comment, "👍", "user-1")
	if len(comment.Reactions["👍"]) != 1 || comment.Reactions["👍"][0] != "user-2" {
		testContext.Fatalf("expected user-1 removed, got %v", comment.Reactions)
	}

	comment = ToggleReaction(comment, "👍", "user-2")
	if _, present := comment.Reactions["👍"]; present {
		testContext.Fatalf("expected emoji key deleted when the last reactor leaves")
	}
}

func TestToggleReactionIgnoresEmptyInputs(testContext *testing.T) {
	comment := ToggleReaction(Comment{ID: "comment-1"}, "", "user-1")
	if len(comment.Reactions) != 0 {
		testContext.Fatalf("expected empty emoji ignored")
	}
	comment = ToggleReaction(Comment{ID: "comment-1"}, "👍", "")
	if len(comment.Reactions) != 0 {
		testContext.Fatalf("expected empty user ignored")
	}
}

func threadFixture() []Comment {
	return []Comment{
		{ID: "parent-late", Content: "second thread", AuthorID: "user-1", CreatedAt: 300},
		{ID: "reply-b", Content: "reply two", AuthorID: "user-2", ParentCommentID: "parent-early", CreatedAt: 250},
		{ID: "parent-early", Content: "first thread", AuthorID: "user-1", CreatedAt: 100, IsResolved: true},
		{ID: "reply-a", Content: "reply one", AuthorID: "user-3", ParentCommentID: "parent-early", CreatedAt: 150},
		{ID: "orphan", Content: "parent deleted", AuthorID: "user-2", ParentCommentID: "parent-gone", CreatedAt: 400},
	}
}

func TestProjectThreadsAndSorts(testContext *testing.T) {
	projection := Project(threadFixture())

	if len(projection.Parents) != 2 {
		testContext.Fatalf("expected 2 parents, got %d", len(projection.Parents))
	}
	if projection.Parents[0].ID != "parent-early" || projection.Parents[1].ID != "parent-late" {
		testContext.Fatalf("expected parents ascending by creation, got %+v", projection.Parents)
	}

	replies := projection.Replies["parent-early"]
	if len(replies) != 2 {
		testContext.Fatalf("expected 2 replies, got %d", len(replies))
	}
	if replies[0].ID != "reply-a" || replies[1].ID != "reply-b" {
		testContext.Fatalf("expected replies ascending by creation, got %+v", replies)
	}
}

func TestProjectDropsOrphanReplies(testContext *testing.T) {
	projection := Project(threadFixture())
	for _, replies := range projection.Replies {
		for _, reply := range replies {
			if reply.ID == "orphan" {
				testContext.Fatalf("expected orphan reply dropped")
			}
		}
	}
}

func TestFlattenedOrder(testContext *testing.T) {
	flattened := Project(threadFixture()).Flattened()
	want := []string{"parent-early", "reply-a", "reply-b", "parent-late"}
	if len(flattened) != len(want) {
		testContext.Fatalf("expected %d comments, got %d", len(want), len(flattened))
	}
	for index, id := range want {
		if flattened[index].ID != id {
			testContext.Fatalf("position %d: expected %q, got %q", index, id, flattened[index].ID)
		}
	}
}

func TestFilterReplyVisibilityFollowsParent(testContext *testing.T) {
	projection := Project(threadFixture())

	resolved := projection.Filter(true)
	if len(resolved.Parents) != 1 || resolved.Parents[0].ID != "parent-early" {
		testContext.Fatalf("expected only the resolved thread, got %+v", resolved.Parents)
	}
	// The replies carry no resolution flag of their own; they follow the
	// parent into the resolved bucket.
	if len(resolved.Replies["parent-early"]) != 2 {
		testContext.Fatalf("expected replies to follow the resolved parent, got %v", resolved.Replies)
	}

	open := projection.Filter(false)
	if len(open.Parents) != 1 || open.Parents[0].ID != "parent-late" {
		testContext.Fatalf("expected only the open thread, got %+v", open.Parents)
	}
	if len(open.Replies) != 0 {
		testContext.Fatalf("expected no replies in the open bucket, got %v", open.Replies)
	}
}
