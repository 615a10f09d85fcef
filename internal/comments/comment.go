package comments

import (
	"encoding/json"
	"sort"

	"github.com/loomhq/loom/engine/internal/schema"
	"github.com/loomhq/loom/engine/internal/shareddoc"
)

// Comment is the persisted wire shape of one row comment. The JSON form is
// the stored contract and must round-trip exactly.
type Comment struct {
	ID              string              `json:"id"`
	Content         string              `json:"content"`
	AuthorID        string              `json:"author_id"`
	ParentCommentID string              `json:"parent_comment_id,omitempty"`
	IsResolved      bool                `json:"is_resolved"`
	ResolvedBy      string              `json:"resolved_by,omitempty"`
	CreatedAt       int64               `json:"created_at"`
	Reactions       map[string][]string `json:"reactions,omitempty"`
}

// Encode serializes a comment into its stored JSON form.
func Encode(comment Comment) (string, bool) {
	encoded, err := json.Marshal(comment)
	if err != nil {
		return "", false
	}
	return string(encoded), true
}

// Decode parses a stored comment payload; malformed payloads and payloads
// without an id are rejected.
func Decode(raw string) (Comment, bool) {
	var comment Comment
	if err := json.Unmarshal([]byte(raw), &comment); err != nil {
		return Comment{}, false
	}
	if comment.ID == "" {
		return Comment{}, false
	}
	return comment, true
}

// DecodeAll reads every well-formed comment from a row's comment collection.
func DecodeAll(list *shareddoc.ListNode) []Comment {
	if list == nil {
		return nil
	}
	values := list.Values()
	decoded := make([]Comment, 0, len(values))
	for _, value := range values {
		if comment, ok := Decode(schema.AsString(value)); ok {
			decoded = append(decoded, comment)
		}
	}
	return decoded
}

// ToggleReaction adds the user to the emoji's reactor set when absent and
// removes them when present. Presence in the set is the single source of
// truth.
func ToggleReaction(comment Comment, emoji, userID string) Comment {
	if emoji == "" || userID == "" {
		return comment
	}
	if comment.Reactions == nil {
		comment.Reactions = make(map[string][]string)
	}
	reactors := comment.Reactions[emoji]
	for index, reactor := range reactors {
		if reactor == userID {
			reactors = append(reactors[:index], reactors[index+1:]...)
			if len(reactors) == 0 {
				delete(comment.Reactions, emoji)
			} else {
				comment.Reactions[emoji] = reactors
			}
			return comment
		}
	}
	comment.Reactions[emoji] = append(reactors, userID)
	return comment
}

// Projection is the read-side threading of a flat comment collection:
// top-level comments ascending by creation time, with each reply list
// independently ascending. Replies nest one level only.
type Projection struct {
	Parents []Comment
	Replies map[string][]Comment
}

// Project partitions a flat comment list into parents and a parent-to-reply
// map. Replies whose parent is missing from the collection are dropped.
func Project(flat []Comment) Projection {
	projection := Projection{Replies: make(map[string][]Comment)}
	parentIDs := make(map[string]bool, len(flat))
	for _, comment := range flat {
		if comment.ParentCommentID == "" {
			parentIDs[comment.ID] = true
		}
	}
	for _, comment := range flat {
		if comment.ParentCommentID == "" {
			projection.Parents = append(projection.Parents, comment)
			continue
		}
		if parentIDs[comment.ParentCommentID] {
			projection.Replies[comment.ParentCommentID] = append(projection.Replies[comment.ParentCommentID], comment)
		}
	}
	sortByCreatedAt(projection.Parents)
	for _, replies := range projection.Replies {
		sortByCreatedAt(replies)
	}
	return projection
}

// Flattened returns the linear rendering order: each parent followed by its
// replies.
func (projection Projection) Flattened() []Comment {
	flattened := make([]Comment, 0, len(projection.Parents))
	for _, parent := range projection.Parents {
		flattened = append(flattened, parent)
		flattened = append(flattened, projection.Replies[parent.ID]...)
	}
	return flattened
}

// Filter keeps the threads whose parent matches the requested resolution
// state. A reply's visibility always follows its parent's flag, never its
// own.
func (projection Projection) Filter(resolved bool) Projection {
	filtered := Projection{Replies: make(map[string][]Comment)}
	for _, parent := range projection.Parents {
		if parent.IsResolved != resolved {
			continue
		}
		filtered.Parents = append(filtered.Parents, parent)
		if replies := projection.Replies[parent.ID]; len(replies) > 0 {
			filtered.Replies[parent.ID] = replies
		}
	}
	return filtered
}

func sortByCreatedAt(list []Comment) {
	sort.SliceStable(list, func(left, right int) bool {
		return list[left].CreatedAt < list[right].CreatedAt
	})
}
