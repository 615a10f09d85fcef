package dispatch

import (
	"errors"

	"go.uber.org/zap"

	"github.com/loomhq/loom/engine/internal/comments"
	"github.com/loomhq/loom/engine/internal/schema"
)

const (
	opAddComment     = "dispatch.add_comment"
	opEditComment    = "dispatch.edit_comment"
	opDeleteComment  = "dispatch.delete_comment"
	opResolveComment = "dispatch.resolve_comment"
	opToggleReaction = "dispatch.toggle_reaction"
)

var (
	errMissingAuthor  = errors.New("comment author is required")
	errMissingContent = errors.New("comment content is required")
	errReplyParent    = errors.New("replies nest one level only")
)

// AddComment appends a top-level comment or a reply to the row's comment
// collection. A reply's parent must itself be a top-level comment.
func (dispatcher *Dispatcher) AddComment(rowID, authorID, content, parentCommentID string) (comments.Comment, error) {
	if authorID == "" {
		return comments.Comment{}, newDispatchError(opAddComment, "missing_author", errMissingAuthor)
	}
	if content == "" {
		return comments.Comment{}, newDispatchError(opAddComment, "missing_content", errMissingContent)
	}
	row, ok := dispatcher.resolveRow(opAddComment, rowID)
	if !ok {
		return comments.Comment{}, nil
	}
	collection := row.Comments(true)
	if parentCommentID != "" {
		parent, found := findComment(collection.Values(), parentCommentID)
		if !found || parent.ParentCommentID != "" {
			return comments.Comment{}, newDispatchError(opAddComment, "invalid_parent", errReplyParent)
		}
	}
	commentID, err := dispatcher.idProvider.NewID()
	if err != nil {
		return comments.Comment{}, newDispatchError(opAddComment, "id_generation_failed", err)
	}
	comment := comments.Comment{
		ID:              commentID,
		Content:         content,
		AuthorID:        authorID,
		ParentCommentID: parentCommentID,
		CreatedAt:       dispatcher.clock().UTC().Unix(),
	}
	encoded, encodeOK := comments.Encode(comment)
	if !encodeOK {
		return comments.Comment{}, newDispatchError(opAddComment, "encode_failed", nil)
	}
	collection.Push(encoded)
	dispatcher.logger.Info("comment added",
		zap.String("operation", opAddComment),
		zap.String("row_id", rowID),
		zap.String("comment_id", commentID))
	return comment, nil
}

// EditComment replaces a comment's content in place.
func (dispatcher *Dispatcher) EditComment(rowID, commentID, content string) {
	dispatcher.rewriteComment(opEditComment, rowID, commentID, func(comment comments.Comment) (comments.Comment, bool) {
		comment.Content = content
		return comment, true
	})
}

// DeleteComment removes a comment outright; there is no tombstone. Deleting
// a top-level comment orphans its replies, which the projection then drops.
func (dispatcher *Dispatcher) DeleteComment(rowID, commentID string) {
	row, ok := dispatcher.resolveRow(opDeleteComment, rowID)
	if !ok {
		return
	}
	collection := row.Comments(false)
	if collection == nil {
		return
	}
	for index, raw := range collection.Values() {
		comment, decodeOK := comments.Decode(schema.AsString(raw))
		if decodeOK && comment.ID == commentID {
			collection.RemoveAt(index)
			return
		}
	}
}

// ResolveComment sets the resolution state of a top-level comment. Replies
// carry no resolution state of their own; a resolve against a reply is a
// no-op. Permission checks belong to the calling layer.
func (dispatcher *Dispatcher) ResolveComment(rowID, commentID, resolvedBy string, resolved bool) {
	dispatcher.rewriteComment(opResolveComment, rowID, commentID, func(comment comments.Comment) (comments.Comment, bool) {
		if comment.ParentCommentID != "" {
			return comment, false
		}
		comment.IsResolved = resolved
		if resolved {
			comment.ResolvedBy = resolvedBy
		} else {
			comment.ResolvedBy = ""
		}
		return comment, true
	})
}

// ToggleReaction adds or removes the acting user from an emoji's reactor
// set.
func (dispatcher *Dispatcher) ToggleReaction(rowID, commentID, emoji, userID string) {
	dispatcher.rewriteComment(opToggleReaction, rowID, commentID, func(comment comments.Comment) (comments.Comment, bool) {
		return comments.ToggleReaction(comment, emoji, userID), true
	})
}

func (dispatcher *Dispatcher) rewriteComment(operation, rowID, commentID string, transform func(comments.Comment) (comments.Comment, bool)) {
	row, ok := dispatcher.resolveRow(operation, rowID)
	if !ok {
		return
	}
	collection := row.Comments(false)
	if collection == nil {
		return
	}
	for index, raw := range collection.Values() {
		comment, decodeOK := comments.Decode(schema.AsString(raw))
		if !decodeOK || comment.ID != commentID {
			continue
		}
		updated, apply := transform(comment)
		if !apply {
			return
		}
		encoded, encodeOK := comments.Encode(updated)
		if !encodeOK {
			return
		}
		collection.RemoveAt(index)
		collection.Insert(index, encoded)
		return
	}
}

func findComment(values []any, commentID string) (comments.Comment, bool) {
	for _, raw := range values {
		if comment, ok := comments.Decode(schema.AsString(raw)); ok && comment.ID == commentID {
			return comment, true
		}
	}
	return comments.Comment{}, false
}
