// Package events publishes comment lifecycle notifications.
package events

import (
	"context"
	"time"
)

const (
	TopicCommentCreated = "journal.comment.created"
	TopicCommentUpdated = "journal.comment.updated"
	TopicCommentDeleted = "journal.comment.deleted"
)

type CommentCreated struct {
	CommentID       string    `json:"comment_id"`
	JournalID       string    `json:"journal_id"`
	AuthorID        string    `json:"author_id"`
	ParentCommentID string    `json:"parent_comment_id,omitempty"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
}

type CommentUpdated struct {
	CommentID string    `json:"comment_id"`
	JournalID string    `json:"journal_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	EditedAt  time.Time `json:"edited_at"`
}

type CommentDeleted struct {
	CommentID string   `json:"comment_id"`
	AuthorID  string   `json:"author_id"`
	ReplyIDs  []string `json:"reply_ids"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
