package store

import "time"

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Journal struct {
	ID          string
	Title       string
	Content     string
	AuthorID    string
	AuthorName  string
	AuthorEmail string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Comment is a stored comment row. ParentCommentID is nil for top-level comments.
type Comment struct {
	ID              string
	Content         string
	AuthorID        string
	JournalID       string
	ParentCommentID *string
	IsEdited        bool
	EditedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CommentRecord is a comment joined with the display fields of its author and journal.
type CommentRecord struct {
	Comment
	AuthorUsername string
	AuthorEmail    string
	JournalTitle   string
}

type CommentOrder int

const (
	OrderNewestFirst CommentOrder = iota
	OrderOldestFirst
)

// CommentFilter selects comments. Empty string fields are ignored; Limit <= 0 means unbounded.
type CommentFilter struct {
	JournalID    string
	ParentID     string
	TopLevelOnly bool
	AuthorID     string
	Skip         int
	Limit        int
	Order        CommentOrder
}
