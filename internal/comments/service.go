package comments

import (
	"context"
	"time"

	"go.uber.org/zap"

	"journal/api/internal/events"
	"journal/api/internal/search"
	"journal/api/internal/store"
)

// Store is the persistence the comment service needs.
type Store interface {
	InsertComment(context.Context, store.Comment) (store.Comment, error)
	GetComment(context.Context, string) (store.CommentRecord, error)
	FindComments(context.Context, store.CommentFilter) ([]store.CommentRecord, error)
	CountComments(context.Context, store.CommentFilter) (int, error)
	UpdateCommentContent(ctx context.Context, id, authorID, content string, at time.Time) (bool, error)
	DeleteComment(context.Context, string) (bool, error)
	DeleteReplies(context.Context, string) (int64, error)
}

// treeDeleter is implemented by stores that can remove a comment and its
// replies in one transaction.
type treeDeleter interface {
	DeleteOwnedCommentTree(ctx context.Context, id, authorID string) ([]string, bool, error)
}

type JournalLookup interface {
	JournalExists(context.Context, string) (bool, error)
}

// Indexer receives comment changes for the search index. Calls must not block.
type Indexer interface {
	IndexComment(search.CommentDocument)
	DeleteComments([]string)
}

type Service struct {
	store     Store
	journals  JournalLookup
	indexer   Indexer
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires the comment service. indexer and publisher may be nil.
func NewService(commentStore Store, journals JournalLookup, indexer Indexer, publisher events.Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		store:     commentStore,
		journals:  journals,
		indexer:   indexer,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type JournalRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// View is a comment as returned to clients.
type View struct {
	ID              string     `json:"id"`
	Content         string     `json:"content"`
	Author          Author     `json:"author"`
	Journal         JournalRef `json:"journal"`
	ParentCommentID *string    `json:"parentCommentId"`
	IsEdited        bool       `json:"isEdited"`
	EditedAt        *time.Time `json:"editedAt"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Thread is a top-level comment with its replies, oldest first.
// Replies of a reply is always an empty list.
type Thread struct {
	View
	Replies []View `json:"replies"`
}

type JournalPage struct {
	Comments   []Thread   `json:"comments"`
	Pagination Pagination `json:"pagination"`
}

type UserCommentsPage struct {
	Comments   []View     `json:"comments"`
	Pagination Pagination `json:"pagination"`
}

type DeleteResult struct {
	CommentID      string `json:"-"`
	DeletedReplies int    `json:"deletedReplies"`
}

func toView(record store.CommentRecord) View {
	return View{
		ID:      record.ID,
		Content: record.Content,
		Author: Author{
			ID:       record.AuthorID,
			Username: record.AuthorUsername,
			Email:    record.AuthorEmail,
		},
		Journal: JournalRef{
			ID:    record.JournalID,
			Title: record.JournalTitle,
		},
		ParentCommentID: record.ParentCommentID,
		IsEdited:        record.IsEdited,
		EditedAt:        record.EditedAt,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}
}

func toDocument(record store.CommentRecord) search.CommentDocument {
	parent := ""
	if record.ParentCommentID != nil {
		parent = *record.ParentCommentID
	}
	return search.CommentDocument{
		ID:              record.ID,
		Content:         record.Content,
		JournalID:       record.JournalID,
		JournalTitle:    record.JournalTitle,
		AuthorID:        record.AuthorID,
		AuthorUsername:  record.AuthorUsername,
		ParentCommentID: parent,
		CreatedAt:       record.CreatedAt.Unix(),
	}
}

func (s *Service) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("publish comment event", zap.String("topic", topic), zap.Error(err))
	}
}

func (s *Service) index(record store.CommentRecord) {
	if s.indexer != nil {
		s.indexer.IndexComment(toDocument(record))
	}
}

func (s *Service) unindex(ids []string) {
	if s.indexer != nil && len(ids) > 0 {
		s.indexer.DeleteComments(ids)
	}
}
