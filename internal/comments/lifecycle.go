package comments

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"journal/api/internal/events"
	"journal/api/internal/store"
	"journal/api/internal/util"
)

// Create adds a top-level comment, or a reply when parentCommentID is set.
func (s *Service) Create(ctx context.Context, principalID, journalID, content, parentCommentID string) (View, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return View{}, validationError("content is required")
	}
	if principalID == "" {
		return View{}, unauthenticatedError()
	}
	if !util.ValidID(journalID) {
		return View{}, invalidIDError("journal")
	}
	parentCommentID = strings.TrimSpace(parentCommentID)
	if parentCommentID != "" && !util.ValidID(parentCommentID) {
		return View{}, invalidIDError("parentComment")
	}
	if err := s.requireJournal(ctx, journalID); err != nil {
		return View{}, err
	}

	var parent *string
	if parentCommentID != "" {
		if err := s.checkParent(ctx, journalID, parentCommentID); err != nil {
			return View{}, err
		}
		parent = &parentCommentID
	}

	created, err := s.store.InsertComment(ctx, store.Comment{
		ID:              util.NewID(),
		Content:         content,
		AuthorID:        principalID,
		JournalID:       journalID,
		ParentCommentID: parent,
		CreatedAt:       s.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrForeignKey):
			// journal or parent vanished between the checks and the insert
			var fk *store.ForeignKeyError
			if errors.As(err, &fk) && fk.Constraint == store.CommentParentForeignKey {
				return View{}, notFoundError("parentComment")
			}
			return View{}, notFoundError("journal")
		case errors.Is(err, store.ErrInvalidRecord):
			return View{}, validationError("content is required")
		}
		return View{}, storeError("create comment", err)
	}

	record, err := s.store.GetComment(ctx, created.ID)
	if err != nil {
		return View{}, storeError("load comment", err)
	}

	s.publish(ctx, events.TopicCommentCreated, events.CommentCreated{
		CommentID:       record.ID,
		JournalID:       record.JournalID,
		AuthorID:        record.AuthorID,
		ParentCommentID: parentCommentID,
		Content:         record.Content,
		CreatedAt:       record.CreatedAt,
	})
	s.index(record)
	return toView(record), nil
}

func (s *Service) checkParent(ctx context.Context, journalID, parentID string) error {
	parent, err := s.store.GetComment(ctx, parentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundError("parentComment")
		}
		return storeError("get parent comment", err)
	}
	if parent.JournalID != journalID {
		return validationError("parent mismatch")
	}
	if parent.ParentCommentID != nil {
		return validationError("replies cannot be nested more than one level")
	}
	return nil
}

// Update replaces the content of a comment owned by principalID.
func (s *Service) Update(ctx context.Context, principalID, commentID, content string) (View, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return View{}, validationError("content is required")
	}
	if principalID == "" {
		return View{}, unauthenticatedError()
	}
	if !util.ValidID(commentID) {
		return View{}, invalidIDError("comment")
	}

	editedAt := s.now()
	updated, err := s.store.UpdateCommentContent(ctx, commentID, principalID, content, editedAt)
	if err != nil {
		return View{}, storeError("update comment", err)
	}
	if !updated {
		return View{}, notFoundOrForbiddenError()
	}

	record, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return View{}, notFoundOrForbiddenError()
		}
		return View{}, storeError("load comment", err)
	}

	s.publish(ctx, events.TopicCommentUpdated, events.CommentUpdated{
		CommentID: record.ID,
		JournalID: record.JournalID,
		AuthorID:  record.AuthorID,
		Content:   record.Content,
		EditedAt:  editedAt,
	})
	s.index(record)
	return toView(record), nil
}

// Delete removes a comment owned by principalID together with its replies.
func (s *Service) Delete(ctx context.Context, principalID, commentID string) (DeleteResult, error) {
	if principalID == "" {
		return DeleteResult{}, unauthenticatedError()
	}
	if !util.ValidID(commentID) {
		return DeleteResult{}, invalidIDError("comment")
	}

	var (
		replyIDs []string
		err      error
	)
	if tx, ok := s.store.(treeDeleter); ok {
		var found bool
		replyIDs, found, err = tx.DeleteOwnedCommentTree(ctx, commentID, principalID)
		if err != nil {
			return DeleteResult{}, storeError("delete comment", err)
		}
		if !found {
			return DeleteResult{}, notFoundOrForbiddenError()
		}
	} else {
		replyIDs, err = s.deleteSequential(ctx, principalID, commentID)
		if err != nil {
			return DeleteResult{}, err
		}
	}

	s.publish(ctx, events.TopicCommentDeleted, events.CommentDeleted{
		CommentID: commentID,
		AuthorID:  principalID,
		ReplyIDs:  replyIDs,
	})
	s.unindex(append([]string{commentID}, replyIDs...))
	return DeleteResult{CommentID: commentID, DeletedReplies: len(replyIDs)}, nil
}

// deleteSequential deletes replies then the comment as separate store calls.
// A crash between the two leaves the comment without replies, never the reverse.
func (s *Service) deleteSequential(ctx context.Context, principalID, commentID string) ([]string, error) {
	record, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundOrForbiddenError()
		}
		return nil, storeError("get comment", err)
	}
	if record.AuthorID != principalID {
		return nil, notFoundOrForbiddenError()
	}

	replies, err := s.store.FindComments(ctx, store.CommentFilter{ParentID: commentID, Order: store.OrderOldestFirst})
	if err != nil {
		return nil, storeError("list replies", err)
	}
	replyIDs := make([]string, 0, len(replies))
	for _, reply := range replies {
		replyIDs = append(replyIDs, reply.ID)
	}

	if _, err := s.store.DeleteReplies(ctx, commentID); err != nil {
		return nil, storeError("delete replies", err)
	}
	deleted, err := s.store.DeleteComment(ctx, commentID)
	if err != nil {
		return nil, storeError("delete comment", err)
	}
	if !deleted {
		return nil, notFoundOrForbiddenError()
	}
	return replyIDs, nil
}
