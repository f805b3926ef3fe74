package comments

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sourcegraph/conc/pool"

	"journal/api/internal/store"
	"journal/api/internal/util"
)

const maxReplyFetchers = 8

// ListJournalComments returns one page of top-level comments of a journal,
// newest first, each with all of its replies oldest first.
func (s *Service) ListJournalComments(ctx context.Context, journalID, page, limit string) (JournalPage, error) {
	if !util.ValidID(journalID) {
		return JournalPage{}, invalidIDError("journal")
	}
	if err := s.requireJournal(ctx, journalID); err != nil {
		return JournalPage{}, err
	}

	window := ParseWindow(page, limit)
	filter := store.CommentFilter{
		JournalID:    journalID,
		TopLevelOnly: true,
		Order:        store.OrderNewestFirst,
	}

	pageFilter := filter
	pageFilter.Skip = window.Skip()
	pageFilter.Limit = window.Limit
	parents, err := s.store.FindComments(ctx, pageFilter)
	if err != nil {
		return JournalPage{}, storeError("list comments", err)
	}

	threads, err := s.attachReplies(ctx, parents)
	if err != nil {
		return JournalPage{}, err
	}

	total, err := s.store.CountComments(ctx, filter)
	if err != nil {
		return JournalPage{}, storeError("count comments", err)
	}

	return JournalPage{
		Comments:   threads,
		Pagination: newPagination(window, total),
	}, nil
}

// attachReplies fetches the replies of every parent concurrently. The result
// keeps the order of parents.
func (s *Service) attachReplies(ctx context.Context, parents []store.CommentRecord) ([]Thread, error) {
	threads := make([]Thread, len(parents))
	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(maxReplyFetchers)

	for i, parent := range parents {
		p.Go(func(ctx context.Context) error {
			replies, err := s.replies(ctx, parent.ID)
			if err != nil {
				return err
			}
			threads[i] = Thread{View: toView(parent), Replies: replies}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, storeError("list replies", err)
	}
	return threads, nil
}

func (s *Service) replies(ctx context.Context, parentID string) ([]View, error) {
	records, err := s.store.FindComments(ctx, store.CommentFilter{
		ParentID: parentID,
		Order:    store.OrderOldestFirst,
	})
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(records))
	for _, record := range records {
		views = append(views, toView(record))
	}
	return views, nil
}

// GetCommentByID returns a comment with its replies. A reply is returned
// with an empty replies list.
func (s *Service) GetCommentByID(ctx context.Context, commentID string) (Thread, error) {
	if !util.ValidID(commentID) {
		return Thread{}, invalidIDError("comment")
	}
	record, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Thread{}, notFoundError("comment")
		}
		return Thread{}, storeError("get comment", err)
	}

	thread := Thread{View: toView(record), Replies: []View{}}
	if record.ParentCommentID != nil {
		return thread, nil
	}
	replies, err := s.replies(ctx, record.ID)
	if err != nil {
		return Thread{}, storeError("list replies", err)
	}
	thread.Replies = replies
	return thread, nil
}

// ListUserComments returns the caller's comments across journals, newest first.
func (s *Service) ListUserComments(ctx context.Context, principalID, page, limit string) (UserCommentsPage, error) {
	if principalID == "" {
		return UserCommentsPage{}, unauthenticatedError()
	}

	window := ParseWindow(page, limit)
	filter := store.CommentFilter{
		AuthorID: principalID,
		Order:    store.OrderNewestFirst,
	}
	pageFilter := filter
	pageFilter.Skip = window.Skip()
	pageFilter.Limit = window.Limit

	records, err := s.store.FindComments(ctx, pageFilter)
	if err != nil {
		return UserCommentsPage{}, storeError("list user comments", err)
	}
	total, err := s.store.CountComments(ctx, filter)
	if err != nil {
		return UserCommentsPage{}, storeError("count user comments", err)
	}

	views := make([]View, 0, len(records))
	for _, record := range records {
		views = append(views, toView(record))
	}
	return UserCommentsPage{
		Comments:   views,
		Pagination: newPagination(window, total),
	}, nil
}

func (s *Service) requireJournal(ctx context.Context, journalID string) error {
	exists, err := s.journals.JournalExists(ctx, journalID)
	if err != nil {
		return storeError("check journal", err)
	}
	if !exists {
		return notFoundError("journal")
	}
	return nil
}
