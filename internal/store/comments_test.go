package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return NewPostgresStore(db), mock
}

var commentRecordColumns = []string{
	"id", "content", "author_id", "journal_id", "parent_comment_id",
	"is_edited", "edited_at", "created_at", "updated_at",
	"username", "email", "title",
}

func TestCommentWhere(t *testing.T) {
	for _, tc := range []struct {
		name      string
		filter    CommentFilter
		wantWhere string
		wantArgs  int
	}{
		{"empty", CommentFilter{}, "", 0},
		{"top level", CommentFilter{JournalID: "j1", TopLevelOnly: true}, " WHERE c.journal_id = $1 AND c.parent_comment_id IS NULL", 1},
		{"replies", CommentFilter{ParentID: "p1", TopLevelOnly: true}, " WHERE c.parent_comment_id = $1", 1},
		{"author", CommentFilter{AuthorID: "a1"}, " WHERE c.author_id = $1", 1},
		{"journal and author", CommentFilter{JournalID: "j1", AuthorID: "a1"}, " WHERE c.journal_id = $1 AND c.author_id = $2", 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			where, args := commentWhere(tc.filter)
			if where != tc.wantWhere {
				t.Fatalf("where = %q, want %q", where, tc.wantWhere)
			}
			if len(args) != tc.wantArgs {
				t.Fatalf("args = %v, want %d", args, tc.wantArgs)
			}
		})
	}
}

func TestInsertCommentRejectsBlankContent(t *testing.T) {
	s, _ := newMockDB(t)
	_, err := s.InsertComment(context.Background(), Comment{ID: "c1", Content: "   ", AuthorID: "a1", JournalID: "j1"})
	if !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestInsertCommentTrimsAndStores(t *testing.T) {
	s, mock := newMockDB(t)
	parent := "p1"
	mock.ExpectExec("INSERT INTO comments").
		WithArgs("c1", "hello", "a1", "j1", "p1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	comment, err := s.InsertComment(context.Background(), Comment{
		ID: "c1", Content: "  hello  ", AuthorID: "a1", JournalID: "j1", ParentCommentID: &parent,
	})
	if err != nil {
		t.Fatalf("InsertComment: %v", err)
	}
	if comment.Content != "hello" || comment.IsEdited || comment.CreatedAt.IsZero() {
		t.Fatalf("unexpected comment %+v", comment)
	}
}

func TestInsertCommentMapsForeignKeyViolation(t *testing.T) {
	s, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO comments").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "comments_journal_id_fkey"})

	_, err := s.InsertComment(context.Background(), Comment{ID: "c1", Content: "x", AuthorID: "a1", JournalID: "j1"})
	if !errors.Is(err, ErrForeignKey) {
		t.Fatalf("expected ErrForeignKey, got %v", err)
	}
	var fk *ForeignKeyError
	if !errors.As(err, &fk) || fk.Constraint != "comments_journal_id_fkey" {
		t.Fatalf("expected journal constraint, got %v", err)
	}
}

func TestInsertCommentReportsParentConstraint(t *testing.T) {
	s, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO comments").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: CommentParentForeignKey})

	parent := "p1"
	_, err := s.InsertComment(context.Background(), Comment{ID: "c2", Content: "x", AuthorID: "a1", JournalID: "j1", ParentCommentID: &parent})
	var fk *ForeignKeyError
	if !errors.As(err, &fk) || fk.Constraint != CommentParentForeignKey {
		t.Fatalf("expected parent constraint, got %v", err)
	}
}

func TestGetCommentReturnsErrNoRows(t *testing.T) {
	s, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM comments c .+ WHERE c.id = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(commentRecordColumns))

	_, err := s.GetComment(context.Background(), "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestFindCommentsTopLevelPage(t *testing.T) {
	s, mock := newMockDB(t)
	now := time.Now().UTC()
	edited := now.Add(time.Minute)
	rows := sqlmock.NewRows(commentRecordColumns).
		AddRow("c2", "second", "a1", "j1", nil, true, edited, now, edited, "alice", "alice@example.com", "Day one").
		AddRow("c1", "first", "a1", "j1", nil, false, nil, now, now, "alice", "alice@example.com", "Day one")
	mock.ExpectQuery("SELECT .+ FROM comments c .+ WHERE c.journal_id = \\$1 AND c.parent_comment_id IS NULL ORDER BY c.created_at DESC, c.id DESC LIMIT \\$2 OFFSET \\$3").
		WithArgs("j1", 20, 20).
		WillReturnRows(rows)

	records, err := s.FindComments(context.Background(), CommentFilter{
		JournalID: "j1", TopLevelOnly: true, Skip: 20, Limit: 20, Order: OrderNewestFirst,
	})
	if err != nil {
		t.Fatalf("FindComments: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].EditedAt == nil || !records[0].IsEdited {
		t.Fatalf("expected first record edited, got %+v", records[0])
	}
	if records[1].ParentCommentID != nil || records[1].EditedAt != nil {
		t.Fatalf("expected nil parent and editedAt, got %+v", records[1])
	}
	if records[0].AuthorUsername != "alice" || records[0].JournalTitle != "Day one" {
		t.Fatalf("expected joined display fields, got %+v", records[0])
	}
}

func TestFindCommentsRepliesUnbounded(t *testing.T) {
	s, mock := newMockDB(t)
	mock.ExpectQuery("WHERE c.parent_comment_id = \\$1 ORDER BY c.created_at ASC, c.id ASC$").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(commentRecordColumns))

	records, err := s.FindComments(context.Background(), CommentFilter{ParentID: "p1", Order: OrderOldestFirst})
	if err != nil {
		t.Fatalf("FindComments: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", records)
	}
}

func TestCountComments(t *testing.T) {
	s, mock := newMockDB(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM comments c WHERE c.journal_id = \\$1 AND c.parent_comment_id IS NULL").
		WithArgs("j1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := s.CountComments(context.Background(), CommentFilter{JournalID: "j1", TopLevelOnly: true})
	if err != nil {
		t.Fatalf("CountComments: %v", err)
	}
	if count != 7 {
		t.Fatalf("expected 7, got %d", count)
	}
}

func TestUpdateCommentContentMatchesIDAndAuthor(t *testing.T) {
	s, mock := newMockDB(t)
	at := time.Now().UTC()
	mock.ExpectExec("UPDATE comments SET content = \\$3, is_edited = TRUE, edited_at = \\$4, updated_at = \\$4 WHERE id = \\$1 AND author_id = \\$2").
		WithArgs("c1", "a2", "changed", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := s.UpdateCommentContent(context.Background(), "c1", "a2", " changed ", at)
	if err != nil {
		t.Fatalf("UpdateCommentContent: %v", err)
	}
	if updated {
		t.Fatal("expected no row updated for non-owner")
	}
}

func TestDeleteReplies(t *testing.T) {
	s, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM comments WHERE parent_comment_id = \\$1").
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, err := s.DeleteReplies(context.Background(), "p1")
	if err != nil {
		t.Fatalf("DeleteReplies: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}
}

func TestDeleteOwnedCommentTreeCommits(t *testing.T) {
	s, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM comments WHERE id = \\$1 AND author_id = \\$2 FOR UPDATE").
		WithArgs("c1", "a1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("c1"))
	mock.ExpectQuery("DELETE FROM comments WHERE parent_comment_id = \\$1 RETURNING id").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r1").AddRow("r2"))
	mock.ExpectExec("DELETE FROM comments WHERE id = \\$1").
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	replies, found, err := s.DeleteOwnedCommentTree(context.Background(), "c1", "a1")
	if err != nil {
		t.Fatalf("DeleteOwnedCommentTree: %v", err)
	}
	if !found {
		t.Fatal("expected found")
	}
	if len(replies) != 2 || replies[0] != "r1" || replies[1] != "r2" {
		t.Fatalf("unexpected reply ids %v", replies)
	}
}

func TestDeleteOwnedCommentTreeNotOwned(t *testing.T) {
	s, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM comments WHERE id = \\$1 AND author_id = \\$2 FOR UPDATE").
		WithArgs("c1", "intruder").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	replies, found, err := s.DeleteOwnedCommentTree(context.Background(), "c1", "intruder")
	if err != nil {
		t.Fatalf("DeleteOwnedCommentTree: %v", err)
	}
	if found || replies != nil {
		t.Fatalf("expected not found, got found=%v replies=%v", found, replies)
	}
}

func TestDeleteOwnedCommentTreeRollsBackOnFailure(t *testing.T) {
	s, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM comments WHERE id = \\$1 AND author_id = \\$2 FOR UPDATE").
		WithArgs("c1", "a1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("c1"))
	mock.ExpectQuery("DELETE FROM comments WHERE parent_comment_id = \\$1 RETURNING id").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("DELETE FROM comments WHERE id = \\$1").
		WithArgs("c1").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, found, err := s.DeleteOwnedCommentTree(context.Background(), "c1", "a1")
	if err == nil {
		t.Fatal("expected error")
	}
	if found {
		t.Fatal("expected found=false on failure")
	}
}
