package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const commentColumns = `
	c.id, c.content, c.author_id, c.journal_id, c.parent_comment_id,
	c.is_edited, c.edited_at, c.created_at, c.updated_at,
	COALESCE(u.username, ''), COALESCE(u.email, ''), COALESCE(j.title, '')`

const commentJoins = `
	FROM comments c
	LEFT JOIN users u ON u.id = c.author_id
	LEFT JOIN journals j ON j.id = c.journal_id`

func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment) (Comment, error) {
	comment.Content = strings.TrimSpace(comment.Content)
	if comment.Content == "" || comment.ID == "" || comment.AuthorID == "" || comment.JournalID == "" {
		return Comment{}, fmt.Errorf("insert comment: %w", ErrInvalidRecord)
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	comment.UpdatedAt = comment.CreatedAt
	comment.IsEdited = false
	comment.EditedAt = nil

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, content, author_id, journal_id, parent_comment_id, is_edited, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $6)
	`, comment.ID, comment.Content, comment.AuthorID, comment.JournalID, nullableString(comment.ParentCommentID), comment.CreatedAt)
	if err != nil {
		return Comment{}, translateError("insert comment", err)
	}
	return comment, nil
}

func (s *PostgresStore) GetComment(ctx context.Context, id string) (CommentRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+commentColumns+commentJoins+` WHERE c.id = $1`, id)
	record, err := scanCommentRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CommentRecord{}, err
		}
		return CommentRecord{}, fmt.Errorf("get comment: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) FindComments(ctx context.Context, filter CommentFilter) ([]CommentRecord, error) {
	where, args := commentWhere(filter)

	order := "c.created_at DESC, c.id DESC"
	if filter.Order == OrderOldestFirst {
		order = "c.created_at ASC, c.id ASC"
	}

	query := `SELECT ` + commentColumns + commentJoins + where + ` ORDER BY ` + order
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Skip > 0 {
		args = append(args, filter.Skip)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find comments: %w", err)
	}
	defer rows.Close()

	records := make([]CommentRecord, 0)
	for rows.Next() {
		record, err := scanCommentRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) CountComments(ctx context.Context, filter CommentFilter) (int, error) {
	where, args := commentWhere(filter)
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments c`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return count, nil
}

// UpdateCommentContent edits a comment only when both id and author match.
// It reports false when no row matched, without distinguishing the two causes.
func (s *PostgresStore) UpdateCommentContent(ctx context.Context, id, authorID, content string, at time.Time) (bool, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return false, fmt.Errorf("update comment: %w", ErrInvalidRecord)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments
		SET content = $3, is_edited = TRUE, edited_at = $4, updated_at = $4
		WHERE id = $1 AND author_id = $2
	`, id, authorID, content, at)
	if err != nil {
		return false, translateError("update comment", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update comment rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete comment rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteReplies(ctx context.Context, parentID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE parent_comment_id = $1`, parentID)
	if err != nil {
		return 0, fmt.Errorf("delete replies: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete replies rows: %w", err)
	}
	return affected, nil
}

// DeleteOwnedCommentTree removes a comment owned by authorID together with its
// direct replies in one transaction. found is false when id and authorID did not match.
func (s *PostgresStore) DeleteOwnedCommentTree(ctx context.Context, id, authorID string) (replyIDs []string, found bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin delete comment tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var lockedID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM comments WHERE id = $1 AND author_id = $2 FOR UPDATE`, id, authorID).Scan(&lockedID)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lock comment: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `DELETE FROM comments WHERE parent_comment_id = $1 RETURNING id`, id)
	if err != nil {
		return nil, false, fmt.Errorf("delete replies: %w", err)
	}
	replyIDs = make([]string, 0)
	for rows.Next() {
		var replyID string
		if err = rows.Scan(&replyID); err != nil {
			rows.Close()
			return nil, false, fmt.Errorf("scan deleted reply: %w", err)
		}
		replyIDs = append(replyIDs, replyID)
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return nil, false, fmt.Errorf("iterate deleted replies: %w", err)
	}
	rows.Close()

	if _, err = tx.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id); err != nil {
		return nil, false, fmt.Errorf("delete comment: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit delete comment: %w", err)
	}
	return replyIDs, true, nil
}

func commentWhere(filter CommentFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.JournalID != "" {
		args = append(args, filter.JournalID)
		clauses = append(clauses, fmt.Sprintf("c.journal_id = $%d", len(args)))
	}
	if filter.AuthorID != "" {
		args = append(args, filter.AuthorID)
		clauses = append(clauses, fmt.Sprintf("c.author_id = $%d", len(args)))
	}
	if filter.ParentID != "" {
		args = append(args, filter.ParentID)
		clauses = append(clauses, fmt.Sprintf("c.parent_comment_id = $%d", len(args)))
	} else if filter.TopLevelOnly {
		clauses = append(clauses, "c.parent_comment_id IS NULL")
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommentRecord(row rowScanner) (CommentRecord, error) {
	var (
		record   CommentRecord
		parentID sql.NullString
		editedAt sql.NullTime
	)
	err := row.Scan(
		&record.ID,
		&record.Content,
		&record.AuthorID,
		&record.JournalID,
		&parentID,
		&record.IsEdited,
		&editedAt,
		&record.CreatedAt,
		&record.UpdatedAt,
		&record.AuthorUsername,
		&record.AuthorEmail,
		&record.JournalTitle,
	)
	if err != nil {
		return CommentRecord{}, err
	}
	if parentID.Valid {
		value := parentID.String
		record.ParentCommentID = &value
	}
	if editedAt.Valid {
		value := editedAt.Time
		record.EditedAt = &value
	}
	return record, nil
}

func nullableString(value *string) any {
	if value == nil || *value == "" {
		return nil
	}
	return *value
}
