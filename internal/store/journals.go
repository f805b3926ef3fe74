package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const journalSelect = `
	SELECT j.id, j.title, j.content, j.author_id, COALESCE(u.username, ''), COALESCE(u.email, ''), j.created_at, j.updated_at
	FROM journals j
	LEFT JOIN users u ON u.id = j.author_id`

func (s *PostgresStore) InsertJournal(ctx context.Context, journal Journal) (Journal, error) {
	if journal.ID == "" || journal.AuthorID == "" || journal.Title == "" || journal.Content == "" {
		return Journal{}, fmt.Errorf("insert journal: %w", ErrInvalidRecord)
	}
	if journal.CreatedAt.IsZero() {
		journal.CreatedAt = time.Now().UTC()
	}
	journal.UpdatedAt = journal.CreatedAt
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journals (id, title, content, author_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, journal.ID, journal.Title, journal.Content, journal.AuthorID, journal.CreatedAt)
	if err != nil {
		return Journal{}, translateError("insert journal", err)
	}
	return journal, nil
}

func (s *PostgresStore) ListJournalsByAuthor(ctx context.Context, authorID string) ([]Journal, error) {
	rows, err := s.db.QueryContext(ctx, journalSelect+` WHERE j.author_id = $1 ORDER BY j.created_at DESC, j.id DESC`, authorID)
	if err != nil {
		return nil, fmt.Errorf("list journals: %w", err)
	}
	defer rows.Close()

	journals := make([]Journal, 0)
	for rows.Next() {
		journal, err := scanJournal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		journals = append(journals, journal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journals: %w", err)
	}
	return journals, nil
}

// GetOwnedJournal returns sql.ErrNoRows when the journal is absent or owned by someone else.
func (s *PostgresStore) GetOwnedJournal(ctx context.Context, id, authorID string) (Journal, error) {
	journal, err := scanJournal(s.db.QueryRowContext(ctx, journalSelect+` WHERE j.id = $1 AND j.author_id = $2`, id, authorID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Journal{}, err
		}
		return Journal{}, fmt.Errorf("get journal: %w", err)
	}
	return journal, nil
}

func (s *PostgresStore) UpdateOwnedJournal(ctx context.Context, id, authorID, title, content string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE journals
		SET title = COALESCE(NULLIF($3, ''), title),
			content = COALESCE(NULLIF($4, ''), content),
			updated_at = $5
		WHERE id = $1 AND author_id = $2
	`, id, authorID, title, content, at)
	if err != nil {
		return false, translateError("update journal", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update journal rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteOwnedJournal removes a journal owned by authorID and returns the ids of the
// comments that cascaded with it. deleted is false when id and authorID did not match.
func (s *PostgresStore) DeleteOwnedJournal(ctx context.Context, id, authorID string) (commentIDs []string, deleted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin delete journal tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var lockedID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM journals WHERE id = $1 AND author_id = $2 FOR UPDATE`, id, authorID).Scan(&lockedID)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lock journal: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `DELETE FROM comments WHERE journal_id = $1 RETURNING id`, id)
	if err != nil {
		return nil, false, fmt.Errorf("delete journal comments: %w", err)
	}
	commentIDs = make([]string, 0)
	for rows.Next() {
		var commentID string
		if err = rows.Scan(&commentID); err != nil {
			rows.Close()
			return nil, false, fmt.Errorf("scan deleted comment: %w", err)
		}
		commentIDs = append(commentIDs, commentID)
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return nil, false, fmt.Errorf("iterate deleted comments: %w", err)
	}
	rows.Close()

	if _, err = tx.ExecContext(ctx, `DELETE FROM journals WHERE id = $1`, id); err != nil {
		return nil, false, fmt.Errorf("delete journal: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit delete journal: %w", err)
	}
	return commentIDs, true, nil
}

func (s *PostgresStore) JournalExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM journals WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check journal: %w", err)
	}
	return exists, nil
}

func scanJournal(row rowScanner) (Journal, error) {
	var journal Journal
	err := row.Scan(
		&journal.ID, &journal.Title, &journal.Content, &journal.AuthorID,
		&journal.AuthorName, &journal.AuthorEmail, &journal.CreatedAt, &journal.UpdatedAt,
	)
	return journal, err
}
