package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS searches comments with PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Search matches comments.fts with plainto_tsquery, ranked by ts_rank with a ts_headline snippet.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := "c.fts @@ plainto_tsquery('english', $1)"
	args := []any{q.Text}
	if q.JournalID != "" {
		args = append(args, q.JournalID)
		where += fmt.Sprintf(" AND c.journal_id = $%d", len(args))
	}

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM comments c WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT c.id, c.journal_id, c.author_id, COALESCE(c.parent_comment_id::text, ''), COALESCE(j.title, ''),
			ts_headline('english', c.content, plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30')
		FROM comments c
		LEFT JOIN journals j ON j.id = c.journal_id
		WHERE %s
		ORDER BY ts_rank(c.fts, plainto_tsquery('english', $1)) DESC, c.created_at DESC
		LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.JournalID, &r.AuthorID, &r.ParentCommentID, &r.JournalTitle, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllDocuments returns every comment in index form for full reindexing.
func (p *PgFTS) LoadAllDocuments(ctx context.Context) ([]CommentDocument, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT c.id, c.content, c.journal_id, COALESCE(j.title, ''), c.author_id, COALESCE(u.username, ''),
			COALESCE(c.parent_comment_id::text, ''), EXTRACT(EPOCH FROM c.created_at)::bigint
		FROM comments c
		LEFT JOIN journals j ON j.id = c.journal_id
		LEFT JOIN users u ON u.id = c.author_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	defer rows.Close()

	docs := make([]CommentDocument, 0)
	for rows.Next() {
		var d CommentDocument
		if err := rows.Scan(&d.ID, &d.Content, &d.JournalID, &d.JournalTitle, &d.AuthorID, &d.AuthorUsername, &d.ParentCommentID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return docs, nil
}
