package search

import (
	"context"

	"go.uber.org/zap"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili  *Meili
	pgfts  *PgFTS
	logger *zap.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{meili: meili, pgfts: pgfts, logger: logger}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meiliReady() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("meilisearch error, falling back to pgfts", zap.Error(err))
	}

	if s.pgfts == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, total, err := s.pgfts.Search(ctx, q)
	if err != nil {
		s.logger.Error("pgfts search failed", zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexComment indexes a comment (fire-and-forget to Meilisearch).
func (s *Service) IndexComment(doc CommentDocument) {
	if !s.meiliReady() {
		return
	}
	go func() {
		if err := s.meili.IndexComments([]CommentDocument{doc}); err != nil {
			s.logger.Warn("index comment", zap.String("comment_id", doc.ID), zap.Error(err))
		}
	}()
}

// DeleteComments removes comments from the search index (fire-and-forget).
func (s *Service) DeleteComments(ids []string) {
	if !s.meiliReady() || len(ids) == 0 {
		return
	}
	go func() {
		if err := s.meili.DeleteComments(ids); err != nil {
			s.logger.Warn("delete comments from index", zap.Strings("comment_ids", ids), zap.Error(err))
		}
	}()
}

// ReindexAllFromPG pushes every stored comment into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if !s.meiliReady() || s.pgfts == nil {
		return
	}
	docs, err := s.pgfts.LoadAllDocuments(ctx)
	if err != nil {
		s.logger.Warn("reindex load failed", zap.Error(err))
		return
	}
	if err := s.meili.IndexComments(docs); err != nil {
		s.logger.Warn("reindex comments", zap.Error(err))
		return
	}
	s.logger.Info("reindexed comments", zap.Int("count", len(docs)))
}

func (s *Service) meiliReady() bool {
	return s != nil && s.meili != nil && s.meili.Healthy()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
