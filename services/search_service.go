package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// SearchTier identifies which retrieval strategy produced a result set, so
// callers can tell a semantic match from a desperation fallback.
type SearchTier string

const (
	MatchVector     SearchTier = "vector"
	MatchText       SearchTier = "text"
	MatchHybrid     SearchTier = "hybrid"
	MatchPopularity SearchTier = "popularity"
)

const (
	// DefaultChatMinScore is the similarity floor applied when retrieving
	// chat context. The plain search endpoint does not apply it.
	DefaultChatMinScore = 0.7

	// Score normalization divisors for hybrid search. Vector cosine
	// similarity is already 0..1; ts_rank is unbounded, 1.5 squeezes
	// typical values into a comparable range.
	vectorScoreNorm = 1.0
	textScoreNorm   = 1.5

	// Default hybrid weights
	DefaultVectorWeight = 0.7
	DefaultTextWeight   = 0.3
)

// ftsExpr is the exact expression backing idx_articles_fts; the two must
// stay in sync or the index is not used.
const ftsExpr = `to_tsvector('english', coalesce(title, '') || ' ' || coalesce(short_description, '') || ' ' || coalesce(content, ''))`

// SearchResult is a ranked article summary. Score is nil for popularity
// fallback results, which carry no relevance signal.
type SearchResult struct {
	ID               uint           `json:"id"`
	Title            string         `json:"title"`
	Slug             string         `json:"slug"`
	ShortDescription string         `json:"short_description"`
	CategoryID       *uint          `json:"category_id,omitempty"`
	Tags             pq.StringArray `json:"tags" gorm:"type:text[]"`
	ViewCount        int64          `json:"view_count"`
	Content          string         `json:"-"` // Used for chat context assembly, never serialized
	Score            *float64       `json:"score,omitempty"`
}

// SearchOptions controls a retrieval call
type SearchOptions struct {
	Limit        int
	Offset       int
	CategoryID   *uint
	MinScore     float64 // 0 disables the similarity floor
	VectorWeight float64 // Hybrid only; 0 means default
	TextWeight   float64 // Hybrid only; 0 means default
}

// SearchOutcome is a result set tagged with the tier that produced it
type SearchOutcome struct {
	Results []SearchResult `json:"results"`
	Tier    SearchTier     `json:"tier"`
}

// SearchService is the article retriever: vector, text, hybrid, and the
// tiered fallback used by the chat pipeline.
type SearchService struct {
	db       *gorm.DB
	embedder Embedder

	// Whether articles without an embedding remain visible to the text and
	// popularity paths. Vector search never sees them either way.
	includeUnembedded bool
}

// NewSearchService creates a new search service
func NewSearchService(db *gorm.DB, embedder Embedder, includeUnembedded bool) *SearchService {
	return &SearchService{
		db:                db,
		embedder:          embedder,
		includeUnembedded: includeUnembedded,
	}
}

// VectorSearch embeds the query and runs a cosine nearest-neighbor search
// over published articles. Articles without an embedding are invisible here.
func (s *SearchService) VectorSearch(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	if s.embedder == nil {
		return nil, errors.New("no embedder configured")
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	vec := pgvector.NewVector(embedding)

	sql := `SELECT id, title, slug, short_description, category_id, tags, view_count, content,
			1 - (embedding <=> ?) AS score
		FROM articles
		WHERE status = 'published' AND embedding IS NOT NULL AND deleted_at IS NULL`
	args := []interface{}{vec}

	if opts.CategoryID != nil {
		sql += " AND category_id = ?"
		args = append(args, *opts.CategoryID)
	}

	sql += " ORDER BY embedding <=> ? LIMIT ?"
	args = append(args, vec, opts.Limit)

	var rows []SearchResult
	if err := s.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	if opts.MinScore > 0 {
		filtered := rows[:0]
		for _, r := range rows {
			if r.Score != nil && *r.Score >= opts.MinScore {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}

	return rows, nil
}

// TextSearch runs a full-text query over published articles, ranked by
// ts_rank, with offset/limit pagination and a total count.
func (s *SearchService) TextSearch(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, int64, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	where := "status = 'published' AND deleted_at IS NULL AND " + ftsExpr + " @@ plainto_tsquery('english', ?)"
	args := []interface{}{query}

	if !s.includeUnembedded {
		where += " AND embedding IS NOT NULL"
	}
	if opts.CategoryID != nil {
		where += " AND category_id = ?"
		args = append(args, *opts.CategoryID)
	}

	var total int64
	countSQL := "SELECT count(*) FROM articles WHERE " + where
	if err := s.db.WithContext(ctx).Raw(countSQL, args...).Scan(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("text search count failed: %w", err)
	}

	sql := `SELECT id, title, slug, short_description, category_id, tags, view_count, content,
			ts_rank(` + ftsExpr + `, plainto_tsquery('english', ?)) AS score
		FROM articles
		WHERE ` + where + `
		ORDER BY score DESC
		LIMIT ? OFFSET ?`
	// query appears twice: once for ranking, once in the predicate
	rankArgs := append([]interface{}{query}, args...)
	rankArgs = append(rankArgs, opts.Limit, opts.Offset)

	var rows []SearchResult
	if err := s.db.WithContext(ctx).Raw(sql, rankArgs...).Scan(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("text search failed: %w", err)
	}

	return rows, total, nil
}

// HybridSearch narrows candidates with vector search, requires them to also
// match the text index, and ranks by a weighted sum of the two normalized
// scores. No pagination.
func (s *SearchService) HybridSearch(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	// Wider candidate pool than the final limit so text filtering has
	// something to discard
	vectorResults, err := s.VectorSearch(ctx, query, SearchOptions{
		Limit:      opts.Limit * 3,
		CategoryID: opts.CategoryID,
	})
	if err != nil {
		return nil, err
	}
	if len(vectorResults) == 0 {
		return []SearchResult{}, nil
	}

	ids := make([]uint, 0, len(vectorResults))
	for _, r := range vectorResults {
		ids = append(ids, r.ID)
	}

	type textScore struct {
		ID    uint
		Score float64
	}
	var textScores []textScore
	sql := `SELECT id, ts_rank(` + ftsExpr + `, plainto_tsquery('english', ?)) AS score
		FROM articles
		WHERE id IN ? AND ` + ftsExpr + ` @@ plainto_tsquery('english', ?)`
	if err := s.db.WithContext(ctx).Raw(sql, query, ids, query).Scan(&textScores).Error; err != nil {
		return nil, fmt.Errorf("hybrid text scoring failed: %w", err)
	}

	textByID := make(map[uint]float64, len(textScores))
	for _, t := range textScores {
		textByID[t.ID] = t.Score
	}

	combined := CombineScores(vectorResults, textByID, opts.VectorWeight, opts.TextWeight)
	if len(combined) > opts.Limit {
		combined = combined[:opts.Limit]
	}
	return combined, nil
}

// CombineScores computes the weighted hybrid score for every vector
// candidate that also carries a text score, sorted descending.
// combined = vectorScore/1.0*wv + textScore/1.5*wt
func CombineScores(vectorResults []SearchResult, textByID map[uint]float64, vectorWeight, textWeight float64) []SearchResult {
	if vectorWeight == 0 && textWeight == 0 {
		vectorWeight = DefaultVectorWeight
		textWeight = DefaultTextWeight
	}

	out := make([]SearchResult, 0, len(vectorResults))
	for _, r := range vectorResults {
		ts, ok := textByID[r.ID]
		if !ok {
			continue // Must match both indexes
		}
		vs := 0.0
		if r.Score != nil {
			vs = *r.Score
		}
		score := vs/vectorScoreNorm*vectorWeight + ts/textScoreNorm*textWeight
		r.Score = &score
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].Score > *out[j].Score
	})
	return out
}

// TopByViews returns the most viewed published articles with no relevance
// score. This is the retriever's last resort.
func (s *SearchService) TopByViews(ctx context.Context, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	sql := `SELECT id, title, slug, short_description, category_id, tags, view_count, content
		FROM articles
		WHERE status = 'published' AND deleted_at IS NULL`
	if !s.includeUnembedded {
		sql += " AND embedding IS NOT NULL"
	}
	sql += " ORDER BY view_count DESC LIMIT ?"

	var rows []SearchResult
	if err := s.db.WithContext(ctx).Raw(sql, limit).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("popularity fallback failed: %w", err)
	}
	return rows, nil
}

// SearchWithFallback is the chat-context retriever: vector first, text on
// vector failure or empty result, top-by-views when both strategies fail.
// The outcome is tagged with the tier that produced it.
func (s *SearchService) SearchWithFallback(ctx context.Context, query string, opts SearchOptions) (*SearchOutcome, error) {
	vectorResults, err := s.VectorSearch(ctx, query, opts)
	if err == nil && len(vectorResults) > 0 {
		return &SearchOutcome{Results: vectorResults, Tier: MatchVector}, nil
	}
	if err != nil {
		log.Printf("vector search failed, falling back to text search: %v", err)
	} else {
		log.Printf("vector search returned no results for %q, falling back to text search", query)
	}

	textResults, _, err := s.TextSearch(ctx, query, SearchOptions{
		Limit:      opts.Limit,
		CategoryID: opts.CategoryID,
	})
	if err == nil && len(textResults) > 0 {
		return &SearchOutcome{Results: textResults, Tier: MatchText}, nil
	}
	if err != nil {
		log.Printf("text search failed, falling back to most viewed articles: %v", err)
	} else {
		log.Printf("text search returned no results for %q, falling back to most viewed articles", query)
	}

	popular, err := s.TopByViews(ctx, opts.Limit)
	if err != nil {
		return nil, err
	}
	return &SearchOutcome{Results: popular, Tier: MatchPopularity}, nil
}
