package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fhsinchy/geb-deals/internal/domain"
)

// SearchServiceConfig holds configuration for the search service
type SearchServiceConfig struct {
	MaxQueryLength int
}

// SearchService runs one search: fetch the results page, then extract it
type SearchService struct {
	fetcher        domain.DocumentFetcher
	extractor      domain.ProductExtractor
	maxQueryLength int
	now            func() time.Time
}

// NewSearchService creates a new search service with dependencies
func NewSearchService(
	fetcher domain.DocumentFetcher,
	extractor domain.ProductExtractor,
	config SearchServiceConfig,
) *SearchService {
	maxLen := config.MaxQueryLength
	if maxLen <= 0 {
		maxLen = defaultMaxQueryLength
	}

	return &SearchService{
		fetcher:        fetcher,
		extractor:      extractor,
		maxQueryLength: maxLen,
		now:            time.Now,
	}
}

// Search looks up products for a free-text query.
// Flow: normalize query -> fetch page -> extract records -> return
//
// Only an unusable query is returned as an error. Fetch and parse failures
// yield an empty result whose Cause explains what went wrong.
func (s *SearchService) Search(ctx context.Context, raw string) (*domain.SearchResult, error) {
	query := NormalizeQuery(raw)
	if !validateQuery(query, s.maxQueryLength) {
		return nil, domain.ErrInvalidQuery
	}

	log := zerolog.Ctx(ctx).With().Str("query", query).Logger()
	ctx = log.WithContext(ctx)

	result := &domain.SearchResult{
		Query:    query,
		Products: []domain.Product{},
	}

	doc, err := s.fetcher.FetchSearchPage(ctx, query)
	result.FetchedAt = s.now().UTC()
	if err != nil {
		result.Cause = err
		log.Warn().Err(err).Msg("Search page fetch failed")
		return result, nil
	}

	products, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		result.Cause = fmt.Errorf("extract %s: %w", doc.URL, err)
		log.Warn().Err(err).Msg("Search page could not be parsed")
		return result, nil
	}
	if products != nil {
		result.Products = products
	}

	log.Info().Int("products", len(result.Products)).Msg("Search completed")
	return result, nil
}
