package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"quotepulse/internal/cache"
	"quotepulse/internal/complexity"
	"quotepulse/internal/model"
	"quotepulse/internal/repository"
)

var (
	ErrQuoteNotFound = errors.New("quote not found")
	ErrQuoteNotOwned = errors.New("quote belongs to another user")
)

// ComplexityService scores quotes and memoizes the results
type ComplexityService struct {
	scorer  *complexity.Scorer
	cache   cache.AnalysisCache
	quotes  repository.QuoteRepo
	library repository.ItemLibraryRepo
}

// NewComplexityService creates a new complexity service
func NewComplexityService(scorer *complexity.Scorer, analysisCache cache.AnalysisCache, quotes repository.QuoteRepo, library repository.ItemLibraryRepo) *ComplexityService {
	return &ComplexityService{
		scorer:  scorer,
		cache:   analysisCache,
		quotes:  quotes,
		library: library,
	}
}

// AnalyzeComplexity scores a quote without touching the cache
func (s *ComplexityService) AnalyzeComplexity(quote *model.Quote, items []model.LineItem, opts complexity.Options) *model.ComplexityAnalysis {
	return s.scorer.Analyze(quote, items, opts)
}

// GetCachedComplexityAnalysis returns the memoized analysis for this quote
// snapshot, calling compute on a miss
func (s *ComplexityService) GetCachedComplexityAnalysis(quoteID string, quote *model.Quote, compute func() *model.ComplexityAnalysis) (*model.ComplexityAnalysis, bool) {
	return s.cache.GetOrCompute(quoteID, quote, compute)
}

// AnalyzeDraft scores a caller-supplied quote and library without touching the
// cache. Cached entries are keyed by quote id and content only, so they may
// only be filled from the stored quote and its owner's library.
func (s *ComplexityService) AnalyzeDraft(quote *model.Quote, library []model.LibraryItem) *model.ComplexityAnalysis {
	return s.AnalyzeComplexity(quote, quote.LineItems, complexity.Options{Library: library})
}

// AnalyzeQuote scores a quote snapshot, through the cache when the quote has an id.
// library must be the quote owner's.
func (s *ComplexityService) AnalyzeQuote(quote *model.Quote, library []model.LibraryItem) (*model.ComplexityAnalysis, bool) {
	compute := func() *model.ComplexityAnalysis {
		return s.AnalyzeComplexity(quote, quote.LineItems, complexity.Options{Library: library})
	}
	if quote.ID == "" {
		return compute(), false
	}
	return s.GetCachedComplexityAnalysis(quote.ID, quote, compute)
}

// GetQuote loads a stored quote without scoring it
func (s *ComplexityService) GetQuote(ctx context.Context, quoteID string) (*model.Quote, error) {
	quote, err := s.quotes.GetByID(ctx, quoteID)
	if err != nil {
		return nil, fmt.Errorf("load quote %s: %w", quoteID, err)
	}
	if quote == nil {
		return nil, ErrQuoteNotFound
	}
	return quote, nil
}

// GetQuoteComplexity loads a stored quote with its owner's item library and scores it
func (s *ComplexityService) GetQuoteComplexity(ctx context.Context, quoteID string) (*model.Quote, *model.ComplexityAnalysis, bool, error) {
	quote, err := s.GetQuote(ctx, quoteID)
	if err != nil {
		return nil, nil, false, err
	}

	var library []model.LibraryItem
	if s.library != nil && quote.UserID != "" {
		library, err = s.library.ListByUser(ctx, quote.UserID)
		if err != nil {
			// Custom item share falls back to its default without a library
			log.Warn().Err(err).Str("userId", quote.UserID).Msg("Failed to load item library")
			library = nil
		}
	}

	analysis, fromCache := s.AnalyzeQuote(quote, library)
	return quote, analysis, fromCache, nil
}

// SaveQuote stores a quote snapshot and drops its cached analyses.
// An existing quote can only be replaced by its owner.
func (s *ComplexityService) SaveQuote(ctx context.Context, quote *model.Quote) error {
	existing, err := s.quotes.GetByID(ctx, quote.ID)
	if err != nil {
		return fmt.Errorf("load quote %s: %w", quote.ID, err)
	}
	if existing != nil {
		if existing.UserID != quote.UserID {
			return ErrQuoteNotOwned
		}
		if quote.CreatedAt.IsZero() {
			quote.CreatedAt = existing.CreatedAt
		}
	}
	if err := s.quotes.Save(ctx, quote); err != nil {
		return fmt.Errorf("save quote %s: %w", quote.ID, err)
	}
	s.cache.Invalidate(quote.ID)
	return nil
}

// Invalidate drops every cached analysis of a quote
func (s *ComplexityService) Invalidate(quoteID string) int {
	return s.cache.Invalidate(quoteID)
}

// CacheStats reports analysis cache counters
func (s *ComplexityService) CacheStats() cache.CacheStats {
	return s.cache.Stats()
}
