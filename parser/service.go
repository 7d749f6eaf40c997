package parser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sanjaysagar12/travelboutiqueonline-browser/models"
)

// Service is the in-process extraction boundary used by the pagination
// driver. Results are memoized by page digest.
type Service struct {
	cache *lru.Cache[string, []models.FlightRecord]
}

// NewService builds a Service caching up to cacheSize parsed pages. A size
// of zero disables the cache.
func NewService(cacheSize int) (*Service, error) {
	s := &Service{}
	if cacheSize <= 0 {
		return s, nil
	}
	cache, err := lru.New[string, []models.FlightRecord](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create extraction cache: %w", err)
	}
	s.cache = cache
	return s, nil
}

// Extract parses one page of markup. A page that cannot be read at all
// yields no records and the parse error.
func (s *Service) Extract(ctx context.Context, markup string) ([]models.FlightRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := digest(markup)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			slog.DebugContext(ctx, "extraction cache hit", slog.Int("records", len(cached)))
			return models.CloneRecords(cached), nil
		}
	}

	records, err := ParsePage(markup)
	if err != nil {
		slog.ErrorContext(ctx, "page extraction failed", slog.Any("error", err))
		return nil, err
	}

	if s.cache != nil {
		s.cache.Add(key, models.CloneRecords(records))
	}
	return records, nil
}

// Len reports how many pages are cached.
func (s *Service) Len() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Len()
}

func digest(markup string) string {
	sum := sha256.Sum256([]byte(markup))
	return hex.EncodeToString(sum[:])
}
