// Package frequency answers how often an identifier has been reported.
// The count feeds the frequency component of the risk score, so submission
// reads must see every prior report; lookups tolerate a short cache window.
package frequency

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/opensource-intel/kite/internal/domain"
)

const (
	countKeyPrefix = "count:"
	defaultTTL     = 30 * time.Second
)

// Service counts prior reports per normalized identifier.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
	ttl   time.Duration
}

// NewService creates a new frequency service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		ttl:   defaultTTL,
	}
}

// Count returns the exact number of stored reports for an identifier.
// Always hits the store: scoring a submission against a stale count would
// freeze the frequency bucket.
func (s *Service) Count(ctx context.Context, identifier string) (int, error) {
	if identifier == "" {
		return 0, fmt.Errorf("identifier is required")
	}
	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}
	return s.repo.CountByIdentifier(ctx, identifier)
}

// CachedCount returns the report count through a short-TTL cache. Serves
// the lookup fast path, where a count a few seconds old is fine; Invalidate
// keeps submissions visible immediately.
func (s *Service) CachedCount(ctx context.Context, identifier string) (int, error) {
	if identifier == "" {
		return 0, fmt.Errorf("identifier is required")
	}

	key := countKeyPrefix + identifier

	if s.cache != nil {
		if val, err := s.cache.Get(ctx, key); err == nil && val != nil {
			if count, err := strconv.Atoi(string(val)); err == nil {
				return count, nil
			}
		}
	}

	count, err := s.Count(ctx, identifier)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, []byte(strconv.Itoa(count)), s.ttl)
	}

	return count, nil
}

// Invalidate drops the cached count after a new report lands.
func (s *Service) Invalidate(ctx context.Context, identifier string) {
	if s.cache == nil || identifier == "" {
		return
	}
	_ = s.cache.Delete(ctx, countKeyPrefix+identifier)
}
