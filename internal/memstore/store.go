// Package memstore provides the in-memory coupon repository. It is the
// default storage backend: the process owns the coupon set and usage
// counters for its lifetime, with no durability beyond process memory.
package memstore

import (
	"context"
	"sync"

	"coupon-management-api/internal/coupon"
)

var _ coupon.Repository = (*Store)(nil)

// Store implements coupon.Repository on top of mutex-protected maps.
// Coupons are keyed by code; usage counters are keyed by user then code.
type Store struct {
	mu      sync.RWMutex
	coupons map[string]coupon.Coupon
	usage   map[string]map[string]int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		coupons: make(map[string]coupon.Coupon),
		usage:   make(map[string]map[string]int),
	}
}

// Add inserts the coupon unless its code is already present. The check and
// insert happen under one write lock, so exactly one of any set of
// concurrent inserts for the same code succeeds.
func (s *Store) Add(_ context.Context, c *coupon.Coupon) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.coupons[c.Code]; exists {
		return false, nil
	}
	s.coupons[c.Code] = *c
	return true, nil
}

// List returns a point-in-time snapshot of all coupons. Order follows map
// iteration and is deliberately unspecified; callers must not rely on it.
func (s *Store) List(_ context.Context) ([]coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]coupon.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		out = append(out, c)
	}
	return out, nil
}

// UsageCount returns the redemption count for the (userID, code) pair,
// zero when no record exists.
func (s *Store) UsageCount(_ context.Context, userID, code string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.usage[userID][code], nil
}

// IncrementUsage bumps the pair's counter by one and returns the updated
// count. The bucket is created lazily on first redemption.
func (s *Store) IncrementUsage(_ context.Context, userID, code string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.usage[userID]
	if !ok {
		bucket = make(map[string]int)
		s.usage[userID] = bucket
	}
	bucket[code]++
	return bucket[code], nil
}
