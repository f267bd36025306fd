package coupon

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Match pairs a selected coupon with its computed discount.
type Match struct {
	Coupon   Coupon
	Discount decimal.Decimal
}

// Selector picks the best applicable coupon for a user and cart. It is
// stateless apart from its repository and clock; a single instance is safe
// for concurrent use.
type Selector struct {
	repo Repository
	now  func() time.Time
}

// NewSelector creates a Selector backed by the given repository.
func NewSelector(repo Repository) *Selector {
	return &Selector{repo: repo, now: time.Now}
}

// FindBest evaluates every known coupon against the user and cart and
// returns the highest-ranked applicable one with its discount rounded to
// two decimal places. It returns (nil, nil) when no coupon qualifies,
// which is a normal outcome, distinct from an error.
//
// Pipeline: validity window (inclusive bounds) → per-user usage limit →
// eligibility → positive discount → total-order sort → first element.
func (s *Selector) FindBest(ctx context.Context, user *UserContext, cart *Cart) (*Match, error) {
	coupons, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}

	now := s.now()
	matches := make([]Match, 0, len(coupons))
	for i := range coupons {
		c := &coupons[i]

		if !validAt(c, now) {
			continue
		}

		exceeded, err := s.usageExceeded(ctx, c, user)
		if err != nil {
			return nil, err
		}
		if exceeded {
			continue
		}

		ok, err := Eligible(c, user, cart)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		amount, err := Compute(c, cart)
		if err != nil {
			return nil, err
		}
		if !amount.IsPositive() {
			continue
		}

		matches = append(matches, Match{Coupon: *c, Discount: amount})
	}

	if len(matches) == 0 {
		return nil, nil
	}

	slices.SortFunc(matches, CompareMatches)

	best := matches[0]
	best.Discount = best.Discount.Round(2)
	return &best, nil
}

// validAt reports whether now falls inside the coupon's validity window.
// Both bounds are inclusive; absent bounds are open.
func validAt(c *Coupon, now time.Time) bool {
	if c.StartDate != nil && now.Before(*c.StartDate) {
		return false
	}
	if c.EndDate != nil && now.After(*c.EndDate) {
		return false
	}
	return true
}

// usageExceeded reports whether the user has exhausted the coupon's
// per-user limit. Coupons without a limit, and requests without an
// identified user, are never excluded by this check.
func (s *Selector) usageExceeded(ctx context.Context, c *Coupon, user *UserContext) (bool, error) {
	if c.UsageLimitPerUser == nil {
		return false, nil
	}
	if user == nil || user.UserID == "" {
		return false, nil
	}

	used, err := s.repo.UsageCount(ctx, user.UserID, c.Code)
	if err != nil {
		return false, errors.Wrapf(err, "usage count for coupon %s", c.Code)
	}
	return used >= *c.UsageLimitPerUser, nil
}

// CompareMatches is the total order used to rank candidate coupons:
// higher discount first, then earlier end date (coupons without an end
// date sort after those with one), then lexicographically smaller code.
// The three levels make selection deterministic for any repository
// snapshot.
func CompareMatches(a, b Match) int {
	if d := b.Discount.Cmp(a.Discount); d != 0 {
		return d
	}

	ae, be := a.Coupon.EndDate, b.Coupon.EndDate
	switch {
	case ae != nil && be != nil:
		if !ae.Equal(*be) {
			if ae.Before(*be) {
				return -1
			}
			return 1
		}
	case ae != nil:
		return -1
	case be != nil:
		return 1
	}

	return strings.Compare(a.Coupon.Code, b.Coupon.Code)
}
