// Package coupon implements the coupon evaluation and ranking engine:
// validity windows, eligibility rules, discount calculation, and
// deterministic best-coupon selection.
package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountFlat subtracts a fixed amount, capped at the cart value.
	DiscountFlat DiscountType = "FLAT"
	// DiscountPercent applies a percentage of the cart value, with an
	// optional absolute cap.
	DiscountPercent DiscountType = "PERCENT"
)

var (
	// ErrBlankCode is returned when a coupon is registered without a code.
	ErrBlankCode = errors.New("coupon code required")
	// ErrDuplicateCode is returned when a coupon code is already registered.
	ErrDuplicateCode = errors.New("coupon already exists")
)

// MissingFieldError indicates that an active eligibility rule needs a user
// field the caller did not supply. It is a validation error, not an
// eligibility failure: the request cannot be evaluated at all.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("user field %q is required by an active eligibility rule", e.Field)
}

// Coupon is a named discount rule. Code is the natural key, case-sensitive,
// immutable once registered. Optional attributes are pointers; nil means
// the attribute imposes no constraint.
type Coupon struct {
	Code              string           `json:"code"`
	Description       string           `json:"description,omitempty"`
	DiscountType      DiscountType     `json:"discountType"`
	DiscountValue     decimal.Decimal  `json:"discountValue"`
	MaxDiscountAmount *decimal.Decimal `json:"maxDiscountAmount,omitempty"`
	StartDate         *time.Time       `json:"startDate,omitempty"`
	EndDate           *time.Time       `json:"endDate,omitempty"`
	UsageLimitPerUser *int             `json:"usageLimitPerUser,omitempty"`
	Eligibility       *Eligibility     `json:"eligibility,omitempty"`
}

// Validate checks the invariants a coupon must satisfy before registration.
func (c *Coupon) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return ErrBlankCode
	}
	switch c.DiscountType {
	case DiscountFlat, DiscountPercent:
	default:
		return errors.Errorf("unsupported discount type: %q", c.DiscountType)
	}
	if c.DiscountValue.IsNegative() {
		return errors.New("discount value must not be negative")
	}
	if c.MaxDiscountAmount != nil && c.MaxDiscountAmount.IsNegative() {
		return errors.New("max discount amount must not be negative")
	}
	if c.UsageLimitPerUser != nil && *c.UsageLimitPerUser < 0 {
		return errors.New("usage limit per user must not be negative")
	}
	return nil
}

// Eligibility is a conjunction of optional predicates over the user and the
// cart. Nil or empty fields impose no constraint.
type Eligibility struct {
	AllowedUserTiers []string         `json:"allowedUserTiers,omitempty"`
	MinLifetimeSpend *decimal.Decimal `json:"minLifetimeSpend,omitempty"`
	MinOrdersPlaced  *int             `json:"minOrdersPlaced,omitempty"`
	FirstOrderOnly   *bool            `json:"firstOrderOnly,omitempty"`
	AllowedCountries []string         `json:"allowedCountries,omitempty"`
	MinCartValue     *decimal.Decimal `json:"minCartValue,omitempty"`
	// Category fields are accepted and stored but not consulted by
	// Eligible. TODO: decide whether category targeting should be
	// enforced; enforcing it would change selection results for existing
	// coupons that already carry these fields.
	ApplicableCategories []string `json:"applicableCategories,omitempty"`
	ExcludedCategories   []string `json:"excludedCategories,omitempty"`
	MinItemsCount        *int     `json:"minItemsCount,omitempty"`
}

// UserContext describes the user a best-coupon query is evaluated for.
// LifetimeSpend and OrdersPlaced are pointers so that "not provided" is
// distinguishable from zero when an eligibility rule requires them.
type UserContext struct {
	UserID        string           `json:"userId"`
	UserTier      string           `json:"userTier,omitempty"`
	Country       string           `json:"country,omitempty"`
	LifetimeSpend *decimal.Decimal `json:"lifetimeSpend,omitempty"`
	OrdersPlaced  *int             `json:"ordersPlaced,omitempty"`
}

// CartItem is a single line in a cart.
type CartItem struct {
	ProductID string          `json:"productId"`
	Category  string          `json:"category,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// Cart is a list of items. A nil cart behaves as an empty one.
type Cart struct {
	Items []CartItem `json:"items"`
}

// Value returns the cart total: the sum of unit price times quantity.
func (c *Cart) Value() decimal.Decimal {
	if c == nil {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, item := range c.Items {
		line := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		sum = sum.Add(line)
	}
	return sum
}

// TotalItems returns the sum of quantities across all items.
func (c *Cart) TotalItems() int {
	if c == nil {
		return 0
	}
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Repository provides storage for coupons and per-user usage counters.
// Implementations must make Add atomic per code (exactly one concurrent
// insert for the same code succeeds) and IncrementUsage atomic per
// (userID, code) pair.
type Repository interface {
	// Add inserts the coupon if its code is not already present and
	// reports whether the insert happened.
	Add(ctx context.Context, c *Coupon) (bool, error)
	// List returns a snapshot of all coupons in unspecified order.
	List(ctx context.Context) ([]Coupon, error)
	// UsageCount returns the redemption count for the pair, zero when no
	// record exists.
	UsageCount(ctx context.Context, userID, code string) (int, error)
	// IncrementUsage increases the pair's counter by one and returns the
	// updated count.
	IncrementUsage(ctx context.Context, userID, code string) (int, error)
}
