package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"coupon-management-api/internal/coupon"
)

const (
	insertCouponSQL = `INSERT INTO coupons
		(code, description, discount_type, discount_value, max_discount_amount,
		 start_date, end_date, usage_limit_per_user, eligibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO NOTHING`

	listCouponsSQL = `SELECT code, description, discount_type, discount_value,
		max_discount_amount, start_date, end_date, usage_limit_per_user, eligibility
		FROM coupons`

	usageCountSQL = `SELECT uses FROM coupon_usage WHERE user_id = $1 AND code = $2`

	incrementUsageSQL = `INSERT INTO coupon_usage (user_id, code, uses)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, code) DO UPDATE SET uses = coupon_usage.uses + 1
		RETURNING uses`
)

var _ coupon.Repository = (*Store)(nil)

// Store implements coupon.Repository backed by PostgreSQL. Insert
// atomicity comes from the coupons primary key; increment atomicity from
// the ON CONFLICT upsert.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store that uses the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Add inserts the coupon unless its code already exists. The eligibility
// ruleset is stored as JSONB.
func (s *Store) Add(ctx context.Context, c *coupon.Coupon) (bool, error) {
	var eligibility []byte
	if c.Eligibility != nil {
		var err error
		eligibility, err = json.Marshal(c.Eligibility)
		if err != nil {
			return false, errors.Wrap(err, "marshal eligibility")
		}
	}

	tag, err := s.pool.Exec(ctx, insertCouponSQL,
		c.Code, c.Description, string(c.DiscountType), c.DiscountValue,
		c.MaxDiscountAmount, c.StartDate, c.EndDate, c.UsageLimitPerUser,
		eligibility,
	)
	if err != nil {
		return false, errors.Wrapf(err, "insert coupon %q", c.Code)
	}
	return tag.RowsAffected() == 1, nil
}

// List returns all registered coupons.
func (s *Store) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := s.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// UsageCount returns the redemption count for the pair, zero when no row
// exists.
func (s *Store) UsageCount(ctx context.Context, userID, code string) (int, error) {
	var uses int32
	err := s.pool.QueryRow(ctx, usageCountSQL, userID, code).Scan(&uses)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "usage count for coupon %q", code)
	}
	return int(uses), nil
}

// IncrementUsage upserts the usage row and returns the updated count.
func (s *Store) IncrementUsage(ctx context.Context, userID, code string) (int, error) {
	var uses int32
	err := s.pool.QueryRow(ctx, incrementUsageSQL, userID, code).Scan(&uses)
	if err != nil {
		return 0, errors.Wrapf(err, "increment usage for coupon %q", code)
	}
	return int(uses), nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		value        decimal.Decimal
		maxDiscount  *decimal.Decimal
		startDate    *time.Time
		endDate      *time.Time
		usageLimit   *int32
		eligibility  []byte
	)
	err := row.Scan(
		&c.Code, &c.Description, &discountType, &value,
		&maxDiscount, &startDate, &endDate, &usageLimit, &eligibility,
	)
	if err != nil {
		return coupon.Coupon{}, err
	}

	c.DiscountType = coupon.DiscountType(discountType)
	c.DiscountValue = value
	c.MaxDiscountAmount = maxDiscount
	c.StartDate = startDate
	c.EndDate = endDate
	if usageLimit != nil {
		limit := int(*usageLimit)
		c.UsageLimitPerUser = &limit
	}
	if len(eligibility) > 0 {
		c.Eligibility = &coupon.Eligibility{}
		if err := json.Unmarshal(eligibility, c.Eligibility); err != nil {
			return coupon.Coupon{}, errors.Wrapf(err, "unmarshal eligibility for coupon %q", c.Code)
		}
	}
	return c, nil
}
