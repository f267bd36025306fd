package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Compute calculates the discount the coupon yields for the cart. The
// result never exceeds the cart value and is never negative. Arithmetic is
// exact; callers round the final amount once (see Selector.FindBest).
func Compute(c *Coupon, cart *Cart) (decimal.Decimal, error) {
	value := cart.Value()

	switch c.DiscountType {
	case DiscountFlat:
		return decimal.Min(c.DiscountValue, value), nil
	case DiscountPercent:
		amount := value.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscountAmount != nil {
			amount = decimal.Min(amount, *c.MaxDiscountAmount)
		}
		return decimal.Min(amount, value), nil
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", c.DiscountType)
	}
}
