package coupon

import "slices"

// Eligible reports whether the user and cart satisfy every populated rule
// of the coupon's eligibility ruleset. A coupon without a ruleset is
// eligible for everyone. Rules are a pure conjunction; evaluation stops at
// the first violated rule.
//
// When an active rule needs a user field that was not supplied, Eligible
// returns a *MissingFieldError instead of silently passing or failing.
func Eligible(c *Coupon, user *UserContext, cart *Cart) (bool, error) {
	e := c.Eligibility
	if e == nil {
		return true, nil
	}

	if len(e.AllowedUserTiers) > 0 {
		if user == nil {
			return false, &MissingFieldError{Field: "userTier"}
		}
		if !slices.Contains(e.AllowedUserTiers, user.UserTier) {
			return false, nil
		}
	}

	if e.MinLifetimeSpend != nil {
		if user == nil || user.LifetimeSpend == nil {
			return false, &MissingFieldError{Field: "lifetimeSpend"}
		}
		if user.LifetimeSpend.LessThan(*e.MinLifetimeSpend) {
			return false, nil
		}
	}

	if e.MinOrdersPlaced != nil {
		if user == nil || user.OrdersPlaced == nil {
			return false, &MissingFieldError{Field: "ordersPlaced"}
		}
		if *user.OrdersPlaced < *e.MinOrdersPlaced {
			return false, nil
		}
	}

	if e.FirstOrderOnly != nil && *e.FirstOrderOnly {
		if user == nil || user.OrdersPlaced == nil {
			return false, &MissingFieldError{Field: "ordersPlaced"}
		}
		if *user.OrdersPlaced != 0 {
			return false, nil
		}
	}

	if len(e.AllowedCountries) > 0 {
		if user == nil {
			return false, &MissingFieldError{Field: "country"}
		}
		if !slices.Contains(e.AllowedCountries, user.Country) {
			return false, nil
		}
	}

	if e.MinCartValue != nil && cart.Value().LessThan(*e.MinCartValue) {
		return false, nil
	}

	if e.MinItemsCount != nil && cart.TotalItems() < *e.MinItemsCount {
		return false, nil
	}

	return true, nil
}
