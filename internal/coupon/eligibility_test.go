package coupon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEligible(t *testing.T) {
	fullUser := &UserContext{
		UserID:        "u1",
		UserTier:      "gold",
		Country:       "DE",
		LifetimeSpend: dp("1200"),
		OrdersPlaced:  ip(8),
	}

	tests := []struct {
		name string
		elig *Eligibility
		user *UserContext
		cart *Cart
		want bool
	}{
		{
			name: "no ruleset passes everyone",
			elig: nil,
			user: nil,
			cart: nil,
			want: true,
		},
		{
			name: "tier member passes",
			elig: &Eligibility{AllowedUserTiers: []string{"silver", "gold"}},
			user: fullUser,
			cart: nil,
			want: true,
		},
		{
			name: "tier non-member fails",
			elig: &Eligibility{AllowedUserTiers: []string{"platinum"}},
			user: fullUser,
			cart: nil,
			want: false,
		},
		{
			name: "lifetime spend at floor passes",
			elig: &Eligibility{MinLifetimeSpend: dp("1200")},
			user: fullUser,
			cart: nil,
			want: true,
		},
		{
			name: "lifetime spend below floor fails",
			elig: &Eligibility{MinLifetimeSpend: dp("1200.01")},
			user: fullUser,
			cart: nil,
			want: false,
		},
		{
			name: "orders placed below floor fails",
			elig: &Eligibility{MinOrdersPlaced: ip(10)},
			user: fullUser,
			cart: nil,
			want: false,
		},
		{
			name: "first order only rejects returning user",
			elig: &Eligibility{FirstOrderOnly: bp(true)},
			user: fullUser,
			cart: nil,
			want: false,
		},
		{
			name: "first order only accepts new user",
			elig: &Eligibility{FirstOrderOnly: bp(true)},
			user: &UserContext{UserID: "u2", OrdersPlaced: ip(0)},
			cart: nil,
			want: true,
		},
		{
			name: "first order only false is no constraint",
			elig: &Eligibility{FirstOrderOnly: bp(false)},
			user: fullUser,
			cart: nil,
			want: true,
		},
		{
			name: "country member passes",
			elig: &Eligibility{AllowedCountries: []string{"DE", "FR"}},
			user: fullUser,
			cart: nil,
			want: true,
		},
		{
			name: "country non-member fails",
			elig: &Eligibility{AllowedCountries: []string{"US"}},
			user: fullUser,
			cart: nil,
			want: false,
		},
		{
			name: "min cart value met",
			elig: &Eligibility{MinCartValue: dp("100")},
			user: fullUser,
			cart: cartOf("60", "40"),
			want: true,
		},
		{
			name: "min cart value not met by empty cart",
			elig: &Eligibility{MinCartValue: dp("0.01")},
			user: fullUser,
			cart: &Cart{},
			want: false,
		},
		{
			name: "min items count met",
			elig: &Eligibility{MinItemsCount: ip(2)},
			user: fullUser,
			cart: cartOf("10", "20"),
			want: true,
		},
		{
			name: "min items count not met by nil cart",
			elig: &Eligibility{MinItemsCount: ip(1)},
			user: fullUser,
			cart: nil,
			want: false,
		},
		{
			name: "category fields are not evaluated",
			elig: &Eligibility{ExcludedCategories: []string{"clothing"}},
			user: fullUser,
			cart: &Cart{Items: []CartItem{
				{ProductID: "p1", Category: "clothing", UnitPrice: d("10"), Quantity: 1},
			}},
			want: true,
		},
		{
			name: "all rules conjoined",
			elig: &Eligibility{
				AllowedUserTiers: []string{"gold"},
				MinLifetimeSpend: dp("1000"),
				MinOrdersPlaced:  ip(5),
				AllowedCountries: []string{"DE"},
				MinCartValue:     dp("50"),
				MinItemsCount:    ip(1),
			},
			user: fullUser,
			cart: cartOf("60"),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eligible(&Coupon{Code: "C", Eligibility: tt.elig}, tt.user, tt.cart)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEligibleMissingFields(t *testing.T) {
	tests := []struct {
		name      string
		elig      *Eligibility
		user      *UserContext
		wantField string
	}{
		{
			name:      "lifetime spend rule without lifetime spend",
			elig:      &Eligibility{MinLifetimeSpend: dp("100")},
			user:      &UserContext{UserID: "u1"},
			wantField: "lifetimeSpend",
		},
		{
			name:      "min orders rule without orders placed",
			elig:      &Eligibility{MinOrdersPlaced: ip(1)},
			user:      &UserContext{UserID: "u1"},
			wantField: "ordersPlaced",
		},
		{
			name:      "first order only without orders placed",
			elig:      &Eligibility{FirstOrderOnly: bp(true)},
			user:      &UserContext{UserID: "u1"},
			wantField: "ordersPlaced",
		},
		{
			name:      "tier rule without user",
			elig:      &Eligibility{AllowedUserTiers: []string{"gold"}},
			user:      nil,
			wantField: "userTier",
		},
		{
			name:      "country rule without user",
			elig:      &Eligibility{AllowedCountries: []string{"DE"}},
			user:      nil,
			wantField: "country",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Eligible(&Coupon{Code: "C", Eligibility: tt.elig}, tt.user, cartOf("100"))
			var mfErr *MissingFieldError
			require.ErrorAs(t, err, &mfErr)
			assert.Equal(t, tt.wantField, mfErr.Field)
		})
	}
}
