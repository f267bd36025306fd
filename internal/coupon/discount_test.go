package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func dp(v string) *decimal.Decimal {
	dec := decimal.RequireFromString(v)
	return &dec
}

func ip(v int) *int {
	return &v
}

func bp(v bool) *bool {
	return &v
}

func cartOf(prices ...string) *Cart {
	items := make([]CartItem, len(prices))
	for i, p := range prices {
		items[i] = CartItem{ProductID: "p", UnitPrice: d(p), Quantity: 1}
	}
	return &Cart{Items: items}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name   string
		coupon *Coupon
		cart   *Cart
		want   decimal.Decimal
	}{
		{
			name:   "flat below cart value",
			coupon: &Coupon{Code: "FLAT5", DiscountType: DiscountFlat, DiscountValue: d("5")},
			cart:   cartOf("300"),
			want:   d("5"),
		},
		{
			name:   "flat capped at cart value",
			coupon: &Coupon{Code: "FLAT50", DiscountType: DiscountFlat, DiscountValue: d("50")},
			cart:   cartOf("30"),
			want:   d("30"),
		},
		{
			name:   "percent of cart value",
			coupon: &Coupon{Code: "PCT10", DiscountType: DiscountPercent, DiscountValue: d("10")},
			cart:   cartOf("250"),
			want:   d("25"),
		},
		{
			name: "percent limited by cap",
			coupon: &Coupon{
				Code: "SAVE10", DiscountType: DiscountPercent,
				DiscountValue: d("10"), MaxDiscountAmount: dp("20"),
			},
			cart: cartOf("300"),
			want: d("20"),
		},
		{
			name: "percent cap above raw amount leaves it unchanged",
			coupon: &Coupon{
				Code: "SAVE10", DiscountType: DiscountPercent,
				DiscountValue: d("10"), MaxDiscountAmount: dp("100"),
			},
			cart: cartOf("300"),
			want: d("30"),
		},
		{
			name:   "percent never exceeds cart value",
			coupon: &Coupon{Code: "ALLOFF", DiscountType: DiscountPercent, DiscountValue: d("150")},
			cart:   cartOf("80"),
			want:   d("80"),
		},
		{
			name:   "flat on empty cart is zero",
			coupon: &Coupon{Code: "FLAT5", DiscountType: DiscountFlat, DiscountValue: d("5")},
			cart:   &Cart{},
			want:   decimal.Zero,
		},
		{
			name:   "percent on nil cart is zero",
			coupon: &Coupon{Code: "PCT10", DiscountType: DiscountPercent, DiscountValue: d("10")},
			cart:   nil,
			want:   decimal.Zero,
		},
		{
			name: "quantity multiplies into cart value",
			coupon: &Coupon{
				Code: "PCT10", DiscountType: DiscountPercent, DiscountValue: d("10"),
			},
			cart: &Cart{Items: []CartItem{
				{ProductID: "p1", UnitPrice: d("12.50"), Quantity: 4},
			}},
			want: d("5"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.coupon, tt.cart)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestComputeUnsupportedType(t *testing.T) {
	_, err := Compute(&Coupon{Code: "X", DiscountType: "BOGO", DiscountValue: d("1")}, cartOf("10"))
	require.Error(t, err)
}

func TestCartDerivedValues(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		{ProductID: "p1", UnitPrice: d("19.99"), Quantity: 2},
		{ProductID: "p2", UnitPrice: d("5"), Quantity: 3},
	}}
	assert.True(t, d("54.98").Equal(cart.Value()))
	assert.Equal(t, 5, cart.TotalItems())

	var empty *Cart
	assert.True(t, decimal.Zero.Equal(empty.Value()))
	assert.Equal(t, 0, empty.TotalItems())
}
