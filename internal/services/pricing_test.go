package services

import (
	"bytes"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-pickup-backend/internal/domain"
)

func TestPricing_Price(t *testing.T) {
	items := []domain.OrderItem{
		{UnitPriceCents: 1250, Quantity: 1, LineTotalCents: 1250},
		{UnitPriceCents: 749, Quantity: 1, LineTotalCents: 749},
	}

	cases := []struct {
		name    string
		pricing Pricing
		tip     int64
		want    Totals
	}{
		{"defaults are zero", Pricing{}, 0, Totals{SubtotalCents: 1999, TotalCents: 1999}},
		{
			"tax rounds to the cent",
			Pricing{TaxRate: decimal.RequireFromString("0.0825"), ServiceFeeCents: 99},
			200,
			// 1999 * 0.0825 = 164.9175
			Totals{SubtotalCents: 1999, TaxCents: 165, FeeCents: 99, TipCents: 200, TotalCents: 2463},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.pricing.Price(items, tc.tip)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, got.SubtotalCents+got.TaxCents+got.FeeCents+got.TipCents, got.TotalCents)
		})
	}

	half := Pricing{TaxRate: decimal.RequireFromString("0.0005")}.Price([]domain.OrderItem{{LineTotalCents: 1000}}, 0)
	assert.Equal(t, int64(1), half.TaxCents, "half a cent rounds up")
	assert.Equal(t, "USD", Pricing{}.currency())
}

func TestNewPickupCode(t *testing.T) {
	re := regexp.MustCompile(`^\d{6}$`)
	seen := make(map[string]struct{}, 200)
	for i := 0; i < 200; i++ {
		code, err := newPickupCode()
		require.NoError(t, err)
		require.Regexp(t, re, code)
		seen[code] = struct{}{}
	}
	assert.GreaterOrEqual(t, len(seen), 195, "codes repeat too often")

	orig := codeSource
	t.Cleanup(func() { codeSource = orig })
	codeSource = bytes.NewReader(make([]byte, 64))
	code, err := newPickupCode()
	require.NoError(t, err)
	assert.Equal(t, "000000", code, "small draws keep their leading zeros")
}

func TestPickupCodeValid(t *testing.T) {
	now := time.Now()
	code := "042917"
	live := now.Add(time.Minute)
	past := now.Add(-time.Second)

	o := &domain.Order{PickupCode: &code, PickupCodeExpiresAt: &live}
	assert.True(t, pickupCodeValid(o, "042917", now))
	assert.False(t, pickupCodeValid(o, "42917", now))
	assert.False(t, pickupCodeValid(o, "", now))

	o.PickupCodeExpiresAt = &past
	assert.False(t, pickupCodeValid(o, "042917", now), "expired")

	assert.False(t, pickupCodeValid(&domain.Order{}, "042917", now), "no code issued")
}
