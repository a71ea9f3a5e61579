package service

import (
	"context"
	"testing"

	"seminarbuchung/internal/models"
	"seminarbuchung/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func voucherRequest(sessionID int64, count int, code string) *models.VoucherValidateRequest {
	return &models.VoucherValidateRequest{
		SessionID:        models.SessionRef{ID: sessionID, Valid: sessionID > 0},
		ParticipantCount: count,
		VoucherCode:      code,
	}
}

func TestVoucherValidateFixedAmount(t *testing.T) {
	env := newTestEnv(models.Voucher{Code: "MINUS50", Kind: models.VoucherKindFixedAmount, Value: 50, Active: true})

	resp := env.services.Vouchers.Validate(context.Background(), voucherRequest(1, 2, "minus50"))

	assert.True(t, resp.Valid)
	assert.Empty(t, resp.Reason)
	assert.Equal(t, models.VoucherAmounts{PricePerSeatGross: 119, TotalGross: 238}, resp.Original)
	assert.Equal(t, models.VoucherAmounts{PricePerSeatGross: 94, TotalGross: 188}, resp.Total)
	assert.Equal(t, models.VoucherKindFixedAmount, resp.Discount.Kind)
	require.NotNil(t, resp.Discount.Value)
	assert.Equal(t, 50.0, *resp.Discount.Value)
	assert.Equal(t, 50.0, resp.Discount.AmountGross)
}

func TestVoucherValidateFullDiscount(t *testing.T) {
	env := newTestEnv(models.Voucher{Code: "FREE", Kind: models.VoucherKindPercentage, Value: 100, Active: true})

	resp := env.services.Vouchers.Validate(context.Background(), voucherRequest(1, 2, "FREE"))

	assert.True(t, resp.Valid)
	assert.Zero(t, resp.Total.TotalGross)
	assert.Zero(t, resp.Total.PricePerSeatGross)
	assert.Equal(t, 238.0, resp.Discount.AmountGross)
}

func TestVoucherValidateNegativeResults(t *testing.T) {
	env := newTestEnv(models.Voucher{Code: "OFF", Kind: models.VoucherKindPercentage, Value: 10, Active: false})

	cases := map[string]struct {
		req    *models.VoucherValidateRequest
		reason string
	}{
		"no code":         {voucherRequest(1, 1, ""), pricing.ReasonNoCode},
		"inactive":        {voucherRequest(1, 1, "OFF"), pricing.ReasonInvalidOrInactive},
		"unknown":         {voucherRequest(1, 1, "NOPE"), pricing.ReasonInvalidOrInactive},
		"no session":      {voucherRequest(0, 1, "OFF"), ReasonInvalidSession},
		"unknown session": {voucherRequest(99, 1, "OFF"), ReasonInvalidSession},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp := env.services.Vouchers.Validate(context.Background(), tc.req)
			assert.False(t, resp.Valid)
			assert.Equal(t, tc.reason, resp.Reason)
			assert.Zero(t, resp.Discount.AmountGross)
		})
	}
}

func TestVoucherValidateDefaultsParticipantCount(t *testing.T) {
	env := newTestEnv()

	resp := env.services.Vouchers.Validate(context.Background(), voucherRequest(1, 0, ""))

	assert.Equal(t, 119.0, resp.Original.TotalGross)
	assert.Equal(t, 119.0, resp.Total.TotalGross)
}
