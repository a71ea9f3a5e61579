package service

import (
	"context"

	apperrors "seminarbuchung/internal/errors"
	"seminarbuchung/internal/logger"
	"seminarbuchung/internal/models"
	"seminarbuchung/internal/pricing"
)

const (
	ReasonInvalidSession = "invalid session"
	ReasonError          = "error"
)

// VoucherService quotes a voucher for the checkout. It never fails: every
// problem degrades to valid=false with a reason.
type VoucherService struct {
	quoter *pricing.Quoter
}

func NewVoucherService(quoter *pricing.Quoter) *VoucherService {
	return &VoucherService{quoter: quoter}
}

func (s *VoucherService) Validate(ctx context.Context, req *models.VoucherValidateRequest) models.VoucherValidateResponse {
	count := req.ParticipantCount
	if count < 1 {
		count = 1
	}

	if !req.SessionID.Valid {
		return models.VoucherValidateResponse{Reason: ReasonInvalidSession}
	}

	quote, err := s.quoter.Quote(ctx, pricing.QuoteInput{
		SessionID:        req.SessionID.ID,
		ParticipantCount: count,
		VoucherCode:      req.VoucherCode,
	})
	if err != nil {
		if apperrors.IsClientError(err) {
			return models.VoucherValidateResponse{Reason: ReasonInvalidSession}
		}
		logger.WithContext(ctx).Error("Voucher validation failed", "session_id", req.SessionID.ID, "error", err)
		return models.VoucherValidateResponse{Reason: ReasonError}
	}

	resp := models.VoucherValidateResponse{
		Valid:  quote.Voucher.Valid,
		Reason: quote.Voucher.Reason,
		Original: models.VoucherAmounts{
			PricePerSeatGross: quote.Original.GrossPerSeat,
			TotalGross:        quote.Original.TotalGross,
		},
		Discount: models.VoucherDiscount{
			AmountGross: quote.Voucher.DiscountGross,
		},
		Total: models.VoucherAmounts{
			PricePerSeatGross: quote.Final.GrossPerSeat,
			TotalGross:        quote.ExpectedTotal(),
		},
	}
	if v := quote.Voucher.Voucher; v != nil {
		value := v.Value
		resp.Discount.Kind = v.Kind
		resp.Discount.Value = &value
	}

	return resp
}
