package pricing

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"seminarbuchung/internal/models"
)

const (
	ReasonNoCode            = "no code"
	ReasonInvalidOrInactive = "invalid or inactive"
)

const isoDate = "2006-01-02"

// VoucherStore finds the first voucher whose code equals one of codes.
// It returns nil, nil when none matches.
type VoucherStore interface {
	FindByCodes(ctx context.Context, codes []string) (*models.Voucher, error)
}

// VoucherResult is the outcome of a voucher evaluation. An unusable code is a
// normal negative result, never an error.
type VoucherResult struct {
	Valid              bool
	Reason             string
	Voucher            *models.Voucher
	DiscountGross      float64
	OriginalTotalGross float64
	TotalGross         float64
	PerSeatGross       float64
}

type Evaluator struct {
	store VoucherStore
	now   func() time.Time
}

// NewEvaluator creates an evaluator; now defaults to time.Now.
func NewEvaluator(store VoucherStore, now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{store: store, now: now}
}

// Evaluate looks code up case-insensitively and computes its discount against originalTotalGross.
func (e *Evaluator) Evaluate(ctx context.Context, code string, originalTotalGross float64, participantCount int) (VoucherResult, error) {
	now := e.now()
	return e.evaluate(ctx, code, originalTotalGross, participantCount, func(v *models.Voucher) bool {
		return Usable(v, now)
	})
}

// Reapply re-prices a voucher that a booking already carries. The validity
// window is checked against appliedAt and the active flag is not consulted,
// so a voucher that expired or was switched off after checkout keeps its discount.
func (e *Evaluator) Reapply(ctx context.Context, code string, originalTotalGross float64, participantCount int, appliedAt time.Time) (VoucherResult, error) {
	return e.evaluate(ctx, code, originalTotalGross, participantCount, func(v *models.Voucher) bool {
		return InWindow(v, appliedAt)
	})
}

func (e *Evaluator) evaluate(ctx context.Context, code string, originalTotalGross float64, participantCount int, usable func(*models.Voucher) bool) (VoucherResult, error) {
	result := VoucherResult{
		OriginalTotalGross: originalTotalGross,
		TotalGross:         originalTotalGross,
		PerSeatGross:       spread(originalTotalGross, participantCount),
	}

	code = strings.TrimSpace(code)
	if code == "" {
		result.Reason = ReasonNoCode
		return result, nil
	}

	voucher, err := e.store.FindByCodes(ctx, codeVariants(code))
	if err != nil {
		return result, fmt.Errorf("failed to find voucher: %w", err)
	}
	if voucher == nil || !usable(voucher) {
		result.Reason = ReasonInvalidOrInactive
		return result, nil
	}

	result.Voucher = voucher
	result.DiscountGross = Discount(voucher, originalTotalGross)
	result.Valid = result.DiscountGross > 0
	if result.Valid && participantCount > 0 {
		result.TotalGross = Round2(math.Max(0, originalTotalGross-result.DiscountGross))
		result.PerSeatGross = spread(result.TotalGross, participantCount)
	}

	return result, nil
}

// Usable reports whether the voucher is active and today falls inside its window.
// Dates compare as ISO strings.
func Usable(v *models.Voucher, now time.Time) bool {
	return v != nil && v.Active && InWindow(v, now)
}

// InWindow reports whether the day of at lies inside the voucher's validity window
func InWindow(v *models.Voucher, at time.Time) bool {
	if v == nil {
		return false
	}
	today := at.UTC().Format(isoDate)
	if v.ValidFrom != nil && *v.ValidFrom != "" && *v.ValidFrom > today {
		return false
	}
	if v.ValidTo != nil && *v.ValidTo != "" && *v.ValidTo < today {
		return false
	}
	return true
}

// Discount returns the gross discount of v on total. It never exceeds total.
func Discount(v *models.Voucher, total float64) float64 {
	if v.Value <= 0 || total <= 0 {
		return 0
	}
	switch v.Kind {
	case models.VoucherKindFixedAmount:
		return math.Min(v.Value, total)
	case models.VoucherKindPercentage:
		return math.Min(Round2(total*v.Value/100), total)
	default:
		return 0
	}
}

func codeVariants(code string) []string {
	variants := []string{code}
	for _, c := range []string{strings.ToUpper(code), strings.ToLower(code)} {
		if c != code && c != variants[len(variants)-1] {
			variants = append(variants, c)
		}
	}
	return variants
}

func spread(total float64, participantCount int) float64 {
	if participantCount < 1 {
		return total
	}
	return Round2(total / float64(participantCount))
}
