package pricing

import (
	"math"

	apperrors "seminarbuchung/internal/errors"
	"seminarbuchung/internal/models"
)

// roundingEpsilon nudges values like 1.005 (stored as 1.00499999...) over the half.
const roundingEpsilon = 1e-9

// Round2 rounds to 2 decimals, half away from zero.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.Round((v+math.Copysign(roundingEpsilon, v))*100) / 100
}

// GrossFromNet derives a gross amount for a VAT rate given in percent.
func GrossFromNet(net, rate float64) float64 {
	return Round2(net * (1 + rate/100))
}

// NetFromGross derives a net amount for a VAT rate given in percent.
func NetFromGross(gross, rate float64) float64 {
	return Round2(gross / (1 + rate/100))
}

// Input seeds the money engine. At most one of GrossPerSeat and NetPerSeat is
// used; when both are set gross wins and net is derived.
type Input struct {
	ParticipantCount int
	GrossPerSeat     *float64
	NetPerSeat       *float64
	VATApplicable    bool
	VATRate          float64
}

// Breakdown is the derived price of one line item and its totals.
type Breakdown struct {
	VATApplicable    bool
	VATRate          float64
	GrossPerSeat     float64
	NetPerSeat       float64
	VATPerSeat       float64
	TotalGross       float64
	TotalNet         float64
	TotalVAT         float64
	ParticipantCount int
}

// Derive computes per-seat and total gross, net and VAT, rounding after every step.
func Derive(in Input) (Breakdown, error) {
	if in.ParticipantCount < 1 {
		return Breakdown{}, &apperrors.PricingError{Reason: "participant count must be at least 1"}
	}

	var seed *float64
	seedIsGross := false
	switch {
	case in.GrossPerSeat != nil:
		seed, seedIsGross = in.GrossPerSeat, true
	case in.NetPerSeat != nil:
		seed = in.NetPerSeat
	default:
		return Breakdown{}, &apperrors.PricingError{Reason: "neither gross nor net price is set"}
	}
	if math.IsNaN(*seed) || math.IsInf(*seed, 0) || *seed < 0 {
		return Breakdown{}, &apperrors.PricingError{Reason: "price must be a finite, non-negative number"}
	}

	b := Breakdown{
		VATApplicable:    in.VATApplicable,
		ParticipantCount: in.ParticipantCount,
	}

	amount := Round2(*seed)
	if !in.VATApplicable {
		b.GrossPerSeat = amount
		b.NetPerSeat = amount
	} else {
		if in.VATRate < 0 || math.IsNaN(in.VATRate) || math.IsInf(in.VATRate, 0) {
			return Breakdown{}, &apperrors.PricingError{Reason: "VAT rate must be a non-negative number"}
		}
		b.VATRate = in.VATRate
		if seedIsGross {
			b.GrossPerSeat = amount
			b.NetPerSeat = NetFromGross(amount, in.VATRate)
		} else {
			b.NetPerSeat = amount
			b.GrossPerSeat = GrossFromNet(amount, in.VATRate)
		}
		b.VATPerSeat = Round2(b.GrossPerSeat - b.NetPerSeat)
	}

	count := float64(in.ParticipantCount)
	b.TotalGross = Round2(b.GrossPerSeat * count)
	b.TotalNet = Round2(b.NetPerSeat * count)
	b.TotalVAT = Round2(b.VATPerSeat * count)

	return b, nil
}

// Pricing converts the breakdown into the fields stored on a booking.
func (b Breakdown) Pricing() models.Pricing {
	return models.Pricing{
		VATApplicable:     b.VATApplicable,
		VATRate:           b.VATRate,
		PriceGrossPerSeat: b.GrossPerSeat,
		PriceNetPerSeat:   b.NetPerSeat,
		VATAmountPerSeat:  b.VATPerSeat,
		TotalGross:        b.TotalGross,
		TotalNet:          b.TotalNet,
		TotalVATAmount:    b.TotalVAT,
	}
}
