package pricing

import (
	"context"
	"time"
)

// QuoteInput describes what is being priced. GrossPerSeat/NetPerSeat are an
// explicit seed that replaces the catalog base amount; they come from staff
// edits only and never from anonymous clients.
type QuoteInput struct {
	SessionID        int64
	ParticipantCount int
	VoucherCode      string
	VATApplicable    *bool
	GrossPerSeat     *float64
	NetPerSeat       *float64

	// VoucherAppliedAt is set when re-pricing a booking that already carries
	// VoucherCode; the voucher is then judged as of that time.
	VoucherAppliedAt time.Time
}

// Quote is the authoritative price of a booking.
type Quote struct {
	Seat     *SeatPrice
	Original Breakdown
	Voucher  VoucherResult
	Final    Breakdown
}

// ExpectedTotal is the gross amount a capture must match.
func (q *Quote) ExpectedTotal() float64 {
	return q.Final.TotalGross
}

type Quoter struct {
	resolver  *Resolver
	evaluator *Evaluator
}

func NewQuoter(resolver *Resolver, evaluator *Evaluator) *Quoter {
	return &Quoter{resolver: resolver, evaluator: evaluator}
}

// Quote runs resolver, money engine and voucher evaluator. A positive discount
// is spread over the seats and fed back into the money engine as the gross seed.
func (q *Quoter) Quote(ctx context.Context, in QuoteInput) (*Quote, error) {
	seat, err := q.resolver.ResolveSeatPrice(ctx, in.SessionID, in.VATApplicable)
	if err != nil {
		return nil, err
	}

	input := seat.Input(in.ParticipantCount)
	switch {
	case in.GrossPerSeat != nil:
		input.GrossPerSeat, input.NetPerSeat = in.GrossPerSeat, nil
	case in.NetPerSeat != nil:
		input.GrossPerSeat, input.NetPerSeat = nil, in.NetPerSeat
	}

	original, err := Derive(input)
	if err != nil {
		return nil, err
	}

	var voucher VoucherResult
	if in.VoucherAppliedAt.IsZero() {
		voucher, err = q.evaluator.Evaluate(ctx, in.VoucherCode, original.TotalGross, in.ParticipantCount)
	} else {
		voucher, err = q.evaluator.Reapply(ctx, in.VoucherCode, original.TotalGross, in.ParticipantCount, in.VoucherAppliedAt)
	}
	if err != nil {
		return nil, err
	}

	final := original
	if voucher.Valid && voucher.DiscountGross > 0 {
		perSeat := voucher.PerSeatGross
		final, err = Derive(Input{
			ParticipantCount: in.ParticipantCount,
			GrossPerSeat:     &perSeat,
			VATApplicable:    original.VATApplicable,
			VATRate:          original.VATRate,
		})
		if err != nil {
			return nil, err
		}
	}

	return &Quote{
		Seat:     seat,
		Original: original,
		Voucher:  voucher,
		Final:    final,
	}, nil
}
