package pricing

import (
	"testing"

	apperrors "seminarbuchung/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestRound2(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{1.005, 1.01},
		{2.675, 2.68},
		{1.004, 1.00},
		{0.125, 0.13},
		{100.0, 100.0},
		{-1.005, -1.01},
		{0, 0},
		{19.999, 20.00},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Round2(c.in), "Round2(%v)", c.in)
	}
}

func TestDeriveGrossSeedWithVAT(t *testing.T) {
	b, err := Derive(Input{
		ParticipantCount: 2,
		GrossPerSeat:     ptr(119.00),
		VATApplicable:    true,
		VATRate:          19,
	})
	require.NoError(t, err)

	assert.Equal(t, 119.00, b.GrossPerSeat)
	assert.Equal(t, 100.00, b.NetPerSeat)
	assert.Equal(t, 19.00, b.VATPerSeat)
	assert.Equal(t, 238.00, b.TotalGross)
	assert.Equal(t, 200.00, b.TotalNet)
	assert.Equal(t, 38.00, b.TotalVAT)
	assert.Equal(t, 2, b.ParticipantCount)
}

func TestDeriveNetSeedWithVAT(t *testing.T) {
	b, err := Derive(Input{
		ParticipantCount: 3,
		NetPerSeat:       ptr(99.99),
		VATApplicable:    true,
		VATRate:          19,
	})
	require.NoError(t, err)

	assert.Equal(t, 99.99, b.NetPerSeat)
	assert.Equal(t, 118.99, b.GrossPerSeat)
	assert.Equal(t, 19.00, b.VATPerSeat)
	assert.Equal(t, 356.97, b.TotalGross)
	assert.Equal(t, 299.97, b.TotalNet)
	assert.Equal(t, 57.00, b.TotalVAT)
}

func TestDeriveGrossWinsOverNet(t *testing.T) {
	b, err := Derive(Input{
		ParticipantCount: 1,
		GrossPerSeat:     ptr(119),
		NetPerSeat:       ptr(1),
		VATApplicable:    true,
		VATRate:          19,
	})
	require.NoError(t, err)
	assert.Equal(t, 100.00, b.NetPerSeat)
}

func TestDeriveWithoutVATPassesThrough(t *testing.T) {
	for _, seed := range []Input{
		{ParticipantCount: 4, GrossPerSeat: ptr(49.95), VATApplicable: false, VATRate: 19},
		{ParticipantCount: 4, NetPerSeat: ptr(49.95), VATApplicable: false, VATRate: 7},
	} {
		b, err := Derive(seed)
		require.NoError(t, err)

		assert.Equal(t, b.GrossPerSeat, b.NetPerSeat)
		assert.Equal(t, 49.95, b.GrossPerSeat)
		assert.Zero(t, b.VATPerSeat)
		assert.Zero(t, b.TotalVAT)
		assert.Zero(t, b.VATRate)
		assert.Equal(t, b.TotalGross, b.TotalNet)
		assert.Equal(t, 199.80, b.TotalGross)
	}
}

func TestDeriveVATRoundTrip(t *testing.T) {
	for _, rate := range []float64{0, 7, 19, 20.5} {
		for cents := 1; cents <= 200000; cents += 37 {
			gross := float64(cents) / 100
			back := GrossFromNet(NetFromGross(gross, rate), rate)
			assert.InDelta(t, gross, back, 0.01+1e-9, "gross %.2f rate %v", gross, rate)
		}
	}
}

func TestDeriveTotalsArePerSeatTimesCount(t *testing.T) {
	for count := 1; count <= 12; count++ {
		b, err := Derive(Input{
			ParticipantCount: count,
			GrossPerSeat:     ptr(33.33),
			VATApplicable:    true,
			VATRate:          19,
		})
		require.NoError(t, err)

		assert.Equal(t, count, b.ParticipantCount)
		assert.Equal(t, Round2(b.GrossPerSeat*float64(count)), b.TotalGross)
		assert.Equal(t, Round2(b.NetPerSeat*float64(count)), b.TotalNet)
		assert.Equal(t, Round2(b.VATPerSeat*float64(count)), b.TotalVAT)
	}
}

func TestDeriveFailures(t *testing.T) {
	cases := map[string]Input{
		"no seed":        {ParticipantCount: 1, VATApplicable: true, VATRate: 19},
		"no seats":       {ParticipantCount: 0, GrossPerSeat: ptr(10)},
		"negative price": {ParticipantCount: 1, GrossPerSeat: ptr(-1)},
		"negative rate":  {ParticipantCount: 1, GrossPerSeat: ptr(10), VATApplicable: true, VATRate: -5},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Derive(in)
			var pricingErr *apperrors.PricingError
			assert.ErrorAs(t, err, &pricingErr)
		})
	}
}

func TestBreakdownPricing(t *testing.T) {
	b, err := Derive(Input{ParticipantCount: 2, GrossPerSeat: ptr(119), VATApplicable: true, VATRate: 19})
	require.NoError(t, err)

	p := b.Pricing()
	assert.True(t, p.VATApplicable)
	assert.Equal(t, 19.0, p.VATRate)
	assert.Equal(t, 119.0, p.PriceGrossPerSeat)
	assert.Equal(t, 238.0, p.TotalGross)
	assert.Equal(t, 38.0, p.TotalVATAmount)
}
