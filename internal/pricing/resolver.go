package pricing

import (
	"context"
	"fmt"
	"math"

	apperrors "seminarbuchung/internal/errors"
	"seminarbuchung/internal/models"
)

// Config carries the pricing options read once at startup.
type Config struct {
	DefaultVATRate   float64
	PricesIncludeVAT bool
}

// CatalogReader is the read-only catalog access the resolver needs.
// Both methods return nil, nil when the record does not exist.
type CatalogReader interface {
	GetSession(ctx context.Context, id int64) (*models.Session, error)
	GetCourse(ctx context.Context, id int64) (*models.Course, error)
}

type PriceSource string

const (
	PriceSourceSession PriceSource = "session"
	PriceSourceCourse  PriceSource = "course"
)

// SeatPrice is the authoritative base price of one seat.
type SeatPrice struct {
	Amount        float64
	Source        PriceSource
	IncludesVAT   bool
	VATApplicable bool
	VATRate       float64
	Session       *models.Session
	Course        *models.Course
}

// Input seeds the money engine with the base amount as gross or net.
func (p *SeatPrice) Input(participantCount int) Input {
	amount := p.Amount
	in := Input{
		ParticipantCount: participantCount,
		VATApplicable:    p.VATApplicable,
		VATRate:          p.VATRate,
	}
	if p.IncludesVAT || !p.VATApplicable {
		in.GrossPerSeat = &amount
	} else {
		in.NetPerSeat = &amount
	}
	return in
}

type Resolver struct {
	catalog CatalogReader
	cfg     Config
}

func NewResolver(catalog CatalogReader, cfg Config) *Resolver {
	return &Resolver{catalog: catalog, cfg: cfg}
}

// ResolveSeatPrice returns session.price when usable, else the course default price.
// vatOverride replaces the course VAT flag when set.
func (r *Resolver) ResolveSeatPrice(ctx context.Context, sessionID int64, vatOverride *bool) (*SeatPrice, error) {
	session, err := r.catalog.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, &apperrors.SessionNotFoundError{SessionID: sessionID}
	}

	course, err := r.catalog.GetCourse(ctx, session.CourseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	price := &SeatPrice{
		IncludesVAT:   r.cfg.PricesIncludeVAT,
		VATApplicable: true,
		Session:       session,
		Course:        course,
	}

	switch {
	case usablePrice(session.Price):
		price.Amount = *session.Price
		price.Source = PriceSourceSession
	case course != nil && usablePrice(course.DefaultPrice):
		price.Amount = *course.DefaultPrice
		price.Source = PriceSourceCourse
	default:
		return nil, &apperrors.InvalidPriceError{SessionID: sessionID}
	}

	if course != nil {
		price.VATApplicable = course.VATApplicable
	}
	if vatOverride != nil {
		price.VATApplicable = *vatOverride
	}
	if price.VATApplicable {
		price.VATRate = r.cfg.DefaultVATRate
	}

	return price, nil
}

func usablePrice(p *float64) bool {
	return p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0) && *p > 0
}
