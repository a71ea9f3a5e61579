package repository

import (
	"context"
	"database/sql"

	"seminarbuchung/internal/database"
	"seminarbuchung/internal/models"

	"github.com/lib/pq"
)

type VoucherRepository struct {
	db *database.DB
}

func NewVoucherRepository(db *database.DB) *VoucherRepository {
	return &VoucherRepository{db: db}
}

// FindByCodes returns the first voucher whose code equals any of codes
func (r *VoucherRepository) FindByCodes(ctx context.Context, codes []string) (*models.Voucher, error) {
	query := `
		SELECT id, code, kind, value, active,
		       to_char(valid_from, 'YYYY-MM-DD'), to_char(valid_to, 'YYYY-MM-DD'), usage_limit
		FROM vouchers
		WHERE code = ANY($1)
		ORDER BY id
		LIMIT 1`

	v := &models.Voucher{}
	var validFrom, validTo sql.NullString
	var usageLimit sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, pq.Array(codes)).Scan(
		&v.ID, &v.Code, &v.Kind, &v.Value, &v.Active, &validFrom, &validTo, &usageLimit,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	v.ValidFrom = stringPtr(validFrom)
	v.ValidTo = stringPtr(validTo)
	if usageLimit.Valid {
		limit := int(usageLimit.Int64)
		v.UsageLimit = &limit
	}
	return v, nil
}
