package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"labtable/internal/domain"
	"labtable/internal/port"
)

type redeemCodeRepo struct {
	db *sqlx.DB
}

// NewRedeemCodeRepo creates a new PostgreSQL-backed RedeemCodeRepository.
func NewRedeemCodeRepo(db *sqlx.DB) port.RedeemCodeRepository {
	return &redeemCodeRepo{db: db}
}

func (r *redeemCodeRepo) GetByCode(ctx context.Context, code string) (*domain.RedeemCode, error) {
	var rc domain.RedeemCode
	err := r.db.GetContext(ctx, &rc, "SELECT * FROM redeem_codes WHERE code = $1", code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCodeNotFound
		}
		return nil, fmt.Errorf("redeemCodeRepo.GetByCode: %w", err)
	}
	return &rc, nil
}

func (r *redeemCodeRepo) MarkUsed(ctx context.Context, code, accountID string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE redeem_codes SET status = 'used', used_by = $1, used_at = $2
		 WHERE code = $3 AND status = 'unused'`, accountID, at, code)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrAccountNotFound
		}
		return fmt.Errorf("redeemCodeRepo.MarkUsed: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrCodeAlreadyUsed
	}
	return nil
}

// Release returns a code marked by accountID to unused. A code whose account
// was deleted in between has used_by NULL and is released as well.
func (r *redeemCodeRepo) Release(ctx context.Context, code, accountID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE redeem_codes SET status = 'unused', used_by = NULL, used_at = NULL
		 WHERE code = $1 AND status = 'used' AND (used_by = $2 OR used_by IS NULL)`, code, accountID)
	if err != nil {
		return fmt.Errorf("redeemCodeRepo.Release: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CreateBatch inserts codes as unused in one transaction, skipping codes that
// already exist, and returns how many were inserted.
func (r *redeemCodeRepo) CreateBatch(ctx context.Context, codes []domain.RedeemCode) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("redeemCodeRepo.CreateBatch begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	inserted := 0
	for i := range codes {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO redeem_codes (code, amount, status, created_at)
			 VALUES ($1, $2, 'unused', NOW())
			 ON CONFLICT (code) DO NOTHING`, codes[i].Code, codes[i].Amount)
		if err != nil {
			return 0, fmt.Errorf("redeemCodeRepo.CreateBatch: %w", err)
		}
		rows, _ := result.RowsAffected()
		inserted += int(rows)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("redeemCodeRepo.CreateBatch commit: %w", err)
	}
	return inserted, nil
}
