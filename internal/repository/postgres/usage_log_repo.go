package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"labtable/internal/domain"
	"labtable/internal/port"
)

type usageLogRepo struct {
	db *sqlx.DB
}

// NewUsageLogRepo creates a new PostgreSQL-backed UsageLogRepository.
func NewUsageLogRepo(db *sqlx.DB) port.UsageLogRepository {
	return &usageLogRepo{db: db}
}

func (r *usageLogRepo) Append(ctx context.Context, entry *domain.UsageLogEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO usage_logs (id, account_id, action, delta, created_at, meta)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.AccountID, entry.Action, entry.Delta, entry.CreatedAt, entry.Meta)
	if err != nil {
		return fmt.Errorf("usageLogRepo.Append: %w", err)
	}
	return nil
}

func (r *usageLogRepo) SumDeltas(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := r.db.GetContext(ctx, &sum,
		"SELECT COALESCE(SUM(delta), 0) FROM usage_logs WHERE account_id = $1", accountID)
	if err != nil {
		return 0, fmt.Errorf("usageLogRepo.SumDeltas: %w", err)
	}
	return sum, nil
}

func (r *usageLogRepo) ListByAccount(ctx context.Context, accountID string, offset, limit int) ([]domain.UsageLogEntry, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM usage_logs WHERE account_id = $1", accountID)
	if err != nil {
		return nil, 0, fmt.Errorf("usageLogRepo.ListByAccount count: %w", err)
	}

	var entries []domain.UsageLogEntry
	err = r.db.SelectContext(ctx, &entries,
		`SELECT id, account_id, action, delta, created_at, meta FROM usage_logs
		 WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("usageLogRepo.ListByAccount: %w", err)
	}
	return entries, total, nil
}

func (r *usageLogRepo) SummarizeByAction(ctx context.Context, since, until time.Time) ([]domain.ActionTotal, error) {
	var totals []domain.ActionTotal
	err := r.db.SelectContext(ctx, &totals,
		`SELECT account_id, action, COUNT(*) AS count, COALESCE(SUM(delta), 0) AS sum
		 FROM usage_logs
		 WHERE created_at >= $1 AND created_at < $2
		 GROUP BY account_id, action
		 ORDER BY account_id, action`, since, until)
	if err != nil {
		return nil, fmt.Errorf("usageLogRepo.SummarizeByAction: %w", err)
	}
	return totals, nil
}
