package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"labtable/internal/domain"
)

// AccountRepository defines the contract for account persistence.
// Balance-changing methods are conditional updates; only the ledger calls them.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// DebitIfSufficient subtracts amount only when the balance covers it and returns the new balance.
	// It fails with domain.ErrInsufficientBalance or domain.ErrAccountNotFound.
	DebitIfSufficient(ctx context.Context, id string, amount int64) (int64, error)
	Credit(ctx context.Context, id string, amount int64) (int64, error)
	Delete(ctx context.Context, id string) error
	RecordLoginFailure(ctx context.Context, id string, threshold int, lockUntil time.Time) (*domain.Account, error)
	ResetLoginFailures(ctx context.Context, id string) error
}

// UsageLogRepository defines the contract for the append-only usage log.
type UsageLogRepository interface {
	Append(ctx context.Context, entry *domain.UsageLogEntry) error
	SumDeltas(ctx context.Context, accountID string) (int64, error)
	ListByAccount(ctx context.Context, accountID string, offset, limit int) ([]domain.UsageLogEntry, int, error)
	SummarizeByAction(ctx context.Context, since, until time.Time) ([]domain.ActionTotal, error)
}

// RedeemCodeRepository defines the contract for redeem code persistence.
type RedeemCodeRepository interface {
	GetByCode(ctx context.Context, code string) (*domain.RedeemCode, error)
	// MarkUsed flips an unused code to used by accountID. It fails with
	// domain.ErrCodeAlreadyUsed when the code is no longer unused.
	MarkUsed(ctx context.Context, code, accountID string, at time.Time) error
	// Release returns a code marked used by accountID to unused.
	Release(ctx context.Context, code, accountID string) error
	CreateBatch(ctx context.Context, codes []domain.RedeemCode) (int, error)
}

// ArtifactRepository defines the contract for extraction artifact persistence.
// All account-scoped queries include accountID to enforce ownership at the data layer.
type ArtifactRepository interface {
	Create(ctx context.Context, artifact *domain.Artifact) error
	GetByID(ctx context.Context, accountID string, id uuid.UUID) (*domain.Artifact, error)
	ListActiveByAccount(ctx context.Context, accountID string, now time.Time, limit int) ([]domain.ArtifactSummary, error)
	// AttachPlot sets plot_key only while it is still NULL.
	AttachPlot(ctx context.Context, accountID string, id uuid.UUID, plotKey string) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Artifact, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountCreatedByAccount(ctx context.Context, since, until time.Time) (map[string]int64, error)
}
