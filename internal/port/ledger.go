package port

import (
	"context"

	"labtable/internal/domain"
)

// Ledger is the only writer of account balances and the usage log. Requests for
// one account are applied strictly one at a time.
type Ledger interface {
	Open(ctx context.Context, account *domain.Account, meta domain.Meta) (int64, error)
	Consume(ctx context.Context, accountID string, amount int64, meta domain.Meta) (int64, error)
	Refund(ctx context.Context, accountID string, amount int64, meta domain.Meta) (int64, error)
	Redeem(ctx context.Context, accountID, code string, meta domain.Meta) (*domain.RedeemResult, error)
	Record(ctx context.Context, accountID string, action domain.LedgerAction, meta domain.Meta) error
	Balance(ctx context.Context, accountID string) (int64, error)
}
