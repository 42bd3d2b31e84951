package ledger

import (
	"context"

	"go.uber.org/zap"

	"labtable/internal/domain"
)

// step is one durable mutation together with the update that reverses it.
type step struct {
	name string
	do   func(ctx context.Context) error
	undo func(ctx context.Context) error
}

// apply runs steps in order and then appends entry to the usage log. If a step
// or the append fails, the steps already done are undone in reverse order and
// the failure is returned. A nil entry skips the append.
func (l *Ledger) apply(ctx context.Context, op, accountID string, steps []step, entry *domain.UsageLogEntry) error {
	done := make([]step, 0, len(steps))
	for _, s := range steps {
		if err := s.do(ctx); err != nil {
			l.rollback(ctx, op, accountID, done)
			return storeError(s.name, err)
		}
		done = append(done, s)
	}
	if entry == nil {
		return nil
	}
	if err := l.logs.Append(ctx, entry); err != nil {
		l.rollback(ctx, op, accountID, done)
		return storeError("usage_log.append", err)
	}
	return nil
}

func (l *Ledger) rollback(ctx context.Context, op, accountID string, done []step) {
	for i := len(done) - 1; i >= 0; i-- {
		s := done[i]
		if err := s.undo(ctx); err != nil {
			// The store is now inconsistent with the log; the reconciler reports it.
			l.logger.Error("compensation failed",
				zap.String("op", op),
				zap.String("account_id", accountID),
				zap.String("step", s.name),
				zap.Error(err),
			)
		}
	}
}

// storeError keeps domain failures as they are and marks anything else as a
// store failure of op.
func storeError(op string, err error) error {
	if domain.Kind(err) != domain.KindInternal {
		return err
	}
	return domain.StorageError(op, err)
}
