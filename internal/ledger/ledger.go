// Package ledger serializes every balance change of an account through one
// mailbox goroutine per account.
//
// Mailboxes are created on the first request for an account and retire after
// an idle period. Different accounts never wait on each other. Each operation
// is a short sequence of conditional store updates followed by a usage log
// append; when a later step fails the earlier ones are undone before the error
// reaches the caller.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"labtable/internal/domain"
	"labtable/internal/port"
)

// Config holds ledger settings.
type Config struct {
	IdleTimeout time.Duration
}

// Ledger implements port.Ledger.
type Ledger struct {
	accounts port.AccountRepository
	logs     port.UsageLogRepository
	codes    port.RedeemCodeRepository
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	boxes  map[string]*mailbox
	closed bool
	stop   chan struct{}
	wg     sync.WaitGroup
}

var _ port.Ledger = (*Ledger)(nil)

// New creates a Ledger. Call Close to stop its mailboxes.
func New(accounts port.AccountRepository, logs port.UsageLogRepository, codes port.RedeemCodeRepository, cfg Config) *Ledger {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}
	return &Ledger{
		accounts: accounts,
		logs:     logs,
		codes:    codes,
		cfg:      cfg,
		logger:   zap.L().With(zap.String("component", "ledger")),
		now:      func() time.Time { return time.Now().UTC() },
		boxes:    make(map[string]*mailbox),
		stop:     make(chan struct{}),
	}
}

// Close rejects new requests, lets every accepted request finish and waits
// for all mailboxes to exit.
func (l *Ledger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.stop)
	l.mu.Unlock()
	l.wg.Wait()
}

// Ready reports domain.ErrLedgerClosed once Close has been called.
func (l *Ledger) Ready(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return domain.ErrLedgerClosed
	}
	return nil
}

// Open creates account with its balance as the initial grant.
func (l *Ledger) Open(ctx context.Context, account *domain.Account, meta domain.Meta) (int64, error) {
	if account.Balance < 0 || account.Balance > domain.MaxInitialBalance {
		return 0, fmt.Errorf("ledger.Open: initial balance %d: %w", account.Balance, domain.ErrInvalidAmount)
	}
	rawMeta, err := encodeMeta(meta)
	if err != nil {
		return 0, err
	}
	return call(l, ctx, account.ID, func(ctx context.Context) (int64, error) {
		steps := []step{{
			name: "accounts.create",
			do:   func(ctx context.Context) error { return l.accounts.Create(ctx, account) },
			undo: func(ctx context.Context) error { return l.accounts.Delete(ctx, account.ID) },
		}}
		var entry *domain.UsageLogEntry
		if account.Balance > 0 {
			entry = l.entry(account.ID, domain.ActionGrant, account.Balance, rawMeta)
		}
		if err := l.apply(ctx, "open", account.ID, steps, entry); err != nil {
			return 0, err
		}
		return account.Balance, nil
	})
}

// Consume debits amount when the balance covers it and logs a negative delta.
func (l *Ledger) Consume(ctx context.Context, accountID string, amount int64, meta domain.Meta) (int64, error) {
	if err := validateAmount(amount); err != nil {
		return 0, err
	}
	rawMeta, err := encodeMeta(meta)
	if err != nil {
		return 0, err
	}
	return call(l, ctx, accountID, func(ctx context.Context) (int64, error) {
		var balance int64
		steps := []step{{
			name: "accounts.debit",
			do: func(ctx context.Context) error {
				b, err := l.accounts.DebitIfSufficient(ctx, accountID, amount)
				balance = b
				return err
			},
			undo: func(ctx context.Context) error {
				_, err := l.accounts.Credit(ctx, accountID, amount)
				return err
			},
		}}
		entry := l.entry(accountID, domain.ActionExtract, -amount, rawMeta)
		if err := l.apply(ctx, "consume", accountID, steps, entry); err != nil {
			return 0, err
		}
		return balance, nil
	})
}

// Refund credits amount and logs a positive delta. It has no upper bound on the
// resulting balance and is meant for compensating a consume.
func (l *Ledger) Refund(ctx context.Context, accountID string, amount int64, meta domain.Meta) (int64, error) {
	if err := validateAmount(amount); err != nil {
		return 0, err
	}
	rawMeta, err := encodeMeta(meta)
	if err != nil {
		return 0, err
	}
	return call(l, ctx, accountID, func(ctx context.Context) (int64, error) {
		var balance int64
		steps := []step{l.creditStep(accountID, amount, &balance)}
		entry := l.entry(accountID, domain.ActionRefund, amount, rawMeta)
		if err := l.apply(ctx, "refund", accountID, steps, entry); err != nil {
			return 0, err
		}
		return balance, nil
	})
}

// Redeem marks code used by accountID and credits its amount. A code is
// credited at most once: when the credit fails the code returns to unused.
func (l *Ledger) Redeem(ctx context.Context, accountID, code string, meta domain.Meta) (*domain.RedeemResult, error) {
	if n := len(code); n < domain.MinCodeLength || n > domain.MaxCodeLength {
		return nil, domain.ErrInvalidCode
	}
	logMeta := domain.Meta{"code": code}
	if meta != nil {
		logMeta["meta"] = meta
	}
	rawMeta, err := encodeMeta(logMeta)
	if err != nil {
		return nil, err
	}
	return call(l, ctx, accountID, func(ctx context.Context) (*domain.RedeemResult, error) {
		rc, err := l.codes.GetByCode(ctx, code)
		if err != nil {
			return nil, storeError("codes.get", err)
		}
		if rc.Status != domain.CodeUnused {
			return nil, domain.ErrCodeAlreadyUsed
		}
		// Only this mailbox deletes the account, so it cannot vanish before the credit.
		if _, err := l.accounts.GetByID(ctx, accountID); err != nil {
			return nil, storeError("accounts.get", err)
		}

		var balance int64
		steps := []step{
			{
				name: "codes.mark_used",
				do:   func(ctx context.Context) error { return l.codes.MarkUsed(ctx, code, accountID, l.now()) },
				undo: func(ctx context.Context) error { return l.codes.Release(ctx, code, accountID) },
			},
			l.creditStep(accountID, rc.Amount, &balance),
		}
		entry := l.entry(accountID, domain.ActionRedeem, rc.Amount, rawMeta)
		if err := l.apply(ctx, "redeem", accountID, steps, entry); err != nil {
			return nil, err
		}
		return &domain.RedeemResult{Balance: balance, Amount: rc.Amount}, nil
	})
}

// Record appends a zero-delta activity entry such as a login.
func (l *Ledger) Record(ctx context.Context, accountID string, action domain.LedgerAction, meta domain.Meta) error {
	rawMeta, err := encodeMeta(meta)
	if err != nil {
		return err
	}
	_, err = call(l, ctx, accountID, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.apply(ctx, string(action), accountID, nil, l.entry(accountID, action, 0, rawMeta))
	})
	return err
}

// Balance reads the current balance behind any queued operations of the account.
func (l *Ledger) Balance(ctx context.Context, accountID string) (int64, error) {
	return call(l, ctx, accountID, func(ctx context.Context) (int64, error) {
		a, err := l.accounts.GetByID(ctx, accountID)
		if err != nil {
			return 0, storeError("accounts.get", err)
		}
		return a.Balance, nil
	})
}

func (l *Ledger) creditStep(accountID string, amount int64, balance *int64) step {
	return step{
		name: "accounts.credit",
		do: func(ctx context.Context) error {
			b, err := l.accounts.Credit(ctx, accountID, amount)
			*balance = b
			return err
		},
		undo: func(ctx context.Context) error {
			_, err := l.accounts.DebitIfSufficient(ctx, accountID, amount)
			return err
		},
	}
}

func (l *Ledger) entry(accountID string, action domain.LedgerAction, delta int64, meta json.RawMessage) *domain.UsageLogEntry {
	return &domain.UsageLogEntry{
		ID:        uuid.New(),
		AccountID: accountID,
		Action:    action,
		Delta:     delta,
		CreatedAt: l.now(),
		Meta:      meta,
	}
}

func validateAmount(amount int64) error {
	if amount < domain.MinLedgerAmount || amount > domain.MaxLedgerAmount {
		return domain.ErrInvalidAmount
	}
	return nil
}

func encodeMeta(meta domain.Meta) (json.RawMessage, error) {
	if meta == nil {
		return json.RawMessage(`{}`), nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("ledger: encoding meta: %w", err)
	}
	return b, nil
}
