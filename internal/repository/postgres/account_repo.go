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

type accountRepo struct {
	db *sqlx.DB
}

// NewAccountRepo creates a new PostgreSQL-backed AccountRepository.
func NewAccountRepo(db *sqlx.DB) port.AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) Create(ctx context.Context, account *domain.Account) error {
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	query := `INSERT INTO accounts (id, password_hash, balance, failed_logins, locked_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.PasswordHash, account.Balance, account.FailedLogins, account.LockedUntil,
		account.CreatedAt, account.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return domain.ErrAccountExists
		}
		return fmt.Errorf("accountRepo.Create: %w", err)
	}
	return nil
}

func (r *accountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	var account domain.Account
	err := r.db.GetContext(ctx, &account, "SELECT * FROM accounts WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("accountRepo.GetByID: %w", err)
	}
	return &account, nil
}

func (r *accountRepo) DebitIfSufficient(ctx context.Context, id string, amount int64) (int64, error) {
	var balance int64
	err := r.db.GetContext(ctx, &balance,
		`UPDATE accounts SET balance = balance - $1, updated_at = NOW()
		 WHERE id = $2 AND balance >= $1
		 RETURNING balance`, amount, id)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("accountRepo.DebitIfSufficient: %w", err)
	}

	// No row updated: either the account is missing or the balance is short.
	err = r.db.GetContext(ctx, &balance, "SELECT balance FROM accounts WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrAccountNotFound
		}
		return 0, fmt.Errorf("accountRepo.DebitIfSufficient lookup: %w", err)
	}
	return 0, domain.ErrInsufficientBalance
}

func (r *accountRepo) Credit(ctx context.Context, id string, amount int64) (int64, error) {
	var balance int64
	err := r.db.GetContext(ctx, &balance,
		`UPDATE accounts SET balance = balance + $1, updated_at = NOW()
		 WHERE id = $2
		 RETURNING balance`, amount, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrAccountNotFound
		}
		return 0, fmt.Errorf("accountRepo.Credit: %w", err)
	}
	return balance, nil
}

func (r *accountRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("accountRepo.Delete: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *accountRepo) RecordLoginFailure(ctx context.Context, id string, threshold int, lockUntil time.Time) (*domain.Account, error) {
	var account domain.Account
	err := r.db.GetContext(ctx, &account,
		`UPDATE accounts SET
			failed_logins = failed_logins + 1,
			locked_until = CASE WHEN failed_logins + 1 >= $2 THEN $3::timestamptz ELSE NULL END,
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING *`, id, threshold, lockUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("accountRepo.RecordLoginFailure: %w", err)
	}
	return &account, nil
}

func (r *accountRepo) ResetLoginFailures(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE accounts SET failed_logins = 0, locked_until = NULL, updated_at = NOW() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("accountRepo.ResetLoginFailures: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
