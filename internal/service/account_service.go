package service

import (
	"context"
	"fmt"

	"labtable/internal/domain"
	"labtable/internal/port"
)

// MeResult is the DTO for the current account view.
type MeResult struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
}

// RedeemInput is the DTO for redeem requests.
type RedeemInput struct {
	Code string `json:"code" binding:"required,min=6,max=64"`
}

// AccountService defines balance and usage queries plus code redemption.
type AccountService interface {
	Me(ctx context.Context, accountID string) (*MeResult, error)
	Redeem(ctx context.Context, accountID, code, ip string) (*domain.RedeemResult, error)
	Usage(ctx context.Context, accountID string, offset, limit int) ([]domain.UsageLogEntry, int, error)
}

type accountService struct {
	ledger port.Ledger
	logs   port.UsageLogRepository
}

// NewAccountService creates a new AccountService implementation.
func NewAccountService(ledger port.Ledger, logs port.UsageLogRepository) AccountService {
	return &accountService{ledger: ledger, logs: logs}
}

func (s *accountService) Me(ctx context.Context, accountID string) (*MeResult, error) {
	balance, err := s.ledger.Balance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &MeResult{AccountID: accountID, Balance: balance}, nil
}

func (s *accountService) Redeem(ctx context.Context, accountID, code, ip string) (*domain.RedeemResult, error) {
	return s.ledger.Redeem(ctx, accountID, code, domain.Meta{"ip": ip})
}

func (s *accountService) Usage(ctx context.Context, accountID string, offset, limit int) ([]domain.UsageLogEntry, int, error) {
	entries, total, err := s.logs.ListByAccount(ctx, accountID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("account.Usage: %w", err)
	}
	return entries, total, nil
}
