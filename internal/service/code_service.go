package service

import (
	"context"
	"crypto/rand"
	"fmt"

	"labtable/internal/domain"
	"labtable/internal/port"
)

// CodeAlphabet omits characters that are easy to confuse when typed by hand.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

// GenerateCodesInput is the DTO for redeem code generation.
type GenerateCodesInput struct {
	Count  int
	Length int
	Amount int64
}

// CodeService issues redeem codes.
type CodeService interface {
	Generate(ctx context.Context, input GenerateCodesInput) ([]domain.RedeemCode, error)
}

type codeService struct {
	codes port.RedeemCodeRepository
}

// NewCodeService creates a new CodeService implementation.
func NewCodeService(codes port.RedeemCodeRepository) CodeService {
	return &codeService{codes: codes}
}

// Generate creates Count random unused codes. Codes that collide with existing
// ones are skipped by the store, so fewer than Count may be returned.
func (s *codeService) Generate(ctx context.Context, input GenerateCodesInput) ([]domain.RedeemCode, error) {
	if input.Count <= 0 || input.Count > 10000 {
		return nil, fmt.Errorf("count must be 1 to 10000: %w", domain.ErrInvalidInput)
	}
	if input.Length < 8 || input.Length > domain.MaxCodeLength {
		return nil, fmt.Errorf("length must be 8 to %d: %w", domain.MaxCodeLength, domain.ErrInvalidInput)
	}
	if input.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive: %w", domain.ErrInvalidInput)
	}

	codes := make([]domain.RedeemCode, 0, input.Count)
	seen := make(map[string]bool, input.Count)
	for len(codes) < input.Count {
		c, err := RandomCode(input.Length)
		if err != nil {
			return nil, err
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		codes = append(codes, domain.RedeemCode{Code: c, Amount: input.Amount, Status: domain.CodeUnused})
	}

	n, err := s.codes.CreateBatch(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("code.Generate: %w", err)
	}
	if n < len(codes) {
		return nil, fmt.Errorf("code.Generate: only %d of %d codes inserted, rerun for the rest", n, len(codes))
	}
	return codes, nil
}

// RandomCode returns a code of length n drawn uniformly from CodeAlphabet.
func RandomCode(n int) (string, error) {
	const limit = 256 - 256%len(CodeAlphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("reading random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, CodeAlphabet[int(b)%len(CodeAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
