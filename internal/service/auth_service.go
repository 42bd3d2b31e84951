package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"labtable/internal/config"
	"labtable/internal/domain"
	"labtable/internal/port"
)

const accessAudience = "access"

// Claims represents the JWT claims of an authenticated account.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string `json:"account_id"`
}

// RegisterInput is the DTO for admin account registration.
type RegisterInput struct {
	AccountID string `json:"account_id" binding:"required,min=1,max=64"`
	Password  string `json:"password" binding:"required,min=6,max=128"`
	Balance   *int64 `json:"balance" binding:"omitempty,min=0,max=1000000"`
}

// LoginInput is the DTO for login requests.
type LoginInput struct {
	AccountID string `json:"account_id" binding:"required,min=1,max=64"`
	Password  string `json:"password" binding:"required,min=1,max=128"`
	IP        string `json:"-"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	AccountID   string    `json:"account_id"`
	Balance     int64     `json:"balance"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AuthService defines the authentication contract.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.Account, error)
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	Logout(ctx context.Context, accountID, ip string) error
	ValidateToken(tokenString string) (*Claims, error)
}

type authService struct {
	accounts port.AccountRepository
	ledger   port.Ledger
	jwtCfg   config.JWTConfig
	authCfg  config.AuthConfig
	now      func() time.Time
	logger   *zap.Logger
}

// NewAuthService creates a new AuthService implementation.
func NewAuthService(
	accounts port.AccountRepository,
	ledger port.Ledger,
	jwtCfg config.JWTConfig,
	authCfg config.AuthConfig,
) AuthService {
	return &authService{
		accounts: accounts,
		ledger:   ledger,
		jwtCfg:   jwtCfg,
		authCfg:  authCfg,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   zap.L().With(zap.String("component", "auth")),
	}
}

// Register creates an account through the ledger so that a non-zero starting
// balance is recorded as a grant.
func (s *authService) Register(ctx context.Context, input RegisterInput) (*domain.Account, error) {
	if n := len(input.AccountID); n < 1 || n > 64 {
		return nil, fmt.Errorf("account id must be 1 to 64 characters: %w", domain.ErrInvalidInput)
	}
	if n := len(input.Password); n < 6 || n > 128 {
		return nil, fmt.Errorf("password must be 6 to 128 characters: %w", domain.ErrInvalidInput)
	}
	balance := s.authCfg.InitialBalance
	if input.Balance != nil {
		balance = *input.Balance
	}
	if balance < 0 || balance > domain.MaxInitialBalance {
		return nil, fmt.Errorf("balance must be 0 to %d: %w", domain.MaxInitialBalance, domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth.Register: hashing password: %w", err)
	}

	account := &domain.Account{
		ID:           input.AccountID,
		PasswordHash: string(hash),
		Balance:      balance,
	}
	if _, err := s.ledger.Open(ctx, account, domain.Meta{"source": "register"}); err != nil {
		return nil, err
	}
	s.logger.Info("account registered", zap.String("account_id", account.ID), zap.Int64("balance", balance))
	return account, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	account, err := s.accounts.GetByID(ctx, input.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth.Login: %w", err)
	}

	now := s.now()
	if account.IsLocked(now) {
		return nil, domain.ErrAccountLocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
		updated, ferr := s.accounts.RecordLoginFailure(ctx, account.ID, s.authCfg.LockoutThreshold, now.Add(s.authCfg.LockoutDuration))
		if ferr != nil {
			return nil, fmt.Errorf("auth.Login: recording failure: %w", ferr)
		}
		if updated.LockedUntil != nil {
			s.logger.Warn("account locked after failed logins",
				zap.String("account_id", account.ID),
				zap.Int("failed_logins", updated.FailedLogins),
				zap.String("ip", input.IP))
		}
		return nil, domain.ErrInvalidCredentials
	}

	if account.FailedLogins > 0 || account.LockedUntil != nil {
		if err := s.accounts.ResetLoginFailures(ctx, account.ID); err != nil {
			return nil, fmt.Errorf("auth.Login: resetting failures: %w", err)
		}
	}

	token, expiresAt, err := s.issueToken(account.ID, now)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Record(ctx, account.ID, domain.ActionLogin, domain.Meta{"ip": input.IP}); err != nil {
		return nil, err
	}

	return &LoginResult{
		AccountID:   account.ID,
		Balance:     account.Balance,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

// Logout records the logout. Tokens are stateless and simply expire.
func (s *authService) Logout(ctx context.Context, accountID, ip string) error {
	return s.ledger.Record(ctx, accountID, domain.ActionLogout, domain.Meta{"ip": ip})
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtCfg.Secret), nil
	}, jwt.WithAudience(accessAudience), jwt.WithIssuer(s.jwtCfg.Issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	if !token.Valid || claims.AccountID == "" {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

func (s *authService) issueToken(accountID string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.jwtCfg.AccessTokenExpiry)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    s.jwtCfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{accessAudience},
		},
		AccountID: accountID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtCfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expiresAt, nil
}
