package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Account is a billable identity. Balance is only ever changed by the ledger.
type Account struct {
	ID           string     `db:"id" json:"id"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Balance      int64      `db:"balance" json:"balance"`
	FailedLogins int        `db:"failed_logins" json:"-"`
	LockedUntil  *time.Time `db:"locked_until" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// IsLocked reports whether the account is inside a login lockout window at now.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// Meta is free-form context attached to a ledger operation and stored with its log entry.
type Meta map[string]any

// UsageLogEntry is one append-only row of the usage log.
type UsageLogEntry struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	AccountID string          `db:"account_id" json:"account_id"`
	Action    LedgerAction    `db:"action" json:"action"`
	Delta     int64           `db:"delta" json:"delta"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	Meta      json.RawMessage `db:"meta" json:"meta,omitempty"`
}

// RedeemCode is a one-shot voucher credited to the first account that redeems it.
type RedeemCode struct {
	Code      string     `db:"code" json:"code"`
	Amount    int64      `db:"amount" json:"amount"`
	Status    CodeStatus `db:"status" json:"status"`
	UsedBy    *string    `db:"used_by" json:"used_by,omitempty"`
	UsedAt    *time.Time `db:"used_at" json:"used_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Artifact is one persisted extraction result.
type Artifact struct {
	ID        uuid.UUID `db:"id" json:"id"`
	AccountID string    `db:"account_id" json:"-"`
	ExpID     string    `db:"exp_id" json:"exp_id"`
	Payload   Payload   `db:"payload" json:"payload"`
	ImageKey  string    `db:"image_key" json:"image_key"`
	PlotKey   *string   `db:"plot_key" json:"plot_key"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// IsExpired reports whether the artifact is past its retention deadline at now.
func (a *Artifact) IsExpired(now time.Time) bool {
	return !a.ExpiresAt.After(now)
}

// ArtifactSummary is the history listing view of an artifact.
type ArtifactSummary struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ExpID     string    `db:"exp_id" json:"exp_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	HasImage  bool      `db:"has_image" json:"has_image"`
	HasPlot   bool      `db:"has_plot" json:"has_plot"`
}

// ActionTotal aggregates usage log deltas for one account and action.
type ActionTotal struct {
	AccountID string       `db:"account_id"`
	Action    LedgerAction `db:"action"`
	Count     int64        `db:"count"`
	Sum       int64        `db:"sum"`
}

// RedeemResult is returned by a successful redeem.
type RedeemResult struct {
	Balance int64 `json:"balance"`
	Amount  int64 `json:"amount"`
}
