package domain_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labtable/internal/domain"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"nil", nil, ""},
		{"insufficient", domain.ErrInsufficientBalance, domain.KindInsufficientBalance},
		{"wrapped", fmt.Errorf("ledger.Consume: %w", domain.ErrCodeAlreadyUsed), domain.KindCodeAlreadyUsed},
		{"storage", domain.StorageError("accounts.debit", errors.New("conn reset")), domain.KindStorageFailure},
		{"upstream", domain.UpstreamError(errors.New("deadline")), domain.KindUpstreamFailure},
		{"artifact missing", domain.ErrArtifactNotFound, domain.KindNotFound},
		{"bad amount", domain.ErrInvalidAmount, domain.KindInvalidRequest},
		{"unclassified", errors.New("boom"), domain.KindInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, domain.Kind(tc.err))
		})
	}
}

func TestRefundFailedError(t *testing.T) {
	original := domain.UpstreamError(errors.New("timeout"))
	refund := domain.StorageError("accounts.credit", errors.New("db down"))
	err := error(&domain.RefundFailedError{Original: original, Refund: refund})

	assert.Equal(t, domain.KindUpstreamFailure, domain.Kind(err))
	assert.ErrorIs(t, err, domain.ErrUpstreamFailure)
	assert.ErrorIs(t, err, domain.ErrStorageFailure)
	assert.Contains(t, err.Error(), "refund failed")
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, domain.IsTerminal(domain.ErrInsufficientBalance))
	assert.True(t, domain.IsTerminal(fmt.Errorf("x: %w", domain.ErrForbidden)))
	assert.False(t, domain.IsTerminal(domain.UpstreamError(errors.New("x"))))
	assert.False(t, domain.IsTerminal(domain.StorageError("op", errors.New("x"))))
}

func TestImageKeyBelongsTo(t *testing.T) {
	assert.True(t, domain.ImageKeyBelongsTo("u/2023001/abc", "2023001"))
	assert.False(t, domain.ImageKeyBelongsTo("u/2023001/", "2023001"))
	assert.False(t, domain.ImageKeyBelongsTo("u/2023002/abc", "2023001"))
	assert.False(t, domain.ImageKeyBelongsTo("u/20230011/abc", "2023001"))
	assert.Equal(t, "u/a%2Fb/", domain.ImageKeyPrefix("a/b"))
	assert.False(t, domain.ImageKeyBelongsTo("u/a/b/x", "a/b"))
}

func TestArtifactIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := domain.Artifact{ExpiresAt: now}
	assert.True(t, a.IsExpired(now))
	assert.False(t, a.IsExpired(now.Add(-time.Second)))
}

func TestAccountIsLocked(t *testing.T) {
	now := time.Now()
	until := now.Add(time.Minute)
	assert.True(t, (&domain.Account{LockedUntil: &until}).IsLocked(now))
	assert.False(t, (&domain.Account{LockedUntil: &until}).IsLocked(until))
	assert.False(t, (&domain.Account{}).IsLocked(now))
}

func TestSchemaValidate(t *testing.T) {
	valid := func() domain.Schema {
		return domain.Schema{
			ExpID: "hall", Version: 1,
			MetaFields: []domain.SchemaField{{ID: "date", Type: domain.ColumnString}},
			Tables: []domain.SchemaTable{{
				ID: "t", Rows: 2,
				Columns: []domain.SchemaField{{ID: "a", Type: domain.ColumnNumber}},
			}},
		}
	}
	s := valid()
	require.NoError(t, s.Validate())

	mutations := map[string]func(*domain.Schema){
		"no id":          func(s *domain.Schema) { s.ExpID = "" },
		"zero version":   func(s *domain.Schema) { s.Version = 0 },
		"dup meta":       func(s *domain.Schema) { s.MetaFields = append(s.MetaFields, s.MetaFields[0]) },
		"dup table":      func(s *domain.Schema) { s.Tables = append(s.Tables, s.Tables[0]) },
		"too many rows":  func(s *domain.Schema) { s.Tables[0].Rows = domain.MaxTableRows + 1 },
		"no columns":     func(s *domain.Schema) { s.Tables[0].Columns = nil },
		"bad field type": func(s *domain.Schema) { s.MetaFields[0].Type = "date" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			s := valid()
			mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestPayloadScan(t *testing.T) {
	var p domain.Payload
	require.NoError(t, p.Scan([]byte(`{"exp_id":"hall","schema_version":1,"meta":{},"tables":{},"uncertain_fields":[]}`)))
	assert.Equal(t, "hall", p.ExpID)
	assert.Error(t, p.Scan(nil))
	assert.Error(t, p.Scan(42))
}
