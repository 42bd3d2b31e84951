package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labtable/internal/domain"
)

func logSum(entries []domain.UsageLogEntry) int64 {
	var sum int64
	for _, e := range entries {
		sum += e.Delta
	}
	return sum
}

func TestConsume_LastUnitGoesToExactlyOneCaller(t *testing.T) {
	store := newMemStore()
	store.seedAccount("s1", 1)
	l := newTestLedger(store)
	defer l.Close()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		balances []int64
		errs     []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := l.Consume(context.Background(), "s1", 1, nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			balances = append(balances, b)
		}()
	}
	wg.Wait()

	assert.Equal(t, []int64{0}, balances)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrInsufficientBalance)
	assert.Equal(t, int64(0), store.balance("s1"))
	assert.Len(t, store.entries("s1"), 1)
}

func TestConsume_LogsNegativeDelta(t *testing.T) {
	store := newMemStore()
	store.seedAccount("s1", 5)
	l := newTestLedger(store)
	defer l.Close()

	b, err := l.Consume(context.Background(), "s1", 2, domain.Meta{"exp_id": "hall"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), b)

	entries := store.entries("s1")
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActionExtract, entries[0].Action)
	assert.Equal(t, int64(-2), entries[0].Delta)
	assert.JSONEq(t, `{"exp_id":"hall"}`, string(entries[0].Meta))
}

func TestConsume_LogFailureRollsBackDebit(t *testing.T) {
	store := newMemStore()
	store.seedAccount("s1", 5)
	store.set(func(m *memStore) { m.failAppend = true })
	l := newTestLedger(store)
	defer l.Close()

	_, err := l.Consume(context.Background(), "s1", 1, nil)

	require.Error(t, err)
	assert.Equal(t, domain.KindStorageFailure, domain.Kind(err))
	assert.Equal(t, int64(5), store.balance("s1"))
	assert.Empty(t, store.entries("s1"))
}

func TestConsume_Errors(t *testing.T) {
	store := newMemStore()
	store.seedAccount("s1", 5)
	l := newTestLedger(store)
	defer l.Close()

	_, err := l.Consume(context.Background(), "ghost", 1, nil)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	for _, amount := range []int64{0, -1, 101} {
		_, err := l.Consume(context.Background(), "s1", amount, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, "amount %d", amount)
	}
	assert.Equal(t, int64(5), store.balance("s1"))
}

func TestRefund(t *testing.T) {
	store := newMemStore()
	store.seedAccount("s1", 4)
	l := newTestLedger(store)
	defer l.Close()

	b, err := l.Refund(context.Background(), "s1", 1, domain.Meta{"reason": "extract_failed"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), b)
	entries := store.entries("s1")
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActionRefund, entries[0].Action)
	assert.Equal(t, int64(1), entries[0].Delta)

	_, err = l.Refund(context.Background(), "ghost", 1, nil)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestRefund_LogFailureRollsBackCredit(t *testing.T) {
	store := newMemStore()
	store.seedAccount("s1", 4)
	store.set(func(m *memStore) { m.failAppend = true })
	l := newTestLedger(store)
	defer l.Close()

	_, err := l.Refund(context.Background(), "s1", 3, nil)
	assert.Equal(t, domain.KindStorageFailure, domain.Kind(err))
	assert.Equal(t, int64(4), store.balance("s1"))
}

func TestRedeem_CreditsAndMarksCode(t *testing.T) {
	store := newMemStore()
	store.seedAccount("s1", 3)
	store.seedCode("ABCDEFGH", 10)
	l := newTestLedger(store)
	defer l.Close()

	res, err := l.Redeem(context.Background(), "s1", "ABCDEFGH", nil)
	require.NoError(t, err)
	assert.Equal(t, &domain.RedeemResult{Balance: 13, Amount: 10}, res)

	code := store.code("ABCDEFGH")
	assert.Equal(t, domain.CodeUsed, code.Status)
	require.NotNil(t, code.UsedBy)
	assert.Equal(t, "s1", *code.UsedBy)

	entries := store.entries("s1")
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActionRedeem, entries[0].Action)
	assert.Equal(t, int64(10), entries[0].Delta)
	assert.JSONEq(t, `{"code":"ABCDEFGH"}`, string(entries[0].Meta))

	_, err = l.Redeem(context.Background(), "s1", "ABCDEFGH", nil)
	assert.ErrorIs(t, err, domain.ErrCodeAlreadyUsed)
}

func TestRedeem_ConcurrentAccountsOnlyOneWins(t *testing.T) {
	store := newMemStore()
	store.seedCode("SHARED-CODE", 7)
	const n = 12
	for i := 0; i < n; i++ {
		store.seedAccount(fmt.Sprintf("s%d", i), 0)
	}
	l := newTestLedger(store)
	defer l.Close()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []string
	)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("s%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Redeem(context.Background(), id, "SHARED-CODE", nil)
			if err == nil {
				mu.Lock()
				wins = append(wins, id)
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrCodeAlreadyUsed)
		}()
	}
	wg.Wait()

	require.Len(t, wins, 1)
	assert.Equal(t, int64(7), store.balance(wins[0]))
	total := int64(0)
	for i := 0; i < n; i++ {
		total += store.balance(fmt.Sprintf("s%d", i))
	}
	assert.Equal(t, int64(7), total)
}

func TestRedeem_CreditFailureReleasesCode(t *testing.T) {
	store := newMemStore()
	store.seedAccount("s1", 3)
	store.seedCode("ABCDEFGH", 10)
	store.set(func(m *memStore) { m.failCredit = true })
	l := newTestLedger(store)
	defer l.Close()

	_, err := l.Redeem(context.Background(), "s1", "ABCDEFGH", nil)
	assert.Equal(t, domain.KindStorageFailure, domain.Kind(err))
	assert.Equal(t, domain.CodeUnused, store.code("ABCDEFGH").Status)
	assert.Nil(t, store.code("ABCDEFGH").UsedBy)
	assert.Equal(t, int64(3), store.balance("s1"))
	assert.Empty(t, store.entries("s1"))
}

func TestRedeem_UnknownAccountLeavesCodeUnused(t *testing.T) {
	store := newMemStore()
	store.seedCode("ABCDEFGH", 10)
	l := newTestLedger(store)
	defer l.Close()

	_, err := l.Redeem(context.Background(), "ghost", "ABCDEFGH", nil)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.Equal(t, domain.KindAccountNotFound, domain.Kind(err))
	assert.Equal(t, domain.CodeUnused, store.code("ABCDEFGH").Status)
	store.set(func(m *memStore) { assert.Zero(t, m.markUsed) })
}

func TestRedeem_LogFailureUndoesCreditAndCode(t *testing.T) {
	store := newMemStore()
	store.seedAccount("s1", 3)
	store.seedCode("ABCDEFGH", 10)
	store.set(func(m *memStore) { m.failAppend = true })
	l := newTestLedger(store)
	defer l.Close()

	_, err := l.Redeem(context.Background(), "s1", "ABCDEFGH", nil)
	assert.Equal(t, domain.KindStorageFailure, domain.Kind(err))
	assert.Equal(t, int64(3), store.balance("s1"))
	assert.Equal(t, domain.CodeUnused, store.code("ABCDEFGH").Status)
}

func TestRedeem_Validation(t *testing.T) {
	store := newMemStore()
	store.seedAccount("s1", 3)
	l := newTestLedger(store)
	defer l.Close()

	_, err := l.Redeem(context.Background(), "s1", "short", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)

	_, err = l.Redeem(context.Background(), "s1", "NOSUCHCODE", nil)
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)
}

func TestOpen(t *testing.T) {
	store := newMemStore()
	l := newTestLedger(store)
	defer l.Close()

	b, err := l.Open(context.Background(), &domain.Account{ID: "s1", PasswordHash: "h", Balance: 20}, domain.Meta{"by": "admin"})
	require.NoError(t, err)
	assert.Equal(t, int64(20), b)
	entries := store.entries("s1")
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActionGrant, entries[0].Action)
	assert.Equal(t, int64(20), entries[0].Delta)

	_, err = l.Open(context.Background(), &domain.Account{ID: "s1"}, nil)
	assert.ErrorIs(t, err, domain.ErrAccountExists)

	_, err = l.Open(context.Background(), &domain.Account{ID: "s2"}, nil)
	require.NoError(t, err)
	assert.Empty(t, store.entries("s2"))

	_, err = l.Open(context.Background(), &domain.Account{ID: "s3", Balance: -1}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestOpen_GrantLogFailureRemovesAccount(t *testing.T) {
	store := newMemStore()
	store.set(func(m *memStore) { m.failAppend = true })
	l := newTestLedger(store)
	defer l.Close()

	_, err := l.Open(context.Background(), &domain.Account{ID: "s1", Balance: 5}, nil)
	require.Error(t, err)

	_, err = store.GetByID(context.Background(), "s1")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestRecordAndBalance(t *testing.T) {
	store := newMemStore()
	store.seedAccount("s1", 9)
	l := newTestLedger(store)
	defer l.Close()

	require.NoError(t, l.Record(context.Background(), "s1", domain.ActionLogin, domain.Meta{"ip": "10.0.0.1"}))
	b, err := l.Balance(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(9), b)

	entries := store.entries("s1")
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActionLogin, entries[0].Action)
	assert.Zero(t, entries[0].Delta)

	_, err = l.Balance(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestCanceledRequestIsNotApplied(t *testing.T) {
	store := newMemStore()
	store.seedAccount("s1", 5)
	l := newTestLedger(store)
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Consume(ctx, "s1", 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(5), store.balance("s1"))
}

func TestAccountsProceedIndependently(t *testing.T) {
	store := newMemStore()
	store.seedAccount("slow", 5)
	store.seedAccount("fast", 5)

	release := make(chan struct{})
	entered := make(chan struct{})
	store.set(func(m *memStore) {
		m.beforeDebit = func(id string) {
			if id == "slow" {
				close(entered)
				<-release
			}
		}
	})
	l := newTestLedger(store)
	defer l.Close()

	slowDone := make(chan error, 1)
	go func() {
		_, err := l.Consume(context.Background(), "slow", 1, nil)
		slowDone <- err
	}()
	<-entered

	b, err := l.Consume(context.Background(), "fast", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), b)

	select {
	case <-slowDone:
		t.Fatal("slow account finished before it was released")
	default:
	}
	close(release)
	require.NoError(t, <-slowDone)
}

func TestCallerCancelWhileQueuedDoesNotApply(t *testing.T) {
	store := newMemStore()
	store.seedAccount("s1", 5)

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	store.set(func(m *memStore) {
		m.beforeDebit = func(string) {
			select {
			case entered <- struct{}{}:
				<-release
			default:
			}
		}
	})
	l := newTestLedger(store)
	defer l.Close()

	first := make(chan error, 1)
	go func() {
		_, err := l.Consume(context.Background(), "s1", 1, nil)
		first <- err
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.Consume(ctx, "s1", 1, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-first)
	assert.Equal(t, int64(4), store.balance("s1"))
	assert.Len(t, store.entries("s1"), 1)
}

func TestMailboxRetiresWhenIdle(t *testing.T) {
	store := newMemStore()
	store.seedAccount("s1", 5)
	l := New(store, store, store, Config{IdleTimeout: 10 * time.Millisecond})
	defer l.Close()

	_, err := l.Consume(context.Background(), "s1", 1, nil)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return l.activeMailboxes() == 0 }, time.Second, 5*time.Millisecond)

	b, err := l.Consume(context.Background(), "s1", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), b)
}

func TestMailboxRetirementUnderLoad(t *testing.T) {
	store := newMemStore()
	store.seedAccount("s1", 1000)
	l := New(store, store, store, Config{IdleTimeout: time.Microsecond})
	defer l.Close()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Consume(context.Background(), "s1", 1, nil)
			assert.NoError(t, err)
		}()
		if i%20 == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	wg.Wait()

	assert.Equal(t, int64(800), store.balance("s1"))
	assert.Equal(t, int64(-200), logSum(store.entries("s1")))
}

func TestClose(t *testing.T) {
	store := newMemStore()
	store.seedAccount("s1", 5)
	l := newTestLedger(store)

	_, err := l.Consume(context.Background(), "s1", 1, nil)
	require.NoError(t, err)
	assert.NoError(t, l.Ready(context.Background()))

	l.Close()
	l.Close()
	assert.ErrorIs(t, l.Ready(context.Background()), domain.ErrLedgerClosed)

	_, err = l.Consume(context.Background(), "s1", 1, nil)
	assert.ErrorIs(t, err, domain.ErrLedgerClosed)
	assert.Equal(t, 0, l.activeMailboxes())
}

// op is one generated ledger request.
type op struct {
	account int
	kind    int
	amount  int64
}

func genOp() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 2),
		gen.IntRange(0, 2),
		gen.Int64Range(1, 4),
	).Map(func(v []interface{}) op {
		return op{account: v[0].(int), kind: v[1].(int), amount: v[2].(int64)}
	})
}

func TestLedgerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("balances match usage log sums and never go negative", prop.ForAll(
		func(ops []op, failEvery int) bool {
			store := newMemStore()
			accounts := []string{"a", "b", "c"}
			for _, id := range accounts {
				store.seedAccount(id, 0)
			}
			for i := range ops {
				store.seedCode(fmt.Sprintf("CODE-%04d", i), int64(i%5+1))
			}
			l := New(store, store, store, Config{IdleTimeout: time.Millisecond})

			var wg sync.WaitGroup
			for i, o := range ops {
				wg.Add(1)
				go func() {
					defer wg.Done()
					id := accounts[o.account]
					if failEvery > 0 && i%failEvery == 0 {
						store.set(func(m *memStore) { m.failAppend = !m.failAppend })
					}
					var err error
					switch o.kind {
					case 0:
						_, err = l.Consume(context.Background(), id, o.amount, nil)
					case 1:
						_, err = l.Refund(context.Background(), id, o.amount, nil)
					default:
						_, err = l.Redeem(context.Background(), id, fmt.Sprintf("CODE-%04d", i), nil)
					}
					if err != nil && !errors.Is(err, domain.ErrInsufficientBalance) && !errors.Is(err, domain.ErrStorageFailure) {
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()
			l.Close()

			for _, id := range accounts {
				b := store.balance(id)
				if b < 0 || b != logSum(store.entries(id)) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genOp()),
		gen.IntRange(0, 7),
	))

	properties.TestingRun(t)
}
