package transaction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryTransition(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	tx := &Transaction{Reference: "withdraw-1", PlayerID: "p1", Kind: KindWithdrawal, Amount: dec("10"), Status: StatusPending}
	require.NoError(t, repo.Create(ctx, tx))
	assert.NotEmpty(t, tx.TransactionID)
	assert.ErrorIs(t, repo.Create(ctx, &Transaction{Reference: "withdraw-1"}), ErrDuplicateReference)

	stale := *tx
	require.NoError(t, repo.Transition(ctx, tx, StatusSucceeded, ""))
	assert.Equal(t, StatusSucceeded, tx.Status)

	assert.ErrorIs(t, repo.Transition(ctx, &stale, StatusFailed, "late"), ErrStatusConflict)
	assert.ErrorIs(t, repo.Transition(ctx, tx, StatusPending, ""), ErrInvalidTransition)

	require.NoError(t, repo.Transition(ctx, tx, StatusFailed, "refunded"))
	stored, err := repo.FindByReference(ctx, "withdraw-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Equal(t, "refunded", stored.FailureReason)

	_, err = repo.FindByReference(ctx, "missing")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestMemoryRepositoryQueries(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now()

	seed := []Transaction{
		{Reference: "txn-a", PlayerID: "p1", Kind: KindDeposit, Amount: dec("100"), Status: StatusSucceeded, CreatedAt: now},
		{Reference: "txn-b", PlayerID: "p1", Kind: KindDeposit, Amount: dec("50"), Status: StatusPending, CreatedAt: now},
		{Reference: "txn-c", PlayerID: "p1", Kind: KindDeposit, Amount: dec("70"), Status: StatusFailed, CreatedAt: now},
		{Reference: "txn-d", PlayerID: "p1", Kind: KindDeposit, Amount: dec("30"), Status: StatusSucceeded, CreatedAt: now.AddDate(0, 0, -1)},
		{Reference: "txn-e", PlayerID: "p2", Kind: KindDeposit, Amount: dec("90"), Status: StatusSucceeded, CreatedAt: now},
		{Reference: "withdraw-f", PlayerID: "p1", Kind: KindWithdrawal, Amount: dec("20"), Status: StatusSucceeded, CreatedAt: now},
	}
	for i := range seed {
		require.NoError(t, repo.Create(ctx, &seed[i]))
	}

	total, err := SumSucceededDepositsForPlayerOnDate(ctx, repo, "p1", now)
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(total), total.String())

	dayStart, dayEnd := dayBounds(now)
	total, err = repo.SumDeposits(ctx, "p1", dayStart, dayEnd, StatusSucceeded, StatusPending)
	require.NoError(t, err)
	assert.True(t, dec("150").Equal(total), total.String())

	start, end := dayBounds(now)
	txs, err := repo.ListByPlayer(ctx, "p1", start, end)
	require.NoError(t, err)
	assert.Len(t, txs, 4)

	pending, err := repo.ListByStatus(ctx, KindDeposit, StatusPending, now.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "txn-b", pending[0].Reference)

	limited, err := repo.ListByStatus(ctx, KindDeposit, StatusSucceeded, now.Add(time.Minute), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemoryRepositoryReconcileOrder(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now()

	for _, ref := range []string{"withdraw-a", "withdraw-b", "withdraw-c"} {
		require.NoError(t, repo.Create(ctx, &Transaction{
			Reference: ref, PlayerID: "p1", Kind: KindWithdrawal, Amount: dec("10"),
			Status: StatusSucceeded, CreatedAt: now,
		}))
		now = now.Add(time.Second)
	}
	require.NoError(t, repo.MarkReconciled(ctx, "withdraw-a", now))
	require.NoError(t, repo.MarkReconciled(ctx, "withdraw-b", now.Add(-time.Minute)))
	assert.ErrorIs(t, repo.MarkReconciled(ctx, "withdraw-x", now), ErrTransactionNotFound)

	got, err := repo.ListByStatus(ctx, KindWithdrawal, StatusSucceeded, now.Add(time.Minute), 10)
	require.NoError(t, err)
	var refs []string
	for _, tx := range got {
		refs = append(refs, tx.Reference)
	}
	assert.Equal(t, []string{"withdraw-c", "withdraw-b", "withdraw-a"}, refs)
}
