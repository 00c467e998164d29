package transaction

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryRepository is an in-process TransactionRepository for the memory
// storage driver and tests.
type MemoryRepository struct {
	mu  sync.RWMutex
	txs map[string]*Transaction
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{txs: make(map[string]*Transaction)}
}

func (r *MemoryRepository) Create(_ context.Context, tx *Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.txs[tx.Reference]; ok {
		return ErrDuplicateReference
	}
	if tx.TransactionID == "" {
		tx.TransactionID = uuid.New().String()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	tx.UpdatedAt = tx.CreatedAt
	stored := *tx
	r.txs[tx.Reference] = &stored
	return nil
}

func (r *MemoryRepository) FindByReference(_ context.Context, reference string) (*Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.txs[reference]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	out := *t
	return &out, nil
}

func (r *MemoryRepository) Transition(_ context.Context, tx *Transaction, to Status, reason string) error {
	if !CanTransition(tx.Kind, tx.Status, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, tx.Kind, tx.Status, to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.txs[tx.Reference]
	if !ok {
		return ErrTransactionNotFound
	}
	if stored.Status != tx.Status {
		return ErrStatusConflict
	}
	stored.Status = to
	if reason != "" {
		stored.FailureReason = reason
	}
	stored.UpdatedAt = time.Now()
	*tx = *stored
	return nil
}

func (r *MemoryRepository) SetCheckoutURL(_ context.Context, tx *Transaction, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.txs[tx.Reference]
	if !ok {
		return ErrTransactionNotFound
	}
	stored.CheckoutURL = &url
	stored.UpdatedAt = time.Now()
	*tx = *stored
	return nil
}

func (r *MemoryRepository) SumDeposits(_ context.Context, playerID string, from, to time.Time, statuses ...Status) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := decimal.Zero
	for _, t := range r.txs {
		if t.PlayerID != playerID || t.Kind != KindDeposit {
			continue
		}
		if t.CreatedAt.Before(from) || !t.CreatedAt.Before(to) {
			continue
		}
		for _, s := range statuses {
			if t.Status == s {
				total = total.Add(t.Amount)
				break
			}
		}
	}
	return total, nil
}

func (r *MemoryRepository) ListByPlayer(_ context.Context, playerID string, from, to time.Time) ([]Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Transaction
	for _, t := range r.txs {
		if t.PlayerID == playerID && !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) ListByStatus(_ context.Context, kind Kind, status Status, updatedBefore time.Time, limit int) ([]Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Transaction
	for _, t := range r.txs {
		if t.Kind == kind && t.Status == status && t.UpdatedAt.Before(updatedBefore) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].ReconciledAt, out[j].ReconciledAt
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) MarkReconciled(_ context.Context, reference string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.txs[reference]
	if !ok {
		return ErrTransactionNotFound
	}
	stored.ReconciledAt = &at
	return nil
}
