package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrDuplicateReference = errors.New("transaction reference already used")
	// ErrStatusConflict means the stored status no longer matches the one the
	// caller transitioned from: another delivery got there first.
	ErrStatusConflict = errors.New("transaction status changed concurrently")
)

// TransactionRepository is the durable audit trail of every deposit and
// withdrawal attempt. Status is only ever changed through Transition.
type TransactionRepository interface {
	Create(ctx context.Context, tx *Transaction) error
	FindByReference(ctx context.Context, reference string) (*Transaction, error)
	// Transition moves tx from its current status to `to` if the stored row is
	// still in that status, and refreshes tx with the stored row.
	Transition(ctx context.Context, tx *Transaction, to Status, reason string) error
	SetCheckoutURL(ctx context.Context, tx *Transaction, url string) error
	// SumDeposits adds up the player's deposits in the given statuses created
	// in [from, to).
	SumDeposits(ctx context.Context, playerID string, from, to time.Time, statuses ...Status) (decimal.Decimal, error)
	ListByPlayer(ctx context.Context, playerID string, from, to time.Time) ([]Transaction, error)
	// ListByStatus returns transactions last updated before updatedBefore,
	// never-reconciled ones first, then the least recently reconciled.
	ListByStatus(ctx context.Context, kind Kind, status Status, updatedBefore time.Time, limit int) ([]Transaction, error)
	MarkReconciled(ctx context.Context, reference string, at time.Time) error
}

// SumSucceededDepositsForPlayerOnDate sums the settled deposits of the
// calendar day containing day.
func SumSucceededDepositsForPlayerOnDate(ctx context.Context, repo TransactionRepository, playerID string, day time.Time) (decimal.Decimal, error) {
	start, end := dayBounds(day)
	return repo.SumDeposits(ctx, playerID, start, end, StatusSucceeded)
}

// dayBounds returns [start, end) of the calendar day containing t in t's
// location.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

type TransactionRepositoryImpl struct {
	db *gorm.DB
}

func NewTransactionRepositoryImpl(db *gorm.DB) TransactionRepository {
	return &TransactionRepositoryImpl{db: db}
}

func (r *TransactionRepositoryImpl) Create(ctx context.Context, tx *Transaction) error {
	if tx.TransactionID == "" {
		tx.TransactionID = uuid.New().String()
	}
	now := time.Now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = tx.CreatedAt

	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepositoryImpl) FindByReference(ctx context.Context, reference string) (*Transaction, error) {
	var t Transaction
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &t, nil
}

func (r *TransactionRepositoryImpl) Transition(ctx context.Context, tx *Transaction, to Status, reason string) error {
	if !CanTransition(tx.Kind, tx.Status, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, tx.Kind, tx.Status, to)
	}

	updates := map[string]interface{}{
		"status":     string(to),
		"updated_at": time.Now(),
	}
	if reason != "" {
		updates["failure_reason"] = reason
	}

	var stored Transaction
	result := r.db.WithContext(ctx).
		Model(&stored).
		Clauses(clause.Returning{}).
		Where("reference = ? AND status = ?", tx.Reference, string(tx.Status)).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update transaction status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	*tx = stored
	return nil
}

func (r *TransactionRepositoryImpl) SetCheckoutURL(ctx context.Context, tx *Transaction, url string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("reference = ?", tx.Reference).
		Updates(map[string]interface{}{
			"checkout_url": url,
			"updated_at":   now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to store checkout url: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	tx.CheckoutURL = &url
	tx.UpdatedAt = now
	return nil
}

func (r *TransactionRepositoryImpl) SumDeposits(ctx context.Context, playerID string, from, to time.Time, statuses ...Status) (decimal.Decimal, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}

	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("player_id = ? AND kind = ? AND status IN ? AND created_at >= ? AND created_at < ?",
			playerID, string(KindDeposit), names, from, to).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum deposits: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (r *TransactionRepositoryImpl) ListByPlayer(ctx context.Context, playerID string, from, to time.Time) ([]Transaction, error) {
	var txs []Transaction
	err := r.db.WithContext(ctx).
		Where("player_id = ? AND created_at >= ? AND created_at < ?", playerID, from, to).
		Order("created_at DESC").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

func (r *TransactionRepositoryImpl) ListByStatus(ctx context.Context, kind Kind, status Status, updatedBefore time.Time, limit int) ([]Transaction, error) {
	var txs []Transaction
	err := r.db.WithContext(ctx).
		Where("kind = ? AND status = ? AND updated_at < ?", string(kind), string(status), updatedBefore).
		Order("reconciled_at ASC NULLS FIRST").
		Order("updated_at ASC").
		Limit(limit).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions by status: %w", err)
	}
	return txs, nil
}

func (r *TransactionRepositoryImpl) MarkReconciled(ctx context.Context, reference string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("reference = ?", reference).
		UpdateColumn("reconciled_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to mark transaction reconciled: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}
