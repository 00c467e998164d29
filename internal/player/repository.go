package player

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPlayerNotFound    = errors.New("player not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("balance change must be positive")
	ErrPlayerExists      = errors.New("player already exists")
)

// Directory is the balance ledger owned by the player directory. Balance
// changes are single atomic operations; callers never read-then-write.
type Directory interface {
	GetPlayer(ctx context.Context, playerID string) (*Player, error)
	IncrementBalance(ctx context.Context, playerID string, amount decimal.Decimal) (*Player, error)
	DecrementBalance(ctx context.Context, playerID string, amount decimal.Decimal) (*Player, error)
	// CreditOnce increments the balance unless a credit with the same key was
	// already applied, in which case applied is false and the balance is
	// untouched.
	CreditOnce(ctx context.Context, playerID, key string, amount decimal.Decimal) (p *Player, applied bool, err error)
}

type PlayerRepository interface {
	Directory
	CreatePlayer(ctx context.Context, p *Player) error
}

type PlayerRepositoryImpl struct {
	db *gorm.DB
}

func NewPlayerRepositoryImpl(db *gorm.DB) PlayerRepository {
	return &PlayerRepositoryImpl{db: db}
}

func (r *PlayerRepositoryImpl) GetPlayer(ctx context.Context, playerID string) (*Player, error) {
	var p Player
	err := r.db.WithContext(ctx).Where("player_id = ?", playerID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return &p, nil
}

func (r *PlayerRepositoryImpl) CreatePlayer(ctx context.Context, p *Player) error {
	if p.RegisteredAt.IsZero() {
		p.RegisteredAt = time.Now()
	}
	p.UpdatedAt = p.RegisteredAt
	if p.Version == 0 {
		p.Version = 1
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrPlayerExists
		}
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

func (r *PlayerRepositoryImpl) IncrementBalance(ctx context.Context, playerID string, amount decimal.Decimal) (*Player, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return increment(r.db.WithContext(ctx), playerID, amount)
}

// CreditOnce writes the credit record and the balance change in one database
// transaction.
func (r *PlayerRepositoryImpl) CreditOnce(ctx context.Context, playerID, key string, amount decimal.Decimal) (*Player, bool, error) {
	if !amount.IsPositive() {
		return nil, false, ErrInvalidAmount
	}
	var (
		p       *Player
		applied bool
	)
	err := r.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		result := dbtx.Clauses(clause.OnConflict{DoNothing: true}).Create(&Credit{
			CreditKey: key,
			PlayerID:  playerID,
			Amount:    amount,
			CreatedAt: time.Now(),
		})
		if result.Error != nil {
			return fmt.Errorf("failed to record credit: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			var existing Player
			if err := dbtx.Where("player_id = ?", playerID).First(&existing).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrPlayerNotFound
				}
				return fmt.Errorf("failed to get player: %w", err)
			}
			p = &existing
			return nil
		}
		credited, err := increment(dbtx, playerID, amount)
		if err != nil {
			return err
		}
		p, applied = credited, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return p, applied, nil
}

func increment(db *gorm.DB, playerID string, amount decimal.Decimal) (*Player, error) {
	var p Player
	result := db.
		Model(&p).
		Clauses(clause.Returning{}).
		Where("player_id = ?", playerID).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", amount),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to increment balance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrPlayerNotFound
	}
	return &p, nil
}

// DecrementBalance debits only when the balance covers the amount; the check
// and the write are one conditional UPDATE.
func (r *PlayerRepositoryImpl) DecrementBalance(ctx context.Context, playerID string, amount decimal.Decimal) (*Player, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	var p Player
	result := r.db.WithContext(ctx).
		Model(&p).
		Clauses(clause.Returning{}).
		Where("player_id = ? AND balance >= ?", playerID, amount).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance - ?", amount),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to decrement balance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetPlayer(ctx, playerID); err != nil {
			return nil, err
		}
		return nil, ErrInsufficientFunds
	}
	return &p, nil
}
