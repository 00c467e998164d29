package player

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryRepository keeps players in process. It serves the memory storage
// driver and tests.
type MemoryRepository struct {
	mu      sync.Mutex
	players map[string]*Player
	credits map[string]Credit
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		players: make(map[string]*Player),
		credits: make(map[string]Credit),
	}
}

func (r *MemoryRepository) CreatePlayer(_ context.Context, p *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[p.PlayerID]; ok {
		return ErrPlayerExists
	}
	if p.RegisteredAt.IsZero() {
		p.RegisteredAt = time.Now()
	}
	p.UpdatedAt = p.RegisteredAt
	p.Version = 1
	stored := *p
	r.players[p.PlayerID] = &stored
	return nil
}

func (r *MemoryRepository) GetPlayer(_ context.Context, playerID string) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	out := *p
	return &out, nil
}

func (r *MemoryRepository) IncrementBalance(_ context.Context, playerID string, amount decimal.Decimal) (*Player, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	p.Balance = p.Balance.Add(amount)
	p.Version++
	p.UpdatedAt = time.Now()
	out := *p
	return &out, nil
}

func (r *MemoryRepository) CreditOnce(_ context.Context, playerID, key string, amount decimal.Decimal) (*Player, bool, error) {
	if !amount.IsPositive() {
		return nil, false, ErrInvalidAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok {
		return nil, false, ErrPlayerNotFound
	}
	if _, done := r.credits[key]; done {
		out := *p
		return &out, false, nil
	}
	r.credits[key] = Credit{CreditKey: key, PlayerID: playerID, Amount: amount, CreatedAt: time.Now()}
	p.Balance = p.Balance.Add(amount)
	p.Version++
	p.UpdatedAt = time.Now()
	out := *p
	return &out, true, nil
}

func (r *MemoryRepository) DecrementBalance(_ context.Context, playerID string, amount decimal.Decimal) (*Player, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	if p.Balance.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}
	p.Balance = p.Balance.Sub(amount)
	p.Version++
	p.UpdatedAt = time.Now()
	out := *p
	return &out, nil
}
