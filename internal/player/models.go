package player

import (
	"time"

	"github.com/shopspring/decimal"
)

type Player struct {
	PlayerID     string          `gorm:"column:player_id;primaryKey;type:varchar(64)" json:"player_id"` // telegram id
	Name         string          `gorm:"column:name;type:varchar(100);not null" json:"name"`
	PhoneNumber  string          `gorm:"column:phone_number;type:varchar(20);not null" json:"phone_number"`
	IsBanned     bool            `gorm:"column:is_banned;not null;default:false" json:"is_banned"`
	Balance      decimal.Decimal `gorm:"column:balance;type:numeric(20,2);not null;default:0" json:"balance"`
	Version      int             `gorm:"column:version;not null;default:1" json:"-"`
	RegisteredAt time.Time       `gorm:"column:registered_at;not null;default:now()" json:"registered_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

type BalanceResponse struct {
	PlayerID string          `json:"player_id"`
	Balance  decimal.Decimal `json:"balance"`
}

// Credit records one keyed balance credit so a retried credit is applied at
// most once.
type Credit struct {
	CreditKey string          `gorm:"column:credit_key;primaryKey;type:varchar(128)" json:"credit_key"`
	PlayerID  string          `gorm:"column:player_id;type:varchar(64);not null;index" json:"player_id"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null" json:"amount"`
	CreatedAt time.Time       `gorm:"column:created_at;not null" json:"created_at"`
}

func (Credit) TableName() string { return "balance_credits" }
