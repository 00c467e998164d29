package transaction

import (
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
)

type Status string

const (
	StatusPending              Status = "pending"
	StatusAwaitingVerification Status = "awaiting_verification"
	StatusSucceeded            Status = "succeeded"
	StatusFailed               Status = "failed"
	StatusCompleted            Status = "completed"
)

// transitions is the complete set of allowed status changes per kind.
// AwaitingVerification is implicit: the engine moves deposits straight from
// Pending to their verified outcome.
var transitions = map[Kind]map[Status][]Status{
	KindDeposit: {
		StatusPending:              {StatusAwaitingVerification, StatusSucceeded, StatusFailed},
		StatusAwaitingVerification: {StatusSucceeded, StatusFailed},
	},
	KindWithdrawal: {
		StatusPending:   {StatusSucceeded, StatusFailed},
		StatusSucceeded: {StatusCompleted, StatusFailed},
	},
}

func (k Kind) Valid() bool {
	_, ok := transitions[k]
	return ok
}

// CanTransition reports whether a transaction of kind k may move from one
// status to another.
func CanTransition(k Kind, from, to Status) bool {
	for _, next := range transitions[k][from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func IsTerminal(k Kind, s Status) bool {
	return len(transitions[k][s]) == 0
}

type Transaction struct {
	TransactionID string          `gorm:"column:transaction_id;primaryKey;type:uuid" json:"transaction_id"`
	Reference     string          `gorm:"column:reference;type:varchar(64);not null;uniqueIndex" json:"reference"`
	PlayerID      string          `gorm:"column:player_id;type:varchar(64);not null;index:idx_transactions_player_created" json:"player_id"`
	Kind          Kind            `gorm:"column:kind;type:varchar(20);not null" json:"kind"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null" json:"amount"`
	Currency      string          `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Status        Status          `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CheckoutURL   *string         `gorm:"column:checkout_url;type:text" json:"checkout_url,omitempty"`
	FailureReason string          `gorm:"column:failure_reason;type:text;not null;default:''" json:"failure_reason,omitempty"`
	Email         string          `gorm:"column:email;type:varchar(255);not null;default:''" json:"email,omitempty"`
	AccountName   string          `gorm:"column:account_name;type:varchar(255);not null;default:''" json:"account_name,omitempty"`
	AccountNumber string          `gorm:"column:account_number;type:varchar(64);not null;default:''" json:"account_number,omitempty"`
	BankCode      string          `gorm:"column:bank_code;type:varchar(32);not null;default:''" json:"bank_code,omitempty"`
	CreatedAt     time.Time       `gorm:"column:created_at;not null;index:idx_transactions_player_created" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;not null" json:"updated_at"`
	// ReconciledAt is when the sweep last re-verified the transaction.
	ReconciledAt *time.Time `gorm:"column:reconciled_at" json:"reconciled_at,omitempty"`
}

type DepositRequest struct {
	PlayerID  string          `json:"telegramId"`
	Amount    decimal.Decimal `json:"amount"`
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	Phone     string          `json:"phone"`
	Email     string          `json:"email"`
}

type WithdrawRequest struct {
	PlayerID      string          `json:"telegramId"`
	Amount        decimal.Decimal `json:"amount"`
	AccountName   string          `json:"account_name"`
	AccountNumber string          `json:"account_number"`
	BankCode      string          `json:"bank_code"`
	Phone         string          `json:"phone"`
	Email         string          `json:"email"`
}

// CallbackResult is returned to the gateway and to callers of the verify
// flows. Replayed is set when the delivery changed nothing.
type CallbackResult struct {
	Message     string           `json:"message"`
	Transaction *Transaction     `json:"transaction"`
	Balance     *decimal.Decimal `json:"balance,omitempty"`
	Replayed    bool             `json:"replayed"`
}

type Update struct {
	Reference string          `json:"reference"`
	PlayerID  string          `json:"player_id"`
	Kind      Kind            `json:"kind"`
	Status    Status          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}
