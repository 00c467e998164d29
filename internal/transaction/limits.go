package transaction

import (
	"fmt"
	"slices"
	"strings"

	"cashier_service/internal/player"

	"github.com/shopspring/decimal"
)

type Limits struct {
	MinAmount       decimal.Decimal
	MaxAmount       decimal.Decimal
	DailyDepositCap decimal.Decimal
}

func DefaultLimits() Limits {
	return Limits{
		MinAmount:       decimal.NewFromInt(5),
		MaxAmount:       decimal.NewFromInt(25_000),
		DailyDepositCap: decimal.NewFromInt(200_000),
	}
}

// CheckAmount applies the per-transaction amount rules shared by deposits
// and withdrawals.
func (l Limits) CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be a positive number", ErrInvalidAmount)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: amount has more than two decimal places", ErrInvalidAmount)
	}
	if amount.LessThan(l.MinAmount) {
		return fmt.Errorf("%w: amount must be at least %s", ErrAmountBelowMinimum, l.MinAmount)
	}
	if amount.GreaterThan(l.MaxAmount) {
		return fmt.Errorf("%w: amount must not exceed %s", ErrAmountAboveMaximum, l.MaxAmount)
	}
	return nil
}

// CheckPlayer rejects players that may not move funds. A nil player is an
// unknown one.
func CheckPlayer(p *player.Player) error {
	if p == nil {
		return ErrUnknownPlayer
	}
	if p.IsBanned {
		return ErrBannedPlayer
	}
	return nil
}

// CheckDailyCap fails when depositedToday plus amount goes over the cap.
// Reaching the cap exactly is allowed.
func (l Limits) CheckDailyCap(depositedToday, amount decimal.Decimal) error {
	if depositedToday.Add(amount).GreaterThan(l.DailyDepositCap) {
		return fmt.Errorf("%w: %s already deposited today, cap is %s",
			ErrDailyLimitExceeded, depositedToday, l.DailyDepositCap)
	}
	return nil
}

func CheckFunds(balance, amount decimal.Decimal) error {
	if amount.GreaterThan(balance) {
		return ErrInsufficientFunds
	}
	return nil
}

// ValidateDeposit runs every deposit rule without side effects.
func (l Limits) ValidateDeposit(req DepositRequest, p *player.Player, depositedToday decimal.Decimal) error {
	if err := req.checkFields(); err != nil {
		return err
	}
	if err := l.CheckAmount(req.Amount); err != nil {
		return err
	}
	if err := CheckPlayer(p); err != nil {
		return err
	}
	return l.CheckDailyCap(depositedToday, req.Amount)
}

// ValidateWithdrawal runs every withdrawal rule without side effects.
func (l Limits) ValidateWithdrawal(req WithdrawRequest, p *player.Player) error {
	if err := req.checkFields(); err != nil {
		return err
	}
	if err := l.CheckAmount(req.Amount); err != nil {
		return err
	}
	if err := CheckPlayer(p); err != nil {
		return err
	}
	return CheckFunds(p.Balance, req.Amount)
}

func (r DepositRequest) checkFields() error {
	var missing []string
	for name, v := range map[string]string{
		"telegramId": r.PlayerID,
		"firstName":  r.FirstName,
		"lastName":   r.LastName,
		"phone":      r.Phone,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	return missingFields("required fields", missing)
}

func (r WithdrawRequest) checkFields() error {
	var missing []string
	for name, v := range map[string]string{
		"telegramId":     r.PlayerID,
		"account_name":   r.AccountName,
		"account_number": r.AccountNumber,
		"bank_code":      r.BankCode,
		"phone":          r.Phone,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	return missingFields("required transfer fields", missing)
}

func missingFields(what string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	slices.Sort(names)
	return fmt.Errorf("%w: missing %s: %s", ErrMissingField, what, strings.Join(names, ", "))
}
