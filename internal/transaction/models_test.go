package transaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDepositTransitions(t *testing.T) {
	assert.True(t, CanTransition(KindDeposit, StatusPending, StatusSucceeded))
	assert.True(t, CanTransition(KindDeposit, StatusPending, StatusFailed))
	assert.True(t, CanTransition(KindDeposit, StatusPending, StatusAwaitingVerification))
	assert.True(t, CanTransition(KindDeposit, StatusAwaitingVerification, StatusSucceeded))

	assert.False(t, CanTransition(KindDeposit, StatusSucceeded, StatusFailed))
	assert.False(t, CanTransition(KindDeposit, StatusFailed, StatusSucceeded))
	assert.False(t, CanTransition(KindDeposit, StatusSucceeded, StatusCompleted))
	assert.False(t, CanTransition(KindDeposit, StatusPending, StatusPending))

	assert.True(t, IsTerminal(KindDeposit, StatusSucceeded))
	assert.True(t, IsTerminal(KindDeposit, StatusFailed))
	assert.False(t, IsTerminal(KindDeposit, StatusPending))
}

func TestWithdrawalTransitions(t *testing.T) {
	assert.True(t, CanTransition(KindWithdrawal, StatusPending, StatusSucceeded))
	assert.True(t, CanTransition(KindWithdrawal, StatusPending, StatusFailed))
	assert.True(t, CanTransition(KindWithdrawal, StatusSucceeded, StatusCompleted))
	assert.True(t, CanTransition(KindWithdrawal, StatusSucceeded, StatusFailed))

	assert.False(t, CanTransition(KindWithdrawal, StatusPending, StatusCompleted))
	assert.False(t, CanTransition(KindWithdrawal, StatusCompleted, StatusFailed))
	assert.False(t, CanTransition(KindWithdrawal, StatusFailed, StatusSucceeded))
	assert.False(t, CanTransition(KindWithdrawal, StatusPending, StatusAwaitingVerification))

	assert.False(t, IsTerminal(KindWithdrawal, StatusSucceeded))
	assert.True(t, IsTerminal(KindWithdrawal, StatusCompleted))
	assert.True(t, IsTerminal(KindWithdrawal, StatusFailed))
}

func TestKindValid(t *testing.T) {
	assert.True(t, KindDeposit.Valid())
	assert.True(t, KindWithdrawal.Valid())
	assert.False(t, Kind("bet").Valid())
	assert.False(t, CanTransition(Kind("bet"), StatusPending, StatusSucceeded))
}
