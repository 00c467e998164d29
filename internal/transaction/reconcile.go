package transaction

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cashier_service/internal/gateway"

	"go.uber.org/zap"
)

// ReconcileReport summarizes one sweep.
type ReconcileReport struct {
	Checked   int `json:"checked"`
	Credited  int `json:"credited"`
	Expired   int `json:"expired"`
	Completed int `json:"completed"`
	Unsettled int `json:"unsettled"`
	Stale     int `json:"stale"`
	Errors    int `json:"errors"`
}

// ReconcilePending re-verifies transactions whose callback never arrived. It
// goes through the same settlement path as the webhooks, so a sweep racing a
// callback is harmless.
func (s *Service) ReconcilePending(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	now := s.now()
	cutoff := now.Add(-s.cfg.ReconcileGrace)

	deposits, err := s.repo.ListByStatus(ctx, KindDeposit, StatusPending, cutoff, s.cfg.ReconcileBatch)
	if err != nil {
		return report, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	for _, tx := range deposits {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Checked++
		_, err := s.settleDeposit(ctx, tx.Reference)
		s.markReconciled(ctx, tx.Reference, now)
		switch {
		case err == nil:
			report.Credited++
		case s.cfg.DepositExpiry > 0 && now.Sub(tx.CreatedAt) > s.cfg.DepositExpiry && unpaid(err):
			if s.expireDeposit(ctx, tx.Reference) {
				report.Expired++
			} else {
				report.Errors++
			}
		case errors.Is(err, ErrVerificationFailed), unpaid(err):
			// Still waiting on the player.
		default:
			report.Errors++
			s.logger.Warn("deposit reconciliation failed",
				zap.String("reference", tx.Reference),
				zap.Error(err))
		}
	}

	withdrawals, err := s.repo.ListByStatus(ctx, KindWithdrawal, StatusSucceeded, cutoff, s.cfg.ReconcileBatch)
	if err != nil {
		return report, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	for _, tx := range withdrawals {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Checked++
		_, err := s.settleWithdrawal(ctx, tx.Reference)
		s.markReconciled(ctx, tx.Reference, now)
		switch {
		case err == nil:
			report.Completed++
		case errors.Is(err, ErrVerificationFailed):
			report.Unsettled++
		default:
			report.Errors++
			s.logger.Warn("withdrawal reconciliation failed",
				zap.String("reference", tx.Reference),
				zap.Error(err))
		}
	}

	// A Pending withdrawal past the grace period means the process stopped
	// between reserving funds and hearing back from the gateway.
	stuck, err := s.repo.ListByStatus(ctx, KindWithdrawal, StatusPending, cutoff, s.cfg.ReconcileBatch)
	if err != nil {
		return report, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	for _, tx := range stuck {
		report.Stale++
		s.markReconciled(ctx, tx.Reference, now)
		s.logger.Error("withdrawal stuck in pending",
			zap.String("reference", tx.Reference),
			zap.String("player_id", tx.PlayerID),
			zap.String("amount", tx.Amount.String()),
			zap.Bool("remediation_required", true))
	}

	s.logger.Info("reconciliation sweep finished",
		zap.Int("checked", report.Checked),
		zap.Int("credited", report.Credited),
		zap.Int("expired", report.Expired),
		zap.Int("completed", report.Completed),
		zap.Int("unsettled", report.Unsettled),
		zap.Int("stale", report.Stale),
		zap.Int("errors", report.Errors))
	return report, nil
}

// markReconciled moves the transaction to the back of the sweep order so
// transactions that never settle cannot crowd out the rest of the batch.
func (s *Service) markReconciled(ctx context.Context, ref string, at time.Time) {
	if err := s.repo.MarkReconciled(ctx, ref, at); err != nil {
		s.logger.Warn("failed to mark transaction reconciled",
			zap.String("reference", ref),
			zap.Error(err))
	}
}

func (s *Service) expireDeposit(ctx context.Context, ref string) bool {
	unlock, err := s.locker.Lock(ctx, "ref:"+ref)
	if err != nil {
		return false
	}
	defer unlock()

	tx, err := s.repo.FindByReference(ctx, ref)
	if err != nil || tx.Status != StatusPending {
		return false
	}
	if err := s.repo.Transition(ctx, tx, StatusFailed, "expired"); err != nil {
		s.logger.Warn("failed to expire deposit", zap.String("reference", ref), zap.Error(err))
		return false
	}
	s.published(tx)
	s.logger.Info("expired unpaid deposit", zap.String("reference", ref))
	return true
}

// unpaid reports whether err means the gateway has no successful payment for
// the reference, as opposed to the gateway being unreachable.
func unpaid(err error) bool {
	if errors.Is(err, ErrVerificationFailed) {
		return true
	}
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusBadRequest && apiErr.StatusCode < http.StatusInternalServerError
	}
	return false
}
