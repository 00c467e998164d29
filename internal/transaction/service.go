package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cashier_service/internal/cache"
	"cashier_service/internal/gateway"
	"cashier_service/internal/lock"
	"cashier_service/internal/metrics"
	"cashier_service/internal/player"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DepositReferencePrefix    = "txn"
	WithdrawalReferencePrefix = "withdraw"

	CompensationAttempts = 5
	CompensationBackoff  = 50 * time.Millisecond
)

// Gateway is the processor the engine settles through.
type Gateway interface {
	InitializePayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.Checkout, error)
	VerifyPayment(ctx context.Context, reference string) (*gateway.Verification, error)
	InitializeTransfer(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferReceipt, error)
	VerifyTransfer(ctx context.Context, reference string) (*gateway.Verification, error)
	ListBanks(ctx context.Context) ([]gateway.Bank, error)
}

// Config tunes the engine. ReconcileGrace is how long a transaction is left
// to its callback before the sweeper re-verifies it; DepositExpiry is the age
// after which an unverified Pending deposit is failed. PendingHold is how
// long an unpaid checkout keeps counting toward the daily cap.
type Config struct {
	Limits         Limits
	Currency       string
	BanksCacheTTL  time.Duration
	ReconcileGrace time.Duration
	DepositExpiry  time.Duration
	PendingHold    time.Duration
	ReconcileBatch int
}

func DefaultConfig() Config {
	return Config{
		Limits:         DefaultLimits(),
		Currency:       "ETB",
		BanksCacheTTL:  time.Hour,
		ReconcileGrace: 2 * time.Minute,
		DepositExpiry:  24 * time.Hour,
		PendingHold:    15 * time.Minute,
		ReconcileBatch: 100,
	}
}

type Dependencies struct {
	Repo     TransactionRepository
	Players  player.Directory
	Gateway  Gateway
	Verifier *SignatureVerifier
	Locker   lock.Locker
	Cache    *cache.ReadThrough
	Hub      *UpdateHub
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Service is the reconciliation engine. It is the only writer of
// Transaction status and the only caller of the balance ledger.
type Service struct {
	repo     TransactionRepository
	players  player.Directory
	gateway  Gateway
	verifier *SignatureVerifier
	locker   lock.Locker
	cache    *cache.ReadThrough
	hub      *UpdateHub
	metrics  *metrics.Metrics
	logger   *zap.Logger
	cfg      Config

	now           func() time.Time
	retryBackoff  time.Duration
	retryAttempts int
}

func NewService(deps Dependencies, cfg Config) *Service {
	s := &Service{
		repo:          deps.Repo,
		players:       deps.Players,
		gateway:       deps.Gateway,
		verifier:      deps.Verifier,
		locker:        deps.Locker,
		cache:         deps.Cache,
		hub:           deps.Hub,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		cfg:           cfg,
		now:           time.Now,
		retryBackoff:  CompensationBackoff,
		retryAttempts: CompensationAttempts,
	}
	if s.locker == nil {
		s.locker = lock.NewKeyedMutex()
	}
	if s.hub == nil {
		s.hub = NewUpdateHub()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.cache == nil {
		s.cache = cache.NewReadThrough(cache.NewMemoryStore(), s.logger)
	}
	if s.verifier == nil {
		s.verifier = NewSignatureVerifier("")
	}
	if s.cfg.Currency == "" {
		s.cfg.Currency = "ETB"
	}
	if s.cfg.ReconcileBatch <= 0 {
		s.cfg.ReconcileBatch = 100
	}
	return s
}

// Subscribe follows status changes of one player's transactions.
func (s *Service) Subscribe(playerID string) (<-chan Update, func()) {
	return s.hub.Subscribe(playerID)
}

func newReference(prefix string) string {
	return prefix + "-" + ulid.Make().String()
}

// Credit keys make balance credits idempotent per transaction.
func depositCreditKey(ref string) string { return "deposit:" + ref }
func releaseCreditKey(ref string) string { return "release:" + ref }

// Deposit validates the request, records a Pending deposit and opens a
// gateway checkout for it. The balance is untouched until the payment is
// verified.
func (s *Service) Deposit(ctx context.Context, req DepositRequest) (*Transaction, error) {
	unlock, err := s.locker.Lock(ctx, "player:"+req.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("%w: player lock: %v", ErrStorage, err)
	}
	defer unlock()

	p, err := s.findPlayer(ctx, req.PlayerID)
	if err != nil {
		return nil, err
	}
	depositedToday, err := s.dailyAccumulator(ctx, req.PlayerID)
	if err != nil {
		return nil, err
	}
	if err := s.cfg.Limits.ValidateDeposit(req, p, depositedToday); err != nil {
		return nil, err
	}

	tx := &Transaction{
		Reference: newReference(DepositReferencePrefix),
		PlayerID:  req.PlayerID,
		Kind:      KindDeposit,
		Amount:    req.Amount,
		Currency:  s.cfg.Currency,
		Status:    StatusPending,
		Email:     req.Email,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	// The Pending row now counts toward the cap, so other deposits for this
	// player may proceed.
	unlock()
	s.published(tx)

	log := s.logger.With(
		zap.String("reference", tx.Reference),
		zap.String("player_id", tx.PlayerID),
		zap.String("amount", tx.Amount.String()))

	checkout, err := s.gateway.InitializePayment(ctx, gateway.PaymentRequest{
		Amount:      tx.Amount,
		Currency:    tx.Currency,
		Email:       emailOrPlaceholder(req.Email),
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.Phone,
		TxRef:       tx.Reference,
	})
	if err != nil {
		log.Warn("deposit initialization failed", zap.Error(err))
		s.transitionDetached(ctx, tx, StatusFailed, err.Error())
		return nil, gatewayError(err)
	}

	if err := s.repo.SetCheckoutURL(context.WithoutCancel(ctx), tx, checkout.CheckoutURL); err != nil {
		log.Error("failed to store checkout url", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	log.Info("deposit initialized")
	return tx, nil
}

// Withdraw reserves the funds, records a Pending withdrawal and asks the
// gateway for the payout. Any failure after the debit gives the funds back.
func (s *Service) Withdraw(ctx context.Context, req WithdrawRequest) (*Transaction, error) {
	unlock, err := s.locker.Lock(ctx, "player:"+req.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("%w: player lock: %v", ErrStorage, err)
	}
	defer unlock()

	p, err := s.findPlayer(ctx, req.PlayerID)
	if err != nil {
		return nil, err
	}
	if err := s.cfg.Limits.ValidateWithdrawal(req, p); err != nil {
		return nil, err
	}

	if _, err := s.players.DecrementBalance(ctx, req.PlayerID, req.Amount); err != nil {
		switch {
		case errors.Is(err, player.ErrInsufficientFunds):
			return nil, ErrInsufficientFunds
		case errors.Is(err, player.ErrPlayerNotFound):
			return nil, ErrUnknownPlayer
		default:
			return nil, fmt.Errorf("%w: reserve funds: %v", ErrStorage, err)
		}
	}

	// Funds are reserved: from here the withdrawal either succeeds or is
	// compensated, the caller can no longer cancel it.
	ctx = context.WithoutCancel(ctx)

	tx := &Transaction{
		Reference:     newReference(WithdrawalReferencePrefix),
		PlayerID:      req.PlayerID,
		Kind:          KindWithdrawal,
		Amount:        req.Amount,
		Currency:      s.cfg.Currency,
		Status:        StatusPending,
		Email:         req.Email,
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
		BankCode:      req.BankCode,
		CreatedAt:     s.now(),
	}
	log := s.logger.With(
		zap.String("reference", tx.Reference),
		zap.String("player_id", tx.PlayerID),
		zap.String("amount", tx.Amount.String()))

	if err := s.repo.Create(ctx, tx); err != nil {
		log.Error("failed to record withdrawal, releasing reserved funds", zap.Error(err))
		if cErr := s.compensate(ctx, tx); cErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompensationFailed, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	unlock()
	s.published(tx)

	receipt, err := s.gateway.InitializeTransfer(ctx, gateway.TransferRequest{
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Email:         emailOrPlaceholder(req.Email),
		PhoneNumber:   NormalizePhone(req.Phone),
		Reference:     tx.Reference,
		BankCode:      req.BankCode,
	})
	if err == nil && (receipt == nil || !receipt.Accepted) {
		err = fmt.Errorf("%w: transfer not accepted", gateway.ErrRejected)
	}
	if err != nil {
		log.Warn("withdrawal initiation failed, compensating", zap.Error(err))
		cErr := s.compensate(ctx, tx)
		s.transitionDetached(ctx, tx, StatusFailed, err.Error())
		if cErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompensationFailed, err)
		}
		return nil, gatewayError(err)
	}

	if err := s.transitionWithRetry(ctx, tx, StatusSucceeded, ""); err != nil {
		log.Error("payout accepted but status not recorded",
			zap.Bool("remediation_required", true),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	s.published(tx)

	log.Info("withdrawal submitted")
	return tx, nil
}

// VerifyDeposit handles the deposit webhook. The payload must carry a valid
// signature; the outcome is taken from the gateway, never from the payload.
func (s *Service) VerifyDeposit(ctx context.Context, payload []byte, signatures ...string) (*CallbackResult, error) {
	ref, err := s.authenticate(payload, signatures)
	if err != nil {
		s.metrics.Callback("deposit", outcome(err))
		return nil, err
	}
	res, err := s.settleDeposit(ctx, ref)
	s.metrics.Callback("deposit", callbackOutcome(res, err))
	return res, err
}

// VerifyWithdraw handles the payout webhook.
func (s *Service) VerifyWithdraw(ctx context.Context, payload []byte, signatures ...string) (*CallbackResult, error) {
	ref, err := s.authenticate(payload, signatures)
	if err != nil {
		s.metrics.Callback("withdrawal", outcome(err))
		return nil, err
	}
	res, err := s.settleWithdrawal(ctx, ref)
	s.metrics.Callback("withdrawal", callbackOutcome(res, err))
	return res, err
}

func (s *Service) authenticate(payload []byte, signatures []string) (string, error) {
	ref, err := extractReference(payload)
	if err != nil {
		return "", err
	}
	if err := s.verifier.Verify(payload, signatures...); err != nil {
		s.logger.Warn("rejected callback with bad signature", zap.String("reference", ref))
		return "", err
	}
	return ref, nil
}

// settleDeposit credits the verified amount before recording Succeeded, so a
// Succeeded deposit is always a credited one. The credit is keyed by the
// reference: when the status write fails after the credit, a redelivery or
// the sweep records it without crediting again.
func (s *Service) settleDeposit(ctx context.Context, ref string) (*CallbackResult, error) {
	unlock, err := s.locker.Lock(ctx, "ref:"+ref)
	if err != nil {
		return nil, fmt.Errorf("%w: reference lock: %v", ErrStorage, err)
	}
	defer unlock()

	tx, err := s.findReference(ctx, ref, KindDeposit)
	if err != nil {
		return nil, err
	}
	if IsTerminal(tx.Kind, tx.Status) {
		return replayed(tx), nil
	}

	log := s.logger.With(zap.String("reference", ref), zap.String("player_id", tx.PlayerID))

	v, err := s.gateway.VerifyPayment(ctx, ref)
	if err != nil {
		log.Warn("payment verification call failed", zap.Error(err))
		return nil, gatewayError(err)
	}
	if err := matchVerification(v, tx, ErrPaymentNotVerified); err != nil {
		log.Info("payment not verified, leaving pending", zap.Error(err))
		return nil, err
	}

	amount := v.Amount
	if !amount.IsPositive() {
		amount = tx.Amount
	} else if !amount.Equal(tx.Amount) {
		log.Warn("verified amount differs from requested amount",
			zap.String("requested", tx.Amount.String()),
			zap.String("verified", amount.String()))
	}

	ctx = context.WithoutCancel(ctx)
	var (
		credited *player.Player
		applied  bool
	)
	err = s.retry(ctx, func() error {
		p, ok, err := s.players.CreditOnce(ctx, tx.PlayerID, depositCreditKey(ref), amount)
		credited, applied = p, ok
		return err
	})
	if err != nil {
		log.Error("deposit verified but balance not credited, leaving pending",
			zap.String("amount", amount.String()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrCreditFailed, err)
	}
	if !applied {
		log.Info("deposit already credited, recording status")
	}

	if err := s.transitionWithRetry(ctx, tx, StatusSucceeded, ""); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return s.reloadReplay(ctx, ref)
		}
		log.Error("deposit credited but status not recorded", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	s.published(tx)

	log.Info("deposit verified and credited", zap.String("amount", amount.String()))
	return &CallbackResult{
		Message:     "Payment verified and balance updated successfully",
		Transaction: tx,
		Balance:     &credited.Balance,
	}, nil
}

func (s *Service) settleWithdrawal(ctx context.Context, ref string) (*CallbackResult, error) {
	unlock, err := s.locker.Lock(ctx, "ref:"+ref)
	if err != nil {
		return nil, fmt.Errorf("%w: reference lock: %v", ErrStorage, err)
	}
	defer unlock()

	tx, err := s.findReference(ctx, ref, KindWithdrawal)
	if err != nil {
		return nil, err
	}
	if IsTerminal(tx.Kind, tx.Status) {
		return replayed(tx), nil
	}
	if tx.Status != StatusSucceeded {
		return nil, fmt.Errorf("%w: withdrawal %s is %s", ErrInvalidTransition, ref, tx.Status)
	}

	log := s.logger.With(zap.String("reference", ref), zap.String("player_id", tx.PlayerID))

	v, err := s.gateway.VerifyTransfer(ctx, ref)
	if err != nil {
		log.Warn("transfer verification call failed", zap.Error(err))
		return nil, gatewayError(err)
	}
	if err := matchVerification(v, tx, ErrTransferNotVerified); err != nil {
		s.metrics.UnsettledWithdrawal()
		log.Error("payout verification did not succeed, withdrawal stays succeeded",
			zap.Bool("remediation_required", true),
			zap.Error(err))
		return nil, err
	}

	if err := s.repo.Transition(context.WithoutCancel(ctx), tx, StatusCompleted, ""); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return s.reloadReplay(ctx, ref)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	s.published(tx)

	log.Info("withdrawal completed")
	return &CallbackResult{
		Message:     "Withdrawal completed successfully.",
		Transaction: tx,
	}, nil
}

// RefundWithdrawal is the manual remediation for a payout the gateway never
// settled: the withdrawal is failed and its amount credited back.
func (s *Service) RefundWithdrawal(ctx context.Context, ref, reason string) (*CallbackResult, error) {
	unlock, err := s.locker.Lock(ctx, "ref:"+ref)
	if err != nil {
		return nil, fmt.Errorf("%w: reference lock: %v", ErrStorage, err)
	}
	defer unlock()

	tx, err := s.findReference(ctx, ref, KindWithdrawal)
	if err != nil {
		return nil, err
	}
	if tx.Status != StatusSucceeded {
		return nil, fmt.Errorf("%w: only succeeded withdrawals can be refunded, %s is %s",
			ErrInvalidTransition, ref, tx.Status)
	}
	if strings.TrimSpace(reason) == "" {
		reason = "refunded by operator"
	}

	ctx = context.WithoutCancel(ctx)
	if err := s.repo.Transition(ctx, tx, StatusFailed, reason); err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return nil, fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, ref)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	s.published(tx)

	if err := s.compensate(ctx, tx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompensationFailed, err)
	}
	p, err := s.players.GetPlayer(ctx, tx.PlayerID)
	if err != nil {
		return &CallbackResult{Message: "Withdrawal refunded.", Transaction: tx}, nil
	}
	return &CallbackResult{Message: "Withdrawal refunded.", Transaction: tx, Balance: &p.Balance}, nil
}

// ListPayoutDestinations returns the banks a withdrawal can be sent to.
func (s *Service) ListPayoutDestinations(ctx context.Context) ([]gateway.Bank, error) {
	key := cache.Fingerprint("banks", "GET", "/v1/banks")
	banks, err := cache.GetOrLoad(ctx, s.cache, key, s.cfg.BanksCacheTTL, s.gateway.ListBanks)
	if err != nil {
		return nil, gatewayError(err)
	}
	return banks, nil
}

func (s *Service) GetTransaction(ctx context.Context, ref string) (*Transaction, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, ErrMissingReference
	}
	tx, err := s.repo.FindByReference(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return tx, nil
}

// ListPlayerTransactions returns the player's transactions created in the
// calendar days [from, to].
func (s *Service) ListPlayerTransactions(ctx context.Context, playerID string, from, to time.Time) ([]Transaction, error) {
	if strings.TrimSpace(playerID) == "" {
		return nil, fmt.Errorf("%w: telegramId", ErrMissingField)
	}
	start, _ := dayBounds(from)
	_, end := dayBounds(to)
	if !start.Before(end) {
		return nil, ErrInvalidDateRange
	}
	txs, err := s.repo.ListByPlayer(ctx, playerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return txs, nil
}

func (s *Service) Balance(ctx context.Context, playerID string) (*player.BalanceResponse, error) {
	p, err := s.lookupPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return &player.BalanceResponse{PlayerID: p.PlayerID, Balance: p.Balance}, nil
}

// dailyAccumulator sums today's settled deposits plus checkouts opened within
// the pending hold. Older unpaid checkouts no longer count; if one is paid
// later it counts again once Succeeded.
func (s *Service) dailyAccumulator(ctx context.Context, playerID string) (decimal.Decimal, error) {
	now := s.now()
	start, end := dayBounds(now)
	settled, err := s.repo.SumDeposits(ctx, playerID, start, end, StatusSucceeded)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if s.cfg.PendingHold <= 0 {
		return settled, nil
	}
	from := now.Add(-s.cfg.PendingHold)
	if from.Before(start) {
		from = start
	}
	inFlight, err := s.repo.SumDeposits(ctx, playerID, from, end, StatusPending, StatusAwaitingVerification)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return settled.Add(inFlight), nil
}

func (s *Service) lookupPlayer(ctx context.Context, playerID string) (*player.Player, error) {
	p, err := s.findPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	return p, nil
}

// findPlayer returns a nil player, not an error, when the player is unknown.
func (s *Service) findPlayer(ctx context.Context, playerID string) (*player.Player, error) {
	p, err := s.players.GetPlayer(ctx, playerID)
	if err != nil {
		if errors.Is(err, player.ErrPlayerNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return p, nil
}

func (s *Service) findReference(ctx context.Context, ref string, kind Kind) (*Transaction, error) {
	tx, err := s.repo.FindByReference(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if tx.Kind != kind {
		return nil, fmt.Errorf("%w: %s is a %s", ErrTransactionNotFound, ref, tx.Kind)
	}
	return tx, nil
}

func (s *Service) reloadReplay(ctx context.Context, ref string) (*CallbackResult, error) {
	tx, err := s.repo.FindByReference(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return replayed(tx), nil
}

// compensate credits a reserved amount back, retrying with backoff. A failure
// here is an uncompensated debit and is logged for remediation.
func (s *Service) compensate(ctx context.Context, tx *Transaction) error {
	err := s.retry(ctx, func() error {
		_, _, err := s.players.CreditOnce(ctx, tx.PlayerID, releaseCreditKey(tx.Reference), tx.Amount)
		return err
	})
	s.metrics.Compensation(err == nil)
	if err != nil {
		s.logger.Error("compensation failed",
			zap.String("reference", tx.Reference),
			zap.String("player_id", tx.PlayerID),
			zap.String("amount", tx.Amount.String()),
			zap.Bool("remediation_required", true),
			zap.Error(err))
		return err
	}
	s.logger.Info("reserved funds released",
		zap.String("reference", tx.Reference),
		zap.String("player_id", tx.PlayerID),
		zap.String("amount", tx.Amount.String()))
	return nil
}

// transitionDetached records a status change that must survive the caller
// going away. Failures are logged; the row stays in its previous status.
func (s *Service) transitionDetached(ctx context.Context, tx *Transaction, to Status, reason string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.transitionWithRetry(ctx, tx, to, reason); err != nil {
		s.logger.Error("failed to record transaction status",
			zap.String("reference", tx.Reference),
			zap.String("status", string(to)),
			zap.Error(err))
		return
	}
	s.published(tx)
}

// transitionWithRetry leaves tx untouched unless the transition is stored.
func (s *Service) transitionWithRetry(ctx context.Context, tx *Transaction, to Status, reason string) error {
	return s.retry(ctx, func() error {
		fresh := *tx
		if err := s.repo.Transition(ctx, &fresh, to, reason); err != nil {
			return err
		}
		*tx = fresh
		return nil
	})
}

func (s *Service) retry(ctx context.Context, fn func() error) error {
	var err error
	delay := s.retryBackoff
	for i := 0; i < s.retryAttempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, ErrStatusConflict) || errors.Is(err, ErrInvalidTransition) {
			return err
		}
		if i == s.retryAttempts-1 {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
		delay *= 2
	}
	return err
}

func (s *Service) published(tx *Transaction) {
	s.metrics.TransactionStatus(string(tx.Kind), string(tx.Status))
	s.hub.Notify(Update{
		Reference: tx.Reference,
		PlayerID:  tx.PlayerID,
		Kind:      tx.Kind,
		Status:    tx.Status,
		Amount:    tx.Amount,
		Timestamp: tx.UpdatedAt,
	})
}

func replayed(tx *Transaction) *CallbackResult {
	return &CallbackResult{
		Message:     fmt.Sprintf("Transaction already %s", tx.Status),
		Transaction: tx,
		Replayed:    true,
	}
}

// extractReference pulls the transaction reference out of a webhook body.
// Payments echo it as tx_ref, payouts as reference.
func extractReference(payload []byte) (string, error) {
	var body map[string]interface{}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	for _, field := range []string{"tx_ref", "trx_ref", "reference"} {
		if v, ok := body[field].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	return "", ErrMissingReference
}

// matchVerification accepts only a successful answer about this exact
// transaction; notVerified is the error returned otherwise.
func matchVerification(v *gateway.Verification, tx *Transaction, notVerified error) error {
	if v == nil {
		return fmt.Errorf("%w: empty verification", notVerified)
	}
	if !v.Succeeded() {
		return fmt.Errorf("%w: gateway status %q", notVerified, v.Status)
	}
	if v.Reference != "" && v.Reference != tx.Reference {
		return fmt.Errorf("%w: gateway answered for reference %q", notVerified, v.Reference)
	}
	if v.Currency != "" && !strings.EqualFold(v.Currency, tx.Currency) {
		return fmt.Errorf("%w: gateway currency %q, expected %q", notVerified, v.Currency, tx.Currency)
	}
	return nil
}

func gatewayError(err error) error {
	if errors.Is(err, gateway.ErrRejected) {
		return fmt.Errorf("%w: %w", ErrGatewayRejected, err)
	}
	return fmt.Errorf("%w: %w", ErrGatewayDown, err)
}

func emailOrPlaceholder(email string) string {
	if strings.TrimSpace(email) == "" {
		return "placeholder@gmail.com"
	}
	return email
}

func outcome(err error) string {
	if err == nil {
		return "accepted"
	}
	if c := Code(err); c != "" {
		return strings.ToLower(c)
	}
	return "internal"
}

func callbackOutcome(res *CallbackResult, err error) string {
	if err == nil && res != nil && res.Replayed {
		return "replayed"
	}
	return outcome(err)
}
