package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// settledCacheTTL bounds how long settled references stay in the fast path;
// the transaction row remains authoritative after eviction.
const settledCacheTTL = 24 * time.Hour

// webhookEvent is the processor's webhook payload shape. Amounts arrive in
// minor units.
type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
	} `json:"data"`
}

// eventChargeSuccess is the only processor event that settles a deposit.
const eventChargeSuccess = "charge.success"

// LedgerServiceImpl implements ports.LedgerService. All balance mutations
// happen inside a database transaction holding the affected wallet row locks.
type LedgerServiceImpl struct {
	txRepo        ports.TransactionRepository
	walletRepo    ports.WalletRepository
	userRepo      ports.UserRepository
	settleCache   ports.SettlementCache
	sigSvc        ports.SignatureService
	provider      ports.PaymentProvider
	transactor    ports.DBTransactor
	webhookSecret string
	minDeposit    int64
	log           zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl. webhookSecret is the
// shared secret the processor signs webhook deliveries with; minDeposit is
// the deposit floor in minor units.
func NewLedgerService(
	txRepo ports.TransactionRepository,
	walletRepo ports.WalletRepository,
	userRepo ports.UserRepository,
	settleCache ports.SettlementCache,
	sigSvc ports.SignatureService,
	provider ports.PaymentProvider,
	transactor ports.DBTransactor,
	webhookSecret string,
	minDeposit int64,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		txRepo:        txRepo,
		walletRepo:    walletRepo,
		userRepo:      userRepo,
		settleCache:   settleCache,
		sigSvc:        sigSvc,
		provider:      provider,
		transactor:    transactor,
		webhookSecret: webhookSecret,
		minDeposit:    minDeposit,
		log:           log,
	}
}

// GetBalance returns the user's wallet balance in minor units.
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return 0, apperror.ErrNotFound("Wallet")
	}
	return wallet.Balance, nil
}

// InitializeDeposit records a pending deposit and obtains a redirectable
// checkout from the payment processor. The pending row is created before the
// external call; if the call fails nothing has been credited and the row is
// left pending for reconciliation.
func (s *LedgerServiceImpl) InitializeDeposit(ctx context.Context, userID uuid.UUID, amount int64) (*ports.DepositInit, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount("Amount must be greater than 0")
	}
	if amount < s.minDeposit {
		return nil, apperror.ErrInvalidAmount(fmt.Sprintf("Minimum deposit is %d", s.minDeposit))
	}

	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("User")
	}

	reference := domain.NewReference()
	pending := &domain.Transaction{
		ID:        uuid.New(),
		Reference: reference,
		Type:      domain.TransactionTypeDeposit,
		Amount:    amount,
		Status:    domain.TransactionStatusPending,
		WalletID:  wallet.ID,
		CreatedAt: time.Now().UTC(),
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck
	if err := s.txRepo.Create(ctx, dbTx, pending); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create pending deposit: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit pending deposit: %w", err))
	}

	checkout, err := s.provider.InitializeTransaction(ctx, user.Email, amount, reference)
	if err != nil {
		s.log.Warn().Err(err).Str("reference", reference).Msg("payment processor rejected deposit initialization")
		return nil, err
	}

	s.log.Info().
		Str("reference", reference).
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Msg("deposit initialized")

	return &ports.DepositInit{
		Reference:        reference,
		AuthorizationURL: checkout.AuthorizationURL,
		AccessCode:       checkout.AccessCode,
	}, nil
}

// HandleWebhook settles deposits confirmed by the payment processor.
// The signature is recomputed over the raw payload bytes; a replayed or
// unknown delivery acknowledges without crediting anything twice.
func (s *LedgerServiceImpl) HandleWebhook(ctx context.Context, rawPayload []byte, signature string) error {
	if !s.sigSvc.Verify(s.webhookSecret, rawPayload, signature) {
		return apperror.ErrInvalidSignature()
	}

	var event webhookEvent
	if err := json.Unmarshal(rawPayload, &event); err != nil {
		return apperror.Validation("malformed webhook payload")
	}
	if event.Event != eventChargeSuccess {
		return nil
	}

	reference := event.Data.Reference

	// Fast path: reference already settled recently.
	if s.settleCache != nil {
		settled, err := s.settleCache.IsSettled(ctx, reference)
		if err != nil {
			s.log.Warn().Err(err).Str("reference", reference).Msg("settlement cache check failed, falling through to DB")
		} else if settled {
			return nil
		}
	}

	txn, err := s.txRepo.GetByReference(ctx, reference)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("find transaction: %w", err))
	}
	if txn == nil {
		// Processor retries for foreign references are not actionable.
		s.log.Warn().Str("reference", reference).Msg("webhook for unknown reference, acknowledging")
		return nil
	}
	if txn.IsSettled() {
		s.log.Debug().Str("reference", reference).Msg("webhook replay for settled transaction, ignoring")
		return nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Re-read under lock: a concurrent delivery may have settled it between
	// the check above and here.
	txn, err = s.txRepo.GetByReferenceForUpdate(ctx, dbTx, reference)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if txn == nil || txn.IsSettled() {
		return nil
	}

	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, txn.WalletID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return apperror.InternalError(fmt.Errorf("wallet %s missing for transaction %s", txn.WalletID, reference))
	}

	if err := s.txRepo.UpdateStatus(ctx, dbTx, txn.ID, domain.TransactionStatusSuccess); err != nil {
		return apperror.InternalError(fmt.Errorf("mark transaction settled: %w", err))
	}
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, wallet.Balance+event.Data.Amount); err != nil {
		return apperror.InternalError(fmt.Errorf("credit wallet: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit settlement: %w", err))
	}

	if s.settleCache != nil {
		if err := s.settleCache.MarkSettled(ctx, reference, settledCacheTTL); err != nil {
			s.log.Warn().Err(err).Str("reference", reference).Msg("failed to cache settled reference")
		}
	}

	s.log.Info().
		Str("reference", reference).
		Str("wallet_id", wallet.ID.String()).
		Int64("amount", event.Data.Amount).
		Msg("deposit settled")

	return nil
}

// GetDepositStatus reports the state of a deposit by its reference.
func (s *LedgerServiceImpl) GetDepositStatus(ctx context.Context, reference string) (*ports.DepositStatus, error) {
	txn, err := s.txRepo.GetDepositByReference(ctx, reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find deposit: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("Transaction")
	}
	return &ports.DepositStatus{
		Reference: txn.Reference,
		Status:    txn.Status,
		Amount:    txn.Amount,
	}, nil
}

// Transfer moves funds between two internal wallets. Validation happens in a
// fixed order before any mutation; the mutation itself is one database
// transaction with both wallet rows locked, four writes, all-or-nothing.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, userID uuid.UUID, recipientWalletNumber string, amount int64) error {
	if amount <= 0 {
		return apperror.ErrInvalidAmount("Invalid amount")
	}

	sender, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get sender wallet: %w", err))
	}
	if sender == nil {
		return apperror.ErrNotFound("Wallet")
	}
	if sender.Balance < amount {
		return apperror.ErrInsufficientFunds(sender.Balance, amount)
	}

	recipient, err := s.walletRepo.GetByWalletNumber(ctx, recipientWalletNumber)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get recipient wallet: %w", err))
	}
	if recipient == nil {
		return apperror.ErrNotFound("Recipient wallet")
	}
	if sender.ID == recipient.ID {
		return apperror.ErrSelfTransfer()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock both wallets in id order so two opposing transfers cannot
	// deadlock, then re-check funds against the locked balance.
	first, second := sender.ID, recipient.ID
	if second.String() < first.String() {
		first, second = second, first
	}
	lockedFirst, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, first)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	lockedSecond, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, second)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if lockedFirst == nil || lockedSecond == nil {
		return apperror.ErrNotFound("Wallet")
	}

	lockedSender, lockedRecipient := lockedFirst, lockedSecond
	if lockedSender.ID != sender.ID {
		lockedSender, lockedRecipient = lockedSecond, lockedFirst
	}

	if lockedSender.Balance < amount {
		return apperror.ErrInsufficientFunds(lockedSender.Balance, amount)
	}

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, lockedSender.ID, lockedSender.Balance-amount); err != nil {
		return apperror.InternalError(fmt.Errorf("debit sender: %w", err))
	}
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, lockedRecipient.ID, lockedRecipient.Balance+amount); err != nil {
		return apperror.InternalError(fmt.Errorf("credit recipient: %w", err))
	}

	now := time.Now().UTC()
	outRecord := &domain.Transaction{
		ID:                    uuid.New(),
		Reference:             domain.NewReference(),
		Type:                  domain.TransactionTypeTransferOut,
		Amount:                amount,
		Status:                domain.TransactionStatusSuccess,
		RecipientWalletNumber: &lockedRecipient.WalletNumber,
		WalletID:              lockedSender.ID,
		CreatedAt:             now,
	}
	inRecord := &domain.Transaction{
		ID:                 uuid.New(),
		Reference:          domain.NewReference(),
		Type:               domain.TransactionTypeTransferIn,
		Amount:             amount,
		Status:             domain.TransactionStatusSuccess,
		SenderWalletNumber: &lockedSender.WalletNumber,
		WalletID:           lockedRecipient.ID,
		CreatedAt:          now,
	}
	if err := s.txRepo.Create(ctx, dbTx, outRecord); err != nil {
		return apperror.InternalError(fmt.Errorf("record transfer_out: %w", err))
	}
	if err := s.txRepo.Create(ctx, dbTx, inRecord); err != nil {
		return apperror.InternalError(fmt.Errorf("record transfer_in: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit transfer: %w", err))
	}

	s.log.Info().
		Str("sender_wallet", lockedSender.WalletNumber).
		Str("recipient_wallet", lockedRecipient.WalletNumber).
		Int64("amount", amount).
		Msg("transfer completed")

	return nil
}

// GetTransactions lists the user's ledger records, newest first.
func (s *LedgerServiceImpl) GetTransactions(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}
	txns, err := s.txRepo.ListByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, nil
}
