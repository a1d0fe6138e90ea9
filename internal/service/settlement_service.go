// internal/service/settlement_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"finflow-commitments/internal/domain"
	"finflow-commitments/internal/gateway"
	"finflow-commitments/internal/metrics"
	"finflow-commitments/internal/repository"
	"finflow-commitments/internal/util"
	"finflow-commitments/pkg/db"
)

// SettleRequest is one settlement attempt against one commitment.
type SettleRequest struct {
	CommitmentID string
	Amount       decimal.Decimal
	WalletCode   string
	OccurredAt   time.Time  // zero means now
	NextDueAt    *time.Time // recurring commitments only; derived when nil
}

// SettlementService is the settlement engine. Settle is not idempotent: resubmitting a
// request whose response was lost debits the wallet again.
type SettlementService interface {
	Settle(ctx context.Context, ownerID string, req SettleRequest) (*domain.Settlement, *domain.Commitment, error)
	GetBalance(ctx context.Context, ownerID string) (*domain.Balance, error)
}

// settlementService implements the SettlementService interface.
type settlementService struct {
	dbBeginner     db.DBTxBeginner
	commitmentRepo repository.CommitmentRepository
	settlementRepo repository.SettlementRepository
	wallet         gateway.WalletGateway
	beginTx        db.BeginTxFunc
	commitTx       db.CommitTxFunc
	rollbackTx     db.RollbackTxFunc
	logger         *slog.Logger
}

// NewSettlementService creates a new instance of SettlementService.
func NewSettlementService(
	dbBeginner db.DBTxBeginner,
	commitmentRepo repository.CommitmentRepository,
	settlementRepo repository.SettlementRepository,
	wallet gateway.WalletGateway,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	logger *slog.Logger,
) SettlementService {
	return &settlementService{
		dbBeginner:     dbBeginner,
		commitmentRepo: commitmentRepo,
		settlementRepo: settlementRepo,
		wallet:         wallet,
		beginTx:        beginTx,
		commitTx:       commitTx,
		rollbackTx:     rollbackTx,
		logger:         logger,
	}
}

// GetBalance reads the caller's wallet balance through the gateway.
func (s *settlementService) GetBalance(ctx context.Context, ownerID string) (*domain.Balance, error) {
	b, err := s.wallet.GetBalance(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// Settle debits the owner's wallet and records the settlement against the commitment.
//
// The commitment row stays locked from the read until commit, so two settlements of the same
// obligation are serialized and remaining can never go below zero. The wallet debit happens
// inside that window; if recording fails after a successful debit, the outcome is reported as
// unknown and the wallet transaction id is logged for reconciliation.
func (s *settlementService) Settle(ctx context.Context, ownerID string, req SettleRequest) (*domain.Settlement, *domain.Commitment, error) {
	start := time.Now()
	kind := "UNKNOWN"
	settlement, commitment, err := s.settle(ctx, ownerID, req, &kind)
	metrics.ObserveSettlement(kind, req.Amount, start, err)
	if err != nil {
		return nil, nil, fmt.Errorf("settle: %w", err)
	}
	return settlement, commitment, nil
}

func (s *settlementService) settle(ctx context.Context, ownerID string, req SettleRequest, kind *string) (*domain.Settlement, *domain.Commitment, error) {
	if req.CommitmentID == "" || !req.Amount.IsPositive() {
		return nil, nil, util.ErrInvalidInput
	}
	if err := domain.ValidateWalletCode(req.WalletCode); err != nil {
		return nil, nil, err
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %v: %w", err, util.ErrUnavailable)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, nil, fmt.Errorf("transaction controller does not implement DBExecutor")
	}

	c, err := s.commitmentRepo.GetCommitmentForUpdate(ctx, txExecutor, req.CommitmentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get commitment %s: %w", req.CommitmentID, notFoundAsCommitment(err))
	}
	if c.OwnerID != ownerID {
		return nil, nil, util.ErrCommitmentNotFound
	}
	*kind = string(c.Kind)
	if err := c.CheckSettleable(req.Amount); err != nil {
		return nil, nil, err
	}

	walletTxID, err := s.wallet.Debit(ctx, ownerID, req.WalletCode, req.Amount)
	if err != nil {
		return nil, nil, err
	}

	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	nextDueAt := req.NextDueAt
	if !c.IsRecurring() {
		nextDueAt = nil
	} else if nextDueAt == nil {
		nextDueAt = c.NextDueAt(occurredAt)
	}

	settlement := domain.NewSettlement(c.ID, req.Amount, walletTxID, occurredAt, nextDueAt)
	if err := s.record(ctx, txExecutor, txController, c, settlement); err != nil {
		metrics.UnrecordedDebits.Inc()
		s.logger.Error("Wallet debited but settlement not recorded",
			"commitment_id", c.ID, "owner_id", ownerID, "wallet_transaction_id", walletTxID,
			"amount", req.Amount.String(), "error", err)
		return nil, nil, fmt.Errorf("debit %s not recorded: %v: %w", walletTxID, err, util.ErrUnavailable)
	}

	s.logger.Info("Settlement recorded",
		"settlement_id", settlement.ID, "commitment_id", c.ID, "owner_id", ownerID,
		"kind", c.Kind, "amount", req.Amount.String(), "status", c.Status)
	return settlement, c, nil
}

func (s *settlementService) record(ctx context.Context, q repository.DBExecutor, tx db.TxController, c *domain.Commitment, settlement *domain.Settlement) error {
	if err := c.ApplySettlement(settlement.Amount, settlement.CreatedAt); err != nil {
		return err
	}
	if err := s.settlementRepo.CreateSettlement(ctx, q, settlement); err != nil {
		return err
	}
	if err := s.commitmentRepo.UpdateCommitmentState(ctx, q, c); err != nil {
		return err
	}
	if err := s.commitTx(tx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
