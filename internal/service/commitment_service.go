// internal/service/commitment_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finflow-commitments/internal/domain"
	"finflow-commitments/internal/metrics"
	"finflow-commitments/internal/repository"
	"finflow-commitments/internal/util"
	"finflow-commitments/pkg/db"
)

// CommitmentService is the commitment registry: the only writer of a commitment's existence.
//
// Create calls are not idempotent. A retried investment or takaful creation is caught by the
// active-subscription conflict; a retried zakat creation produces a second obligation, because
// no uniqueness rule exists for zakat.
type CommitmentService interface {
	CreateInvestmentCommitment(ctx context.Context, ownerID, productID string) (*domain.Commitment, error)
	CreateTakafulCommitment(ctx context.Context, ownerID, planID string, periodStart, periodEnd time.Time) (*domain.Commitment, error)
	CreateZakatObligation(ctx context.Context, ownerID string, terms domain.ZakatTerms) (*domain.Commitment, error)
	ListMine(ctx context.Context, ownerID string) ([]domain.Commitment, error)
	GetCommitment(ctx context.Context, ownerID, id string) (*domain.Commitment, error)
	DeleteZakatObligation(ctx context.Context, ownerID, id string) error
	ListSettlements(ctx context.Context, ownerID, commitmentID string) ([]domain.Settlement, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// commitmentService implements the CommitmentService interface.
type commitmentService struct {
	dbBeginner     db.DBTxBeginner       // For starting transactions (e.g., *sqlx.DB)
	dbExecutor     repository.DBExecutor // For non-transactional statements (e.g., *sqlx.DB)
	commitmentRepo repository.CommitmentRepository
	settlementRepo repository.SettlementRepository
	productRepo    repository.ProductRepository
	beginTx        db.BeginTxFunc
	commitTx       db.CommitTxFunc
	rollbackTx     db.RollbackTxFunc
	logger         *slog.Logger
}

// NewCommitmentService creates a new instance of CommitmentService.
func NewCommitmentService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	commitmentRepo repository.CommitmentRepository,
	settlementRepo repository.SettlementRepository,
	productRepo repository.ProductRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	logger *slog.Logger,
) CommitmentService {
	return &commitmentService{
		dbBeginner:     dbBeginner,
		dbExecutor:     dbExecutor,
		commitmentRepo: commitmentRepo,
		settlementRepo: settlementRepo,
		productRepo:    productRepo,
		beginTx:        beginTx,
		commitTx:       commitTx,
		rollbackTx:     rollbackTx,
		logger:         logger,
	}
}

// CreateInvestmentCommitment subscribes the owner to an investment product.
func (s *commitmentService) CreateInvestmentCommitment(ctx context.Context, ownerID, productID string) (*domain.Commitment, error) {
	c, err := s.createSubscription(ctx, ownerID, domain.CommitmentKindInvestment, productID, func() (*domain.Commitment, error) {
		return domain.NewInvestmentCommitment(ownerID, productID), nil
	})
	metrics.ObserveCreate(string(domain.CommitmentKindInvestment), err)
	if err != nil {
		return nil, fmt.Errorf("create investment commitment: %w", err)
	}
	return c, nil
}

// CreateTakafulCommitment subscribes the owner to a takaful plan for the given period.
func (s *commitmentService) CreateTakafulCommitment(ctx context.Context, ownerID, planID string, periodStart, periodEnd time.Time) (*domain.Commitment, error) {
	var c *domain.Commitment
	err := domain.ValidatePeriod(periodStart, periodEnd)
	if err == nil {
		c, err = s.createSubscription(ctx, ownerID, domain.CommitmentKindTakaful, planID, func() (*domain.Commitment, error) {
			return domain.NewTakafulCommitment(ownerID, planID, periodStart, periodEnd)
		})
	}
	metrics.ObserveCreate(string(domain.CommitmentKindTakaful), err)
	if err != nil {
		return nil, fmt.Errorf("create takaful commitment: %w", err)
	}
	return c, nil
}

// createSubscription enforces the single-active-subscription rule shared by investment and
// takaful. The pre-check gives the common case a clean conflict; the unique index catches
// concurrent creations.
func (s *commitmentService) createSubscription(
	ctx context.Context,
	ownerID string,
	kind domain.CommitmentKind,
	productID string,
	build func() (*domain.Commitment, error),
) (*domain.Commitment, error) {
	if ownerID == "" || productID == "" {
		return nil, util.ErrInvalidInput
	}

	product, err := s.productRepo.GetProductByID(ctx, s.dbExecutor, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", productID, err)
	}
	if product.Kind != kind {
		return nil, fmt.Errorf("product %s is not a %s product: %w", productID, kind, util.ErrProductNotFound)
	}

	if err := s.checkNoActiveSubscription(ctx, ownerID, kind, productID); err != nil {
		return nil, err
	}

	c, err := build()
	if err != nil {
		return nil, err
	}
	if err := s.commitmentRepo.CreateCommitment(ctx, s.dbExecutor, c); err != nil {
		if errors.Is(err, util.ErrActiveSubscription) {
			if conflict := s.checkNoActiveSubscription(ctx, ownerID, kind, productID); conflict != nil {
				return nil, conflict
			}
		}
		return nil, fmt.Errorf("failed to create commitment: %w", err)
	}

	s.logger.Info("Commitment created",
		"commitment_id", c.ID, "owner_id", ownerID, "kind", c.Kind, "reference_id", productID)
	return c, nil
}

func (s *commitmentService) checkNoActiveSubscription(ctx context.Context, ownerID string, kind domain.CommitmentKind, productID string) error {
	existing, err := s.commitmentRepo.FindActiveSubscription(ctx, s.dbExecutor, ownerID, kind, productID)
	if err == nil {
		return &util.ConflictError{ExistingID: existing.ID}
	}
	if !errors.Is(err, util.ErrNotFound) {
		return fmt.Errorf("failed to check active subscription: %w", err)
	}
	return nil
}

// CreateZakatObligation records a zakat obligation. There is intentionally no duplicate check.
func (s *commitmentService) CreateZakatObligation(ctx context.Context, ownerID string, terms domain.ZakatTerms) (*domain.Commitment, error) {
	c, err := s.createZakat(ctx, ownerID, terms)
	metrics.ObserveCreate(string(domain.CommitmentKindZakat), err)
	if err != nil {
		return nil, fmt.Errorf("create zakat obligation: %w", err)
	}
	return c, nil
}

func (s *commitmentService) createZakat(ctx context.Context, ownerID string, terms domain.ZakatTerms) (*domain.Commitment, error) {
	if ownerID == "" {
		return nil, util.ErrInvalidInput
	}
	c, err := domain.NewZakatObligation(ownerID, terms)
	if err != nil {
		return nil, err
	}
	if err := s.commitmentRepo.CreateCommitment(ctx, s.dbExecutor, c); err != nil {
		return nil, fmt.Errorf("failed to create commitment: %w", err)
	}
	s.logger.Info("Zakat obligation created",
		"commitment_id", c.ID, "owner_id", ownerID, "year", terms.Year, "amount_due", terms.AmountDue.String())
	return c, nil
}

// ListMine returns the caller's commitments, including pending ones nobody settled yet.
func (s *commitmentService) ListMine(ctx context.Context, ownerID string) ([]domain.Commitment, error) {
	commitments, err := s.commitmentRepo.ListCommitmentsByOwner(ctx, s.dbExecutor, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list commitments: %w", err)
	}
	return commitments, nil
}

// GetCommitment returns one of the caller's commitments. Commitments of other owners are
// reported as not found.
func (s *commitmentService) GetCommitment(ctx context.Context, ownerID, id string) (*domain.Commitment, error) {
	c, err := s.commitmentRepo.GetCommitmentByID(ctx, s.dbExecutor, id)
	if err != nil {
		return nil, fmt.Errorf("get commitment %s: %w", id, notFoundAsCommitment(err))
	}
	if c.OwnerID != ownerID {
		return nil, fmt.Errorf("get commitment %s: %w", id, util.ErrCommitmentNotFound)
	}
	return c, nil
}

// DeleteZakatObligation removes an obligation that still has something to pay. Settlements
// already recorded against it are kept.
func (s *commitmentService) DeleteZakatObligation(ctx context.Context, ownerID, id string) error {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return fmt.Errorf("delete obligation: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("delete obligation: transaction controller does not implement DBExecutor")
	}

	c, err := s.commitmentRepo.GetCommitmentForUpdate(ctx, txExecutor, id)
	if err != nil {
		return fmt.Errorf("delete obligation: failed to get commitment %s: %w", id, notFoundAsCommitment(err))
	}
	if c.OwnerID != ownerID {
		return fmt.Errorf("delete obligation: %w", util.ErrCommitmentNotFound)
	}
	if err := c.CheckDeletable(); err != nil {
		return fmt.Errorf("delete obligation %s: %w", id, err)
	}

	if err := s.commitmentRepo.SoftDeleteCommitment(ctx, txExecutor, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("delete obligation: %w", err)
	}
	if err := s.commitTx(txController); err != nil {
		return fmt.Errorf("delete obligation: failed to commit transaction: %w", err)
	}

	metrics.ObligationsDeleted.Inc()
	s.logger.Info("Zakat obligation deleted",
		"commitment_id", id, "owner_id", ownerID, "remaining_amount", c.Zakat.RemainingAmount.String())
	return nil
}

// ListSettlements returns the settlement history of one of the caller's commitments.
func (s *commitmentService) ListSettlements(ctx context.Context, ownerID, commitmentID string) ([]domain.Settlement, error) {
	if _, err := s.GetCommitment(ctx, ownerID, commitmentID); err != nil {
		return nil, err
	}
	settlements, err := s.settlementRepo.ListSettlementsByCommitment(ctx, s.dbExecutor, commitmentID)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	return settlements, nil
}

// GetProduct returns a catalog entry.
func (s *commitmentService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.productRepo.GetProductByID(ctx, s.dbExecutor, id)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

func notFoundAsCommitment(err error) error {
	if errors.Is(err, util.ErrNotFound) {
		return util.ErrCommitmentNotFound
	}
	return err
}
