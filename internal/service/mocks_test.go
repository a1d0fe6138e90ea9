// internal/service/mocks_test.go
package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"finflow-commitments/internal/domain"
	"finflow-commitments/internal/repository"
	"finflow-commitments/pkg/db"
)

// MockDBExecutor is a mock implementation of repository.DBExecutor.
type MockDBExecutor struct {
	mock.Mock
}

func (m *MockDBExecutor) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	argsCalled := m.Called(ctx, query, args)
	return argsCalled.Get(0).(sql.Result), argsCalled.Error(1)
}

func (m *MockDBExecutor) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	m.Called(ctx, query, args)
	return &sql.Row{}
}

// MockDBBeginner is a mock implementation of db.DBTxBeginner.
type MockDBBeginner struct {
	mock.Mock
}

func (m *MockDBBeginner) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	args := m.Called(ctx, opts)
	return &sqlx.Tx{}, args.Error(1)
}

// MockTxController is a mock implementation of db.TxController.
// It embeds MockDBExecutor so it also satisfies repository.DBExecutor.
type MockTxController struct {
	mock.Mock
	MockDBExecutor
}

func (m *MockTxController) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTxController) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockCommitmentRepository is a mock implementation of repository.CommitmentRepository.
type MockCommitmentRepository struct {
	mock.Mock
}

func (m *MockCommitmentRepository) CreateCommitment(ctx context.Context, q repository.DBExecutor, c *domain.Commitment) error {
	args := m.Called(ctx, q, c)
	return args.Error(0)
}

func (m *MockCommitmentRepository) GetCommitmentByID(ctx context.Context, q repository.DBExecutor, id string) (*domain.Commitment, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Commitment), args.Error(1)
}

func (m *MockCommitmentRepository) GetCommitmentForUpdate(ctx context.Context, q repository.DBExecutor, id string) (*domain.Commitment, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Commitment), args.Error(1)
}

func (m *MockCommitmentRepository) FindActiveSubscription(ctx context.Context, q repository.DBExecutor, ownerID string, kind domain.CommitmentKind, referenceID string) (*domain.Commitment, error) {
	args := m.Called(ctx, q, ownerID, kind, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Commitment), args.Error(1)
}

func (m *MockCommitmentRepository) ListCommitmentsByOwner(ctx context.Context, q repository.DBExecutor, ownerID string) ([]domain.Commitment, error) {
	args := m.Called(ctx, q, ownerID)
	return args.Get(0).([]domain.Commitment), args.Error(1)
}

func (m *MockCommitmentRepository) UpdateCommitmentState(ctx context.Context, q repository.DBExecutor, c *domain.Commitment) error {
	args := m.Called(ctx, q, c)
	return args.Error(0)
}

func (m *MockCommitmentRepository) SoftDeleteCommitment(ctx context.Context, q repository.DBExecutor, id string, at time.Time) error {
	args := m.Called(ctx, q, id, at)
	return args.Error(0)
}

// MockSettlementRepository is a mock implementation of repository.SettlementRepository.
type MockSettlementRepository struct {
	mock.Mock
}

func (m *MockSettlementRepository) CreateSettlement(ctx context.Context, q repository.DBExecutor, s *domain.Settlement) error {
	args := m.Called(ctx, q, s)
	return args.Error(0)
}

func (m *MockSettlementRepository) ListSettlementsByCommitment(ctx context.Context, q repository.DBExecutor, commitmentID string) ([]domain.Settlement, error) {
	args := m.Called(ctx, q, commitmentID)
	return args.Get(0).([]domain.Settlement), args.Error(1)
}

// MockProductRepository is a mock implementation of repository.ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetProductByID(ctx context.Context, q repository.DBExecutor, id string) (*domain.Product, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

// MockWalletGateway is a mock implementation of gateway.WalletGateway.
type MockWalletGateway struct {
	mock.Mock
}

func (m *MockWalletGateway) GetBalance(ctx context.Context, userID string) (*domain.Balance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Balance), args.Error(1)
}

func (m *MockWalletGateway) Debit(ctx context.Context, userID, walletCode string, amount decimal.Decimal) (string, error) {
	args := m.Called(ctx, userID, walletCode, amount)
	return args.String(0), args.Error(1)
}

// txFuncs returns begin/commit/rollback functions backed by tx. begun counts BeginTx calls.
func txFuncs(tx *MockTxController, begun *int) (db.BeginTxFunc, db.CommitTxFunc, db.RollbackTxFunc) {
	return func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) {
			*begun++
			return tx, nil
		},
		func(db.TxController) error {
			return tx.Commit()
		},
		func(db.TxController) {
			_ = tx.Rollback()
		}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func zakatCommitment(t interface{ Helper() }, id, owner, remaining string) *domain.Commitment {
	t.Helper()
	return &domain.Commitment{
		ID:      id,
		Kind:    domain.CommitmentKindZakat,
		OwnerID: owner,
		Status:  domain.CommitmentStatusPending,
		Zakat: &domain.ZakatTerms{
			Year:                2025,
			TotalAssessedAmount: dec("2000000"),
			AmountDue:           dec("50000"),
			RemainingAmount:     dec(remaining),
		},
	}
}
