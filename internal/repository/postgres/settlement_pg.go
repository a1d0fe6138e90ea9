// internal/repository/postgres/settlement_pg.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"finflow-commitments/internal/domain"
	"finflow-commitments/internal/repository"
)

// SettlementRepository implements repository.SettlementRepository for PostgreSQL.
type SettlementRepository struct{}

// NewSettlementRepository creates a new SettlementRepository.
func NewSettlementRepository(db *sqlx.DB) repository.SettlementRepository {
	return &SettlementRepository{}
}

// CreateSettlement inserts a new settlement record using the provided DBExecutor.
func (r *SettlementRepository) CreateSettlement(ctx context.Context, q repository.DBExecutor, s *domain.Settlement) error {
	query := `INSERT INTO settlements (id, commitment_id, amount, wallet_transaction_id, occurred_at, next_due_at, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := q.ExecContext(ctx, query,
		s.ID,
		s.CommitmentID,
		s.Amount,
		s.WalletTransactionID,
		s.OccurredAt,
		s.NextDueAt,
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create settlement: %w", err)
	}
	return nil
}

// ListSettlementsByCommitment retrieves the settlements recorded against a commitment.
func (r *SettlementRepository) ListSettlementsByCommitment(ctx context.Context, q repository.DBExecutor, commitmentID string) ([]domain.Settlement, error) {
	settlements := []domain.Settlement{}
	query := `
		SELECT id, commitment_id, amount, wallet_transaction_id, occurred_at, next_due_at, created_at
		FROM settlements
		WHERE commitment_id = $1
		ORDER BY occurred_at ASC, created_at ASC`
	if err := q.SelectContext(ctx, &settlements, query, commitmentID); err != nil {
		return nil, fmt.Errorf("failed to fetch settlements for commitment %s: %w", commitmentID, err)
	}
	return settlements, nil
}
