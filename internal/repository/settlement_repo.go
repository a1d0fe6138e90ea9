// internal/repository/settlement_repo.go
package repository

import (
	"context"

	"finflow-commitments/internal/domain"
)

// SettlementRepository defines the interface for settlement data operations.
// There is no update or delete: settlements are append-only.
type SettlementRepository interface {
	// CreateSettlement adds a new settlement record using the provided DBExecutor.
	CreateSettlement(ctx context.Context, q DBExecutor, s *domain.Settlement) error
	// ListSettlementsByCommitment retrieves the settlements of a commitment, oldest first.
	ListSettlementsByCommitment(ctx context.Context, q DBExecutor, commitmentID string) ([]domain.Settlement, error)
}
