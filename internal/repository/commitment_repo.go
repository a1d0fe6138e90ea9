// internal/repository/commitment_repo.go
package repository

import (
	"context"
	"time"

	"finflow-commitments/internal/domain"
)

// CommitmentRepository defines the interface for commitment data operations.
// Soft-deleted commitments are invisible to every read.
type CommitmentRepository interface {
	// CreateCommitment inserts a new commitment. A clash with an active subscription
	// returns util.ErrActiveSubscription.
	CreateCommitment(ctx context.Context, q DBExecutor, c *domain.Commitment) error
	// GetCommitmentByID retrieves a commitment by its ID.
	GetCommitmentByID(ctx context.Context, q DBExecutor, id string) (*domain.Commitment, error)
	// GetCommitmentForUpdate retrieves a commitment and locks its row until the transaction ends.
	GetCommitmentForUpdate(ctx context.Context, q DBExecutor, id string) (*domain.Commitment, error)
	// FindActiveSubscription returns the PENDING or ACTIVE commitment of owner for referenceID, or util.ErrNotFound.
	FindActiveSubscription(ctx context.Context, q DBExecutor, ownerID string, kind domain.CommitmentKind, referenceID string) (*domain.Commitment, error)
	// ListCommitmentsByOwner retrieves all commitments of an owner, newest first.
	ListCommitmentsByOwner(ctx context.Context, q DBExecutor, ownerID string) ([]domain.Commitment, error)
	// UpdateCommitmentState persists status and remaining amount after a settlement.
	UpdateCommitmentState(ctx context.Context, q DBExecutor, c *domain.Commitment) error
	// SoftDeleteCommitment marks a commitment deleted at the given time.
	SoftDeleteCommitment(ctx context.Context, q DBExecutor, id string, at time.Time) error
}
