// internal/intent/replayer.go
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finflow-commitments/internal/domain"
	"finflow-commitments/internal/util"
)

// DefaultMaxAge bounds how long a staged intent stays replayable.
const DefaultMaxAge = 24 * time.Hour

// Creator creates zakat obligations. *client.Client satisfies it.
type Creator interface {
	CreateZakat(ctx context.Context, terms domain.ZakatTerms) (*domain.Commitment, error)
}

// Notification tells the user what happened to a staged intent.
type Notification struct {
	Commitment *domain.Commitment // set on success
	Err        error              // set on failure
}

// Notifier shows a transient message to the user.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) { f(n) }

// Replayer turns a staged intent into a zakat obligation once a session exists.
type Replayer struct {
	store   Store
	creator Creator
	notify  Notifier
	logger  *slog.Logger
	maxAge  time.Duration
	now     func() time.Time
}

// NewReplayer creates a Replayer. maxAge <= 0 selects DefaultMaxAge.
func NewReplayer(store Store, creator Creator, notify Notifier, maxAge time.Duration, logger *slog.Logger) *Replayer {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Replayer{
		store:   store,
		creator: creator,
		notify:  notify,
		logger:  logger,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// ConsumeIfPresent runs once per session start. The intent is claimed (and so removed)
// before it is validated or sent, and is never staged again: a failed creation has to be
// entered by the user again. It returns (nil, nil) when nothing was staged.
func (r *Replayer) ConsumeIfPresent(ctx context.Context) (*domain.Commitment, error) {
	staged, ok, err := r.store.Claim(ctx)
	if err != nil {
		return nil, fmt.Errorf("consume intent: %w", err)
	}
	if !ok {
		return nil, nil
	}

	c, err := r.replay(ctx, staged)
	if err != nil {
		r.logger.Warn("Deferred zakat intent dropped", "error", err, "kind", util.KindOf(err).String(), "staged_at", staged.StagedAt)
		r.notify.Notify(Notification{Err: err})
		return nil, fmt.Errorf("consume intent: %w", err)
	}

	r.logger.Info("Deferred zakat intent created an obligation", "commitment_id", c.ID)
	r.notify.Notify(Notification{Commitment: c})
	return c, nil
}

func (r *Replayer) replay(ctx context.Context, staged Staged) (*domain.Commitment, error) {
	if age := r.now().Sub(staged.StagedAt); age > r.maxAge {
		return nil, fmt.Errorf("intent staged %s ago has expired: %w", age.Round(time.Minute), util.ErrInvalidInput)
	}
	terms, err := ParsePayload(staged.Raw)
	if err != nil {
		return nil, err
	}
	return r.creator.CreateZakat(ctx, terms)
}
