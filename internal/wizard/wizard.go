// internal/wizard/wizard.go
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"finflow-commitments/internal/api/types"
	"finflow-commitments/internal/domain"
	"finflow-commitments/internal/util"
)

// Backend is what the wizard needs from the commitment service. *client.Client satisfies it.
type Backend interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetBalance(ctx context.Context) (*domain.Balance, error)
	CreateInvestment(ctx context.Context, productID string) (*domain.Commitment, error)
	CreateTakaful(ctx context.Context, planID string, start, end time.Time) (*domain.Commitment, error)
	GetCommitment(ctx context.Context, id string) (*domain.Commitment, error)
	Settle(ctx context.Context, commitmentID string, amount decimal.Decimal, walletCode string) (*types.SettleResponse, error)
}

var (
	// ErrBusy is returned when a request is already in flight for this wizard.
	ErrBusy = errors.New("wizard is waiting for a response")
	// ErrClosed is returned to callers whose in-flight request finished after Close.
	ErrClosed = errors.New("wizard closed")
)

// StepError names the step whose request failed. The wizard keeps every value entered so far.
type StepError struct {
	Step State
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Selection is what the user picked on the SELECT step.
type Selection struct {
	Kind        domain.CommitmentKind
	ReferenceID string
	PeriodStart time.Time // takaful only
	PeriodEnd   time.Time // takaful only
}

func (s Selection) validate() error {
	if !s.Kind.Valid() {
		return fmt.Errorf("unknown commitment kind %q: %w", s.Kind, util.ErrInvalidInput)
	}
	switch s.Kind {
	case domain.CommitmentKindInvestment:
	case domain.CommitmentKindTakaful:
		if err := domain.ValidatePeriod(s.PeriodStart, s.PeriodEnd); err != nil {
			return err
		}
	case domain.CommitmentKindZakat:
		return fmt.Errorf("zakat obligations are created by assessment, not by the wizard: %w", util.ErrInvalidInput)
	}
	if s.ReferenceID == "" {
		return fmt.Errorf("no product selected: %w", util.ErrInvalidInput)
	}
	return nil
}

// Wizard drives one commitment-then-settle workflow. At most one request is in flight at
// a time. A commitment, once created, is cached for the life of the wizard and reused when
// the user navigates back to SELECT and forward again.
type Wizard struct {
	backend Backend
	logger  *slog.Logger

	mu       sync.Mutex
	state    State
	inFlight bool
	lastErr  *StepError

	selection  Selection
	commitment *domain.Commitment
	product    *domain.Product
	balance    *domain.Balance // advisory, read on entering AMOUNT
	amount     decimal.Decimal
	code       string // never persisted
	result     *types.SettleResponse
}

// New creates a wizard at SELECT for sel.
func New(backend Backend, sel Selection, logger *slog.Logger) *Wizard {
	return &Wizard{
		backend:   backend,
		logger:    logger,
		state:     StateSelect,
		selection: sel,
	}
}

// Resume opens a wizard for an existing commitment, typically a PENDING orphan, and moves
// it to AMOUNT without creating anything. The wizard is returned even when loading the
// amount step failed, so the caller can retry with RefreshBalance.
func Resume(ctx context.Context, backend Backend, commitmentID string, logger *slog.Logger) (*Wizard, error) {
	c, err := backend.GetCommitment(ctx, commitmentID)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", commitmentID, err)
	}
	if c.IsFullySettled() {
		return nil, fmt.Errorf("resume %s: %w", commitmentID, util.ErrFullySettled)
	}

	w := New(backend, selectionOf(c), logger)
	w.commitment = c
	return w, w.Submit(ctx)
}

func selectionOf(c *domain.Commitment) Selection {
	sel := Selection{Kind: c.Kind, ReferenceID: c.ReferenceID}
	if c.PeriodStart != nil && c.PeriodEnd != nil {
		sel.PeriodStart, sel.PeriodEnd = *c.PeriodStart, *c.PeriodEnd
	}
	return sel
}

// State returns the current step.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// CommitmentID returns the cached commitment id, or "" before creation.
func (w *Wizard) CommitmentID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.commitment == nil {
		return ""
	}
	return w.commitment.ID
}

// Commitment returns a copy of the cached commitment, if any.
func (w *Wizard) Commitment() *domain.Commitment {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.commitment == nil {
		return nil
	}
	c := *w.commitment
	return &c
}

// Balance returns the last known wallet balance, if any.
func (w *Wizard) Balance() (domain.Balance, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.balance == nil {
		return domain.Balance{}, false
	}
	return *w.balance, true
}

// Product returns the selected catalog entry, once loaded.
func (w *Wizard) Product() *domain.Product {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.product
}

// Amount returns the entered amount.
func (w *Wizard) Amount() decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.amount
}

// Err returns the failure of the last request, or nil.
func (w *Wizard) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastErr == nil {
		return nil
	}
	return w.lastErr
}

// Result returns the settlement once the wizard reached SUCCESS.
func (w *Wizard) Result() *types.SettleResponse {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

// Submit leaves SELECT. The first time it creates the commitment; afterwards it reuses the
// cached one. On success the wizard is at AMOUNT with a freshly read balance.
func (w *Wizard) Submit(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateSelect {
		w.mu.Unlock()
		return fmt.Errorf("%w: submit at %s", ErrIllegalTransition, w.state)
	}
	if err := w.begin(); err != nil {
		w.mu.Unlock()
		return err
	}

	if w.commitment != nil {
		if err := w.advance(EventReuse); err != nil {
			w.mu.Unlock()
			return err
		}
		w.inFlight = true
		w.mu.Unlock()
		return w.loadAmountStep(ctx)
	}

	if err := w.selection.validate(); err != nil {
		w.mu.Unlock()
		return err
	}
	if err := w.advance(EventCreate); err != nil {
		w.mu.Unlock()
		return err
	}
	w.inFlight = true
	sel := w.selection
	w.mu.Unlock()

	c, err := w.create(ctx, sel)

	w.mu.Lock()
	if w.state == StateClosed {
		w.inFlight = false
		w.mu.Unlock()
		if err == nil {
			w.logger.Warn("Commitment created after the wizard was closed", "commitment_id", c.ID, "kind", c.Kind)
		}
		return ErrClosed
	}
	if err != nil {
		w.inFlight = false
		defer w.mu.Unlock()
		if aerr := w.advance(EventCreateFailed); aerr != nil {
			return aerr
		}
		return w.fail(StateCreatingCommitment, err)
	}
	w.commitment = c
	if err := w.advance(EventCreated); err != nil {
		w.inFlight = false
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()
	w.logger.Debug("Commitment created", "commitment_id", c.ID, "kind", c.Kind)
	return w.loadAmountStep(ctx)
}

func (w *Wizard) create(ctx context.Context, sel Selection) (*domain.Commitment, error) {
	if sel.Kind == domain.CommitmentKindTakaful {
		return w.backend.CreateTakaful(ctx, sel.ReferenceID, sel.PeriodStart, sel.PeriodEnd)
	}
	return w.backend.CreateInvestment(ctx, sel.ReferenceID)
}

// ResumeExisting adopts the commitment that blocked the last create with a conflict and
// moves to AMOUNT, so the user settles the existing subscription instead of a duplicate.
func (w *Wizard) ResumeExisting(ctx context.Context) error {
	w.mu.Lock()
	existing, ok := util.ExistingID(w.lastErrValue())
	if !ok || w.state != StateSelect {
		w.mu.Unlock()
		return fmt.Errorf("%w: no conflicting commitment to resume at %s", ErrIllegalTransition, w.state)
	}
	if err := w.begin(); err != nil {
		w.mu.Unlock()
		return err
	}
	w.inFlight = true
	w.mu.Unlock()

	c, err := w.backend.GetCommitment(ctx, existing)

	w.mu.Lock()
	if w.state == StateClosed {
		w.inFlight = false
		w.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		w.inFlight = false
		defer w.mu.Unlock()
		return w.fail(StateSelect, err)
	}
	w.commitment = c
	if err := w.advance(EventReuse); err != nil {
		w.inFlight = false
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()
	return w.loadAmountStep(ctx)
}

// loadAmountStep reads the product minimum and the balance. It is called with inFlight set
// and the lock released, and clears inFlight when done.
func (w *Wizard) loadAmountStep(ctx context.Context) error {
	w.mu.Lock()
	refID := ""
	if w.product == nil && w.commitment.Kind != domain.CommitmentKindZakat {
		refID = w.commitment.ReferenceID
	}
	w.mu.Unlock()

	var product *domain.Product
	var err error
	if refID != "" {
		product, err = w.backend.GetProduct(ctx, refID)
	}
	var balance *domain.Balance
	if err == nil {
		balance, err = w.backend.GetBalance(ctx)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.inFlight = false
	if w.state == StateClosed {
		return ErrClosed
	}
	if product != nil {
		w.product = product
	}
	if err != nil {
		return w.fail(StateAmount, err)
	}
	w.balance = balance
	return nil
}

// RefreshBalance re-reads the balance while at AMOUNT.
func (w *Wizard) RefreshBalance(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateAmount {
		w.mu.Unlock()
		return fmt.Errorf("%w: refresh balance at %s", ErrIllegalTransition, w.state)
	}
	if err := w.begin(); err != nil {
		w.mu.Unlock()
		return err
	}
	w.inFlight = true
	w.mu.Unlock()
	return w.loadAmountStep(ctx)
}

// SetAmount records the amount entered at AMOUNT. The value is kept even when invalid; the
// returned error says why Next is blocked.
func (w *Wizard) SetAmount(amount decimal.Decimal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateAmount {
		return fmt.Errorf("%w: amount entered at %s", ErrIllegalTransition, w.state)
	}
	w.amount = amount
	return w.validateAmount()
}

// validateAmount checks the amount against the last known balance, the product minimum and,
// for zakat, the remaining amount. No request is made.
func (w *Wizard) validateAmount() error {
	if !w.amount.IsPositive() {
		return fmt.Errorf("amount must be greater than zero: %w", util.ErrInvalidInput)
	}
	if w.balance == nil {
		return fmt.Errorf("wallet balance not loaded: %w", util.ErrUnavailable)
	}
	if !w.balance.Covers(w.amount) {
		return fmt.Errorf("amount %s exceeds balance %s: %w", w.amount, w.balance.Balance, util.ErrInsufficientFunds)
	}
	if w.product != nil {
		if err := w.product.CheckMinimum(w.amount); err != nil {
			return fmt.Errorf("minimum is %s: %w", w.product.MinimumAmount.Decimal, err)
		}
	}
	if w.commitment != nil {
		return w.commitment.CheckSettleable(w.amount)
	}
	return nil
}

// CanAdvance reports whether Next would succeed without a request.
func (w *Wizard) CanAdvance() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inFlight {
		return false
	}
	switch w.state {
	case StateAmount:
		return w.validateAmount() == nil
	case StateConfirm:
		return true
	default:
		return false
	}
}

// Next moves forward from AMOUNT to CONFIRM, or from CONFIRM to AUTHENTICATE.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.begin(); err != nil {
		return err
	}
	if w.state == StateAmount {
		if err := w.validateAmount(); err != nil {
			return err
		}
	}
	return w.advance(EventNext)
}

// Back moves one step back. Leaving AUTHENTICATE clears the wallet code; every other value
// is kept, including the cached commitment.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.begin(); err != nil {
		return err
	}
	from := w.state
	if err := w.advance(EventBack); err != nil {
		return err
	}
	if from == StateAuthenticate {
		w.code = ""
	}
	return nil
}

// SetCode records the wallet security code at AUTHENTICATE.
func (w *Wizard) SetCode(code string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateAuthenticate {
		return fmt.Errorf("%w: code entered at %s", ErrIllegalTransition, w.state)
	}
	w.code = code
	return domain.ValidateWalletCode(code)
}

// Confirm sends the settlement. A malformed code or an amount above the last known
// balance is rejected before any request. Failures leave the wizard where the user can
// act on them:
//   - a rejected wallet code returns to AUTHENTICATE with the code cleared
//   - insufficient balance returns to AMOUNT with the balance re-read
//   - a vanished commitment returns to SELECT; the next Submit creates a new one
//   - anything else, including an unknown outcome, returns to AUTHENTICATE for a manual retry
func (w *Wizard) Confirm(ctx context.Context) (*types.SettleResponse, error) {
	w.mu.Lock()
	if w.state != StateAuthenticate {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: confirm at %s", ErrIllegalTransition, w.state)
	}
	if err := w.begin(); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if err := domain.ValidateWalletCode(w.code); err != nil {
		defer w.mu.Unlock()
		return nil, w.fail(StateAuthenticate, err)
	}
	if err := w.validateAmount(); err != nil {
		defer w.mu.Unlock()
		return nil, w.fail(StateAuthenticate, err)
	}
	if err := w.advance(EventSubmit); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	w.inFlight = true
	id, amount, code := w.commitment.ID, w.amount, w.code
	w.mu.Unlock()

	res, err := w.backend.Settle(ctx, id, amount, code)

	w.mu.Lock()
	if w.state == StateClosed {
		w.inFlight = false
		w.mu.Unlock()
		if err == nil {
			w.logger.Warn("Settlement completed after the wizard was closed",
				"commitment_id", id, "wallet_transaction_id", res.Settlement.WalletTransactionID)
		}
		return nil, ErrClosed
	}
	if err == nil {
		defer w.mu.Unlock()
		w.inFlight = false
		w.code = ""
		w.result = res
		w.commitment = res.Commitment
		if aerr := w.advance(EventSettled); aerr != nil {
			return nil, aerr
		}
		return res, nil
	}

	ev := EventSettleFailed
	switch util.KindOf(err) {
	case util.KindAuthentication:
		w.code = ""
	case util.KindInsufficientBalance:
		ev = EventBalanceRejected
	case util.KindNotFound:
		ev = EventCommitmentLost
		w.commitment = nil
		w.product = nil
	}
	if aerr := w.advance(ev); aerr != nil {
		w.inFlight = false
		w.mu.Unlock()
		return nil, aerr
	}
	stepErr := w.fail(StateSettling, err)

	if ev != EventBalanceRejected {
		w.inFlight = false
		w.mu.Unlock()
		return nil, stepErr
	}
	w.mu.Unlock()

	// The server had a fresher balance than ours; show the authoritative one.
	balance, berr := w.backend.GetBalance(ctx)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inFlight = false
	if berr != nil {
		w.logger.Warn("Failed to refresh balance after rejection", "error", berr)
	} else {
		w.balance = balance
	}
	return nil, stepErr
}

// Close ends the wizard. An already created but unsettled commitment is not deleted; its
// id is returned so the caller can tell the user it is pending. A request still in flight
// completes, but its result is not applied.
func (w *Wizard) Close() (orphanID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateClosed {
		return ""
	}
	from := w.state
	if err := w.advance(EventClose); err != nil {
		return ""
	}
	w.code = ""

	if w.commitment != nil && w.result == nil && w.commitment.IsPending() {
		orphanID = w.commitment.ID
		w.logger.Info("Wizard closed with a pending commitment", "commitment_id", orphanID, "step", from.String())
	}
	return orphanID
}

// begin clears the previous failure and rejects re-entrant calls. Caller holds mu.
func (w *Wizard) begin() error {
	if w.inFlight {
		return ErrBusy
	}
	w.lastErr = nil
	return nil
}

// advance applies e. Caller holds mu.
func (w *Wizard) advance(e Event) error {
	next, err := Transition(w.state, e)
	if err != nil {
		return err
	}
	w.state = next
	return nil
}

// fail records err against step and returns it. Caller holds mu.
func (w *Wizard) fail(step State, err error) error {
	w.lastErr = &StepError{Step: step, Err: err}
	w.logger.Debug("Wizard step failed", "step", step.String(), "kind", util.KindOf(err).String(), "error", err)
	return w.lastErr
}

func (w *Wizard) lastErrValue() error {
	if w.lastErr == nil {
		return nil
	}
	return w.lastErr
}
