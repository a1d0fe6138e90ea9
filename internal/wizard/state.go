// internal/wizard/state.go
package wizard

import (
	"errors"
	"fmt"
)

// State is a step of the commitment wizard.
type State int

const (
	StateSelect State = iota
	StateCreatingCommitment
	StateAmount
	StateConfirm
	StateAuthenticate
	StateSettling
	StateSuccess
	StateClosed
)

var stateNames = [...]string{
	StateSelect:             "SELECT",
	StateCreatingCommitment: "CREATING_COMMITMENT",
	StateAmount:             "AMOUNT",
	StateConfirm:            "CONFIRM",
	StateAuthenticate:       "AUTHENTICATE",
	StateSettling:           "SETTLING",
	StateSuccess:            "SUCCESS",
	StateClosed:             "CLOSED",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Event drives a transition.
type Event int

const (
	EventCreate           Event = iota // SELECT: no commitment cached yet
	EventReuse                         // SELECT: a commitment id is cached
	EventCreated                       // create call succeeded
	EventCreateFailed                  // create call failed
	EventNext                          // forward along AMOUNT, CONFIRM
	EventBack                          // back along AMOUNT, CONFIRM, AUTHENTICATE
	EventSubmit                        // AUTHENTICATE: send the settlement
	EventSettled                       // settle call succeeded
	EventSettleFailed                  // settle call failed, the code step can retry
	EventBalanceRejected               // wallet balance too low, adjust the amount
	EventCommitmentLost                // commitment no longer exists
	EventClose                         // user closed the wizard
)

var eventNames = [...]string{
	EventCreate:          "create",
	EventReuse:           "reuse",
	EventCreated:         "created",
	EventCreateFailed:    "create-failed",
	EventNext:            "next",
	EventBack:            "back",
	EventSubmit:          "submit",
	EventSettled:         "settled",
	EventSettleFailed:    "settle-failed",
	EventBalanceRejected: "balance-rejected",
	EventCommitmentLost:  "commitment-lost",
	EventClose:           "close",
}

func (e Event) String() string {
	if e >= 0 && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// ErrIllegalTransition is returned for an event the current state does not accept.
var ErrIllegalTransition = errors.New("illegal wizard transition")

type edge struct {
	from State
	on   Event
}

var transitions = map[edge]State{
	{StateSelect, EventCreate}: StateCreatingCommitment,
	{StateSelect, EventReuse}:  StateAmount,

	{StateCreatingCommitment, EventCreated}:      StateAmount,
	{StateCreatingCommitment, EventCreateFailed}: StateSelect,

	{StateAmount, EventNext}:       StateConfirm,
	{StateAmount, EventBack}:       StateSelect,
	{StateConfirm, EventNext}:      StateAuthenticate,
	{StateConfirm, EventBack}:      StateAmount,
	{StateAuthenticate, EventBack}: StateConfirm,

	{StateAuthenticate, EventSubmit}: StateSettling,

	{StateSettling, EventSettled}:         StateSuccess,
	{StateSettling, EventSettleFailed}:    StateAuthenticate,
	{StateSettling, EventBalanceRejected}: StateAmount,
	{StateSettling, EventCommitmentLost}:  StateSelect,
}

// Transition returns the state reached from s on e. SUCCESS has no way back, and CLOSED
// accepts nothing.
func Transition(s State, e Event) (State, error) {
	if e == EventClose && s != StateClosed {
		return StateClosed, nil
	}
	next, ok := transitions[edge{s, e}]
	if !ok {
		return s, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, e, s)
	}
	return next, nil
}
