package saga

// SubTxState is the state of one sub-transaction.
type SubTxState string

const (
	// SubTxStarted indicates the forward action has been dispatched.
	SubTxStarted SubTxState = "STARTED"
	// SubTxEnded indicates the forward action committed.
	SubTxEnded SubTxState = "ENDED"
	// SubTxAborted indicates the forward action failed or timed out.
	SubTxAborted SubTxState = "ABORTED"
	// SubTxCompensating indicates the compensating action is in flight.
	SubTxCompensating SubTxState = "COMPENSATING"
	// SubTxCompensated indicates the compensating action committed.
	SubTxCompensated SubTxState = "COMPENSATED"
	// SubTxCompensateFailed indicates compensation exhausted its retries.
	SubTxCompensateFailed SubTxState = "COMPENSATE_FAILED"
)

// CanTransitionTo checks if a state transition is valid. A sub-transaction
// never re-enters STARTED.
func (s SubTxState) CanTransitionTo(target SubTxState) bool {
	validTransitions := map[SubTxState][]SubTxState{
		SubTxStarted:      {SubTxEnded, SubTxAborted},
		SubTxEnded:        {SubTxCompensating},
		SubTxCompensating: {SubTxCompensated, SubTxCompensateFailed},
		// Terminal states
		SubTxAborted:          {},
		SubTxCompensated:      {},
		SubTxCompensateFailed: {},
	}

	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}

	for _, state := range allowed {
		if state == target {
			return true
		}
	}

	return false
}

// IsTerminal returns true when no further transition is possible.
func (s SubTxState) IsTerminal() bool {
	return s == SubTxAborted || s == SubTxCompensated || s == SubTxCompensateFailed
}

// GlobalTxState is the derived state of a whole saga instance.
type GlobalTxState string

const (
	GlobalTxStarted            GlobalTxState = "STARTED"
	GlobalTxCommitting         GlobalTxState = "COMMITTING"
	GlobalTxCommitted          GlobalTxState = "COMMITTED"
	GlobalTxCompensating       GlobalTxState = "COMPENSATING"
	GlobalTxCompensated        GlobalTxState = "COMPENSATED"
	GlobalTxCompensationFailed GlobalTxState = "COMPENSATION_FAILED"
)

// CanTransitionTo checks if a global state transition is valid. An abort
// with nothing committed yet jumps straight to COMPENSATED.
func (s GlobalTxState) CanTransitionTo(target GlobalTxState) bool {
	validTransitions := map[GlobalTxState][]GlobalTxState{
		GlobalTxStarted:      {GlobalTxCommitting, GlobalTxCommitted, GlobalTxCompensating, GlobalTxCompensated, GlobalTxCompensationFailed},
		GlobalTxCommitting:   {GlobalTxCommitted},
		GlobalTxCompensating: {GlobalTxCompensated, GlobalTxCompensationFailed},
		// Terminal states
		GlobalTxCommitted:          {},
		GlobalTxCompensated:        {},
		GlobalTxCompensationFailed: {},
	}

	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}

	for _, state := range allowed {
		if state == target {
			return true
		}
	}

	return false
}

// IsTerminal returns true if the saga instance needs no further driving.
func (s GlobalTxState) IsTerminal() bool {
	return s == GlobalTxCommitted || s == GlobalTxCompensated || s == GlobalTxCompensationFailed
}
