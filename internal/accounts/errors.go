package accounts

import (
	"errors"
	"fmt"
)

// User-facing messages for local guards and transport failures.
const (
	MsgNoItemsToCommit      = "no items to commit"
	MsgCommitNotConfirmed   = "commit must be confirmed for %d items"
	MsgPendingBeforeFinal   = "must commit all pending items before finalizing"
	MsgNoCommittedItems     = "must have at least one committed item"
	MsgDeleteCommitted      = "only items not yet sent to the kitchen can be deleted"
	MsgItemNotFound         = "item not found in account"
	MsgInvalidTempIndex     = "invalid pending item index"
	MsgWaiterCannotReopen   = "waiters cannot reopen accounts"
	MsgDispatchPending      = "items already saved are waiting to be sent to the kitchen; commit them first"
	MsgPendingBeforeClose   = "must commit or remove pending items before closing"
	MsgInvalidPayment       = "invalid payment method"
	MsgInsufficientTendered = "amount tendered is less than the total"
	MsgOperationInProgress  = "another operation is in progress for this account"
	MsgSessionClosed        = "account session is closed"

	MsgLoadFailed     = "failed to load account"
	MsgCommitFailed   = "failed to command items"
	MsgAppendFailed   = "failed to add items"
	MsgDeleteFailed   = "failed to delete item"
	MsgFinalizeFailed = "failed to finalize account"
	MsgReopenFailed   = "failed to reopen account"
	MsgCloseFailed    = "failed to close account"
	MsgCreateFailed   = "failed to create account"
)

// ValidationError is a guard failure detected before any network call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) UserMessage() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// BackendError carries a success=false reply; Message is relayed verbatim.
type BackendError struct {
	Op      string
	Message string
}

func (e *BackendError) Error() string { return e.Op + ": " + e.Message }

func (e *BackendError) UserMessage() string { return e.Message }

// TransportError wraps network and decoding failures. Users only see the
// generic message for the operation.
type TransportError struct {
	Op      string
	Message string
	Err     error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) UserMessage() string { return e.Message }

// UserMessage returns the text to show for err, falling back to def.
func UserMessage(err error, def string) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	return def
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// classify maps an error from the backend collaborator into the session
// taxonomy. backendMsg is used when a success=false reply had no message;
// transportMsg replaces every network or decoding error.
func classify(op, backendMsg, transportMsg string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		if be.Message == "" {
			return &BackendError{Op: op, Message: backendMsg}
		}
		return &BackendError{Op: op, Message: be.Message}
	}
	var te *TransportError
	if errors.As(err, &te) {
		return &TransportError{Op: op, Message: transportMsg, Err: te.Err}
	}
	return &TransportError{Op: op, Message: transportMsg, Err: err}
}
