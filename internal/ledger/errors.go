package ledger

import (
	"errors"
	"fmt"
)

// Business rule violations. They are recoverable and reported to the caller unchanged.
var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrAccountClosed      = errors.New("account is closed")
	ErrAccountFrozen      = errors.New("account is frozen")
	ErrAccountNotFound    = errors.New("account not found")
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrAuthFailed         = errors.New("authentication failed")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidPin         = errors.New("invalid pin")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrSameAccount        = errors.New("source and target account are the same")
)

// ErrPinMismatch is the ErrInvalidPin reported when a well-formed PIN does not match.
var ErrPinMismatch = fmt.Errorf("%w: does not match", ErrInvalidPin)

// ErrCorruptSnapshot means the persisted state cannot be trusted. Callers should not continue
// with a partially hydrated directory.
var ErrCorruptSnapshot = errors.New("corrupt ledger snapshot")
