package flake

import (
	"errors"

	"flakeledger/native/common"
)

// Authorization failures.
var (
	ErrNotOwner  = errors.New("flake: caller is not the owner")
	ErrNotOracle = errors.New("flake: caller is not the oracle")
)

// Not-found and state mismatches.
var (
	ErrFlakeNotFound     = errors.New("flake: flake not found")
	ErrFlakeNotActive    = errors.New("flake: flake not active")
	ErrFlakeNotRefunding = errors.New("flake: flake not refunding")
	ErrNotInitialized    = errors.New("flake: ledger roles not initialised")
)

// Validation failures.
var (
	ErrZeroAddress          = errors.New("flake: zero address")
	ErrFeeTooHigh           = errors.New("flake: fee bps above maximum")
	ErrZeroStake            = errors.New("flake: stake amount must be positive")
	ErrDuplicateParticipant = errors.New("flake: duplicate participant")
	ErrNoStake              = errors.New("flake: no stake recorded")
	ErrValueNotAccepted     = errors.New("flake: operation does not accept value")
	ErrNegativeValue        = errors.New("flake: attached value must be non-negative")
	ErrInsufficientFunds    = errors.New("flake: caller cannot cover attached value")
	ErrVaultIdentity        = errors.New("flake: vault cannot act as a party")
)

// Conflicts.
var (
	ErrFlakeExists        = errors.New("flake: flake id already in use")
	ErrRefundClaimed      = errors.New("flake: refund already claimed")
	ErrAlreadyInitialized = errors.New("flake: ledger roles already initialised")
)

var (
	// ErrTransferFailed wraps any failure of an outbound value transfer. The
	// enclosing operation is rolled back.
	ErrTransferFailed = errors.New("flake: value transfer failed")
	// ErrReentrant is returned when a mutating call starts while another one
	// is still in flight.
	ErrReentrant = common.ErrReentrant
	// ErrDirectTransfer rejects value sent to the ledger outside of a stake.
	ErrDirectTransfer = errors.New("flake: direct transfers are not accepted")
)

var errNilState = errors.New("flake engine: state not configured")

// ErrorCategory groups ledger errors so callers can react without parsing
// messages.
type ErrorCategory string

const (
	CategoryNone          ErrorCategory = ""
	CategoryAuthorization ErrorCategory = "authorization"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryState         ErrorCategory = "state"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryTransfer      ErrorCategory = "transfer"
	CategoryReentrancy    ErrorCategory = "reentrancy"
	CategoryInternal      ErrorCategory = "internal"
)

// Transfer failures are checked first: a failed transfer may wrap the error a
// re-entering recipient observed.
var categories = []struct {
	category ErrorCategory
	errs     []error
}{
	{CategoryTransfer, []error{ErrTransferFailed}},
	{CategoryReentrancy, []error{ErrReentrant}},
	{CategoryAuthorization, []error{ErrNotOwner, ErrNotOracle}},
	{CategoryNotFound, []error{ErrFlakeNotFound}},
	{CategoryState, []error{ErrFlakeNotActive, ErrFlakeNotRefunding, ErrNotInitialized}},
	{CategoryValidation, []error{ErrZeroAddress, ErrFeeTooHigh, ErrZeroStake, ErrDuplicateParticipant, ErrNoStake, ErrValueNotAccepted, ErrNegativeValue, ErrInsufficientFunds, ErrDirectTransfer, ErrVaultIdentity}},
	{CategoryConflict, []error{ErrFlakeExists, ErrRefundClaimed, ErrAlreadyInitialized}},
}

// Category classifies err. Errors that do not originate from the ledger's
// taxonomy are reported as internal; nil maps to CategoryNone.
func Category(err error) ErrorCategory {
	if err == nil {
		return CategoryNone
	}
	for _, group := range categories {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.category
			}
		}
	}
	return CategoryInternal
}
