package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested object does not exist in storage.
var ErrNotFound = errors.New("not found")

// Closed set of rejection kinds. Every market transaction aborts with a
// *Fault wrapping exactly one of these, so callers can match with errors.Is
// instead of parsing reason strings.
var (
	ErrPaused              = errors.New("market paused")
	ErrWrongPayment        = errors.New("wrong payment amount")
	ErrPaymentNotAccepted  = errors.New("payment not accepted")
	ErrEmptyMetadata       = errors.New("empty metadata")
	ErrMetadataTooLong     = errors.New("metadata too long")
	ErrRoyaltyTooHigh      = errors.New("royalty above cap")
	ErrFeeTooHigh          = errors.New("platform fee above cap")
	ErrSupplyCap           = errors.New("max supply reached")
	ErrNotOwner            = errors.New("caller is not the owner")
	ErrOwnAsset            = errors.New("cannot trade own asset")
	ErrSelfTransfer        = errors.New("cannot transfer to self")
	ErrBurnAddressBlocked  = errors.New("cannot transfer to burn address")
	ErrAlreadyListed       = errors.New("asset already listed")
	ErrNotListed           = errors.New("asset not listed")
	ErrBelowFloor          = errors.New("amount below minimum sale price")
	ErrInvalidDuration     = errors.New("offer duration must be positive")
	ErrNoOffer             = errors.New("no such offer")
	ErrOfferExpired        = errors.New("offer expired")
	ErrNothingPending      = errors.New("nothing to withdraw")
	ErrNotAdmin            = errors.New("caller is not the admin")
	ErrNoPendingAdmin      = errors.New("no admin handover in progress")
	ErrNotProposedAdmin    = errors.New("caller is not the proposed admin")
	ErrSameAdmin           = errors.New("already the admin")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Fault is a rejected market operation: one tagged reason per abort,
// carrying the operation, the violated condition and optional context.
// The executor rolls the whole transaction back on any Fault.
type Fault struct {
	Op    string // operation tag, e.g. "MINT"
	Err   error  // one of the sentinel kinds above
	Field string
	Want  string
	Got   string
}

func (f *Fault) Error() string {
	s := f.Op + ": " + f.Err.Error()
	if f.Field != "" {
		s += " [" + f.Field + "]"
	}
	if f.Want != "" || f.Got != "" {
		s += fmt.Sprintf(" (want %s, got %s)", f.Want, f.Got)
	}
	return s
}

func (f *Fault) Unwrap() error { return f.Err }

// Reject builds a Fault for op with the given kind.
func Reject(op string, kind error) *Fault {
	return &Fault{Op: op, Err: kind}
}

// In records the offending field.
func (f *Fault) In(field string) *Fault {
	f.Field = field
	return f
}

// Expected records the expected and actual values.
func (f *Fault) Expected(want, got any) *Fault {
	f.Want = fmt.Sprint(want)
	f.Got = fmt.Sprint(got)
	return f
}
