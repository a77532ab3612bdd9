package ledger

import (
	"errors"

	"rubyscore/internal/access"
	"rubyscore/internal/claimsig"
)

// Rejections returned by ledger operations. Every rejection leaves the ledger
// untouched.
var (
	ErrInvalidAddress      = errors.New("zero address check")
	ErrZeroAmount          = errors.New("zero amount")
	ErrUnauthorized        = access.ErrUnauthorized
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNonceMismatch       = errors.New("nonce is invalid")
	ErrInvalidTax          = errors.New("tax exceeds amount")
	ErrLengthMismatch      = errors.New("arrays length mismatch")
	ErrInvalidSignature    = claimsig.ErrInvalidSignature
	ErrOverflow            = errors.New("amount overflow")
	ErrTransferFailed      = errors.New("transfer failed")
)

// IsRejection reports whether err is one of the ledger's deterministic
// rejections, as opposed to an infrastructure failure.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrInvalidAddress,
		ErrZeroAmount,
		ErrUnauthorized,
		ErrInsufficientFunds,
		ErrInsufficientBalance,
		ErrNonceMismatch,
		ErrInvalidTax,
		ErrLengthMismatch,
		ErrInvalidSignature,
		ErrOverflow,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
