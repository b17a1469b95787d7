package reports

import (
	"errors"
	"fmt"
)

// Kind agrupa los errores para que el llamador pueda distinguirlos.
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindAuthorization Kind = "authorization"
	KindState         Kind = "state"
	KindTransfer      Kind = "transfer"
	KindInvalidInput  Kind = "invalid_input"
	KindConflict      Kind = "conflict"
	KindInternal      Kind = "internal"
	// KindPending: la transferencia se envió y no se sabe si se aplicó.
	// El estado del reporte se conserva, nunca se restaura.
	KindPending Kind = "pending"

	// KindUnauthenticated: request sin llamador identificable (solo HTTP).
	KindUnauthenticated Kind = "unauthenticated"
)

type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// Is compara por kind + reason, así errors.Is(err, ErrSelfClaim) funciona
// aunque el error traiga causa envuelta.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

func (e *Error) with(cause error) *Error {
	return &Error{Kind: e.Kind, Reason: e.Reason, Err: cause}
}

var (
	ErrNotFound = &Error{Kind: KindNotFound, Reason: "report not found"}

	ErrInvalidCaller = &Error{Kind: KindInvalidInput, Reason: "caller address is required"}
	ErrInvalidInput  = &Error{Kind: KindInvalidInput, Reason: "invalid input"}

	ErrSelfClaim = &Error{Kind: KindAuthorization, Reason: "owner cannot mark own pet as found"}
	ErrNotOwner  = &Error{Kind: KindAuthorization, Reason: "only the pet owner can do this"}
	ErrNotFinder = &Error{Kind: KindAuthorization, Reason: "only the finder can claim the bounty"}

	ErrAlreadyFound     = &Error{Kind: KindState, Reason: "pet already found"}
	ErrFinderAssigned   = &Error{Kind: KindState, Reason: "finder already assigned"}
	ErrNoFinder         = &Error{Kind: KindState, Reason: "no finder assigned yet"}
	ErrAlreadyConfirmed = &Error{Kind: KindState, Reason: "already confirmed by owner"}
	ErrNotYetFound      = &Error{Kind: KindState, Reason: "pet not confirmed as found"}
	ErrBountyClaimed    = &Error{Kind: KindState, Reason: "bounty already claimed"}
	ErrNoBounty         = &Error{Kind: KindState, Reason: "report has no bounty"}
	ErrCancelled        = &Error{Kind: KindState, Reason: "report cancelled"}

	ErrTransferIn = &Error{Kind: KindTransfer, Reason: "bounty transfer into escrow failed"}
	ErrPayout     = &Error{Kind: KindTransfer, Reason: "bounty payout failed"}
	ErrRefund     = &Error{Kind: KindTransfer, Reason: "bounty refund failed"}

	ErrTransferInPending = &Error{Kind: KindPending, Reason: "bounty transfer into escrow awaiting confirmation"}
	ErrPayoutPending     = &Error{Kind: KindPending, Reason: "bounty payout awaiting confirmation"}
	ErrRefundPending     = &Error{Kind: KindPending, Reason: "bounty refund awaiting confirmation"}

	// ErrConflict lo devuelven los repos cuando la versión esperada no coincide.
	ErrConflict = &Error{Kind: KindConflict, Reason: "report was modified concurrently"}
)

// KindOf devuelve el kind del error o KindInternal si no es del dominio.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
