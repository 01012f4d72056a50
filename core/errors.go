package core

import "errors"

// Kind classifies an engine error by how a caller can recover from it.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInput means the request was structurally wrong; resubmit with corrected arguments.
	KindInput
	// KindEconomic means the caller's state does not satisfy the rule (funds, bid level).
	KindEconomic
	// KindTemporal means the request is too early or too late.
	KindTemporal
	// KindState means the caller is acting on a stale or terminal auction.
	KindState
	// KindIntegrity means forged or inconsistent account arguments. Never retried.
	KindIntegrity
	// KindArithmetic means an amount overflowed.
	KindArithmetic
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindEconomic:
		return "economic"
	case KindTemporal:
		return "temporal"
	case KindState:
		return "state"
	case KindIntegrity:
		return "integrity"
	case KindArithmetic:
		return "arithmetic"
	default:
		return "unknown"
	}
}

// Error is a classified engine error with a stable machine-readable code.
type Error struct {
	Kind Kind
	Code string
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, msg: msg}
}

var (
	// ErrAssetNotFound is returned when the asset registry has no record for the asset.
	ErrAssetNotFound = newError(KindInput, "asset_not_found", "asset not found")
	// ErrMintMismatch is returned when the supplied asset token differs from the registry's share token.
	ErrMintMismatch = newError(KindInput, "mint_mismatch", "asset token does not match the asset's share token")
	// ErrUnsupportedBidCurrency is returned when the payment token is not the accepted settlement currency.
	ErrUnsupportedBidCurrency = newError(KindInput, "unsupported_bid_currency", "payment token is not the accepted settlement currency")
	ErrInvalidAmount          = newError(KindInput, "invalid_amount", "invalid amount")
	ErrInvalidDeadline        = newError(KindInput, "invalid_deadline", "deadline must be in the future")
	ErrAuctionNotFound        = newError(KindInput, "auction_not_found", "auction not found")

	// ErrInsufficientBalance is returned when an account holds less than the requested amount.
	ErrInsufficientBalance = newError(KindEconomic, "insufficient_balance", "insufficient token balance")
	// ErrBidTooLow is returned when a bid does not strictly exceed the current highest bid.
	ErrBidTooLow = newError(KindEconomic, "bid_too_low", "bid must be higher than the current highest bid")

	ErrAuctionEnded       = newError(KindTemporal, "auction_ended", "auction has ended")
	ErrAuctionStillActive = newError(KindTemporal, "auction_still_active", "auction is still active and cannot be settled yet")

	ErrAlreadySettled   = newError(KindState, "already_settled", "auction has already been settled")
	ErrNoBidsPlaced     = newError(KindState, "no_bids_placed", "no bids were placed on this auction")
	ErrAuctionCancelled = newError(KindState, "auction_cancelled", "auction has been cancelled")
	ErrAuctionHasBids   = newError(KindState, "auction_has_bids", "auction with bids cannot be cancelled")
	// ErrConcurrentUpdate is returned by record stores when a save loses an optimistic version race.
	ErrConcurrentUpdate = newError(KindState, "concurrent_update", "auction record was modified concurrently")
	ErrAuctionExists    = newError(KindState, "auction_exists", "auction already exists")

	// ErrIdentityMismatch is returned when a supplied account differs from the one the record names.
	ErrIdentityMismatch = newError(KindIntegrity, "identity_mismatch", "account does not match auction record")
	// ErrVaultImbalance is returned when an escrow vault holds less than the record says.
	ErrVaultImbalance = newError(KindIntegrity, "vault_imbalance", "escrow vault balance does not match auction record")
	ErrUnauthorized   = newError(KindIntegrity, "unauthorized", "authority does not control the source account")
	ErrCorruptRecord  = newError(KindIntegrity, "corrupt_record", "auction record violates its invariants")

	ErrOverflow = newError(KindArithmetic, "overflow", "arithmetic operation resulted in an overflow")
)

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the machine-readable code of err, or "internal" for unclassified errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}

// Retryable reports whether resubmitting can succeed once the caller waits, acquires funds, bids
// higher or fixes its arguments. State, integrity and arithmetic failures are final for the auction,
// and so is a bid that arrived after the deadline.
func Retryable(err error) bool {
	if errors.Is(err, ErrAuctionEnded) {
		return false
	}
	switch KindOf(err) {
	case KindInput, KindEconomic, KindTemporal:
		return true
	default:
		return false
	}
}
