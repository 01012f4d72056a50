package validation

import (
	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/engineapi"
)

// ReceiptValidationInput contains all inputs needed for settlement receipt validation
type ReceiptValidationInput struct {
	Receipt      engineapi.ReceiptCOSEBase64
	PublicKeyPEM string // Receipt signing key, from GET /receipts/public-key

	// Auction is the settled record as served by the engine. Nil skips the record cross-check.
	Auction *core.AuctionRecord
	// BidLog is the ordered list of accepted bids. Nil skips the bid log replay.
	BidLog []core.BidLogEntry
}

// ReceiptValidationResult contains the outcome of each receipt check
type ReceiptValidationResult struct {
	SignatureValid    bool
	VaultsValid       bool
	AuctionValid      bool
	BidLogValid       bool
	Payload           *engineapi.ReceiptPayload
	ValidationDetails []string
}

// IsValid returns true if all receipt validation checks passed
func (r *ReceiptValidationResult) IsValid() bool {
	return r.SignatureValid && r.VaultsValid && r.AuctionValid && r.BidLogValid
}
