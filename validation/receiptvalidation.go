package validation

import (
	"fmt"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/engineapi"
	"github.com/cloudx-io/assetauction/engineapi/parsing"
)

// ValidateReceipt validates a settlement receipt and verifies:
// - Receipt is signed by the engine's receipt key
// - Vault addresses are the ones derived for the settled auction
// - Receipt matches the settled auction record (when provided)
// - Bid log replays to the receipt's bid log hash (when provided)
//
// Returns:
//   - ReceiptValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (e.g., malformed receipt or key)
func ValidateReceipt(input *ReceiptValidationInput) (*ReceiptValidationResult, error) {
	receipt, err := input.Receipt.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}

	publicKey, err := ParsePublicKeyPEM(input.PublicKeyPEM)
	if err != nil {
		return nil, err
	}

	payload, err := parsing.DecodeReceiptPayload(receipt)
	if err != nil {
		return nil, err
	}

	result := &ReceiptValidationResult{Payload: payload}

	if err := VerifyReceiptSignature(receipt, publicKey); err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Signature invalid: %v", err))
	} else {
		result.SignatureValid = true
		result.ValidationDetails = append(result.ValidationDetails, "Receipt signature valid (ES256)")
	}

	result.VaultsValid = validateVaults(payload, result)
	result.AuctionValid = validateAuction(input.Auction, payload, result)
	result.BidLogValid = validateBidLog(input.BidLog, payload, result)

	return result, nil
}

func validateVaults(payload *engineapi.ReceiptPayload, result *ReceiptValidationResult) bool {
	vaults := core.VaultsFor(payload.Key())
	if payload.AssetVault != vaults.AssetVault {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Asset vault mismatch: derived %s, receipt has %s", vaults.AssetVault, payload.AssetVault))
		return false
	}
	if payload.BidVault != vaults.BidVault {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Bid vault mismatch: derived %s, receipt has %s", vaults.BidVault, payload.BidVault))
		return false
	}
	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Vault addresses match auction %s", payload.Key()))
	return true
}

func validateAuction(auction *core.AuctionRecord, payload *engineapi.ReceiptPayload, result *ReceiptValidationResult) bool {
	if auction == nil {
		result.ValidationDetails = append(result.ValidationDetails, "Auction record check skipped: no record provided")
		return true
	}

	if auction.Status != core.StatusSettled {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Auction status is %s, expected settled", auction.Status))
		return false
	}

	checks := []struct {
		field  string
		record any
		signed any
	}{
		{"key", auction.Key, payload.Key()},
		{"asset", auction.Asset, payload.Asset},
		{"asset token", auction.AssetToken, payload.AssetToken},
		{"payment token", auction.PaymentToken, payload.PaymentToken},
		{"winner", auction.HighestBidder, payload.Winner},
		{"price", auction.HighestBid, payload.Price},
		{"shares", auction.EscrowedAmount, payload.Shares},
		{"bid count", auction.BidCount, payload.BidCount},
		{"bid log hash", auction.BidLogHash, payload.BidLogHash},
		{"deadline", auction.Deadline, payload.Deadline},
		{"settled at", auction.SettledAt, payload.SettledAt},
	}

	valid := true
	for _, c := range checks {
		if c.record != c.signed {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Auction %s mismatch: record has %v, receipt has %v", c.field, c.record, c.signed))
			valid = false
		}
	}
	if valid {
		result.ValidationDetails = append(result.ValidationDetails, "Receipt matches settled auction record")
	}
	return valid
}

func validateBidLog(bidLog []core.BidLogEntry, payload *engineapi.ReceiptPayload, result *ReceiptValidationResult) bool {
	if bidLog == nil {
		result.ValidationDetails = append(result.ValidationDetails, "Bid log replay skipped: no bid log provided")
		return true
	}

	if len(bidLog) == 0 {
		result.ValidationDetails = append(result.ValidationDetails, "Bid log is empty")
		return false
	}

	if uint64(len(bidLog)) != payload.BidCount {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Bid log has %d entries, receipt has bid count %d", len(bidLog), payload.BidCount))
		return false
	}

	computed := core.ReplayBidLog(payload.Key(), bidLog)
	if computed != payload.BidLogHash {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Bid log hash mismatch: computed %s, receipt has %s", computed, payload.BidLogHash))
		return false
	}

	last := bidLog[len(bidLog)-1]
	if last.Bidder != payload.Winner || last.Amount != payload.Price {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Last bid %s/%d does not match winner %s/%d", last.Bidder, last.Amount, payload.Winner, payload.Price))
		return false
	}

	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Bid log replay passed: %s", computed))
	return true
}
