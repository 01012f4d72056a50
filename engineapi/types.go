package engineapi

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cloudx-io/assetauction/core"
)

// ReceiptAlgorithm is the COSE algorithm settlement receipts are signed with.
const ReceiptAlgorithm = "ES256"

// CreateAuctionRequest is the body of POST /auctions. The seller is the authenticated caller.
type CreateAuctionRequest struct {
	Asset        core.Address   `json:"asset"`
	AssetToken   core.TokenType `json:"asset_token"`
	PaymentToken core.TokenType `json:"payment_token"`
	Amount       uint64         `json:"amount"`
	Deadline     int64          `json:"deadline"`
}

// AuctionClaims are the identities a caller believes an auction has. They are cross-checked
// against the stored record; the auction key itself comes from the URL.
type AuctionClaims struct {
	Seller       core.Address   `json:"seller"`
	Asset        core.Address   `json:"asset"`
	PaymentToken core.TokenType `json:"payment_token"`
}

// Ref combines the claims with the auction key into an engine reference.
func (c AuctionClaims) Ref(key core.AuctionKey) core.AuctionRef {
	return core.AuctionRef{
		Key:          key,
		Seller:       c.Seller,
		Asset:        c.Asset,
		PaymentToken: c.PaymentToken,
	}
}

// PlaceBidRequest is the body of POST /auctions/{seller}/{nonce}/bids.
type PlaceBidRequest struct {
	AuctionClaims
	Amount uint64 `json:"amount"`
}

// SettleAuctionRequest is the body of POST /auctions/{seller}/{nonce}/settle.
type SettleAuctionRequest struct {
	AuctionClaims
	Accounts core.SettlementAccounts `json:"accounts"`
}

// CancelAuctionRequest is the body of POST /auctions/{seller}/{nonce}/cancel.
type CancelAuctionRequest struct {
	AuctionClaims
}

// AuctionResponse describes one auction.
type AuctionResponse struct {
	Auction *core.AuctionRecord `json:"auction"`
	Vaults  core.Vaults         `json:"vaults"`
	// HighestBidDisplay is HighestBid rendered with the payment token's decimals.
	HighestBidDisplay string `json:"highest_bid_display"`
}

// AuctionListResponse lists a seller's auctions.
type AuctionListResponse struct {
	Auctions []AuctionResponse `json:"auctions"`
}

// BidLogResponse lists the accepted bids of one auction, oldest first. Replaying Bids
// yields BidLogHash.
type BidLogResponse struct {
	Key        core.AuctionKey    `json:"key"`
	Bids       []core.BidLogEntry `json:"bids"`
	BidLogHash string             `json:"bid_log_hash"`
}

// SettlementResponse is returned by a successful settlement.
type SettlementResponse struct {
	Auction   *core.AuctionRecord `json:"auction"`
	Summary   string              `json:"summary"`
	ReceiptID string              `json:"receipt_id,omitempty"`
	Receipt   ReceiptCOSEBase64   `json:"receipt,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
	RequestID string `json:"request_id,omitempty"`
}

// PublicKeyResponse carries the receipt verification key.
type PublicKeyResponse struct {
	Type      string `json:"type"`
	Algorithm string `json:"algorithm"`
	PublicKey string `json:"public_key"` // PEM format
}

// MintRequest credits Amount of Token to Owner. Development only.
type MintRequest struct {
	Owner  core.Address   `json:"owner"`
	Token  core.TokenType `json:"token"`
	Amount uint64         `json:"amount"`
}

// BalanceResponse reports one ledger balance.
type BalanceResponse struct {
	Owner   core.Address   `json:"owner"`
	Token   core.TokenType `json:"token"`
	Balance uint64         `json:"balance"`
}

// ReceiptPayload is the signed content of a settlement receipt.
type ReceiptPayload struct {
	ReceiptID    string         `cbor:"receipt_id" json:"receipt_id"`
	Seller       core.Address   `cbor:"seller" json:"seller"`
	Nonce        uint64         `cbor:"nonce" json:"nonce"`
	Asset        core.Address   `cbor:"asset" json:"asset"`
	AssetToken   core.TokenType `cbor:"asset_token" json:"asset_token"`
	PaymentToken core.TokenType `cbor:"payment_token" json:"payment_token"`
	Winner       core.Address   `cbor:"winner" json:"winner"`
	Shares       uint64         `cbor:"shares" json:"shares"`
	Price        uint64         `cbor:"price" json:"price"`
	BidCount     uint64         `cbor:"bid_count" json:"bid_count"`
	BidLogHash   string         `cbor:"bid_log_hash" json:"bid_log_hash"`
	Deadline     int64          `cbor:"deadline" json:"deadline"`
	SettledAt    int64          `cbor:"settled_at" json:"settled_at"`
	AssetVault   core.Address   `cbor:"asset_vault" json:"asset_vault"`
	BidVault     core.Address   `cbor:"bid_vault" json:"bid_vault"`
}

// Key returns the key of the settled auction.
func (p *ReceiptPayload) Key() core.AuctionKey {
	return core.AuctionKey{Seller: p.Seller, Nonce: p.Nonce}
}

// ReceiptCOSE is a raw COSE_Sign1 settlement receipt.
type ReceiptCOSE []byte

// ReceiptCOSEBase64 is a base64 encoded ReceiptCOSE, standard or URL-safe.
type ReceiptCOSEBase64 string

// EncodeBase64 encodes the receipt with standard padded base64 for JSON transport.
func (r ReceiptCOSE) EncodeBase64() ReceiptCOSEBase64 {
	return ReceiptCOSEBase64(base64.StdEncoding.EncodeToString(r))
}

// EncodeURLSafe encodes the receipt with unpadded URL-safe base64.
func (r ReceiptCOSE) EncodeURLSafe() ReceiptCOSEBase64 {
	return ReceiptCOSEBase64(base64.RawURLEncoding.EncodeToString(r))
}

func (r ReceiptCOSEBase64) String() string {
	return string(r)
}

// Decode accepts both encodings produced by ReceiptCOSE.
func (r ReceiptCOSEBase64) Decode() (ReceiptCOSE, error) {
	s := strings.TrimSpace(string(r))
	if s == "" {
		return nil, fmt.Errorf("empty receipt")
	}
	if strings.ContainsAny(s, "-_") || len(s)%4 != 0 {
		b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, fmt.Errorf("decode url-safe base64: %w", err)
		}
		return b, nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return b, nil
}
