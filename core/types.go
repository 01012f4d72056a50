package core

import (
	"fmt"
	"strings"
)

// Address identifies an account owner on the token ledger.
// User addresses are opaque and authenticated by the host; derived addresses
// are produced by DeriveAddress and carry the derivedPrefix.
type Address string

// IsDerived reports whether the address was produced by DeriveAddress.
func (a Address) IsDerived() bool {
	return strings.HasPrefix(string(a), derivedPrefix)
}

func (a Address) String() string {
	return string(a)
}

// TokenType identifies a fungible token (its mint).
type TokenType string

// AuctionKey is the registry key of an auction: one record per (seller, nonce).
type AuctionKey struct {
	Seller Address `json:"seller"`
	Nonce  uint64  `json:"nonce"`
}

func (k AuctionKey) String() string {
	return fmt.Sprintf("%s/%d", k.Seller, k.Nonce)
}

// AssetRecord is the read-only description of a tokenized asset held by the asset registry.
type AssetRecord struct {
	Asset       Address   `json:"asset"`
	ShareToken  TokenType `json:"share_token"`
	TotalShares uint64    `json:"total_shares"`
	Decimals    int32     `json:"decimals"`
}

// AuctionStatus is the lifecycle state of an auction. Transitions are one-way:
// Active -> Settled or Active -> Cancelled.
type AuctionStatus string

const (
	StatusActive    AuctionStatus = "active"
	StatusSettled   AuctionStatus = "settled"
	StatusCancelled AuctionStatus = "cancelled"
)

// Vaults holds the derived owners of an auction's two escrow balances.
type Vaults struct {
	// AssetVault holds the seller's escrowed share tokens.
	AssetVault Address `json:"asset_vault"`
	// BidVault holds the current highest bidder's escrowed payment.
	BidVault Address `json:"bid_vault"`
}

// AuctionRef names an auction together with the identities the caller believes it has.
// Every field is cross-checked against the stored record.
type AuctionRef struct {
	Key          AuctionKey `json:"key"`
	Seller       Address    `json:"seller"`
	Asset        Address    `json:"asset"`
	PaymentToken TokenType  `json:"payment_token"`
}

// Ref returns the reference a well-behaved caller would supply for this record.
func (r *AuctionRecord) Ref() AuctionRef {
	return AuctionRef{
		Key:          r.Key,
		Seller:       r.Seller,
		Asset:        r.Asset,
		PaymentToken: r.PaymentToken,
	}
}
