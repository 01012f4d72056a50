package core

import (
	"crypto/sha256"
	"fmt"
)

// Seeds used to derive the keyless escrow owners of an auction.
const (
	SeedAuctionVault = "auction_vault"
	SeedAuctionState = "auction_state"
	seedBidLog       = "bid_log"

	derivedPrefix = "drv"
)

// DeriveAddress computes the deterministic owner address for a seed scoped to one auction.
//
// Formula: "drv" + hex(SHA256(seed + "|" + seller + "|" + nonce))
//
// Derived addresses have no private key; only the engine can authorize transfers out of them.
func DeriveAddress(seed string, key AuctionKey) Address {
	data := fmt.Sprintf("%s|%s|%d", seed, key.Seller, key.Nonce)
	hash := sha256.Sum256([]byte(data))
	return Address(fmt.Sprintf("%s%x", derivedPrefix, hash))
}

// VaultsFor returns the asset vault and bid vault owners of the auction with the given key.
func VaultsFor(key AuctionKey) Vaults {
	return Vaults{
		AssetVault: DeriveAddress(SeedAuctionVault, key),
		BidVault:   DeriveAddress(SeedAuctionState, key),
	}
}

// GenesisBidLogHash is the bid log hash of an auction before any bid is accepted.
//
// Formula: SHA256("bid_log" + "|" + seller + "|" + nonce)
func GenesisBidLogHash(key AuctionKey) string {
	data := fmt.Sprintf("%s|%s|%d", seedBidLog, key.Seller, key.Nonce)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ComputeBidLogHash chains one accepted bid onto the previous bid log hash.
// Anyone holding the ordered list of accepted bids can recompute the final hash
// and compare it with the one carried by a settlement receipt.
//
// Formula: SHA256(prev + "|" + bidder + "|" + amount + "|" + timestamp)
func ComputeBidLogHash(prev string, bidder Address, amount uint64, timestamp int64) string {
	data := fmt.Sprintf("%s|%s|%d|%d", prev, bidder, amount, timestamp)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// BidLogEntry is one accepted bid as recorded in the bid log.
type BidLogEntry struct {
	Bidder    Address `json:"bidder"`
	Amount    uint64  `json:"amount"`
	Timestamp int64   `json:"timestamp"`
}

// ReplayBidLog recomputes the bid log hash of an auction from its ordered accepted bids.
func ReplayBidLog(key AuctionKey, entries []BidLogEntry) string {
	hash := GenesisBidLogHash(key)
	for _, e := range entries {
		hash = ComputeBidLogHash(hash, e.Bidder, e.Amount, e.Timestamp)
	}
	return hash
}
