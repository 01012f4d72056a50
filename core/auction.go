package core

import "fmt"

// AuctionRecord is the authoritative state of one auction.
//
// Asset, Seller, AssetToken, PaymentToken, EscrowedAmount and Deadline are fixed at creation.
// HighestBid only increases, and HighestBidder is set exactly when HighestBid > 0.
type AuctionRecord struct {
	Key            AuctionKey    `json:"key"`
	Asset          Address       `json:"asset"`
	Seller         Address       `json:"seller"`
	AssetToken     TokenType     `json:"asset_token"`
	PaymentToken   TokenType     `json:"payment_token"`
	EscrowedAmount uint64        `json:"escrowed_amount"`
	Status         AuctionStatus `json:"status"`
	HighestBid     uint64        `json:"highest_bid"`
	HighestBidder  Address       `json:"highest_bidder,omitempty"`
	Deadline       int64         `json:"deadline"`
	BidCount       uint64        `json:"bid_count"`
	BidLogHash     string        `json:"bid_log_hash"`
	CreatedAt      int64         `json:"created_at"`
	SettledAt      int64         `json:"settled_at,omitempty"`

	// BidLog lists the accepted bids in order. It replays to BidLogHash.
	BidLog []BidLogEntry `json:"bid_log,omitempty"`

	// Version is bumped by the record store on every successful save.
	Version uint64 `json:"version"`
}

// NewAuctionRecord builds a freshly created, active auction with no bids.
func NewAuctionRecord(key AuctionKey, asset AssetRecord, paymentToken TokenType, amount uint64, deadline, now int64) *AuctionRecord {
	return &AuctionRecord{
		Key:            key,
		Asset:          asset.Asset,
		Seller:         key.Seller,
		AssetToken:     asset.ShareToken,
		PaymentToken:   paymentToken,
		EscrowedAmount: amount,
		Status:         StatusActive,
		Deadline:       deadline,
		BidLogHash:     GenesisBidLogHash(key),
		CreatedAt:      now,
	}
}

// IsActive reports whether the auction still accepts bids and has not been settled or cancelled.
func (r *AuctionRecord) IsActive() bool {
	return r.Status == StatusActive
}

// HasBids reports whether at least one bid has been accepted.
func (r *AuctionRecord) HasBids() bool {
	return r.HighestBid > 0
}

// Vaults returns the derived escrow owners for this auction.
func (r *AuctionRecord) Vaults() Vaults {
	return VaultsFor(r.Key)
}

// Clone returns a copy that can be mutated without affecting the original.
func (r *AuctionRecord) Clone() *AuctionRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.BidLog = append([]BidLogEntry(nil), r.BidLog...)
	return &c
}

// AppendBid records an accepted bid: it becomes the highest bid and is chained onto the bid log.
func (r *AuctionRecord) AppendBid(bidder Address, amount uint64, now int64) error {
	bidCount, err := CheckedAdd(r.BidCount, 1)
	if err != nil {
		return err
	}
	r.HighestBid = amount
	r.HighestBidder = bidder
	r.BidCount = bidCount
	r.BidLogHash = ComputeBidLogHash(r.BidLogHash, bidder, amount, now)
	r.BidLog = append(r.BidLog, BidLogEntry{Bidder: bidder, Amount: amount, Timestamp: now})
	return nil
}

// CheckInvariants verifies the internal consistency of a record.
func (r *AuctionRecord) CheckInvariants() error {
	if r.Seller != r.Key.Seller {
		return fmt.Errorf("%w: record seller %s differs from key seller %s", ErrIdentityMismatch, r.Seller, r.Key.Seller)
	}
	if (r.HighestBid == 0) != (r.HighestBidder == "") {
		return fmt.Errorf("%w: highest bid %d with bidder %q", ErrCorruptRecord, r.HighestBid, r.HighestBidder)
	}
	if (r.BidCount == 0) != (r.HighestBid == 0) {
		return fmt.Errorf("%w: bid count %d with highest bid %d", ErrCorruptRecord, r.BidCount, r.HighestBid)
	}
	switch r.Status {
	case StatusActive, StatusCancelled:
	case StatusSettled:
		if !r.HasBids() {
			return fmt.Errorf("%w: settled without a bid", ErrCorruptRecord)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrCorruptRecord, r.Status)
	}
	return nil
}
