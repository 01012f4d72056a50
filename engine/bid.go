package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloudx-io/assetauction/core"
)

// PlaceBidRequest is a bidder's offer of Amount payment tokens on the auction named by Ref.
type PlaceBidRequest struct {
	Signer Authority
	Ref    core.AuctionRef
	Amount uint64
}

// PlaceBid accepts a bid that strictly exceeds the current highest bid.
//
// The bid is escrowed in the bid vault and the displaced highest bid, if any, is refunded
// to its bidder in the same ledger batch, so the bid vault always covers HighestBid.
func (e *Engine) PlaceBid(ctx context.Context, req PlaceBidRequest) (record *core.AuctionRecord, err error) {
	defer func() { observe("bid", err) }()

	bidder, err := userSigner(req.Signer)
	if err != nil {
		return nil, err
	}
	key := req.Ref.Key
	logger := e.logger.With(zap.Stringer("auction", key), zap.Stringer("bidder", bidder), zap.Uint64("amount", req.Amount))

	unlock := e.lock(key)
	defer unlock()

	prev, err := e.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := core.CheckRef(prev, req.Ref); err != nil {
		logger.Info("bid rejected", zap.Error(err))
		return nil, err
	}
	now := e.clock.Now()
	if err := core.CheckBidAdmissible(prev, req.Amount, now); err != nil {
		logger.Info("bid rejected", zap.Error(err))
		return nil, err
	}

	balance, err := e.ledger.BalanceOf(ctx, bidder, prev.PaymentToken)
	if err != nil {
		return nil, fmt.Errorf("read bidder balance: %w", err)
	}
	if err := core.CheckSufficientBalance(balance, req.Amount); err != nil {
		logger.Info("bid rejected", zap.Error(err))
		return nil, err
	}

	updated := prev.Clone()
	if err := updated.AppendBid(bidder, req.Amount, now); err != nil {
		return nil, err
	}

	uow := e.begin("bid", key)
	if err := e.saveWithUndo(ctx, uow, prev, updated); err != nil {
		return nil, fmt.Errorf("save auction %s: %w", key, err)
	}

	vaults := prev.Vaults()
	legs := []Transfer{{
		From:      bidder,
		To:        vaults.BidVault,
		Token:     prev.PaymentToken,
		Amount:    req.Amount,
		Authority: req.Signer,
	}}
	if prev.HasBids() {
		legs = append(legs, Transfer{
			From:      vaults.BidVault,
			To:        prev.HighestBidder,
			Token:     prev.PaymentToken,
			Amount:    prev.HighestBid,
			Authority: bidVaultAuthority(key),
		})
	}
	if err := e.ledger.Transfer(ctx, legs...); err != nil {
		return nil, uow.rollback(ctx, fmt.Errorf("escrow bid: %w", err))
	}

	fields := []zap.Field{zap.Uint64("bid_count", updated.BidCount)}
	if prev.HasBids() {
		fields = append(fields, zap.Stringer("refunded", prev.HighestBidder), zap.Uint64("refund", prev.HighestBid))
	}
	logger.Info("bid accepted", fields...)
	return updated.Clone(), nil
}
