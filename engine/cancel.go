package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloudx-io/assetauction/core"
)

// CancelAuctionRequest is a seller's request to withdraw an auction nobody has bid on.
type CancelAuctionRequest struct {
	Signer Authority
	Ref    core.AuctionRef
}

// CancelAuction empties both vaults to the seller and marks the auction cancelled.
// Only the seller may cancel, only before the deadline and only while no bid has been placed.
func (e *Engine) CancelAuction(ctx context.Context, req CancelAuctionRequest) (record *core.AuctionRecord, err error) {
	defer func() { observe("cancel", err) }()

	caller, err := userSigner(req.Signer)
	if err != nil {
		return nil, err
	}
	key := req.Ref.Key
	logger := e.logger.With(zap.Stringer("auction", key), zap.Stringer("caller", caller))

	unlock := e.lock(key)
	defer unlock()

	prev, err := e.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := core.CheckRef(prev, req.Ref); err != nil {
		logger.Info("cancellation rejected", zap.Error(err))
		return nil, err
	}
	if err := core.CheckCancellable(prev, caller, e.clock.Now()); err != nil {
		logger.Info("cancellation rejected", zap.Error(err))
		return nil, err
	}

	balances, err := e.vaultBalances(ctx, prev)
	if err != nil {
		return nil, err
	}
	if err := core.CheckVaultBalances(prev, balances.AssetVault, balances.BidVault); err != nil {
		logger.Error("cancellation rejected", zap.Error(err))
		return nil, err
	}

	legs := []Transfer{{
		From:      balances.Vaults.AssetVault,
		To:        prev.Seller,
		Token:     prev.AssetToken,
		Amount:    balances.AssetVault,
		Authority: assetVaultAuthority(key),
	}}
	// Nobody has bid, so anything in the bid vault is a stray deposit; it goes to the seller
	// with the shares.
	if balances.BidVault > 0 {
		if err := e.ledger.CreateAccount(ctx, prev.Seller, prev.PaymentToken); err != nil {
			return nil, fmt.Errorf("create seller payment account: %w", err)
		}
		legs = append(legs, Transfer{
			From:      balances.Vaults.BidVault,
			To:        prev.Seller,
			Token:     prev.PaymentToken,
			Amount:    balances.BidVault,
			Authority: bidVaultAuthority(key),
		})
	}

	updated := prev.Clone()
	updated.Status = core.StatusCancelled

	uow := e.begin("cancel", key)
	if err := e.saveWithUndo(ctx, uow, prev, updated); err != nil {
		return nil, fmt.Errorf("save auction %s: %w", key, err)
	}

	if err := e.ledger.Transfer(ctx, legs...); err != nil {
		return nil, uow.rollback(ctx, fmt.Errorf("return escrowed shares: %w", err))
	}

	activeAuctions.Dec()
	logger.Info("auction cancelled", zap.Uint64("amount", balances.AssetVault), zap.Uint64("bid_vault_returned", balances.BidVault))
	return updated.Clone(), nil
}
