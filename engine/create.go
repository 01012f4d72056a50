package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloudx-io/assetauction/core"
)

// CreateAuctionRequest is a seller's request to auction Amount shares of Asset until Deadline.
type CreateAuctionRequest struct {
	Signer       Authority
	Asset        core.Address
	AssetToken   core.TokenType
	PaymentToken core.TokenType
	Amount       uint64
	Deadline     int64
}

// CreateAuction validates the seller's holdings, escrows Amount share tokens in a fresh asset
// vault and stores the new active auction.
func (e *Engine) CreateAuction(ctx context.Context, req CreateAuctionRequest) (record *core.AuctionRecord, err error) {
	defer func() { observe("create", err) }()

	seller, err := userSigner(req.Signer)
	if err != nil {
		return nil, err
	}
	logger := e.logger.With(zap.Stringer("seller", seller), zap.Stringer("asset", req.Asset))

	asset, err := e.registry.Lookup(ctx, req.Asset)
	if err != nil {
		logger.Info("auction rejected", zap.Error(err))
		return nil, err
	}
	if err := e.checkCreate(asset, req); err != nil {
		logger.Info("auction rejected", zap.Error(err))
		return nil, err
	}

	balance, err := e.ledger.BalanceOf(ctx, seller, req.AssetToken)
	if err != nil {
		return nil, fmt.Errorf("read seller balance: %w", err)
	}
	if err := core.CheckSufficientBalance(balance, req.Amount); err != nil {
		logger.Info("auction rejected", zap.Error(err))
		return nil, err
	}

	nonce, err := e.store.NextNonce(ctx, seller)
	if err != nil {
		return nil, fmt.Errorf("allocate auction nonce: %w", err)
	}
	key := core.AuctionKey{Seller: seller, Nonce: nonce}
	record = core.NewAuctionRecord(key, asset, req.PaymentToken, req.Amount, req.Deadline, e.clock.Now())
	vaults := record.Vaults()

	unlock := e.lock(key)
	defer unlock()

	// Empty accounts; nothing to undo.
	if err := e.ledger.CreateAccount(ctx, vaults.AssetVault, record.AssetToken); err != nil {
		return nil, fmt.Errorf("create asset vault: %w", err)
	}
	if err := e.ledger.CreateAccount(ctx, vaults.BidVault, record.PaymentToken); err != nil {
		return nil, fmt.Errorf("create bid vault: %w", err)
	}

	uow := e.begin("create", key)
	if err := e.store.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("insert auction %s: %w", key, err)
	}
	uow.onRollback(func(ctx context.Context) error {
		return e.store.Delete(ctx, key)
	})

	err = e.ledger.Transfer(ctx, Transfer{
		From:      seller,
		To:        vaults.AssetVault,
		Token:     record.AssetToken,
		Amount:    record.EscrowedAmount,
		Authority: req.Signer,
	})
	if err != nil {
		return nil, uow.rollback(ctx, fmt.Errorf("escrow shares: %w", err))
	}

	activeAuctions.Inc()
	logger.Info("auction created",
		zap.Stringer("auction", key),
		zap.Uint64("amount", record.EscrowedAmount),
		zap.Int64("deadline", record.Deadline))
	return record.Clone(), nil
}

// checkCreate applies the creation rules that need no ledger access, in order.
func (e *Engine) checkCreate(asset core.AssetRecord, req CreateAuctionRequest) error {
	if err := core.CheckAssetToken(asset, req.AssetToken); err != nil {
		return err
	}
	if err := core.CheckPaymentToken(e.cfg.AcceptedCurrency, req.PaymentToken); err != nil {
		return err
	}
	if req.Amount == 0 {
		return fmt.Errorf("%w: amount must be positive", core.ErrInvalidAmount)
	}
	if req.Amount > asset.TotalShares {
		return fmt.Errorf("%w: amount %d exceeds total shares %d", core.ErrInvalidAmount, req.Amount, asset.TotalShares)
	}
	if now := e.clock.Now(); req.Deadline <= now {
		return fmt.Errorf("%w: deadline %d, now %d", core.ErrInvalidDeadline, req.Deadline, now)
	}
	return nil
}
