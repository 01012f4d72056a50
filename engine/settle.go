package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/engineapi"
)

// SettleAuctionRequest asks to settle the auction named by Ref. Any authenticated caller may
// settle; the counter-party accounts they supply are never trusted.
type SettleAuctionRequest struct {
	Caller   Authority
	Ref      core.AuctionRef
	Accounts core.SettlementAccounts
}

// Summary is the audit view of one settlement.
type Summary struct {
	Key             core.AuctionKey
	Seller          core.Address
	Winner          core.Address
	AssetToken      core.TokenType
	PaymentToken    core.TokenType
	Shares          uint64
	Price           uint64
	AssetDecimals   int32
	PaymentDecimals int32
}

func (s Summary) String() string {
	return fmt.Sprintf("auction %s settled: %s %s transferred to %s, %s %s transferred to %s",
		s.Key,
		core.FormatAmount(s.Shares, s.AssetDecimals), s.AssetToken, s.Winner,
		core.FormatAmount(s.Price, s.PaymentDecimals), s.PaymentToken, s.Seller)
}

// Settlement is the outcome of a successful settlement.
type Settlement struct {
	Record  *core.AuctionRecord
	Summary Summary
	// Receipt is nil when the engine has no KeyManager.
	Receipt   engineapi.ReceiptCOSE
	ReceiptID string
}

// SettleAuction atomically pays the bid vault to the seller and releases the asset vault to
// the highest bidder, then marks the auction settled. Both vaults end empty.
func (e *Engine) SettleAuction(ctx context.Context, req SettleAuctionRequest) (settlement *Settlement, err error) {
	defer func() { observe("settle", err) }()

	caller, err := userSigner(req.Caller)
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
	if err := e.checkSettlementIdentities(ctx, prev, req); err != nil {
		logger.Warn("settlement rejected", zap.Error(err))
		return nil, err
	}
	now := e.clock.Now()
	if err := core.CheckSettleable(prev, now); err != nil {
		logger.Info("settlement rejected", zap.Error(err))
		return nil, err
	}

	balances, err := e.vaultBalances(ctx, prev)
	if err != nil {
		return nil, err
	}
	if err := core.CheckVaultBalances(prev, balances.AssetVault, balances.BidVault); err != nil {
		logger.Error("settlement rejected", zap.Error(err))
		return nil, err
	}

	// Recipient accounts may not exist yet.
	if err := e.ledger.CreateAccount(ctx, prev.Seller, prev.PaymentToken); err != nil {
		return nil, fmt.Errorf("create seller payment account: %w", err)
	}
	if err := e.ledger.CreateAccount(ctx, prev.HighestBidder, prev.AssetToken); err != nil {
		return nil, fmt.Errorf("create winner asset account: %w", err)
	}

	updated := prev.Clone()
	updated.Status = core.StatusSettled
	updated.SettledAt = now

	settlement = &Settlement{Summary: e.summarize(ctx, updated)}
	if e.receipts != nil {
		payload := receiptPayload(updated)
		receipt, err := e.receipts.Sign(payload)
		if err != nil {
			return nil, fmt.Errorf("sign settlement receipt: %w", err)
		}
		settlement.Receipt = receipt
		settlement.ReceiptID = payload.ReceiptID
	}

	uow := e.begin("settle", key)
	if err := e.saveWithUndo(ctx, uow, prev, updated); err != nil {
		return nil, fmt.Errorf("save auction %s: %w", key, err)
	}

	// Both vaults are emptied; deposits beyond the record follow the escrow they landed in.
	err = e.ledger.Transfer(ctx,
		Transfer{
			From:      balances.Vaults.BidVault,
			To:        prev.Seller,
			Token:     prev.PaymentToken,
			Amount:    balances.BidVault,
			Authority: bidVaultAuthority(key),
		},
		Transfer{
			From:      balances.Vaults.AssetVault,
			To:        prev.HighestBidder,
			Token:     prev.AssetToken,
			Amount:    balances.AssetVault,
			Authority: assetVaultAuthority(key),
		},
	)
	if err != nil {
		return nil, uow.rollback(ctx, fmt.Errorf("release escrow: %w", err))
	}

	activeAuctions.Dec()
	settledVolume.WithLabelValues(string(prev.PaymentToken)).Add(float64(prev.HighestBid))
	logger.Info(settlement.Summary.String(),
		zap.Stringer("seller", prev.Seller),
		zap.Stringer("winner", prev.HighestBidder),
		zap.Uint64("price", prev.HighestBid),
		zap.Uint64("shares", prev.EscrowedAmount),
		zap.Uint64("bid_vault_surplus", balances.BidVault-prev.HighestBid),
		zap.Uint64("asset_vault_surplus", balances.AssetVault-prev.EscrowedAmount),
		zap.String("receipt_id", settlement.ReceiptID))

	settlement.Record = updated.Clone()
	return settlement, nil
}

// checkSettlementIdentities re-validates every identity the settlement depends on: the
// caller's reference, the supplied counter-party accounts and the asset registry record.
func (e *Engine) checkSettlementIdentities(ctx context.Context, r *core.AuctionRecord, req SettleAuctionRequest) error {
	if err := core.CheckRef(r, req.Ref); err != nil {
		return err
	}
	if err := core.CheckSettlementAccounts(r, req.Accounts); err != nil {
		return err
	}
	asset, err := e.registry.Lookup(ctx, r.Asset)
	if err != nil {
		return err
	}
	return core.CheckAssetToken(asset, r.AssetToken)
}

func (e *Engine) summarize(ctx context.Context, r *core.AuctionRecord) Summary {
	s := Summary{
		Key:             r.Key,
		Seller:          r.Seller,
		Winner:          r.HighestBidder,
		AssetToken:      r.AssetToken,
		PaymentToken:    r.PaymentToken,
		Shares:          r.EscrowedAmount,
		Price:           r.HighestBid,
		PaymentDecimals: e.cfg.PaymentDecimals,
	}
	if asset, err := e.registry.Lookup(ctx, r.Asset); err == nil {
		s.AssetDecimals = asset.Decimals
	}
	return s
}
