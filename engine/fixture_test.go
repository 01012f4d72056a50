package engine_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/peterldowns/testy/assert"
	"go.uber.org/zap/zaptest"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/engine"
	"github.com/cloudx-io/assetauction/ledger"
	"github.com/cloudx-io/assetauction/registry"
	"github.com/cloudx-io/assetauction/store"
)

const (
	seller   core.Address   = "seller_s"
	bidder1  core.Address   = "bidder_1"
	bidder2  core.Address   = "bidder_2"
	bidder3  core.Address   = "bidder_3"
	assetA   core.Address   = "asset_a"
	shareA   core.TokenType = "share_a"
	usdc     core.TokenType = "usdc"
	start    int64          = 1_000
	deadline int64          = 2_000
)

var errInjected = errors.New("injected failure")

// faultyLedger fails Transfer while failTransfers is set.
type faultyLedger struct {
	engine.Ledger
	failTransfers atomic.Bool
	transfers     atomic.Int32
}

func (l *faultyLedger) Transfer(ctx context.Context, legs ...engine.Transfer) error {
	if l.failTransfers.Load() {
		return errInjected
	}
	err := l.Ledger.Transfer(ctx, legs...)
	if err == nil {
		l.transfers.Add(1)
	}
	return err
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	engine   *engine.Engine
	ledger   *ledger.Memory
	faulty   *faultyLedger
	registry *registry.Memory
	store    *store.MemoryStore
	clock    *engine.ManualClock
}

type fixtureOption func(*engine.Deps)

func withReceipts(km *engine.KeyManager) fixtureOption {
	return func(d *engine.Deps) { d.Receipts = km }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	ctx := context.Background()

	l := ledger.NewMemory()
	faulty := &faultyLedger{Ledger: l}
	reg := registry.NewMemory()
	assert.NoError(t, reg.Register(core.AssetRecord{Asset: assetA, ShareToken: shareA, TotalShares: 1_000}))
	s := store.NewMemoryStore()
	clock := engine.NewManualClock(start)

	assert.NoError(t, l.Mint(ctx, seller, shareA, 500))
	for _, b := range []core.Address{bidder1, bidder2, bidder3} {
		assert.NoError(t, l.Mint(ctx, b, usdc, 1_000))
	}

	deps := engine.Deps{
		Ledger:   faulty,
		Registry: reg,
		Store:    s,
		Clock:    clock,
		Logger:   zaptest.NewLogger(t),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	e, err := engine.New(engine.Config{AcceptedCurrency: usdc, PaymentDecimals: 6}, deps)
	assert.NoError(t, err)

	return &fixture{
		t:        t,
		ctx:      ctx,
		engine:   e,
		ledger:   l,
		faulty:   faulty,
		registry: reg,
		store:    s,
		clock:    clock,
	}
}

func (f *fixture) balance(owner core.Address, token core.TokenType) uint64 {
	f.t.Helper()
	b, err := f.ledger.BalanceOf(f.ctx, owner, token)
	assert.NoError(f.t, err)
	return b
}

func (f *fixture) create(amount uint64) *core.AuctionRecord {
	f.t.Helper()
	r, err := f.engine.CreateAuction(f.ctx, engine.CreateAuctionRequest{
		Signer:       engine.SignedBy(seller),
		Asset:        assetA,
		AssetToken:   shareA,
		PaymentToken: usdc,
		Amount:       amount,
		Deadline:     deadline,
	})
	assert.NoError(f.t, err)
	return r
}

func (f *fixture) bid(r *core.AuctionRecord, bidder core.Address, amount uint64) (*core.AuctionRecord, error) {
	return f.engine.PlaceBid(f.ctx, engine.PlaceBidRequest{
		Signer: engine.SignedBy(bidder),
		Ref:    r.Ref(),
		Amount: amount,
	})
}

func (f *fixture) settle(r *core.AuctionRecord) (*engine.Settlement, error) {
	current, err := f.engine.Auction(f.ctx, r.Key)
	assert.NoError(f.t, err)
	return f.engine.SettleAuction(f.ctx, engine.SettleAuctionRequest{
		Caller:   engine.SignedBy(bidder3),
		Ref:      current.Ref(),
		Accounts: core.SettlementAccountsFor(current),
	})
}

// total sums a token over every party and both vaults of r.
func (f *fixture) total(r *core.AuctionRecord, token core.TokenType) uint64 {
	vaults := r.Vaults()
	var sum uint64
	for _, owner := range []core.Address{seller, bidder1, bidder2, bidder3, vaults.AssetVault, vaults.BidVault} {
		sum += f.balance(owner, token)
	}
	return sum
}
