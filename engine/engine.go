package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v2"
	"go.uber.org/zap"

	"github.com/cloudx-io/assetauction/core"
)

// Config holds the engine's business settings.
type Config struct {
	// AcceptedCurrency is the single token auctions may be paid in.
	AcceptedCurrency core.TokenType
	// PaymentDecimals is used only to render settlement summaries.
	PaymentDecimals int32
}

// Deps are the engine's collaborators. Ledger, Registry and Store are required.
type Deps struct {
	Ledger   Ledger
	Registry AssetRegistry
	Store    RecordStore
	Clock    Clock
	Logger   *zap.Logger
	// Receipts signs settlement receipts. Settlements carry no receipt when nil.
	Receipts *KeyManager
}

// Engine runs auction creation, bidding, settlement and cancellation.
//
// Operations on one auction are serialized. Each operation mutates the record store first,
// registering an undo for every mutation, and submits its ledger transfers as one
// all-or-nothing batch as the final step. A failed batch runs the undos, so an operation
// either applies completely or leaves no trace.
type Engine struct {
	cfg      Config
	ledger   Ledger
	registry AssetRegistry
	store    RecordStore
	clock    Clock
	logger   *zap.Logger
	receipts *KeyManager

	locks *xsync.MapOf[string, *sync.Mutex]
}

func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Ledger == nil {
		return nil, errors.New("ledger is nil")
	}
	if deps.Registry == nil {
		return nil, errors.New("asset registry is nil")
	}
	if deps.Store == nil {
		return nil, errors.New("record store is nil")
	}
	if cfg.AcceptedCurrency == "" {
		return nil, errors.New("accepted currency is not configured")
	}
	clock := deps.Clock
	if clock == nil {
		clock = NewMonotonicClock(SystemClock{})
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		ledger:   deps.Ledger,
		registry: deps.Registry,
		store:    deps.Store,
		clock:    clock,
		logger:   logger,
		receipts: deps.Receipts,
		locks:    xsync.NewMapOf[*sync.Mutex](),
	}, nil
}

// AcceptedCurrency returns the configured settlement currency.
func (e *Engine) AcceptedCurrency() core.TokenType {
	return e.cfg.AcceptedCurrency
}

// lock serializes operations on one auction and returns the unlock function.
func (e *Engine) lock(key core.AuctionKey) func() {
	mu, _ := e.locks.LoadOrStore(key.String(), &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}

// load reads a record and refuses to operate on one that violates its invariants.
func (e *Engine) load(ctx context.Context, key core.AuctionKey) (*core.AuctionRecord, error) {
	r, err := e.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := r.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("auction %s: %w", key, err)
	}
	return r, nil
}

// unitOfWork collects compensations for store mutations made before the ledger batch.
type unitOfWork struct {
	logger *zap.Logger
	undos  []func(ctx context.Context) error
}

func (e *Engine) begin(op string, key core.AuctionKey) *unitOfWork {
	return &unitOfWork{logger: e.logger.With(zap.String("op", op), zap.Stringer("auction", key))}
}

func (u *unitOfWork) onRollback(undo func(ctx context.Context) error) {
	u.undos = append(u.undos, undo)
}

// rollback runs the registered undos in reverse order and returns cause.
// Undos run even if ctx is already cancelled.
func (u *unitOfWork) rollback(ctx context.Context, cause error) error {
	ctx = context.WithoutCancel(ctx)
	for i := len(u.undos) - 1; i >= 0; i-- {
		if err := u.undos[i](ctx); err != nil {
			u.logger.Error("compensation failed", zap.Error(err), zap.NamedError("cause", cause))
		}
	}
	u.undos = nil
	return cause
}

// saveWithUndo persists updated and registers an undo restoring prev.
func (e *Engine) saveWithUndo(ctx context.Context, u *unitOfWork, prev, updated *core.AuctionRecord) error {
	if err := e.store.Save(ctx, updated); err != nil {
		return err
	}
	u.onRollback(func(ctx context.Context) error {
		restored := prev.Clone()
		restored.Version = updated.Version
		return e.store.Save(ctx, restored)
	})
	return nil
}

// Auction returns the record stored under key.
func (e *Engine) Auction(ctx context.Context, key core.AuctionKey) (*core.AuctionRecord, error) {
	return e.store.Get(ctx, key)
}

// Auctions lists the auctions created by seller, in nonce order.
func (e *Engine) Auctions(ctx context.Context, seller core.Address) ([]*core.AuctionRecord, error) {
	return e.store.List(ctx, seller)
}

// BidLog returns the accepted bids of the auction stored under key, oldest first.
func (e *Engine) BidLog(ctx context.Context, key core.AuctionKey) ([]core.BidLogEntry, string, error) {
	r, err := e.store.Get(ctx, key)
	if err != nil {
		return nil, "", err
	}
	entries := r.BidLog
	if entries == nil {
		entries = []core.BidLogEntry{}
	}
	return entries, r.BidLogHash, nil
}

// VaultBalances are the current escrow holdings of one auction.
type VaultBalances struct {
	Vaults     core.Vaults `json:"vaults"`
	AssetVault uint64      `json:"asset_vault_balance"`
	BidVault   uint64      `json:"bid_vault_balance"`
}

// VaultBalances reads both escrow vault balances of the auction stored under key.
func (e *Engine) VaultBalances(ctx context.Context, key core.AuctionKey) (*VaultBalances, error) {
	r, err := e.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return e.vaultBalances(ctx, r)
}

func (e *Engine) vaultBalances(ctx context.Context, r *core.AuctionRecord) (*VaultBalances, error) {
	vaults := r.Vaults()
	assetBal, err := e.ledger.BalanceOf(ctx, vaults.AssetVault, r.AssetToken)
	if err != nil {
		return nil, fmt.Errorf("read asset vault balance: %w", err)
	}
	bidBal, err := e.ledger.BalanceOf(ctx, vaults.BidVault, r.PaymentToken)
	if err != nil {
		return nil, fmt.Errorf("read bid vault balance: %w", err)
	}
	return &VaultBalances{Vaults: vaults, AssetVault: assetBal, BidVault: bidBal}, nil
}
