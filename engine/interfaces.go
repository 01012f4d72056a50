package engine

import (
	"context"
	"sync"
	"time"

	"github.com/cloudx-io/assetauction/core"
)

// Transfer is one leg of a ledger batch.
type Transfer struct {
	From      core.Address
	To        core.Address
	Token     core.TokenType
	Amount    uint64
	Authority Authority
}

// Ledger is the token ledger the engine moves balances on.
type Ledger interface {
	BalanceOf(ctx context.Context, owner core.Address, token core.TokenType) (uint64, error)
	// CreateAccount opens an empty account. It succeeds if the account already exists.
	CreateAccount(ctx context.Context, owner core.Address, token core.TokenType) error
	// Transfer applies every leg in order or none of them. Each leg's Authority must
	// authorize its From account.
	Transfer(ctx context.Context, legs ...Transfer) error
}

// AssetRegistry resolves tokenized assets. Lookup fails with core.ErrAssetNotFound for unknown assets.
type AssetRegistry interface {
	Lookup(ctx context.Context, asset core.Address) (core.AssetRecord, error)
}

// Clock is the trusted time source. Now returns unix seconds and never goes backwards.
type Clock interface {
	Now() int64
}

// RecordStore persists auction records keyed by (seller, nonce).
type RecordStore interface {
	// NextNonce reserves the next unused auction nonce of seller.
	NextNonce(ctx context.Context, seller core.Address) (uint64, error)
	// Insert stores a new record, failing with core.ErrAuctionExists if the key is taken.
	Insert(ctx context.Context, r *core.AuctionRecord) error
	// Get fails with core.ErrAuctionNotFound for unknown keys.
	Get(ctx context.Context, key core.AuctionKey) (*core.AuctionRecord, error)
	// Save overwrites a record whose Version matches the stored one and bumps r.Version.
	// A stale Version fails with core.ErrConcurrentUpdate.
	Save(ctx context.Context, r *core.AuctionRecord) error
	Delete(ctx context.Context, key core.AuctionKey) error
	List(ctx context.Context, seller core.Address) ([]*core.AuctionRecord, error)
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() int64 {
	return time.Now().Unix()
}

// MonotonicClock wraps a clock so that Now never returns less than a value it already returned.
type MonotonicClock struct {
	mu    sync.Mutex
	inner Clock
	last  int64
}

func NewMonotonicClock(inner Clock) *MonotonicClock {
	return &MonotonicClock{inner: inner}
}

func (c *MonotonicClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now := c.inner.Now(); now > c.last {
		c.last = now
	}
	return c.last
}

// ManualClock is a clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

func NewManualClock(now int64) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to now. Moving backwards is ignored.
func (c *ManualClock) Set(now int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now > c.now {
		c.now = now
	}
}

// Advance moves the clock forward by d seconds.
func (c *ManualClock) Advance(d int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now += d
	}
}
