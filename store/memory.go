// Package store persists auction records.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v2"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/engine"
)

// MemoryStore keeps records in memory. Reads are lock-free; writes are serialized so that
// version checks and nonce allocation are atomic.
type MemoryStore struct {
	writeMu sync.Mutex
	records *xsync.MapOf[string, *core.AuctionRecord]
	nonces  *xsync.MapOf[string, uint64]
}

var _ engine.RecordStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: xsync.NewMapOf[*core.AuctionRecord](),
		nonces:  xsync.NewMapOf[uint64](),
	}
}

func (s *MemoryStore) NextNonce(ctx context.Context, seller core.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	next, _ := s.nonces.Load(string(seller))
	following, err := core.CheckedAdd(next, 1)
	if err != nil {
		return 0, err
	}
	s.nonces.Store(string(seller), following)
	return next, nil
}

func (s *MemoryStore) Insert(ctx context.Context, r *core.AuctionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	stored := r.Clone()
	stored.Version = 1
	if _, loaded := s.records.LoadOrStore(r.Key.String(), stored); loaded {
		return fmt.Errorf("%w: %s", core.ErrAuctionExists, r.Key)
	}
	r.Version = stored.Version
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key core.AuctionKey) (*core.AuctionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, ok := s.records.Load(key.String())
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrAuctionNotFound, key)
	}
	return r.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, r *core.AuctionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	current, ok := s.records.Load(r.Key.String())
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrAuctionNotFound, r.Key)
	}
	if current.Version != r.Version {
		return fmt.Errorf("%w: %s at version %d, saving version %d", core.ErrConcurrentUpdate, r.Key, current.Version, r.Version)
	}
	stored := r.Clone()
	stored.Version++
	s.records.Store(r.Key.String(), stored)
	r.Version = stored.Version
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key core.AuctionKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.records.Delete(key.String())
	return nil
}

// List returns the seller's auctions ordered by nonce.
func (s *MemoryStore) List(ctx context.Context, seller core.Address) ([]*core.AuctionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*core.AuctionRecord
	s.records.Range(func(_ string, r *core.AuctionRecord) bool {
		if r.Seller == seller {
			out = append(out, r.Clone())
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Nonce < out[j].Key.Nonce })
	return out, nil
}
