// Package registry provides an in-memory asset registry.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/puzpuzpuz/xsync/v2"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/engine"
)

// ErrAssetExists is returned when registering an asset twice.
var ErrAssetExists = errors.New("asset already registered")

// Memory is an asset registry whose records are immutable once registered.
type Memory struct {
	assets *xsync.MapOf[string, core.AssetRecord]
}

var _ engine.AssetRegistry = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{assets: xsync.NewMapOf[core.AssetRecord]()}
}

// Register adds a new asset record.
func (m *Memory) Register(asset core.AssetRecord) error {
	if asset.Asset == "" || asset.ShareToken == "" {
		return errors.New("asset and share token are required")
	}
	if asset.TotalShares == 0 {
		return fmt.Errorf("%w: total shares must be positive", core.ErrInvalidAmount)
	}
	if _, loaded := m.assets.LoadOrStore(string(asset.Asset), asset); loaded {
		return fmt.Errorf("%w: %s", ErrAssetExists, asset.Asset)
	}
	return nil
}

func (m *Memory) Lookup(ctx context.Context, asset core.Address) (core.AssetRecord, error) {
	if err := ctx.Err(); err != nil {
		return core.AssetRecord{}, err
	}
	record, ok := m.assets.Load(string(asset))
	if !ok {
		return core.AssetRecord{}, fmt.Errorf("%w: %s", core.ErrAssetNotFound, asset)
	}
	return record, nil
}
