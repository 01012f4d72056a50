package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/peterldowns/testy/check"
	"go.uber.org/zap"

	"github.com/cloudx-io/assetauction/core"
)

func TestAuthority_Authorizes(t *testing.T) {
	key := core.AuctionKey{Seller: "seller_a", Nonce: 4}
	vaults := core.VaultsFor(key)

	user := SignedBy("alice")
	check.True(t, user.Authorizes("alice"))
	check.False(t, user.Authorizes("bob"))
	check.False(t, user.IsDerived())

	// A signer claiming a derived address is never a vault authority
	forged := SignedBy(vaults.AssetVault)
	check.False(t, forged.Authorizes(vaults.AssetVault))

	assetAuth := assetVaultAuthority(key)
	check.True(t, assetAuth.IsDerived())
	check.True(t, assetAuth.Authorizes(vaults.AssetVault))
	check.False(t, assetAuth.Authorizes(vaults.BidVault))

	bidAuth := bidVaultAuthority(key)
	check.True(t, bidAuth.Authorizes(vaults.BidVault))
	check.False(t, bidAuth.Authorizes(vaults.AssetVault))

	// Derived authorities are scoped to one auction
	other := core.VaultsFor(core.AuctionKey{Seller: "seller_a", Nonce: 5})
	check.False(t, bidAuth.Authorizes(other.BidVault))

	var zero Authority
	check.True(t, zero.IsZero())
	check.False(t, zero.Authorizes(""))
}

func TestUserSigner(t *testing.T) {
	addr, err := userSigner(SignedBy("alice"))
	check.NoError(t, err)
	check.Equal(t, core.Address("alice"), addr)

	_, err = userSigner(Authority{})
	check.True(t, errors.Is(err, core.ErrUnauthorized))

	_, err = userSigner(assetVaultAuthority(core.AuctionKey{Seller: "alice"}))
	check.True(t, errors.Is(err, core.ErrUnauthorized))
}

func TestUnitOfWork_RollbackOrder(t *testing.T) {
	u := &unitOfWork{logger: zap.NewNop()}
	var order []int
	u.onRollback(func(context.Context) error { order = append(order, 1); return nil })
	u.onRollback(func(context.Context) error { order = append(order, 2); return errors.New("undo failed") })
	u.onRollback(func(context.Context) error { order = append(order, 3); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cause := errors.New("batch failed")
	err := u.rollback(ctx, cause)
	check.True(t, errors.Is(err, cause))

	// Every undo runs, newest first, even after one fails
	check.Equal(t, []int{3, 2, 1}, order)

	// A second rollback is a no-op
	check.True(t, errors.Is(u.rollback(ctx, cause), cause))
	check.Equal(t, 3, len(order))
}

func TestMonotonicClock(t *testing.T) {
	inner := NewManualClock(100)
	c := NewMonotonicClock(inner)
	check.Equal(t, int64(100), c.Now())

	inner.Set(50)
	check.Equal(t, int64(100), c.Now())

	inner.Advance(10)
	check.Equal(t, int64(110), c.Now())
}
