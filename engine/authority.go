package engine

import "github.com/cloudx-io/assetauction/core"

// Authority is the consent attached to a ledger transfer leg. The ledger moves funds out of
// an account only if the leg's Authority authorizes that account.
//
// There are two kinds of authority:
//   - signer authorities, built with SignedBy once the host has authenticated the caller
//   - derived authorities, which control an auction's escrow vaults and can only be
//     produced inside this package by re-deriving the vault owner from the auction key
//
// The zero Authority authorizes nothing.
type Authority struct {
	owner   core.Address
	derived bool
}

// SignedBy returns the authority of a host-authenticated caller. It never authorizes a
// derived address, even when addr is one.
func SignedBy(addr core.Address) Authority {
	return Authority{owner: addr}
}

// derivedAuthority re-derives the keyless owner for seed and key and returns its authority.
func derivedAuthority(seed string, key core.AuctionKey) Authority {
	return Authority{owner: core.DeriveAddress(seed, key), derived: true}
}

func assetVaultAuthority(key core.AuctionKey) Authority {
	return derivedAuthority(core.SeedAuctionVault, key)
}

func bidVaultAuthority(key core.AuctionKey) Authority {
	return derivedAuthority(core.SeedAuctionState, key)
}

// Signer returns the address this authority speaks for.
func (a Authority) Signer() core.Address {
	return a.owner
}

// IsZero reports whether the authority is empty.
func (a Authority) IsZero() bool {
	return a.owner == ""
}

// IsDerived reports whether the authority was derived by the engine for an escrow vault.
func (a Authority) IsDerived() bool {
	return a.derived
}

// Authorizes reports whether the authority may move funds out of owner's accounts.
func (a Authority) Authorizes(owner core.Address) bool {
	if a.IsZero() || a.owner != owner {
		return false
	}
	return owner.IsDerived() == a.derived
}

func (a Authority) String() string {
	if a.derived {
		return "derived:" + string(a.owner)
	}
	return "signer:" + string(a.owner)
}

// userSigner returns the caller address of a signer authority, rejecting empty and derived ones.
func userSigner(a Authority) (core.Address, error) {
	if a.IsZero() || a.derived || a.owner.IsDerived() {
		return "", core.ErrUnauthorized
	}
	return a.owner, nil
}
