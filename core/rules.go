package core

import "fmt"

// SettlementAccounts are the counter-party accounts a settlement caller supplies.
// None of them is trusted; all are cross-checked against the auction record.
type SettlementAccounts struct {
	Seller        Address   `json:"seller"`
	Asset         Address   `json:"asset"`
	AssetToken    TokenType `json:"asset_token"`
	PaymentToken  TokenType `json:"payment_token"`
	HighestBidder Address   `json:"highest_bidder"`
	AssetVault    Address   `json:"asset_vault"`
	BidVault      Address   `json:"bid_vault"`
}

// SettlementAccountsFor returns the accounts a well-behaved caller would supply for a record.
func SettlementAccountsFor(r *AuctionRecord) SettlementAccounts {
	vaults := r.Vaults()
	return SettlementAccounts{
		Seller:        r.Seller,
		Asset:         r.Asset,
		AssetToken:    r.AssetToken,
		PaymentToken:  r.PaymentToken,
		HighestBidder: r.HighestBidder,
		AssetVault:    vaults.AssetVault,
		BidVault:      vaults.BidVault,
	}
}

func mismatch(field string, want, got any) error {
	return fmt.Errorf("%w: %s: record has %v, got %v", ErrIdentityMismatch, field, want, got)
}

// CheckAssetToken verifies the seller-supplied share token against the registry record.
func CheckAssetToken(asset AssetRecord, assetToken TokenType) error {
	if asset.ShareToken != assetToken {
		return fmt.Errorf("%w: registry has %s, got %s", ErrMintMismatch, asset.ShareToken, assetToken)
	}
	return nil
}

// CheckPaymentToken verifies that the offered payment token is the accepted settlement currency.
func CheckPaymentToken(accepted, paymentToken TokenType) error {
	if accepted == "" || paymentToken != accepted {
		return fmt.Errorf("%w: %s", ErrUnsupportedBidCurrency, paymentToken)
	}
	return nil
}

// CheckSufficientBalance fails with ErrInsufficientBalance when balance < amount.
func CheckSufficientBalance(balance, amount uint64) error {
	if balance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, balance, amount)
	}
	return nil
}

// CheckRef cross-checks the identities a caller supplied against the stored record.
func CheckRef(r *AuctionRecord, ref AuctionRef) error {
	if ref.Key != r.Key {
		return mismatch("key", r.Key, ref.Key)
	}
	if ref.Seller != r.Seller {
		return mismatch("seller", r.Seller, ref.Seller)
	}
	if ref.Asset != r.Asset {
		return mismatch("asset", r.Asset, ref.Asset)
	}
	if ref.PaymentToken != r.PaymentToken {
		return mismatch("payment token", r.PaymentToken, ref.PaymentToken)
	}
	return nil
}

// CheckBidAdmissible applies the temporal and economic bid rules, in order:
// the deadline, the auction status, then strict increase over the highest bid.
func CheckBidAdmissible(r *AuctionRecord, amount uint64, now int64) error {
	if now >= r.Deadline {
		return fmt.Errorf("%w: now %d, deadline %d", ErrAuctionEnded, now, r.Deadline)
	}
	switch r.Status {
	case StatusCancelled:
		return ErrAuctionCancelled
	case StatusSettled:
		return ErrAlreadySettled
	}
	if amount <= r.HighestBid {
		return fmt.Errorf("%w: bid %d, highest %d", ErrBidTooLow, amount, r.HighestBid)
	}
	return nil
}

// CheckSettlementAccounts re-validates every identity of the record against the supplied accounts.
func CheckSettlementAccounts(r *AuctionRecord, accounts SettlementAccounts) error {
	if accounts.Seller != r.Seller {
		return mismatch("seller", r.Seller, accounts.Seller)
	}
	if accounts.Asset != r.Asset {
		return mismatch("asset", r.Asset, accounts.Asset)
	}
	if accounts.AssetToken != r.AssetToken {
		return mismatch("asset token", r.AssetToken, accounts.AssetToken)
	}
	if accounts.PaymentToken != r.PaymentToken {
		return mismatch("payment token", r.PaymentToken, accounts.PaymentToken)
	}
	if accounts.HighestBidder != r.HighestBidder {
		return mismatch("highest bidder", r.HighestBidder, accounts.HighestBidder)
	}
	vaults := r.Vaults()
	if accounts.AssetVault != vaults.AssetVault {
		return mismatch("asset vault", vaults.AssetVault, accounts.AssetVault)
	}
	if accounts.BidVault != vaults.BidVault {
		return mismatch("bid vault", vaults.BidVault, accounts.BidVault)
	}
	return nil
}

// CheckSettleable applies the settlement gates in order: deadline reached, not yet settled, at least one bid.
// An auction without bids reports AuctionStillActive until its deadline and NoBidsPlaced after it.
func CheckSettleable(r *AuctionRecord, now int64) error {
	if now < r.Deadline {
		return fmt.Errorf("%w: now %d, deadline %d", ErrAuctionStillActive, now, r.Deadline)
	}
	switch r.Status {
	case StatusSettled:
		return ErrAlreadySettled
	case StatusCancelled:
		return ErrAuctionCancelled
	}
	if !r.HasBids() {
		return ErrNoBidsPlaced
	}
	return nil
}

// CheckCancellable allows the seller to withdraw an active auction before its deadline, as long as
// nobody has bid yet.
func CheckCancellable(r *AuctionRecord, caller Address, now int64) error {
	if caller != r.Seller {
		return mismatch("seller", r.Seller, caller)
	}
	switch r.Status {
	case StatusSettled:
		return ErrAlreadySettled
	case StatusCancelled:
		return ErrAuctionCancelled
	}
	if now >= r.Deadline {
		return fmt.Errorf("%w: now %d, deadline %d", ErrAuctionEnded, now, r.Deadline)
	}
	if r.HasBids() {
		return fmt.Errorf("%w: highest bid %d", ErrAuctionHasBids, r.HighestBid)
	}
	return nil
}

// CheckVaultBalances verifies that the escrow vaults cover what the record says: the asset vault
// holds at least the escrowed shares and the bid vault at least the highest bid. Vault addresses
// are public, so anyone can deposit into them; a surplus is paid out with the vault.
func CheckVaultBalances(r *AuctionRecord, assetVaultBalance, bidVaultBalance uint64) error {
	if assetVaultBalance < r.EscrowedAmount {
		return fmt.Errorf("%w: asset vault holds %d, record escrowed %d", ErrVaultImbalance, assetVaultBalance, r.EscrowedAmount)
	}
	if bidVaultBalance < r.HighestBid {
		return fmt.Errorf("%w: bid vault holds %d, highest bid %d", ErrVaultImbalance, bidVaultBalance, r.HighestBid)
	}
	return nil
}
