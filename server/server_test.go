package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"go.uber.org/zap/zaptest"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/engine"
	"github.com/cloudx-io/assetauction/engineapi"
	"github.com/cloudx-io/assetauction/ledger"
	"github.com/cloudx-io/assetauction/registry"
	"github.com/cloudx-io/assetauction/server"
	"github.com/cloudx-io/assetauction/store"
	"github.com/cloudx-io/assetauction/validation"
)

const (
	seller   = "seller_s"
	bidder1  = "bidder_1"
	bidder2  = "bidder_2"
	settler  = "keeper_k"
	assetA   = "asset_a"
	shareA   = "share_a"
	usdc     = "usdc"
	start    = int64(1_000)
	deadline = int64(2_000)
)

type testServer struct {
	t     *testing.T
	url   string
	clock *engine.ManualClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clock := engine.NewManualClock(start)
	led := ledger.NewMemory()
	reg := registry.NewMemory()

	km, err := engine.NewKeyManager()
	assert.NoError(t, err)

	eng, err := engine.New(engine.Config{AcceptedCurrency: usdc, PaymentDecimals: 6}, engine.Deps{
		Ledger:   led,
		Registry: reg,
		Store:    store.NewMemoryStore(),
		Clock:    clock,
		Logger:   logger,
		Receipts: km,
	})
	assert.NoError(t, err)

	srv, err := server.New(server.Config{PaymentDecimals: 6, DevRoutes: true}, server.Deps{
		Engine:    eng,
		Balances:  led,
		Receipts:  km,
		Logger:    logger,
		Minter:    led,
		Registrar: reg,
	})
	assert.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{t: t, url: ts.URL, clock: clock}
}

func (s *testServer) do(method, path, signer string, body any) (int, []byte) {
	s.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		assert.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.url+path, reader)
	assert.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if signer != "" {
		req.Header.Set(server.SignerHeader, signer)
	}

	resp, err := http.DefaultClient.Do(req)
	assert.NoError(s.t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	assert.NoError(s.t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	assert.NoError(t, json.Unmarshal(data, &v))
	return v
}

func (s *testServer) expectError(status int, data []byte, wantStatus int, wantCode string) engineapi.ErrorResponse {
	s.t.Helper()
	check.Equal(s.t, wantStatus, status)
	resp := decode[engineapi.ErrorResponse](s.t, data)
	check.Equal(s.t, wantCode, resp.Code)
	check.True(s.t, strings.HasPrefix(resp.RequestID, "req_"))
	return resp
}

func (s *testServer) seed() {
	s.t.Helper()
	status, _ := s.do(http.MethodPost, "/dev/assets", "", core.AssetRecord{Asset: assetA, ShareToken: shareA, TotalShares: 1_000, Decimals: 0})
	assert.Equal(s.t, http.StatusCreated, status)

	mints := []engineapi.MintRequest{
		{Owner: seller, Token: shareA, Amount: 500},
		{Owner: bidder1, Token: usdc, Amount: 1_000},
		{Owner: bidder2, Token: usdc, Amount: 1_000},
	}
	for _, m := range mints {
		status, _ := s.do(http.MethodPost, "/dev/mint", "", m)
		assert.Equal(s.t, http.StatusOK, status)
	}
}

func (s *testServer) create(amount uint64) *core.AuctionRecord {
	s.t.Helper()
	status, data := s.do(http.MethodPost, "/auctions", seller, engineapi.CreateAuctionRequest{
		Asset:        assetA,
		AssetToken:   shareA,
		PaymentToken: usdc,
		Amount:       amount,
		Deadline:     deadline,
	})
	assert.Equal(s.t, http.StatusCreated, status)
	return decode[engineapi.AuctionResponse](s.t, data).Auction
}

func claims(r *core.AuctionRecord) engineapi.AuctionClaims {
	return engineapi.AuctionClaims{Seller: r.Seller, Asset: r.Asset, PaymentToken: r.PaymentToken}
}

func auctionPath(r *core.AuctionRecord, suffix string) string {
	return fmt.Sprintf("/auctions/%s/%d%s", r.Seller, r.Key.Nonce, suffix)
}

func (s *testServer) balance(owner core.Address, token core.TokenType) uint64 {
	s.t.Helper()
	status, data := s.do(http.MethodGet, fmt.Sprintf("/balances/%s/%s", owner, token), "", nil)
	assert.Equal(s.t, http.StatusOK, status)
	return decode[engineapi.BalanceResponse](s.t, data).Balance
}

func TestServer_AuctionLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.seed()

	r := s.create(100)
	check.Equal(t, uint64(0), r.Key.Nonce)
	check.Equal(t, core.StatusActive, r.Status)
	check.Equal(t, uint64(400), s.balance(seller, shareA))

	status, data := s.do(http.MethodPost, auctionPath(r, "/bids"), bidder1, engineapi.PlaceBidRequest{AuctionClaims: claims(r), Amount: 10})
	assert.Equal(t, http.StatusOK, status)
	status, data = s.do(http.MethodPost, auctionPath(r, "/bids"), bidder2, engineapi.PlaceBidRequest{AuctionClaims: claims(r), Amount: 250})
	assert.Equal(t, http.StatusOK, status)
	bidResp := decode[engineapi.AuctionResponse](t, data)
	check.Equal(t, uint64(250), bidResp.Auction.HighestBid)
	check.Equal(t, "0.000250", bidResp.HighestBidDisplay)
	check.Equal(t, uint64(1_000), s.balance(bidder1, usdc))

	status, data = s.do(http.MethodGet, auctionPath(r, "/vaults"), "", nil)
	assert.Equal(t, http.StatusOK, status)
	vaults := decode[engine.VaultBalances](t, data)
	check.Equal(t, uint64(100), vaults.AssetVault)
	check.Equal(t, uint64(250), vaults.BidVault)
	check.Equal(t, r.Vaults(), vaults.Vaults)

	settleReq := engineapi.SettleAuctionRequest{AuctionClaims: claims(r), Accounts: core.SettlementAccountsFor(bidResp.Auction)}

	status, data = s.do(http.MethodPost, auctionPath(r, "/settle"), settler, settleReq)
	s.expectError(status, data, http.StatusConflict, "auction_still_active")

	s.clock.Set(deadline)
	status, data = s.do(http.MethodPost, auctionPath(r, "/settle"), settler, settleReq)
	assert.Equal(t, http.StatusOK, status)
	settlement := decode[engineapi.SettlementResponse](t, data)
	check.Equal(t, core.StatusSettled, settlement.Auction.Status)
	check.Equal(t, "auction seller_s/0 settled: 100 share_a transferred to bidder_2, 0.000250 usdc transferred to seller_s", settlement.Summary)
	check.Equal(t, uint64(100), s.balance(bidder2, shareA))
	check.Equal(t, uint64(250), s.balance(seller, usdc))

	status, data = s.do(http.MethodPost, auctionPath(r, "/settle"), settler, settleReq)
	resp := s.expectError(status, data, http.StatusConflict, "already_settled")
	check.Equal(t, "state", resp.Kind)
	check.False(t, resp.Retryable)

	status, data = s.do(http.MethodGet, "/receipts/public-key", "", nil)
	assert.Equal(t, http.StatusOK, status)
	key := decode[engineapi.PublicKeyResponse](t, data)
	check.Equal(t, engineapi.ReceiptAlgorithm, key.Algorithm)

	status, data = s.do(http.MethodGet, auctionPath(r, ""), "", nil)
	assert.Equal(t, http.StatusOK, status)
	stored := decode[engineapi.AuctionResponse](t, data)

	status, data = s.do(http.MethodGet, auctionPath(r, "/bids"), "", nil)
	assert.Equal(t, http.StatusOK, status)
	bidLog := decode[engineapi.BidLogResponse](t, data)
	check.Equal(t, r.Key, bidLog.Key)
	check.Equal(t, stored.Auction.BidLogHash, bidLog.BidLogHash)
	check.Equal(t, []core.BidLogEntry{
		{Bidder: bidder1, Amount: 10, Timestamp: start},
		{Bidder: bidder2, Amount: 250, Timestamp: start},
	}, bidLog.Bids)

	result, err := validation.ValidateReceipt(&validation.ReceiptValidationInput{
		Receipt:      settlement.Receipt,
		PublicKeyPEM: key.PublicKey,
		Auction:      stored.Auction,
		BidLog:       bidLog.Bids,
	})
	assert.NoError(t, err)
	check.True(t, result.IsValid())
	check.True(t, result.BidLogValid)
	check.Equal(t, settlement.ReceiptID, result.Payload.ReceiptID)
}

func TestServer_ListAndCancel(t *testing.T) {
	s := newTestServer(t)
	s.seed()

	first := s.create(100)
	second := s.create(50)
	check.Equal(t, uint64(1), second.Key.Nonce)

	status, data := s.do(http.MethodPost, auctionPath(first, "/cancel"), bidder1, engineapi.CancelAuctionRequest{AuctionClaims: claims(first)})
	s.expectError(status, data, http.StatusForbidden, "identity_mismatch")

	status, data = s.do(http.MethodPost, auctionPath(first, "/cancel"), seller, engineapi.CancelAuctionRequest{AuctionClaims: claims(first)})
	assert.Equal(t, http.StatusOK, status)
	check.Equal(t, core.StatusCancelled, decode[engineapi.AuctionResponse](t, data).Auction.Status)
	check.Equal(t, uint64(450), s.balance(seller, shareA))

	status, data = s.do(http.MethodGet, "/auctions/"+seller, "", nil)
	assert.Equal(t, http.StatusOK, status)
	list := decode[engineapi.AuctionListResponse](t, data)
	assert.Equal(t, 2, len(list.Auctions))
	check.Equal(t, core.StatusCancelled, list.Auctions[0].Auction.Status)
	check.Equal(t, core.StatusActive, list.Auctions[1].Auction.Status)
	check.Equal(t, second.Vaults(), list.Auctions[1].Vaults)

	status, data = s.do(http.MethodGet, "/auctions/nobody", "", nil)
	assert.Equal(t, http.StatusOK, status)
	check.Equal(t, 0, len(decode[engineapi.AuctionListResponse](t, data).Auctions))
}

func TestServer_ErrorMapping(t *testing.T) {
	s := newTestServer(t)
	s.seed()
	r := s.create(100)
	bidPath := auctionPath(r, "/bids")

	tests := []struct {
		name       string
		method     string
		path       string
		signer     string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"missing signer", http.MethodPost, bidPath, "", engineapi.PlaceBidRequest{AuctionClaims: claims(r), Amount: 10}, http.StatusUnauthorized, "unauthorized"},
		{"invalid nonce", http.MethodPost, "/auctions/seller_s/abc/bids", bidder1, engineapi.PlaceBidRequest{AuctionClaims: claims(r), Amount: 10}, http.StatusBadRequest, "bad_request"},
		{"malformed body", http.MethodPost, bidPath, bidder1, `{"amount":`, http.StatusBadRequest, "bad_request"},
		{"unknown field", http.MethodPost, bidPath, bidder1, `{"amount":10,"bogus":true}`, http.StatusBadRequest, "bad_request"},
		{"unknown auction", http.MethodGet, "/auctions/seller_s/9", "", nil, http.StatusNotFound, "auction_not_found"},
		{"unknown bid log", http.MethodGet, "/auctions/seller_s/9/bids", "", nil, http.StatusNotFound, "auction_not_found"},
		{"unknown asset", http.MethodPost, "/auctions", seller, engineapi.CreateAuctionRequest{Asset: "asset_z", AssetToken: shareA, PaymentToken: usdc, Amount: 1, Deadline: deadline}, http.StatusNotFound, "asset_not_found"},
		{"wrong currency", http.MethodPost, "/auctions", seller, engineapi.CreateAuctionRequest{Asset: assetA, AssetToken: shareA, PaymentToken: "usdt", Amount: 1, Deadline: deadline}, http.StatusBadRequest, "unsupported_bid_currency"},
		{"insufficient balance", http.MethodPost, bidPath, bidder1, engineapi.PlaceBidRequest{AuctionClaims: claims(r), Amount: 5_000}, http.StatusUnprocessableEntity, "insufficient_balance"},
		{"identity mismatch", http.MethodPost, bidPath, bidder1, engineapi.PlaceBidRequest{AuctionClaims: engineapi.AuctionClaims{Seller: seller, Asset: "asset_b", PaymentToken: usdc}, Amount: 10}, http.StatusForbidden, "identity_mismatch"},
		{"mint into vault", http.MethodPost, "/dev/mint", "", engineapi.MintRequest{Owner: r.Vaults().BidVault, Token: usdc, Amount: 1}, http.StatusUnauthorized, "unauthorized"},
		{"duplicate asset", http.MethodPost, "/dev/assets", "", core.AssetRecord{Asset: assetA, ShareToken: shareA, TotalShares: 1}, http.StatusBadRequest, "bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := s.do(tt.method, tt.path, tt.signer, tt.body)
			s.expectError(status, data, tt.wantStatus, tt.wantCode)
		})
	}

	status, data := s.do(http.MethodPost, bidPath, bidder1, engineapi.PlaceBidRequest{AuctionClaims: claims(r), Amount: 10})
	assert.Equal(t, http.StatusOK, status)
	status, data = s.do(http.MethodPost, bidPath, bidder2, engineapi.PlaceBidRequest{AuctionClaims: claims(r), Amount: 10})
	resp := s.expectError(status, data, http.StatusUnprocessableEntity, "bid_too_low")
	check.Equal(t, "economic", resp.Kind)
	check.True(t, resp.Retryable)

	s.clock.Set(deadline)
	status, data = s.do(http.MethodPost, bidPath, bidder2, engineapi.PlaceBidRequest{AuctionClaims: claims(r), Amount: 20})
	resp = s.expectError(status, data, http.StatusConflict, "auction_ended")
	check.False(t, resp.Retryable)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	status, data := s.do(http.MethodGet, "/health", "", nil)
	check.Equal(t, http.StatusOK, status)
	check.True(t, strings.Contains(string(data), "alive"))

	s.seed()
	s.create(10)

	status, data = s.do(http.MethodGet, "/metrics", "", nil)
	check.Equal(t, http.StatusOK, status)
	check.True(t, strings.Contains(string(data), "auction_operations_total"))
}

func TestServer_DevRoutesDisabled(t *testing.T) {
	eng, err := engine.New(engine.Config{AcceptedCurrency: usdc}, engine.Deps{
		Ledger:   ledger.NewMemory(),
		Registry: registry.NewMemory(),
		Store:    store.NewMemoryStore(),
	})
	assert.NoError(t, err)

	srv, err := server.New(server.Config{}, server.Deps{Engine: eng})
	assert.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	s := &testServer{t: t, url: ts.URL}

	status, _ := s.do(http.MethodPost, "/dev/mint", "", engineapi.MintRequest{Owner: seller, Token: usdc, Amount: 1})
	check.Equal(t, http.StatusNotFound, status)

	status, data := s.do(http.MethodGet, "/receipts/public-key", "", nil)
	check.Equal(t, http.StatusNotFound, status)
	check.Equal(t, "receipts_disabled", decode[engineapi.ErrorResponse](t, data).Code)

	_, err = server.New(server.Config{DevRoutes: true}, server.Deps{Engine: eng})
	check.Error(t, err)
}
