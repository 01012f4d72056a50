package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/engine"
	"github.com/cloudx-io/assetauction/engineapi"
)

func (s *Server) auctionResponse(r *core.AuctionRecord) engineapi.AuctionResponse {
	return engineapi.AuctionResponse{
		Auction:           r,
		Vaults:            r.Vaults(),
		HighestBidDisplay: core.FormatAmount(r.HighestBid, s.cfg.PaymentDecimals),
	}
}

func (s *Server) createAuction(w http.ResponseWriter, r *http.Request) {
	auth, err := signer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req engineapi.CreateAuctionRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	record, err := s.deps.Engine.CreateAuction(r.Context(), engine.CreateAuctionRequest{
		Signer:       auth,
		Asset:        req.Asset,
		AssetToken:   req.AssetToken,
		PaymentToken: req.PaymentToken,
		Amount:       req.Amount,
		Deadline:     req.Deadline,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.auctionResponse(record))
}

func (s *Server) listAuctions(w http.ResponseWriter, r *http.Request) {
	seller := core.Address(chi.URLParam(r, "seller"))
	records, err := s.deps.Engine.Auctions(r.Context(), seller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := engineapi.AuctionListResponse{Auctions: make([]engineapi.AuctionResponse, 0, len(records))}
	for _, record := range records {
		resp.Auctions = append(resp.Auctions, s.auctionResponse(record))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getAuction(w http.ResponseWriter, r *http.Request) {
	key, err := auctionKey(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	record, err := s.deps.Engine.Auction(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.auctionResponse(record))
}

func (s *Server) getVaultBalances(w http.ResponseWriter, r *http.Request) {
	key, err := auctionKey(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	balances, err := s.deps.Engine.VaultBalances(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

func (s *Server) getBidLog(w http.ResponseWriter, r *http.Request) {
	key, err := auctionKey(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	bids, hash, err := s.deps.Engine.BidLog(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, engineapi.BidLogResponse{Key: key, Bids: bids, BidLogHash: hash})
}

func (s *Server) placeBid(w http.ResponseWriter, r *http.Request) {
	auth, err := signer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	key, err := auctionKey(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req engineapi.PlaceBidRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	record, err := s.deps.Engine.PlaceBid(r.Context(), engine.PlaceBidRequest{
		Signer: auth,
		Ref:    req.Ref(key),
		Amount: req.Amount,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.auctionResponse(record))
}

func (s *Server) settleAuction(w http.ResponseWriter, r *http.Request) {
	auth, err := signer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	key, err := auctionKey(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req engineapi.SettleAuctionRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	settlement, err := s.deps.Engine.SettleAuction(r.Context(), engine.SettleAuctionRequest{
		Caller:   auth,
		Ref:      req.Ref(key),
		Accounts: req.Accounts,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := engineapi.SettlementResponse{
		Auction:   settlement.Record,
		Summary:   settlement.Summary.String(),
		ReceiptID: settlement.ReceiptID,
	}
	if settlement.Receipt != nil {
		resp.Receipt = settlement.Receipt.EncodeBase64()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) cancelAuction(w http.ResponseWriter, r *http.Request) {
	auth, err := signer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	key, err := auctionKey(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req engineapi.CancelAuctionRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	record, err := s.deps.Engine.CancelAuction(r.Context(), engine.CancelAuctionRequest{
		Signer: auth,
		Ref:    req.Ref(key),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.auctionResponse(record))
}

func (s *Server) receiptPublicKey(w http.ResponseWriter, r *http.Request) {
	if s.deps.Receipts == nil {
		writeJSON(w, http.StatusNotFound, engineapi.ErrorResponse{
			Error: "receipt signing is disabled",
			Code:  "receipts_disabled",
			Kind:  core.KindInput.String(),
		})
		return
	}

	publicKeyPEM, err := s.deps.Receipts.PublicKeyPEM()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, engineapi.PublicKeyResponse{
		Type:      "ECDSA-P256",
		Algorithm: engineapi.ReceiptAlgorithm,
		PublicKey: publicKeyPEM,
	})
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	owner := core.Address(chi.URLParam(r, "owner"))
	token := core.TokenType(chi.URLParam(r, "token"))
	balance, err := s.deps.Balances.BalanceOf(r.Context(), owner, token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, engineapi.BalanceResponse{Owner: owner, Token: token, Balance: balance})
}

func (s *Server) mint(w http.ResponseWriter, r *http.Request) {
	var req engineapi.MintRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Minter.Mint(r.Context(), req.Owner, req.Token, req.Amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	balance, err := s.deps.Balances.BalanceOf(r.Context(), req.Owner, req.Token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, engineapi.BalanceResponse{Owner: req.Owner, Token: req.Token, Balance: balance})
}

func (s *Server) registerAsset(w http.ResponseWriter, r *http.Request) {
	var asset core.AssetRecord
	if err := readJSON(w, r, &asset); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Registrar.Register(asset); err != nil {
		if core.KindOf(err) == core.KindUnknown {
			err = fmt.Errorf("%w: %v", errBadRequest, err)
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}
