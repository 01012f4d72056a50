package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/engine"
	"github.com/cloudx-io/assetauction/engineapi"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks malformed HTTP input that never reached the engine.
var errBadRequest = errors.New("bad request")

// requestID tags each request with an ID, reusing the caller's X-Request-Id when present.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = "req_" + uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: parse request body: %v", errBadRequest, err)
	}
	return nil
}

// signer returns the authority of the authenticated caller.
func signer(r *http.Request) (engine.Authority, error) {
	addr := r.Header.Get(SignerHeader)
	if addr == "" {
		return engine.Authority{}, fmt.Errorf("%w: missing %s header", core.ErrUnauthorized, SignerHeader)
	}
	return engine.SignedBy(core.Address(addr)), nil
}

func auctionKey(r *http.Request) (core.AuctionKey, error) {
	nonce, err := strconv.ParseUint(chi.URLParam(r, "nonce"), 10, 64)
	if err != nil {
		return core.AuctionKey{}, fmt.Errorf("%w: invalid nonce: %v", errBadRequest, err)
	}
	return core.AuctionKey{Seller: core.Address(chi.URLParam(r, "seller")), Nonce: nonce}, nil
}

// statusFor maps an error to the HTTP status a client should act on.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrAuctionNotFound), errors.Is(err, core.ErrAssetNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrVaultImbalance), errors.Is(err, core.ErrCorruptRecord):
		return http.StatusInternalServerError
	}

	switch core.KindOf(err) {
	case core.KindInput:
		return http.StatusBadRequest
	case core.KindEconomic, core.KindArithmetic:
		return http.StatusUnprocessableEntity
	case core.KindTemporal, core.KindState:
		return http.StatusConflict
	case core.KindIntegrity:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := engineapi.ErrorResponse{
		Error:     err.Error(),
		Code:      core.CodeOf(err),
		Kind:      core.KindOf(err).String(),
		Retryable: core.Retryable(err),
		RequestID: middleware.GetReqID(r.Context()),
	}

	switch {
	case errors.Is(err, errBadRequest):
		resp.Code = "bad_request"
		resp.Kind = core.KindInput.String()
		resp.Retryable = true
	case core.KindOf(err) == core.KindUnknown:
		// Unclassified errors come from collaborators; their text stays in the logs.
		s.logger.Error("request failed", zap.String("request_id", resp.RequestID), zap.Error(err))
		resp.Error = "internal error"
	}

	writeJSON(w, status, resp)
}
