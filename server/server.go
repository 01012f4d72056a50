package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/engine"
)

// SignerHeader carries the host-authenticated caller address.
const SignerHeader = "X-Signer"

// BalanceReader reads ledger balances for the balance endpoint.
type BalanceReader interface {
	BalanceOf(ctx context.Context, owner core.Address, token core.TokenType) (uint64, error)
}

// Minter credits tokens out of thin air. Only reference ledgers implement it.
type Minter interface {
	Mint(ctx context.Context, owner core.Address, token core.TokenType, amount uint64) error
}

// AssetRegistrar adds assets to a reference registry.
type AssetRegistrar interface {
	Register(asset core.AssetRecord) error
}

// Config contains the HTTP server settings.
type Config struct {
	// ListenAddr is the address and port the HTTP server will listen on.
	ListenAddr string

	// PaymentDecimals renders bid amounts for display.
	PaymentDecimals int32

	// DevRoutes enables the mint and asset registration endpoints.
	DevRoutes bool

	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
	GracefulShutdownDuration time.Duration
}

// Deps are the components served over HTTP. Engine is required.
type Deps struct {
	Engine   *engine.Engine
	Balances BalanceReader
	Receipts *engine.KeyManager
	Logger   *zap.Logger

	// Minter and Registrar back the dev routes.
	Minter    Minter
	Registrar AssetRegistrar
}

// Server exposes the auction engine over HTTP.
type Server struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
	srv    *http.Server
}

func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Engine == nil {
		return nil, errors.New("engine is nil")
	}
	if cfg.DevRoutes && (deps.Minter == nil || deps.Registrar == nil || deps.Balances == nil) {
		return nil, errors.New("dev routes need a minter, an asset registrar and a balance reader")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{cfg: cfg, deps: deps, logger: logger}
	s.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// Handler builds the router with middleware and all endpoints.
func (s *Server) Handler() http.Handler {
	mux := chi.NewRouter()

	mux.Use(requestID)
	mux.Use(middleware.RealIP)
	mux.Use(s.logRequests)
	mux.Use(middleware.Recoverer)

	mux.Get("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	mux.Route("/auctions", func(r chi.Router) {
		r.Post("/", s.createAuction)
		r.Get("/{seller}", s.listAuctions)
		r.Route("/{seller}/{nonce}", func(r chi.Router) {
			r.Get("/", s.getAuction)
			r.Get("/vaults", s.getVaultBalances)
			r.Get("/bids", s.getBidLog)
			r.Post("/bids", s.placeBid)
			r.Post("/settle", s.settleAuction)
			r.Post("/cancel", s.cancelAuction)
		})
	})

	mux.Get("/receipts/public-key", s.receiptPublicKey)

	if s.deps.Balances != nil {
		mux.Get("/balances/{owner}/{token}", s.getBalance)
	}

	if s.cfg.DevRoutes {
		s.logger.Warn("dev routes enabled")
		mux.Post("/dev/mint", s.mint)
		mux.Post("/dev/assets", s.registerAsset)
	}

	return mux
}

// logRequests logs every request with its outcome.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		}
		if ww.Status() >= http.StatusInternalServerError {
			s.logger.Error("http request", fields...)
			return
		}
		s.logger.Debug("http request", fields...)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// RunInBackground starts the HTTP server in a separate goroutine.
func (s *Server) RunInBackground() {
	go func() {
		s.logger.Info("starting HTTP server", zap.String("listen_address", s.cfg.ListenAddr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful HTTP server shutdown: %w", err)
	}
	s.logger.Info("HTTP server gracefully stopped")
	return nil
}
