// Package api provides the HTTP API server for the yield engine.
package api

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/cloudwalk/yield-streamer/internal/logging"
	"github.com/cloudwalk/yield-streamer/internal/types"
)

// YieldServiceInterface defines the service surface the handlers depend on.
type YieldServiceInterface interface {
	GetClaimPreview(ctx context.Context, account string, amount *big.Int) (types.ClaimPreview, error)
	GetClaimAllPreview(ctx context.Context, account string) (types.ClaimPreview, error)
	ExecuteClaim(ctx context.Context, account string, amount *big.Int) (types.ClaimResult, error)
	GetLastClaim(ctx context.Context, account string) (types.ClaimState, error)
	GetDailyBalances(ctx context.Context, account string, fromDay, toDay types.Day) ([]*big.Int, error)
	GetYieldByDays(ctx context.Context, account string, fromDay, toDay types.Day) ([]*big.Int, error)
	ConfigureYieldRate(ctx context.Context, effectiveDay types.Day, rate *big.Int) error
	ConfigureLookBackPeriod(ctx context.Context, effectiveDay types.Day, length uint64) error
	SetFeeReceiver(ctx context.Context, receiver string) error
	Schedule() ([]types.YieldRateRecord, []types.LookBackRecord)
	CurrentDay() (types.Day, types.Day, error)
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	service    YieldServiceInterface
	config     *ServerConfig
	logger     *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AdminKey        string
	FreeTierRPS     int
	BasicTierRPS    int
	PremiumTierRPS  int
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, service YieldServiceInterface) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		service: service,
		config:  config,
		logger:  logging.GetGlobalLogger().WithComponent("api"),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.FreeTierRPS, s.config.BasicTierRPS, s.config.PremiumTierRPS)

	// Middleware order matters: recovery wraps everything the limiter lets in.
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Account endpoints
	api.HandleFunc("/accounts/{address}/claims", s.handleClaim).Methods("POST")
	api.HandleFunc("/accounts/{address}/claim-preview", s.handleClaimPreview).Methods("GET")
	api.HandleFunc("/accounts/{address}/claim-all-preview", s.handleClaimAllPreview).Methods("GET")
	api.HandleFunc("/accounts/{address}/last-claim", s.handleLastClaim).Methods("GET")
	api.HandleFunc("/accounts/{address}/daily-balances", s.handleDailyBalances).Methods("GET")
	api.HandleFunc("/accounts/{address}/yield-by-days", s.handleYieldByDays).Methods("GET")

	// Admin endpoints
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(AdminAuthMiddleware(s.config.AdminKey))
	admin.HandleFunc("/yield-rates", s.handleConfigureYieldRate).Methods("POST")
	admin.HandleFunc("/look-back-periods", s.handleConfigureLookBack).Methods("POST")
	admin.HandleFunc("/fee-receiver", s.handleSetFeeReceiver).Methods("PUT")
	admin.HandleFunc("/schedule", s.handleGetSchedule).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	current, initDay, err := s.service.CurrentDay()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"service":    "yield-streamer",
		"currentDay": uint64(current),
		"initDay":    uint64(initDay),
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the router for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}
