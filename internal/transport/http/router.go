// Package httptransport is the thin HTTP layer over the token host. It
// delegates to domain services without embedding business logic so
// transport concerns remain isolated.
package httptransport

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartcore/internal/audit"
	"smartcore/internal/compliance"
	"smartcore/internal/identity"
	"smartcore/internal/token"
	"smartcore/internal/yield"
	"smartcore/pkg/platform/middleware/auth"
	"smartcore/pkg/platform/middleware/metadata"
	"smartcore/pkg/platform/middleware/requesttime"
)

// ScheduleFactory builds a yield schedule from runtime parameters. The
// wiring layer supplies it with the payment asset and clock already bound.
type ScheduleFactory func(cfg yield.Config) (*yield.Schedule, error)

// ModuleFactory builds a compliance module by palette name with raw
// token-specific parameters.
type ModuleFactory func(name string, params []byte) (compliance.Module, error)

// Handler wires the HTTP surface to the domain services.
type Handler struct {
	token       *token.Service
	identity    *identity.Service
	newModule   ModuleFactory
	newSchedule ScheduleFactory
	auditor     *audit.Publisher
	logger      *slog.Logger

	// yieldMu guards the single schedule slot; the token-schedule link is
	// 1:1 and set-once.
	yieldMu  sync.RWMutex
	schedule *yield.Schedule
}

// NewHandler builds the handler over its collaborators.
func NewHandler(tok *token.Service, ident *identity.Service, newModule ModuleFactory, newSchedule ScheduleFactory, auditor *audit.Publisher, logger *slog.Logger) *Handler {
	return &Handler{
		token:       tok,
		identity:    ident,
		newModule:   newModule,
		newSchedule: newSchedule,
		auditor:     auditor,
		logger:      logger,
	}
}

// NewRouter mounts every endpoint with its role guard.
func NewRouter(h *Handler, validator *auth.Validator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Public reads.
	r.Group(func(r chi.Router) {
		r.Get("/token", h.handleTokenInfo)
		r.Get("/token/supply", h.handleTotalSupply)
		r.Get("/token/supply/at/{timepoint}", h.handleTotalSupplyAt)
		r.Get("/token/balance/{address}", h.handleBalance)
		r.Get("/token/balance/{address}/at/{timepoint}", h.handleBalanceAt)
		r.Get("/token/frozen/{address}", h.handleFrozen)
		r.Get("/yield", h.handleYieldInfo)
		r.Get("/yield/accrued/{address}", h.handleYieldAccrued)
	})

	// Authenticated operations, guarded per role capability.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(validator, h.logger))

		r.With(auth.RequireRole(auth.RoleSupply, h.logger)).Group(func(r chi.Router) {
			r.Post("/token/mint", h.handleMint)
			r.Post("/token/mint/batch", h.handleBatchMint)
			r.Post("/token/burn", h.handleBurn)
		})

		r.Post("/token/transfer", h.handleTransfer)
		r.Post("/token/transfer/batch", h.handleBatchTransfer)

		r.With(auth.RequireRole(auth.RoleCustodian, h.logger)).Group(func(r chi.Router) {
			r.Post("/custodian/freeze-address", h.handleSetAddressFrozen)
			r.Post("/custodian/freeze-partial", h.handleFreezePartial)
			r.Post("/custodian/unfreeze-partial", h.handleUnfreezePartial)
			r.Post("/custodian/forced-transfer", h.handleForcedTransfer)
			r.Post("/custodian/recover", h.handleRecover)
		})

		r.With(auth.RequireRole(auth.RoleAdmin, h.logger)).Group(func(r chi.Router) {
			r.Post("/token/pause", h.handlePause)
			r.Post("/token/unpause", h.handleUnpause)
			r.Post("/identity/register", h.handleRegisterIdentity)
			r.Delete("/identity/{address}", h.handleDeleteIdentity)
			r.Post("/identity/{address}/claims", h.handleAddClaim)
			r.Delete("/identity/{address}/claims", h.handleRemoveClaim)
			r.Post("/issuers", h.handleAddTrustedIssuer)
			r.Delete("/issuers/{address}", h.handleRemoveTrustedIssuer)
			r.Get("/compliance/modules", h.handleListModules)
			r.Post("/compliance/modules", h.handleAddModule)
			r.Delete("/compliance/modules/{name}", h.handleRemoveModule)
			r.Get("/audit/{address}", h.handleAuditTrail)
		})

		r.With(auth.RequireRole(auth.RoleYieldAdmin, h.logger)).Group(func(r chi.Router) {
			r.Post("/yield", h.handleCreateSchedule)
			r.Post("/yield/top-up", h.handleYieldTopUp)
			r.Post("/yield/withdraw", h.handleYieldWithdraw)
			r.Post("/yield/withdraw-all", h.handleYieldWithdrawAll)
		})

		r.Post("/yield/claim", h.handleYieldClaim)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
