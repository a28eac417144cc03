package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"smartcore/internal/audit"
	"smartcore/internal/collateral"
	"smartcore/internal/compliance"
	"smartcore/internal/custodian"
	"smartcore/internal/identity"
	identitycache "smartcore/internal/identity/cache"
	identitystore "smartcore/internal/identity/store"
	"smartcore/internal/ledger"
	ledgerstore "smartcore/internal/ledger/store"
	"smartcore/internal/platform/clock"
	"smartcore/internal/platform/config"
	"smartcore/internal/platform/httpserver"
	"smartcore/internal/platform/logger"
	platformredis "smartcore/internal/platform/redis"
	"smartcore/internal/token"
	tokenmetrics "smartcore/internal/token/metrics"
	httptransport "smartcore/internal/transport/http"
	"smartcore/internal/yield"
	"smartcore/pkg/domain"
	dErrors "smartcore/pkg/domainerrors"
	"smartcore/pkg/platform/middleware/auth"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.System{}

	// Optional backing services; memory fallbacks keep the binary
	// self-contained for development.
	var pool *pgxpool.Pool
	if cfg.PostgresURL != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
	}

	var identityStore identity.Store
	if pool != nil {
		identityStore = identitystore.NewPostgresStore(pool)
	} else {
		identityStore = identitystore.NewInMemoryStore()
	}

	identityOpts := []identity.Option{identity.WithLogger(log)}
	rdb, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
		identityOpts = append(identityOpts,
			identity.WithCache(identitycache.New(rdb, config.VerificationCacheTTL, log)))
	}

	identitySvc, err := identity.New(identityStore, clk, identityOpts...)
	if err != nil {
		return fmt.Errorf("build identity service: %w", err)
	}

	ledgerOpts := []ledger.Option{ledger.WithLogger(log)}
	if pool != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithArchive(ledgerstore.NewPostgresArchive(pool)))
	}
	led, err := ledger.New(clk, ledgerOpts...)
	if err != nil {
		return fmt.Errorf("build ledger: %w", err)
	}

	auditOpts := []audit.Option{audit.WithLogger(log)}
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		auditOpts = append(auditOpts, audit.WithSink(sink, 256))
	}
	auditor := audit.NewPublisher(audit.NewInMemoryStore(), auditOpts...)
	defer auditor.Close()

	chain := compliance.NewChain(log)
	custody := custodian.NewState()

	tokenCfg := token.Config{
		Name:     cfg.TokenName,
		Symbol:   cfg.TokenSymbol,
		Decimals: cfg.TokenDecimals,
	}
	tokenOpts := []token.Option{
		token.WithLogger(log),
		token.WithMetrics(tokenmetrics.New()),
		token.WithAuditPublisher(auditor),
	}
	if cfg.TokenIdentity != "" {
		tokenIdentity, err := domain.ParseAddress(cfg.TokenIdentity)
		if err != nil {
			return fmt.Errorf("parse token identity: %w", err)
		}
		gate, err := collateral.New(identitySvc, identity.SignaturePresenceValidator{}, clk, domain.TopicCollateral)
		if err != nil {
			return fmt.Errorf("build collateral gate: %w", err)
		}
		tokenCfg.Identity = tokenIdentity
		tokenOpts = append(tokenOpts, token.WithCollateralGate(gate))
	}

	tokenSvc, err := token.New(tokenCfg, identitySvc, chain, custody, led, clk, tokenOpts...)
	if err != nil {
		return fmt.Errorf("build token service: %w", err)
	}

	// Compliance modules are constructed on demand from a fixed palette;
	// token-specific parameters travel with the chain registration.
	newModule := func(name string, params []byte) (compliance.Module, error) {
		switch name {
		case "country-allowlist":
			return compliance.NewCountryAllowListModule(identitySvc), nil
		case "country-blocklist":
			return compliance.NewCountryBlockListModule(identitySvc), nil
		default:
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown compliance module %q", name)
		}
	}

	// The payment asset is an in-process book; yield schedules draw on it.
	paymentAsset := yield.NewSimpleAsset()
	newSchedule := func(scfg yield.Config) (*yield.Schedule, error) {
		return yield.New(scfg, tokenSvc, paymentAsset, clk,
			yield.WithLogger(log),
			yield.WithAuditPublisher(auditor))
	}

	handler := httptransport.NewHandler(tokenSvc, identitySvc, newModule, newSchedule, auditor, log)
	router := httptransport.NewRouter(handler, auth.NewValidator(cfg.JWTSigningKey))

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting smartcore", "addr", cfg.Addr, "token", cfg.TokenSymbol)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
