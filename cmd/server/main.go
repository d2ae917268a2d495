package main

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"accredo/internal/audit"
	"accredo/internal/challenge"
	"accredo/internal/credential/issuer"
	credmetrics "accredo/internal/credential/metrics"
	credstore "accredo/internal/credential/store"
	"accredo/internal/didresolver"
	"accredo/internal/directory"
	"accredo/internal/gradeevent"
	"accredo/internal/keycustody"
	"accredo/internal/platform/config"
	"accredo/internal/platform/database"
	"accredo/internal/platform/logger"
	platformmetrics "accredo/internal/platform/metrics"
	"accredo/internal/presentation"
	"accredo/internal/referencedata"
	"accredo/internal/revocation"
	"accredo/internal/seeder"
	transfermetrics "accredo/internal/transfer/metrics"
	transfer "accredo/internal/transfer/service"
	transferstore "accredo/internal/transfer/store"
	httptransport "accredo/internal/transport/http"
	"accredo/internal/workers/listsync"
)

// main wires the trust node's dependencies and keeps the server lifecycle
// small. Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing accredo trust node",
		"addr", cfg.Addr,
		"issuer_did", cfg.IssuerDID,
	)

	custody, err := loadCustody()
	if err != nil {
		log.Error("key custody initialization failed", "error", err)
		os.Exit(1)
	}
	log.Info("issuer key loaded", "public_key", custody.PublicKeyMultibase())

	// Credential persistence: postgres when DATABASE_URL is set, otherwise
	// process-local memory.
	var store credstore.Store = credstore.NewInMemoryStore()
	if cfg.DatabaseURL != "" {
		poolCfg := database.DefaultConfig()
		poolCfg.URL = cfg.DatabaseURL
		pool, err := database.New(poolCfg)
		if err != nil {
			log.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		store = credstore.NewPostgres(pool.DB())
		log.Info("using postgres credential store")
	}

	registry := revocation.NewInMemoryRegistry(revocation.WithSlots(cfg.RevocationListSlots))
	auditStore := audit.NewInMemoryStore()

	catalog := courseCatalog(log)
	issuerSvc, err := issuer.NewService(store, registry, custody, cfg.IssuerDID,
		issuer.WithLogger(log),
		issuer.WithMetrics(credmetrics.New()),
		issuer.WithAuditor(auditStore),
		issuer.WithCatalog(catalog),
	)
	if err != nil {
		log.Error("issuer initialization failed", "error", err)
		os.Exit(1)
	}

	broker := challenge.NewBroker(challenge.WithTTL(cfg.ChallengeTTL))
	defer broker.Close()

	resolver := buildResolver(cfg.IssuerDID, custody)
	verifier, err := presentation.NewVerifier(broker, resolver, registry,
		presentation.WithLogger(log))
	if err != nil {
		log.Error("verifier initialization failed", "error", err)
		os.Exit(1)
	}

	dir := directory.NewInMemoryDirectory()
	if os.Getenv("ACCREDO_SEED_DEMO") != "" {
		if mem, ok := catalog.(*referencedata.MemoryCatalog); ok {
			if err := seeder.New(mem, dir, log).SeedAll(context.Background()); err != nil {
				log.Error("demo seeding failed", "error", err)
				os.Exit(1)
			}
		}
	}

	transferSvc, err := transfer.NewService(transferstore.NewInMemoryStore(), issuerSvc, dir,
		transfer.WithLogger(log),
		transfer.WithMetrics(transfermetrics.New()),
		transfer.WithAuditor(auditStore),
		transfer.WithMinimumScore(cfg.TransferMinimumScore),
	)
	if err != nil {
		log.Error("transfer service initialization failed", "error", err)
		os.Exit(1)
	}

	processor, err := gradeevent.NewProcessor(issuerSvc, dir, store,
		gradeevent.WithLogger(log))
	if err != nil {
		log.Error("grade event processor initialization failed", "error", err)
		os.Exit(1)
	}

	syncManager, err := listsync.NewManager(registry, listsync.LogPublisher{Logger: log},
		listsync.WithLogger(log))
	if err != nil {
		log.Error("list sync manager initialization failed", "error", err)
		os.Exit(1)
	}

	handler := httptransport.NewHandler(issuerSvc, registry, broker, verifier,
		transferSvc, processor, syncManager, log)
	router := httptransport.NewRouter(handler, log, platformmetrics.NewHTTP().Middleware())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("starting http server", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	syncManager.Wait()

	log.Info("server stopped")
}

// loadCustody builds the issuer signing key: deterministic from
// ACCREDO_KEY_SEED (hex, 32 bytes) when set, ephemeral otherwise.
func loadCustody() (*keycustody.LocalCustody, error) {
	if raw := os.Getenv("ACCREDO_KEY_SEED"); raw != "" {
		seed, err := hex.DecodeString(raw)
		if err != nil {
			return nil, err
		}
		return keycustody.NewLocalCustodyFromSeed(seed)
	}
	return keycustody.NewLocalCustody()
}

// courseCatalog prefers the remote registrar catalog when configured.
func courseCatalog(log *slog.Logger) referencedata.Catalog {
	if url := os.Getenv("COURSE_CATALOG_URL"); url != "" {
		log.Info("using remote course catalog", "url", url)
		return referencedata.NewHTTPCatalog(url, nil)
	}
	return referencedata.NewMemoryCatalog()
}

// nodeResolver resolves this node's own DID from local custody and everything
// else over did:web.
type nodeResolver struct {
	local *didresolver.StaticResolver
	web   *didresolver.WebResolver
}

func buildResolver(issuerDID string, custody *keycustody.LocalCustody) didresolver.Resolver {
	local := didresolver.NewStaticResolver()
	local.Register(issuerDID, custody.PublicKeyMultibase())
	return &nodeResolver{local: local, web: didresolver.NewWebResolver()}
}

func (r *nodeResolver) Resolve(ctx context.Context, did string) (didresolver.Document, error) {
	if doc, err := r.local.Resolve(ctx, did); err == nil {
		return doc, nil
	}
	return r.web.Resolve(ctx, did)
}
