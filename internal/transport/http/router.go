package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"accredo/internal/challenge"
	"accredo/internal/credential/issuer"
	"accredo/internal/gradeevent"
	"accredo/internal/platform/middleware"
	"accredo/internal/presentation"
	"accredo/internal/revocation"
	transfer "accredo/internal/transfer/service"
	"accredo/internal/transport/http/json"
	"accredo/internal/workers/listsync"
)

// Handler is the thin HTTP layer. It delegates to the domain services and
// keeps transport concerns (decoding, status codes, envelopes) to itself.
type Handler struct {
	issuer    *issuer.Service
	registry  revocation.Registry
	broker    *challenge.Broker
	verifier  *presentation.Verifier
	transfers *transfer.Service
	grades    *gradeevent.Processor
	sync      *listsync.Manager
	logger    *slog.Logger
}

// NewHandler wires the handler over the domain services.
func NewHandler(
	iss *issuer.Service,
	registry revocation.Registry,
	broker *challenge.Broker,
	verifier *presentation.Verifier,
	transfers *transfer.Service,
	grades *gradeevent.Processor,
	syncManager *listsync.Manager,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		issuer:    iss,
		registry:  registry,
		broker:    broker,
		verifier:  verifier,
		transfers: transfers,
		grades:    grades,
		sync:      syncManager,
		logger:    logger,
	}
}

// NewRouter wires all public endpoints with the middleware stack. Extra
// middleware (request metrics in production) is appended after the base stack.
func NewRouter(h *Handler, logger *slog.Logger, extra ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)
	for _, mw := range extra {
		r.Use(mw)
	}

	// Credential lifecycle
	r.Post("/credentials", h.handleIssueCredential)
	r.Get("/credentials/{id}", h.handleGetCredential)
	r.Post("/credentials/{id}/revoke", h.handleRevokeCredential)

	// Revocation lists
	r.Get("/revocation-lists/{id}", h.handleGetRevocationList)
	r.Post("/revocation-lists/{id}/sync", h.handleTriggerSync)
	r.Get("/sync-jobs/{id}", h.handleSyncStatus)

	// Presentation exchange
	r.Post("/challenges", h.handleCreateChallenge)
	r.Post("/presentations/verify", h.handleVerifyPresentation)

	// Credit transfer workflow
	r.Post("/transfers", h.handleCreateTransfer)
	r.Get("/transfers/{id}", h.handleGetTransfer)
	r.Post("/transfers/{id}/approve", h.handleApproveTransfer)
	r.Post("/transfers/{id}/reject", h.handleRejectTransfer)

	// Grade event intake
	r.Post("/grade-events", h.handleGradeEvent)

	// Operational surface
	r.Get("/healthz", h.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	json.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "accredo",
	})
}
