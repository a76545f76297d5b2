// Package handler exposes the registry over HTTP. Mutating routes require an
// authenticated principal; read routes are public. Handlers decode, parse,
// and delegate — every semantic decision lives in the service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"selfid/internal/audit"
	"selfid/internal/registry/models"
	"selfid/internal/registry/store"
	"selfid/pkg/domain"
	dErrors "selfid/pkg/domain-errors"
	"selfid/pkg/platform/httputil"
	"selfid/pkg/requestcontext"
)

// Service is the registry operation surface the handler needs.
type Service interface {
	CreateIdentity(ctx context.Context, caller domain.Address, name, email string, documentHash domain.Hash) (uint64, error)
	VerifyIdentity(ctx context.Context, caller domain.Address, identityID uint64) error
	TransferIdentityOwnership(ctx context.Context, caller domain.Address, identityID uint64, newOwner domain.Address) error
	DeactivateIdentity(ctx context.Context, caller domain.Address, identityID uint64) error
	GiveEndorsement(ctx context.Context, caller, endorsed domain.Address, category, message string) (uint64, error)
	AddCredential(ctx context.Context, caller domain.Address, identityID uint64, credentialType, issuer string, credentialHash domain.Hash, expiresAt time.Time) (uint64, error)
	AddTrustedVerifier(ctx context.Context, caller, addr domain.Address) error
	RemoveTrustedVerifier(ctx context.Context, caller, addr domain.Address) error

	GetIdentity(ctx context.Context, identityID uint64) (*models.Identity, error)
	GetEndorsement(ctx context.Context, id uint64) (*models.Endorsement, error)
	GetCredential(ctx context.Context, id uint64) (*models.Credential, error)
	GetIdentityEndorsements(ctx context.Context, identityID uint64) ([]uint64, error)
	GetIdentityCredentials(ctx context.Context, identityID uint64) ([]uint64, error)
	CheckIdentityStatus(ctx context.Context, addr domain.Address) (models.StatusReport, error)
	ListTrustedVerifiers(ctx context.Context) ([]domain.Address, error)
	Totals(ctx context.Context) (store.Counters, error)
}

// AuditReader serves the audit read surface.
type AuditReader interface {
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
	ListByIdentity(ctx context.Context, identityID uint64) ([]audit.Event, error)
}

// Handler wires the registry routes.
type Handler struct {
	logger   *slog.Logger
	registry Service
	auditLog AuditReader
}

// New creates the registry Handler. auditLog may be nil; the audit routes
// then return 404.
func New(registry Service, auditLog AuditReader, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		registry: registry,
		auditLog: auditLog,
	}
}

// Register mounts the registry routes. requireAuth guards the mutating
// routes; reads stay public, matching the on-ledger access model where state
// is world-readable and only transactions carry a principal.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/identities", h.handleCreateIdentity)
		r.Post("/identities/{id}/verify", h.handleVerifyIdentity)
		r.Post("/identities/{id}/transfer", h.handleTransferOwnership)
		r.Post("/identities/{id}/deactivate", h.handleDeactivateIdentity)
		r.Post("/endorsements", h.handleGiveEndorsement)
		r.Post("/credentials", h.handleAddCredential)
		r.Post("/verifiers", h.handleAddVerifier)
		r.Delete("/verifiers/{address}", h.handleRemoveVerifier)
	})

	r.Get("/identities/{id}", h.handleGetIdentity)
	r.Get("/identities/{id}/endorsements", h.handleListEndorsements)
	r.Get("/identities/{id}/credentials", h.handleListCredentials)
	r.Get("/endorsements/{id}", h.handleGetEndorsement)
	r.Get("/credentials/{id}", h.handleGetCredential)
	r.Get("/status/{address}", h.handleCheckStatus)
	r.Get("/verifiers", h.handleListVerifiers)
	r.Get("/stats", h.handleStats)
	if h.auditLog != nil {
		r.Get("/audit/events", h.handleListAuditEvents)
		r.Get("/identities/{id}/audit", h.handleIdentityAudit)
	}
}

func (h *Handler) handleCreateIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[createIdentityRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	hash, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	id, err := h.registry.CreateIdentity(ctx, requestcontext.Caller(ctx), req.Name, req.Email, hash)
	if err != nil {
		h.writeServiceError(ctx, w, "create identity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (h *Handler) handleVerifyIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.registry.VerifyIdentity(ctx, requestcontext.Caller(ctx), id); err != nil {
		h.writeServiceError(ctx, w, "verify identity", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	req, ok := httputil.Decode[transferOwnershipRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	newOwner, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.registry.TransferIdentityOwnership(ctx, requestcontext.Caller(ctx), id, newOwner); err != nil {
		h.writeServiceError(ctx, w, "transfer ownership", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeactivateIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.registry.DeactivateIdentity(ctx, requestcontext.Caller(ctx), id); err != nil {
		h.writeServiceError(ctx, w, "deactivate identity", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGiveEndorsement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[giveEndorsementRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	endorsed, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	id, err := h.registry.GiveEndorsement(ctx, requestcontext.Caller(ctx), endorsed, req.Category, req.Message)
	if err != nil {
		h.writeServiceError(ctx, w, "give endorsement", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (h *Handler) handleAddCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[addCredentialRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	hash, expiresAt, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	id, err := h.registry.AddCredential(ctx, requestcontext.Caller(ctx), req.IdentityID, req.CredentialType, req.Issuer, hash, expiresAt)
	if err != nil {
		h.writeServiceError(ctx, w, "add credential", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (h *Handler) handleAddVerifier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[verifierRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	addr, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.registry.AddTrustedVerifier(ctx, requestcontext.Caller(ctx), addr); err != nil {
		h.writeServiceError(ctx, w, "add trusted verifier", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveVerifier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid address: "+err.Error()))
		return
	}

	if err := h.registry.RemoveTrustedVerifier(ctx, requestcontext.Caller(ctx), addr); err != nil {
		h.writeServiceError(ctx, w, "remove trusted verifier", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	identity, err := h.registry.GetIdentity(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "get identity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identity)
}

func (h *Handler) handleGetEndorsement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	endorsement, err := h.registry.GetEndorsement(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "get endorsement", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, endorsement)
}

func (h *Handler) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	credential, err := h.registry.GetCredential(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "get credential", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, credential)
}

func (h *Handler) handleListEndorsements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	ids, err := h.registry.GetIdentityEndorsements(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "list endorsements", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, idListResponse{IDs: ids})
}

func (h *Handler) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	ids, err := h.registry.GetIdentityCredentials(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "list credentials", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, idListResponse{IDs: ids})
}

func (h *Handler) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid address: "+err.Error()))
		return
	}

	report, err := h.registry.CheckIdentityStatus(ctx, addr)
	if err != nil {
		h.writeServiceError(ctx, w, "check identity status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleListVerifiers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	verifiers, err := h.registry.ListTrustedVerifiers(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "list trusted verifiers", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verifiersResponse{Verifiers: verifiers})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counters, err := h.registry.Totals(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "read stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, statsResponse{
		TotalIdentities:   counters.Identities,
		TotalEndorsements: counters.Endorsements,
		TotalCredentials:  counters.Credentials,
	})
}

const defaultAuditLimit = 50

func (h *Handler) handleListAuditEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	events, err := h.auditLog.ListRecent(ctx, limit)
	if err != nil {
		h.writeServiceError(ctx, w, "list audit events", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]audit.Event{"events": events})
}

func (h *Handler) handleIdentityAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	events, err := h.auditLog.ListByIdentity(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "list identity audit events", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]audit.Event{"events": events})
}

// pathID parses a numeric path parameter, writing the error envelope itself
// on failure.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, name+" must be a non-negative integer"))
		return 0, false
	}
	return id, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.GetCode(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "operation failed",
			"op", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, "operation rejected",
			"op", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
