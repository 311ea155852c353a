package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"gatepass/internal/credential/models"
	"gatepass/internal/credential/service"
	"gatepass/internal/gate"
	"gatepass/internal/gatelog"
	jwttoken "gatepass/internal/jwt_token"
	"gatepass/internal/platform/metrics"
	"gatepass/internal/platform/middleware"
	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/httputil"
	"gatepass/pkg/requestcontext"
)

// Service defines the credential operations the HTTP layer depends on.
type Service interface {
	Create(ctx context.Context, req models.CreateRequest) (*models.Credential, error)
	Decide(ctx context.Context, req models.DecideRequest) (*models.Credential, error)
	Get(ctx context.Context, credID id.CredentialID, residentID id.ResidentID) (*models.Credential, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Credential, error)
	Delete(ctx context.Context, credID id.CredentialID, residentID id.ResidentID) error
	Verify(ctx context.Context, scanned string) (*service.Verification, error)
}

// Handler handles the credential and scan endpoints.
type Handler struct {
	logger       *slog.Logger
	credentials  Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
	devices      gate.Registry
	scans        gatelog.Store
}

// New creates a new credential Handler.
func New(
	credentials Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
	devices gate.Registry,
	scans gatelog.Store) *Handler {
	return &Handler{
		logger:       logger,
		credentials:  credentials,
		metrics:      metrics,
		jwtValidator: jwtValidator,
		devices:      devices,
		scans:        scans,
	}
}

// Register registers the credential routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.LatencyMiddleware(h.metrics))

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Post("/credentials", h.handleCreate)
		r.Get("/credentials", h.handleList)
		r.Get("/credentials/{id}", h.handleGet)
		r.Delete("/credentials/{id}", h.handleDelete)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Use(middleware.RequireRole(jwttoken.RoleAdmin, h.logger))
		r.Post("/credentials/{id}/decision", h.handleDecide)
		r.Get("/scans", h.handleScanLog)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireDevice(h.devices, h.logger))
		r.Post("/scan/verify", h.handleVerify)
	})

	r.Mount("/", router)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	residentID, societyID, ok := h.callerScope(ctx, w)
	if !ok {
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	createReq, err := req.toModel(residentID, societyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cred, err := h.credentials.Create(ctx, createReq)
	if err != nil {
		h.writeServiceError(ctx, w, "create credential", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(cred))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	residentID, societyID, ok := h.callerScope(ctx, w)
	if !ok {
		return
	}

	// Residents see their own credentials. Administrators see their whole
	// society (the pending queue, mostly), optionally narrowed to one resident.
	var filter models.ListFilter
	if middleware.GetRole(ctx) == jwttoken.RoleAdmin {
		filter.SocietyID = &societyID
		if raw := r.URL.Query().Get("residentId"); raw != "" {
			rid, err := id.ParseResidentID(raw)
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid residentId filter"))
				return
			}
			filter.ResidentID = &rid
		}
	} else {
		filter.ResidentID = &residentID
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.Status = &status
	}

	creds, err := h.credentials.List(ctx, filter)
	if err != nil {
		h.writeServiceError(ctx, w, "list credentials", err)
		return
	}

	resp := listResponse{Credentials: make([]credentialResponse, 0, len(creds))}
	for _, c := range creds {
		resp.Credentials = append(resp.Credentials, toResponse(c))
	}
	resp.Count = len(resp.Credentials)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	residentID, _, ok := h.callerScope(ctx, w)
	if !ok {
		return
	}
	credID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid credential id"))
		return
	}

	cred, err := h.credentials.Get(ctx, credID, residentID)
	if err != nil {
		h.writeServiceError(ctx, w, "get credential", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(cred))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	residentID, _, ok := h.callerScope(ctx, w)
	if !ok {
		return
	}
	credID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid credential id"))
		return
	}

	if err := h.credentials.Delete(ctx, credID, residentID); err != nil {
		h.writeServiceError(ctx, w, "delete credential", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	adminID := requestcontext.UserID(ctx)
	societyID, err := id.ParseSocietyID(requestcontext.SocietyID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "society scope missing from admin token",
			"request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	credID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid credential id"))
		return
	}

	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	decideReq, err := req.toModel(credID, adminID, societyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cred, err := h.credentials.Decide(ctx, decideReq)
	if err != nil {
		h.writeServiceError(ctx, w, "decide credential", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(cred))
}

// handleScanLog returns the society's recent gate scans, newest first, for
// audit review by an administrator.
func (h *Handler) handleScanLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	societyID, err := id.ParseSocietyID(requestcontext.SocietyID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "society scope missing from admin token",
			"request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid limit"))
			return
		}
	}

	entries, err := h.scans.ListBySociety(ctx, societyID, limit)
	if err != nil {
		h.writeServiceError(ctx, w, "list gate scans",
			dErrors.Wrap(err, dErrors.CodeInternal, "gate log unavailable"))
		return
	}

	resp := scanListResponse{Scans: make([]scanEntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Scans = append(resp.Scans, toScanResponse(e))
	}
	resp.Count = len(resp.Scans)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	verification, err := h.credentials.Verify(ctx, req.Payload)
	if err != nil {
		h.writeServiceError(ctx, w, "verify scan", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verification)
}

// callerScope extracts the authenticated resident and society from the
// context populated by RequireAuth.
func (h *Handler) callerScope(ctx context.Context, w http.ResponseWriter) (id.ResidentID, id.SocietyID, bool) {
	residentID, err := id.ParseResidentID(requestcontext.UserID(ctx))
	if err != nil {
		// Should never happen behind RequireAuth.
		h.logger.ErrorContext(ctx, "user id missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.ResidentID{}, id.SocietyID{}, false
	}
	societyID, err := id.ParseSocietyID(requestcontext.SocietyID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "society scope missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx))
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.ResidentID{}, id.SocietyID{}, false
	}
	return residentID, societyID, true
}

// writeServiceError logs and translates a service failure. Validation-class
// errors go out as-is; unexpected ones are masked.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := dErrors.CodeOf(err)
	switch code {
	case dErrors.CodeInternal, dErrors.CodeCleanupFailed:
		h.logger.ErrorContext(ctx, "request failed: "+op,
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
	default:
		h.logger.WarnContext(ctx, "request rejected: "+op,
			"code", string(code),
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}
