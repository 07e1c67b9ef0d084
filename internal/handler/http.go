package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/MikhailRaia/paylink/internal/logger"
	"github.com/MikhailRaia/paylink/internal/metrics"
	"github.com/MikhailRaia/paylink/internal/middleware"
	"github.com/MikhailRaia/paylink/internal/mnid"
	"github.com/MikhailRaia/paylink/internal/model"
	"github.com/MikhailRaia/paylink/internal/paycode"
	"github.com/MikhailRaia/paylink/internal/pool"
	"github.com/MikhailRaia/paylink/internal/service"
	"github.com/MikhailRaia/paylink/internal/share"
	"github.com/MikhailRaia/paylink/internal/storage"
)

type PaymentService interface {
	GenerateCode(req model.CodeRequest) (paycode.Code, error)
	ReadCode(ctx context.Context, code string) (*paycode.Intent, error)
	CreateShareLink(ctx context.Context, userID string, req model.ShareLinkRequest) (model.ShareLinkResponse, error)
	CreateShareLinkBatch(ctx context.Context, userID string, items []model.BatchLinkRequestItem) ([]model.BatchLinkResponseItem, error)
	WithdrawStatus(ctx context.Context, code string) (model.WithdrawStatusResponse, error)
	Withdraw(ctx context.Context, code string) error
	GetUserLinks(ctx context.Context, userID string) ([]model.UserLink, error)
	GetStats(ctx context.Context) (model.Stats, error)
	ExpandShortLink(ctx context.Context, action share.Action, payload string) (string, error)
}

// CancelSubmitter queues link cancellations.
type CancelSubmitter interface {
	Submit(userID string, linkIDs []string) error
}

type DBPinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	DBPinger      DBPinger
	Canceller     CancelSubmitter
	Auth          *middleware.AuthMiddleware
	Metrics       *metrics.Metrics
	TrustedSubnet string
}

type Handler struct {
	service   PaymentService
	dbPinger  DBPinger
	canceller CancelSubmitter
	auth      *middleware.AuthMiddleware
	metrics   *metrics.Metrics
	trusted   netip.Prefix
}

var (
	validate   = validator.New()
	bufferPool = pool.New(64, func() *bytes.Buffer { return new(bytes.Buffer) })
)

const maxBatchSize = 1000

func NewHandler(service PaymentService, opts Options) *Handler {
	h := &Handler{
		service:   service,
		dbPinger:  opts.DBPinger,
		canceller: opts.Canceller,
		auth:      opts.Auth,
		metrics:   opts.Metrics,
	}

	if opts.TrustedSubnet != "" {
		prefix, err := netip.ParsePrefix(opts.TrustedSubnet)
		if err != nil {
			log.Warn().Err(err).Str("subnet", opts.TrustedSubnet).Msg("Ignoring invalid trusted subnet")
		} else {
			h.trusted = prefix.Masked()
		}
	}

	return h
}

func (h *Handler) RegisterRoutes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(logger.RequestLogger)
	r.Use(h.metrics.Instrument)
	r.Use(middleware.GzipReader)
	r.Use(chimiddleware.Compress(5, middleware.CompressedTypes...))

	r.Get("/ping", h.handlePing)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Get("/send/{payload}", h.handleExpand(share.ActionSend))
	r.Get("/receive/{payload}", h.handleExpand(share.ActionReceive))

	r.Route("/api", func(r chi.Router) {
		r.Post("/code", h.handleGenerateCode)
		r.Get("/code/{code}", h.handleReadCode)

		r.Get("/withdraw/{code}", h.handleWithdrawStatus)
		r.Post("/withdraw/{code}", h.handleWithdraw)

		r.Get("/internal/stats", h.handleStats)

		r.Group(func(r chi.Router) {
			if h.auth != nil {
				r.Use(h.auth.AuthenticateUser)
			}
			r.Post("/link", h.handleCreateLink)
			r.Post("/link/batch", h.handleCreateLinkBatch)
		})

		r.Group(func(r chi.Router) {
			if h.auth != nil {
				r.Use(h.auth.RequireAuth)
			}
			r.Get("/user/links", h.handleUserLinks)
			r.Delete("/user/links", h.handleCancelLinks)
		})
	})

	return r
}

func (h *Handler) handlePing(w http.ResponseWriter, r *http.Request) {
	if h.dbPinger != nil {
		if err := h.dbPinger.Ping(r.Context()); err != nil {
			log.Error().Err(err).Msg("Database ping failed")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleGenerateCode(w http.ResponseWriter, r *http.Request) {
	var req model.CodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	code, err := h.service.GenerateCode(req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	payload, err := share.EncodePayload(code)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.CodeResponse{Code: payload, Payload: code})
}

func (h *Handler) handleReadCode(w http.ResponseWriter, r *http.Request) {
	intent, err := h.service.ReadCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, intent)
}

func (h *Handler) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	var req model.ShareLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(r.Context())

	resp, err := h.service.CreateShareLink(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, storage.ErrLinkExists) {
			writeJSON(w, http.StatusConflict, resp)
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleCreateLinkBatch(w http.ResponseWriter, r *http.Request) {
	var items []model.BatchLinkRequestItem
	if !decodeJSON(w, r, &items) {
		return
	}

	if len(items) == 0 || len(items) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "batch must contain between 1 and 1000 items")
		return
	}
	for _, item := range items {
		if err := validate.Struct(item); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	userID, _ := middleware.GetUserIDFromContext(r.Context())

	result, err := h.service.CreateShareLinkBatch(r.Context(), userID, items)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleWithdrawStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.WithdrawStatus(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := h.service.Withdraw(r.Context(), code); err != nil {
		writeServiceError(w, err)
		return
	}

	resp, err := h.service.WithdrawStatus(r.Context(), code)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUserLinks(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	links, err := h.service.GetUserLinks(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if len(links) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, links)
}

func (h *Handler) handleCancelLinks(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var ids []string
	if !decodeJSON(w, r, &ids) {
		return
	}
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "no link ids")
		return
	}

	if h.canceller == nil {
		writeError(w, http.StatusServiceUnavailable, "cancellation is not available")
		return
	}

	if err := h.canceller.Submit(userID, ids); err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Failed to queue link cancellation")
		writeError(w, http.StatusServiceUnavailable, "cancellation is not available")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if !h.isTrusted(r) {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// isTrusted reports whether X-Real-IP lies in the trusted subnet. Without a
// configured subnet nobody is trusted.
func (h *Handler) isTrusted(r *http.Request) bool {
	if !h.trusted.IsValid() {
		return false
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP")))
	if err != nil {
		return false
	}

	return h.trusted.Contains(addr.Unmap())
}

func (h *Handler) handleExpand(action share.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := h.service.ExpandShortLink(r.Context(), action, chi.URLParam(r, "payload"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		http.Redirect(w, r, target, http.StatusTemporaryRedirect)
	}
}

// decodeJSON reads a JSON body and validates structs. It writes the error
// response itself and reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
		writeError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
		return false
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}

	if err := validate.Struct(v); err != nil {
		var invalid *validator.InvalidValidationError
		if !errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return false
		}
	}

	return true
}

func isClientError(err error) bool {
	return errors.Is(err, service.ErrInvalidLink) ||
		errors.Is(err, service.ErrInvalidAction) ||
		errors.Is(err, mnid.ErrInvalidAddress) ||
		errors.Is(err, paycode.ErrInvalidAmount) ||
		errors.Is(err, share.ErrEmptyLink)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidLink):
		writeError(w, http.StatusBadRequest, "invalid link")
	case isClientError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrLinkNotFound):
		writeError(w, http.StatusNotFound, "link not found")
	case errors.Is(err, storage.ErrStatusConflict):
		writeError(w, http.StatusConflict, "link is not pending")
	default:
		log.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	buf := bufferPool.Get()
	defer bufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}
