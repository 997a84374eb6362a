package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"heritage/internal/member/models"
	"heritage/internal/member/service"
	"heritage/internal/platform/middleware"
	dErrors "heritage/pkg/domain-errors"
	"heritage/pkg/platform/httputil"
	"heritage/pkg/requestcontext"
)

const (
	maxPatchBytes = 1 << 20

	// WriteAction names the rate limit bucket for profile updates.
	WriteAction = "member_write"
)

// Service defines the member operations exposed over HTTP.
type Service interface {
	Resolve(ctx context.Context, slug string) (*models.Member, error)
	ApplyUpdate(ctx context.Context, slug string, patch models.Patch) (*models.Member, error)
	List(ctx context.Context) ([]*models.Member, error)
	OwnSlug(ctx context.Context) (string, error)
}

// Handler serves member profiles.
type Handler struct {
	members    Service
	validator  middleware.TokenValidator
	logger     *slog.Logger
	writeLimit func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithWriteLimit throttles PATCH requests. It runs after authentication.
func WithWriteLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.writeLimit = mw
	}
}

// New creates a member Handler.
func New(members Service, validator middleware.TokenValidator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{members: members, validator: validator, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the member routes. Reads are public; "me" needs a token.
// Updates require a token and, for non-admins, ownership of the profile.
func (h *Handler) Register(r chi.Router) {
	r.Route("/members", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(h.validator, h.logger))
			r.Get("/", h.handleList)
			r.Get("/{slug}", h.handleGet)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.validator, h.logger))
			if h.writeLimit != nil {
				r.Use(h.writeLimit)
			}
			r.Patch("/{slug}", h.handleUpdate)
		})
	})
}

type listResponse struct {
	Members []*models.Member `json:"members"`
	Count   int              `json:"count"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	members, err := h.members.List(ctx)
	if err != nil {
		h.writeError(ctx, w, err, "failed to list members")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Members: members, Count: len(members)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m, err := h.members.Resolve(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(ctx, w, err, "failed to resolve member")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")

	if err := h.authorize(ctx, slug); err != nil {
		h.writeError(ctx, w, err, "member update not allowed")
		return
	}

	var raw models.RawPatch
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPatchBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		h.logger.WarnContext(ctx, "invalid member update body",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	patch, err := raw.Normalize()
	if err != nil {
		h.writeError(ctx, w, err, "invalid member update")
		return
	}

	m, err := h.members.ApplyUpdate(ctx, slug, patch)
	if err != nil {
		h.writeError(ctx, w, err, "failed to update member")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

// authorize lets admins edit any profile and everyone else only their own.
func (h *Handler) authorize(ctx context.Context, slug string) error {
	p, ok := requestcontext.PrincipalFrom(ctx)
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if p.IsAdmin() || slug == service.MeSlug {
		return nil
	}
	own, err := h.members.OwnSlug(ctx)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return dErrors.New(dErrors.CodeForbidden, "only your own profile can be edited")
		}
		return err
	}
	if own != slug {
		return dErrors.New(dErrors.CodeForbidden, "only your own profile can be edited")
	}
	return nil
}

// writeError logs server faults at error level and client faults at warn.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	var de *dErrors.Error
	if !errors.As(err, &de) || de.Code == dErrors.CodeInternal || de.Code == dErrors.CodeCyclicGraph {
		h.logger.ErrorContext(ctx, msg,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}
