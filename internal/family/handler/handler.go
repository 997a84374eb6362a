package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"heritage/internal/family/relationship"
	"heritage/internal/family/tree"
	dErrors "heritage/pkg/domain-errors"
	"heritage/pkg/platform/httputil"
	"heritage/pkg/requestcontext"
)

const (
	defaultNodeWidth  = 160
	defaultNodeHeight = 80
)

// Service defines the family engine operations exposed over HTTP.
type Service interface {
	BuildTree(ctx context.Context, nodeWidth, nodeHeight float64) (*tree.Tree, error)
	FindRelationshipByRef(ctx context.Context, from, to string) (relationship.Label, error)
}

// Handler serves the family tree and kinship queries.
type Handler struct {
	family Service
	logger *slog.Logger
}

// New creates a family Handler.
func New(family Service, logger *slog.Logger) *Handler {
	return &Handler{family: family, logger: logger}
}

// Register mounts the family routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/family", func(r chi.Router) {
		r.Get("/tree", h.handleTree)
		r.Get("/relationship", h.handleRelationship)
	})
}

func (h *Handler) handleTree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	width, err := floatParam(q.Get("width"), defaultNodeWidth)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "width must be a number"))
		return
	}
	height, err := floatParam(q.Get("height"), defaultNodeHeight)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "height must be a number"))
		return
	}

	t, err := h.family.BuildTree(ctx, width, height)
	if err != nil {
		h.logFailure(ctx, "failed to build family tree", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

type relationshipResponse struct {
	From  string             `json:"from"`
	To    string             `json:"to"`
	Label relationship.Label `json:"relationship"`
}

func (h *Handler) handleRelationship(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "from and to are required"))
		return
	}

	l, err := h.family.FindRelationshipByRef(ctx, from, to)
	if err != nil {
		h.logFailure(ctx, "failed to resolve relationship", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, relationshipResponse{From: from, To: to, Label: l})
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	if dErrors.HTTPStatus(dErrors.CodeOf(err)) < http.StatusInternalServerError {
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}

func floatParam(v string, fallback float64) (float64, error) {
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}
