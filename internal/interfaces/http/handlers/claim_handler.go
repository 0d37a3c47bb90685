package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/turtacn/ClaimLens/internal/application/annotation"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ClaimLens/pkg/errors"
)

// ClaimHandler exposes the annotation service over HTTP.
type ClaimHandler struct {
	svc          annotation.Service
	logger       logging.Logger
	maxBodyBytes int64
}

func NewClaimHandler(svc annotation.Service, logger logging.Logger, maxBodyBytes int64) *ClaimHandler {
	return &ClaimHandler{
		svc:          svc,
		logger:       logging.OrNop(logger).Named("claim_handler"),
		maxBodyBytes: maxBodyBytes,
	}
}

// RegisterRoutes mounts the claim endpoints on r.
func (h *ClaimHandler) RegisterRoutes(r chi.Router) {
	r.Route("/claims", func(cr chi.Router) {
		cr.Post("/annotate", h.Annotate)
		cr.Get("/search", h.Search)
		cr.Get("/mentioning", h.Mentioning)

		cr.Route("/{claimID}", func(item chi.Router) {
			item.Get("/", h.Get)
			item.Get("/view", h.View)
			item.Get("/dependents", h.Dependents)
		})
	})
	r.Post("/claimsets/annotate", h.AnnotateSet)
}

// Annotate handles POST /claims/annotate.
func (h *ClaimHandler) Annotate(w http.ResponseWriter, r *http.Request) {
	var in annotation.Input
	if err := decodeJSON(w, r, h.maxBodyBytes, &in); err != nil {
		writeAppError(w, r, err)
		return
	}
	res, err := h.svc.Annotate(r.Context(), in)
	if err != nil {
		h.logFailure("annotate", err)
		writeAppError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Cached {
		status = http.StatusOK
	}
	writeData(w, r, status, res)
}

// AnnotateSet handles POST /claimsets/annotate. The body carries either the
// claims block as text or the already split claims.
func (h *ClaimHandler) AnnotateSet(w http.ResponseWriter, r *http.Request) {
	var in annotation.SetInput
	if err := decodeJSON(w, r, h.maxBodyBytes, &in); err != nil {
		writeAppError(w, r, err)
		return
	}
	res, err := h.svc.AnnotateSet(r.Context(), in)
	if err != nil {
		h.logFailure("annotate_set", err)
		writeAppError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, res)
}

// Get handles GET /claims/{claimID}.
func (h *ClaimHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := claimID(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, rec)
}

// View handles GET /claims/{claimID}/view and returns the word-level view.
func (h *ClaimHandler) View(w http.ResponseWriter, r *http.Request) {
	id, ok := claimID(w, r)
	if !ok {
		return
	}
	v, err := h.svc.View(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, v)
}

// Search handles GET /claims/search?q=<phrase>&limit=<n>.
func (h *ClaimHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeAppError(w, r, errors.New(errors.ErrCodeBadRequest, "query parameter q is required"))
		return
	}
	hits, err := h.svc.SearchPhrase(r.Context(), q, parseLimit(r))
	if err != nil {
		h.logFailure("search", err)
		writeAppError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, hits)
}

// Mentioning handles GET /claims/mentioning?np=<phrase>&limit=<n>.
func (h *ClaimHandler) Mentioning(w http.ResponseWriter, r *http.Request) {
	np := strings.TrimSpace(r.URL.Query().Get("np"))
	if np == "" {
		writeAppError(w, r, errors.New(errors.ErrCodeBadRequest, "query parameter np is required"))
		return
	}
	ids, err := h.svc.Mentioning(r.Context(), np, parseLimit(r))
	if err != nil {
		h.logFailure("mentioning", err)
		writeAppError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, ids)
}

// Dependents handles GET /claims/{claimID}/dependents.
func (h *ClaimHandler) Dependents(w http.ResponseWriter, r *http.Request) {
	id, ok := claimID(w, r)
	if !ok {
		return
	}
	ids, err := h.svc.Dependents(r.Context(), id)
	if err != nil {
		h.logFailure("dependents", err)
		writeAppError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, ids)
}

func claimID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "claimID")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeAppError(w, r, errors.New(errors.ErrCodeBadRequest, "invalid claim id").WithDetail(raw))
		return uuid.Nil, false
	}
	return id, true
}

// logFailure logs server-side failures; client errors are left to the
// request log.
func (h *ClaimHandler) logFailure(op string, err error) {
	if errors.HTTPStatusForCode(errors.GetCode(err)) < http.StatusInternalServerError {
		return
	}
	h.logger.Error("request failed", logging.String("operation", op), logging.Err(err))
}
