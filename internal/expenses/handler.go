package expenses

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gbalekage/MY-POS-sub000/internal/platform/httpx"
	"github.com/gbalekage/MY-POS-sub000/internal/shared"
)

// Handler exposes expense recording over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/expenses", func(r chi.Router) {
		r.Post("/", h.record)
		r.Get("/", h.list)
	})
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var in RecordInput
	if err := httpx.DecodeValid(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	expense, err := h.svc.Record(r.Context(), in, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "unexpected failure")
		return
	}
	httpx.JSON(w, http.StatusCreated, expense)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "invalid date", "expected YYYY-MM-DD")
			return
		}
		date = parsed
	}
	out, err := h.svc.ListByDate(r.Context(), date)
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "unexpected failure")
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}
