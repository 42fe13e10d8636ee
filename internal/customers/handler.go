package customers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gbalekage/MY-POS-sub000/internal/platform/httpx"
)

// Handler exposes the customer registry over HTTP.
type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{customerID}", h.get)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	out, err := h.repo.List(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "unexpected failure")
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid customer id", err.Error())
		return
	}
	customer, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			httpx.Problem(w, http.StatusNotFound, "not found", err.Error())
			return
		}
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "unexpected failure")
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}
