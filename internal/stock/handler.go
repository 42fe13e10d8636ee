package stock

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gbalekage/MY-POS-sub000/internal/platform/httpx"
)

// Handler exposes the menu over HTTP.
type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{itemID}", h.get)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	out, err := h.repo.ListItems(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "unexpected failure")
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid item id", err.Error())
		return
	}
	item, err := h.repo.GetItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			httpx.Problem(w, http.StatusNotFound, "not found", err.Error())
			return
		}
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "unexpected failure")
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}
