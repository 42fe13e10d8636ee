package closeday

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gbalekage/MY-POS-sub000/internal/platform/httpx"
	"github.com/gbalekage/MY-POS-sub000/internal/shared"
)

// Handler exposes day closure over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/close-day", func(r chi.Router) {
		r.Post("/{date}", h.closeDay)
		r.Get("/", h.listReports)
		r.Get("/{date}", h.getReport)
	})
}

func (h *Handler) closeDay(w http.ResponseWriter, r *http.Request) {
	var in CloseDayInput
	if err := httpx.DecodeValid(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	report, err := h.svc.CloseDay(r.Context(), chi.URLParam(r, "date"), in, shared.ActorFromContext(r.Context()))
	if err != nil {
		respondCloseDayError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.svc.ListReports(r.Context())
	if err != nil {
		respondCloseDayError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reports)
}

func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.GetReport(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		respondCloseDayError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func respondCloseDayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrReportNotFound):
		httpx.Problem(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, ErrAlreadyClosed):
		httpx.Problem(w, http.StatusConflict, "already closed", err.Error())
	case errors.Is(err, ErrTablesStillOpen):
		httpx.Problem(w, http.StatusConflict, "tables still open", err.Error())
	case errors.Is(err, ErrInvalidDate), errors.Is(err, ErrUnknownMethod):
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "unexpected failure")
	}
}
