package orders

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gbalekage/MY-POS-sub000/internal/platform/httpx"
	"github.com/gbalekage/MY-POS-sub000/internal/shared"
	"github.com/gbalekage/MY-POS-sub000/internal/tables"
)

// Handler exposes the order engine over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// MountRoutes registers the order routes. The wildcard directly under
// /orders is named {id} in every pattern because chi requires one name per
// position; it is a table id on the add-items route and an order id
// everywhere else.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/orders", h.placeOrder)
	r.Post("/orders/{id}", h.addItems)
	r.Get("/orders/{id}", h.getOrder)
	r.Put("/orders/{id}/cancel-items", h.cancelItems)
	r.Post("/orders/break-items/{id}", h.breakItem)
	r.Post("/orders/{id}/discount", h.discount)
	r.Post("/orders/split-bill/{id}", h.splitBill)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var in PlaceOrderInput
	if err := httpx.DecodeValid(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	order, err := h.svc.PlaceOrder(r.Context(), in, shared.ActorFromContext(r.Context()))
	if err != nil {
		respondOrderError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) addItems(w http.ResponseWriter, r *http.Request) {
	tableID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid table id", err.Error())
		return
	}
	var in AddItemsInput
	if err := httpx.DecodeValid(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	order, err := h.svc.AddItems(r.Context(), tableID, in, shared.ActorFromContext(r.Context()))
	if err != nil {
		respondOrderError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}
	order, err := h.svc.Get(r.Context(), orderID)
	if err != nil {
		respondOrderError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) cancelItems(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}
	var in CancelItemsInput
	if err := httpx.DecodeValid(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	order, err := h.svc.CancelItems(r.Context(), orderID, in, shared.ActorFromContext(r.Context()))
	if err != nil {
		respondOrderError(w, err)
		return
	}
	if order.ID == 0 {
		httpx.JSON(w, http.StatusOK, map[string]any{"orderId": orderID, "deleted": true})
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) breakItem(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}
	var in BreakItemInput
	if err := httpx.DecodeValid(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	order, err := h.svc.BreakItem(r.Context(), orderID, in, shared.ActorFromContext(r.Context()))
	if err != nil {
		respondOrderError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) discount(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}
	var in DiscountInput
	if err := httpx.DecodeValid(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	order, discount, err := h.svc.Discount(r.Context(), orderID, in, shared.ActorFromContext(r.Context()))
	if err != nil {
		respondOrderError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": order, "discount": discount})
}

func (h *Handler) splitBill(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}
	var in SplitBillInput
	if err := httpx.DecodeValid(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	source, split, err := h.svc.SplitBill(r.Context(), orderID, in, shared.ActorFromContext(r.Context()))
	if err != nil {
		respondOrderError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sourceOrder": source, "newOrder": split})
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// respondOrderError maps order engine failures onto problem responses.
func respondOrderError(w http.ResponseWriter, err error) {
	var stockErr *InsufficientStockError
	switch {
	case IsNotFound(err):
		httpx.Problem(w, http.StatusNotFound, "not found", err.Error())
	case errors.As(err, &stockErr):
		httpx.ProblemWith(w, http.StatusConflict, "insufficient stock", err.Error(), map[string]any{
			"itemId":    stockErr.ItemID,
			"itemName":  stockErr.ItemName,
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		})
	case errors.Is(err, tables.ErrTableOccupied), errors.Is(err, tables.ErrTableNotOccupied):
		httpx.Problem(w, http.StatusConflict, "table state conflict", err.Error())
	case errors.Is(err, ErrTooMuchToCancel), errors.Is(err, ErrInvalidBreakQuantity),
		errors.Is(err, ErrInvalidDiscount), errors.Is(err, ErrInvalidSplit):
		httpx.Problem(w, http.StatusUnprocessableEntity, "invalid operation", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "unexpected failure")
	}
}
