package settlement

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gbalekage/MY-POS-sub000/internal/customers"
	"github.com/gbalekage/MY-POS-sub000/internal/orders"
	"github.com/gbalekage/MY-POS-sub000/internal/platform/httpx"
	"github.com/gbalekage/MY-POS-sub000/internal/shared"
	"github.com/gbalekage/MY-POS-sub000/internal/tables"
)

// Handler exposes settlement over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// MountRoutes registers the settlement routes. The wildcard directly under
// /orders shares the {id} name with the order engine's routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/orders/{id}/pay", h.payOrder)
	r.Post("/orders/sign/{id}/{customerID}", h.signBill)
	r.Post("/orders/pay/{signedBillID}", h.receivePayment)
	r.Get("/sales", h.listSales)
	r.Get("/signed-bills", h.listSignedBills)
}

func (h *Handler) payOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}
	var in PayInput
	if err := httpx.DecodeValid(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	sale, err := h.svc.PayOrder(r.Context(), orderID, in, shared.ActorFromContext(r.Context()))
	if err != nil {
		respondSettlementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) signBill(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}
	customerID, err := pathID(r, "customerID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid customer id", err.Error())
		return
	}
	bill, err := h.svc.SignBill(r.Context(), orderID, customerID, shared.ActorFromContext(r.Context()))
	if err != nil {
		respondSettlementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) receivePayment(w http.ResponseWriter, r *http.Request) {
	billID, err := pathID(r, "signedBillID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid signed bill id", err.Error())
		return
	}
	var in PayInput
	if err := httpx.DecodeValid(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	payment, err := h.svc.ReceivePayment(r.Context(), billID, in, shared.ActorFromContext(r.Context()))
	if err != nil {
		respondSettlementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

// listSales returns the sales for one date, defaulting to today.
func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "invalid date", "expected YYYY-MM-DD")
			return
		}
		date = parsed
	}
	sales, err := h.svc.ListSales(r.Context(), date)
	if err != nil {
		respondSettlementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sales)
}

func (h *Handler) listSignedBills(w http.ResponseWriter, r *http.Request) {
	filter := BillFilter{OnlyOutstanding: r.URL.Query().Get("status") == "outstanding"}
	if raw := r.URL.Query().Get("customer"); raw != "" {
		customerID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "invalid customer id", err.Error())
			return
		}
		filter.CustomerID = customerID
	}
	bills, err := h.svc.ListSignedBills(r.Context(), filter)
	if err != nil {
		respondSettlementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bills)
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func respondSettlementError(w http.ResponseWriter, err error) {
	var payErr *InsufficientPaymentError
	switch {
	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, ErrSaleNotFound),
		errors.Is(err, ErrSignedBillNotFound),
		errors.Is(err, customers.ErrCustomerNotFound),
		errors.Is(err, tables.ErrTableNotFound):
		httpx.Problem(w, http.StatusNotFound, "not found", err.Error())
	case errors.As(err, &payErr):
		httpx.ProblemWith(w, http.StatusUnprocessableEntity, "insufficient payment", err.Error(), map[string]any{
			"required":  payErr.Required,
			"tendered":  payErr.Tendered,
			"remaining": payErr.Remaining,
		})
	case errors.Is(err, ErrAlreadySettled):
		httpx.Problem(w, http.StatusConflict, "already settled", err.Error())
	case errors.Is(err, ErrInvalidMethod):
		httpx.Problem(w, http.StatusBadRequest, "invalid payment method", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "internal error", "unexpected failure")
	}
}
