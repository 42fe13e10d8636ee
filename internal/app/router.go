package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gbalekage/MY-POS-sub000/internal/closeday"
	"github.com/gbalekage/MY-POS-sub000/internal/customers"
	"github.com/gbalekage/MY-POS-sub000/internal/expenses"
	"github.com/gbalekage/MY-POS-sub000/internal/orders"
	"github.com/gbalekage/MY-POS-sub000/internal/settlement"
	"github.com/gbalekage/MY-POS-sub000/internal/stock"
	"github.com/gbalekage/MY-POS-sub000/internal/tables"
	"github.com/gbalekage/MY-POS-sub000/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	OrdersHandler     *orders.Handler
	SettlementHandler *settlement.Handler
	ExpensesHandler   *expenses.Handler
	CloseDayHandler   *closeday.Handler
	StockHandler      *stock.Handler
	TablesHandler     *tables.Handler
	CustomersHandler  *customers.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with the till defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if params.OrdersHandler != nil {
		params.OrdersHandler.MountRoutes(r)
	}
	if params.SettlementHandler != nil {
		params.SettlementHandler.MountRoutes(r)
	}
	if params.ExpensesHandler != nil {
		params.ExpensesHandler.MountRoutes(r)
	}
	if params.CloseDayHandler != nil {
		params.CloseDayHandler.MountRoutes(r)
	}
	if params.StockHandler != nil {
		params.StockHandler.MountRoutes(r)
	}
	if params.TablesHandler != nil {
		params.TablesHandler.MountRoutes(r)
	}
	if params.CustomersHandler != nil {
		params.CustomersHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(jr chi.Router) {
			params.JobHandler.MountRoutes(jr)
		})
	}

	return r
}
