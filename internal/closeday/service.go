package closeday

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gbalekage/MY-POS-sub000/internal/observability"
	"github.com/gbalekage/MY-POS-sub000/internal/payments"
	"github.com/gbalekage/MY-POS-sub000/internal/printing"
	"github.com/gbalekage/MY-POS-sub000/internal/shared"
)

// Repository aggregates the day's trading records and persists closure
// reports. InsertGuarded must run the occupancy check and the insert in one
// transaction and surface ErrTablesStillOpen or ErrAlreadyClosed.
type Repository interface {
	SalesByMethod(ctx context.Context, date time.Time) (map[payments.Method]float64, error)
	SignedTotal(ctx context.Context, date time.Time) (float64, error)
	DiscountTotal(ctx context.Context, date time.Time) (float64, error)
	CancelledTotal(ctx context.Context, date time.Time) (float64, error)
	ExpensesTotal(ctx context.Context, date time.Time) (float64, error)
	SalesByStore(ctx context.Context, date time.Time) ([]StoreSales, error)
	SalesByAttendant(ctx context.Context, date time.Time) ([]AttendantSales, error)

	InsertGuarded(ctx context.Context, report Report) (int64, error)
	GetByDate(ctx context.Context, date string) (Report, error)
	List(ctx context.Context) ([]Report, error)
}

// Cache holds the closure report listing between reads.
type Cache interface {
	GetReports(ctx context.Context) ([]Report, bool)
	SetReports(ctx context.Context, reports []Report)
	Invalidate(ctx context.Context)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CloseDayInput declares the counted amounts per payment method, with an
// optional free-text remark from the manager closing the day.
type CloseDayInput struct {
	Declared map[string]float64 `json:"declaredAmounts" validate:"required"`
	Notes    string             `json:"notes"`
}

// Service reconciles and closes business days.
type Service struct {
	repo    Repository
	cache   Cache
	printer printing.Gateway
	audit   AuditPort
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(repo Repository, cache Cache, printer printing.Gateway, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		cache:   cache,
		printer: printer,
		audit:   audit,
		logger:  logger,
		now:     time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CloseDay reconciles one business date against the declared till amounts and
// freezes the result. All tables must be free and each date closes at most
// once.
func (s *Service) CloseDay(ctx context.Context, date string, in CloseDayInput, actor shared.Actor) (Report, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	for raw := range in.Declared {
		if !payments.Valid(payments.Method(raw)) {
			return Report{}, fmt.Errorf("%w: %q", ErrUnknownMethod, raw)
		}
	}

	var (
		salesByMethod map[payments.Method]float64
		signedTotal   float64
		discountTotal float64
		cancelled     float64
		expensesTotal float64
		stores        []StoreSales
		attendants    []AttendantSales
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { salesByMethod, err = s.repo.SalesByMethod(gctx, day); return })
	g.Go(func() (err error) { signedTotal, err = s.repo.SignedTotal(gctx, day); return })
	g.Go(func() (err error) { discountTotal, err = s.repo.DiscountTotal(gctx, day); return })
	g.Go(func() (err error) { cancelled, err = s.repo.CancelledTotal(gctx, day); return })
	g.Go(func() (err error) { expensesTotal, err = s.repo.ExpensesTotal(gctx, day); return })
	g.Go(func() (err error) { stores, err = s.repo.SalesByStore(gctx, day); return })
	g.Go(func() (err error) { attendants, err = s.repo.SalesByAttendant(gctx, day); return })
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{
		ReportDate:     date,
		SignedSales:    signedTotal,
		DiscountTotal:  discountTotal,
		CancelledTotal: cancelled,
		TotalExpenses:  expensesTotal,
		Stores:         stores,
		Attendants:     attendants,
		Notes:          in.Notes,
		ClosedByID:     actor.ID,
		ClosedByName:   actor.Name,
		ClosedAt:       s.now().UTC(),
	}
	// Computed totals come from sales alone. Expenses and collected bill
	// payments stay out of the per-method reconciliation and are reported as
	// their own aggregates.
	for _, method := range payments.Methods() {
		computed := salesByMethod[method]
		report.PaidSales += computed
		declared := in.Declared[string(method)]
		report.Methods = append(report.Methods, MethodSummary{
			Method:     method,
			Computed:   computed,
			Declared:   declared,
			Difference: declared - computed,
		})
		report.ComputedTotal += computed
		report.DeclaredTotal += declared
	}
	report.TotalSales = report.PaidSales + report.SignedSales + report.DiscountTotal
	report.TotalDifference = report.DeclaredTotal - report.ComputedTotal
	report.Status = statusFor(report.TotalDifference)

	report.ID, err = s.repo.InsertGuarded(ctx, report)
	if err != nil {
		return Report{}, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	observability.DaysClosed.WithLabelValues(string(report.Status)).Inc()
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "closeday:close",
			Entity:   "closure_report",
			EntityID: report.ReportDate,
			Meta:     map[string]any{"status": report.Status, "total_difference": report.TotalDifference},
		})
	}
	s.printReport(ctx, report)
	return report, nil
}

// GetReport returns the closure for one date.
func (s *Service) GetReport(ctx context.Context, date string) (Report, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return Report{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return s.repo.GetByDate(ctx, date)
}

// ListReports returns all closure reports, newest first, through the cache.
func (s *Service) ListReports(ctx context.Context) ([]Report, error) {
	if s.cache != nil {
		if reports, ok := s.cache.GetReports(ctx); ok {
			return reports, nil
		}
	}
	reports, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetReports(ctx, reports)
	}
	return reports, nil
}

func (s *Service) printReport(ctx context.Context, report Report) {
	if s.printer == nil {
		return
	}
	doc := printing.ClosureReport{
		ReportDate:      report.ReportDate,
		TotalSales:      report.TotalSales,
		TotalExpenses:   report.TotalExpenses,
		TotalDifference: report.TotalDifference,
		Status:          string(report.Status),
		ByMethod:        map[string]float64{},
		Notes:           report.Notes,
	}
	for _, m := range report.Methods {
		doc.ByMethod[string(m.Method)] = m.Computed
		if m.Method == payments.MethodCash {
			doc.DeclaredCash = m.Declared
			doc.ExpectedCash = m.Computed
		}
	}
	if err := s.printer.PrintClosureReport(ctx, doc); err != nil {
		s.logger.Warn("print closure report", slog.String("date", report.ReportDate), slog.Any("error", err))
	}
}
