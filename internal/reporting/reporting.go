// Package reporting serves the admin read views: dashboard totals and the
// approved-record listings filtered by date range and approving manager.
// Nothing here writes.
package reporting

import (
	"context"
	"time"

	"ber-tracker/internal/apperr"
	"ber-tracker/internal/database"
	"ber-tracker/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Reporter struct {
	db  *gorm.DB
	log zerolog.Logger
}

func New(db *gorm.DB, log zerolog.Logger) *Reporter {
	return &Reporter{db: db, log: log.With().Str("component", "reporting").Logger()}
}

// Filter narrows a listing. From and To are inclusive calendar dates (UTC);
// Manager matches approved_by.
type Filter struct {
	From    *time.Time
	To      *time.Time
	Manager string
}

func (f Filter) apply(q *gorm.DB, dateCol, managerCol string) *gorm.DB {
	if f.From != nil {
		q = q.Where(dateCol+" >= ?", day(*f.From))
	}
	if f.To != nil {
		q = q.Where(dateCol+" < ?", day(*f.To).AddDate(0, 0, 1))
	}
	if f.Manager != "" {
		q = q.Where(managerCol+" = ?", f.Manager)
	}
	return q
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func requireAdmin(actor models.Actor) error {
	if actor.ID == "" || !actor.IsAdmin() {
		return apperr.Forbidden("admins only")
	}
	return nil
}

func (r *Reporter) internal(op string, err error) error {
	r.log.Error().Err(err).Str("op", op).Msg("report query failed")
	return apperr.Internal("failed to load "+op, err)
}

type Dashboard struct {
	ApprovedProjects    int64           `json:"approved_projects"`
	ApprovedBudgets     int64           `json:"approved_budgets"`
	ApprovedAFEs        int64           `json:"approved_afes"`
	ApprovedInvoices    int64           `json:"approved_invoices"`
	ApprovedBudgetTotal decimal.Decimal `json:"approved_budget_total"`
	ProductionCost      decimal.Decimal `json:"production_cost"`
	TotalProfit         decimal.Decimal `json:"total_profit"`
}

func (r *Reporter) DashboardMetrics(ctx context.Context, actor models.Actor) (*Dashboard, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	db := r.db.WithContext(ctx)
	var out Dashboard

	counts := []struct {
		model any
		dest  *int64
	}{
		{&models.Project{}, &out.ApprovedProjects},
		{&models.Budget{}, &out.ApprovedBudgets},
		{&models.AFE{}, &out.ApprovedAFEs},
		{&models.Invoice{}, &out.ApprovedInvoices},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Where("status = ?", models.StatusApproved).Count(c.dest).Error; err != nil {
			return nil, r.internal("dashboard metrics", err)
		}
	}

	// Sums are taken in decimal rather than SQL so sqlite's REAL affinity
	// cannot round them.
	var budgets []models.Budget
	if err := db.Select("amount").Where("status = ?", models.StatusApproved).Find(&budgets).Error; err != nil {
		return nil, r.internal("dashboard metrics", err)
	}
	out.ApprovedBudgetTotal = decimal.Zero
	for _, b := range budgets {
		out.ApprovedBudgetTotal = out.ApprovedBudgetTotal.Add(b.Amount.Decimal)
	}

	var production []models.Production
	if err := db.Select("price_per_barrel", "number_of_barrels", "cost").Find(&production).Error; err != nil {
		return nil, r.internal("dashboard metrics", err)
	}
	out.ProductionCost, out.TotalProfit = decimal.Zero, decimal.Zero
	for i := range production {
		out.ProductionCost = out.ProductionCost.Add(production[i].Cost.Decimal)
		out.TotalProfit = out.TotalProfit.Add(production[i].Profit())
	}
	return &out, nil
}

// ApprovedProjects filters on approved_at.
func (r *Reporter) ApprovedProjects(ctx context.Context, actor models.Actor, f Filter) ([]models.Project, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	q := r.db.WithContext(ctx).Where("status = ?", models.StatusApproved)
	var out []models.Project
	if err := f.apply(q, "approved_at", "approved_by").Order("approved_at desc").Find(&out).Error; err != nil {
		return nil, r.internal("approved projects", err)
	}
	return out, nil
}

type BudgetRow struct {
	ID              uuid.UUID       `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	SubmittedBy     string          `json:"submitted_by"`
	ApprovedBy      string          `json:"approved_by"`
	ApprovedAt      *time.Time      `json:"approved_at"`
	WorkElementName string          `json:"work_element_name"`
	ProjectName     string          `json:"project_name"`
}

func (r *Reporter) ApprovedBudgets(ctx context.Context, actor models.Actor, f Filter) ([]BudgetRow, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	q := r.db.WithContext(ctx).
		Table("budgets AS b").
		Select("b.id, b.amount, b.description, b.submitted_by, b.approved_by, b.approved_at, " +
			"we.name AS work_element_name, p.name AS project_name").
		Joins("JOIN work_elements we ON we.id = b.work_element_id").
		Joins("JOIN tasks t ON t.id = we.task_id").
		Joins("JOIN projects p ON p.id = t.project_id").
		Where("b.status = ?", models.StatusApproved)

	var out []BudgetRow
	if err := f.apply(q, "b.approved_at", "b.approved_by").Order("b.approved_at desc").Scan(&out).Error; err != nil {
		return nil, r.internal("approved budgets", err)
	}
	return out, nil
}

type ProductionRow struct {
	ID              uuid.UUID       `json:"id"`
	ProjectID       uuid.UUID       `json:"project_id"`
	ProjectName     string          `json:"project_name"`
	ProjectManager  string          `json:"project_manager"`
	ProductionDate  time.Time       `json:"production_date"`
	PricePerBarrel  decimal.Decimal `json:"price_per_barrel"`
	NumberOfBarrels int64           `json:"number_of_barrels"`
	Cost            decimal.Decimal `json:"cost"`
	Revenue         decimal.Decimal `json:"revenue" gorm:"-"`
	Profit          decimal.Decimal `json:"profit" gorm:"-"`
}

// ProductionData filters on production_date and on the manager who
// approved the owning project.
func (r *Reporter) ProductionData(ctx context.Context, actor models.Actor, f Filter) ([]ProductionRow, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	q := r.db.WithContext(ctx).
		Table("production AS pr").
		Select("pr.id, pr.project_id, p.name AS project_name, p.approved_by AS project_manager, " +
			"pr.production_date, pr.price_per_barrel, pr.number_of_barrels, pr.cost").
		Joins("JOIN projects p ON p.id = pr.project_id")

	var out []ProductionRow
	if err := f.apply(q, "pr.production_date", "p.approved_by").Order("pr.production_date desc").Scan(&out).Error; err != nil {
		return nil, r.internal("production data", err)
	}
	for i := range out {
		row := models.Production{
			PricePerBarrel:  models.NewMoney(out[i].PricePerBarrel),
			NumberOfBarrels: out[i].NumberOfBarrels,
			Cost:            models.NewMoney(out[i].Cost),
		}
		out[i].Revenue = row.Revenue()
		out[i].Profit = row.Profit()
	}
	return out, nil
}

// BudgetChanges lists BCRs in every status, filtered on submission time.
func (r *Reporter) BudgetChanges(ctx context.Context, actor models.Actor, f Filter) ([]models.BudgetChange, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var out []models.BudgetChange
	q := f.apply(r.db.WithContext(ctx), "created_at", "approved_by")
	if err := q.Order("created_at desc").Find(&out).Error; err != nil {
		return nil, r.internal("budget changes", err)
	}
	return out, nil
}

// AuditTrail returns the newest audit rows, optionally for one entity.
func (r *Reporter) AuditTrail(ctx context.Context, actor models.Actor, entity string, entityID uuid.UUID, limit int) ([]models.AuditLog, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	logs, err := database.ListAuditLogs(r.db.WithContext(ctx), entity, entityID, limit)
	if err != nil {
		return nil, r.internal("audit trail", err)
	}
	return logs, nil
}
