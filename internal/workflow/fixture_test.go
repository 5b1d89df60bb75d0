package workflow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ber-tracker/internal/apperr"
	"ber-tracker/internal/blob"
	"ber-tracker/internal/metrics"
	"ber-tracker/internal/models"
	"ber-tracker/internal/testutil"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	alice   = models.Actor{ID: "alice", Role: models.RoleUser}
	bob     = models.Actor{ID: "bob", Role: models.RoleUser}
	manager = models.Actor{ID: "manager1", Role: models.RoleManager}
	admin   = models.Actor{ID: "admin", Role: models.RoleAdmin}

	fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	ctx     context.Context
	db      *gorm.DB
	blobs   *blob.Memory
	metrics *metrics.Workflow
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	f := &fixture{
		ctx:     context.Background(),
		db:      db,
		blobs:   blob.NewMemory(),
		metrics: metrics.New(),
	}
	f.svc = NewService(db, f.blobs, f.metrics, zerolog.Nop(), WithClock(func() time.Time { return fixedNow }))
	return f
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertAmount(t *testing.T, want string, got fmt.Stringer) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(dec(got.String())), "want %s, got %s", want, got)
}

func requireCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperr.CodeOf(err), err.Error())
}

func (f *fixture) reload(t *testing.T, dest any, id uuid.UUID) {
	t.Helper()
	require.NoError(t, f.db.First(dest, "id = ?", id).Error)
}

func (f *fixture) approvedProject(t *testing.T, owner models.Actor, name string) *models.Project {
	t.Helper()
	p, err := f.svc.SubmitProject(f.ctx, ProjectInput{Name: name, Description: name + " field development"}, owner)
	require.NoError(t, err)
	p, err = f.svc.DecideProject(f.ctx, p.ID, models.StatusApproved, manager)
	require.NoError(t, err)
	return p
}

// workElement adds a task and one work element under an approved project.
func (f *fixture) workElement(t *testing.T, p *models.Project, name string) *models.WorkElement {
	t.Helper()
	owner := models.Actor{ID: p.SubmittedBy, Role: models.RoleUser}
	task, err := f.svc.SubmitTask(f.ctx, TaskInput{ProjectID: p.ID, Name: name + " task"}, owner)
	require.NoError(t, err)
	we, err := f.svc.SubmitWorkElement(f.ctx, WorkElementInput{TaskID: task.ID, Name: name}, owner)
	require.NoError(t, err)
	return we
}

func (f *fixture) approvedBudget(t *testing.T, we *models.WorkElement, amount string) *models.Budget {
	t.Helper()
	b, err := f.svc.SubmitBudget(f.ctx, BudgetInput{WorkElementID: we.ID, Amount: dec(amount), Description: we.Name + " budget"}, alice)
	require.NoError(t, err)
	b, err = f.svc.DecideBudget(f.ctx, b.ID, models.StatusApproved, manager)
	require.NoError(t, err)
	return b
}

func (f *fixture) approvedAFE(t *testing.T, b *models.Budget, amount string) *models.AFE {
	t.Helper()
	a, err := f.svc.SubmitAFE(f.ctx, AFEInput{BudgetID: b.ID, AFENumber: "AFE-" + amount, Title: "Drilling", Amount: dec(amount)}, alice)
	require.NoError(t, err)
	a, err = f.svc.DecideAFE(f.ctx, a.ID, models.StatusApproved, manager)
	require.NoError(t, err)
	return a
}

// ledgerChain builds project → budget → approved AFE with the given
// budget and AFE amounts.
func (f *fixture) ledgerChain(t *testing.T, budgetAmount, afeAmount string) (*models.Budget, *models.AFE) {
	t.Helper()
	p := f.approvedProject(t, alice, "Delta")
	we := f.workElement(t, p, "Wellhead")
	b := f.approvedBudget(t, we, budgetAmount)
	return b, f.approvedAFE(t, b, afeAmount)
}

func (f *fixture) invoice(t *testing.T, afe *models.AFE, number, amount string, actor models.Actor) (*models.Invoice, error) {
	t.Helper()
	return f.svc.SubmitInvoice(f.ctx, InvoiceInput{
		AFEID:         afe.ID,
		InvoiceNumber: number,
		Title:         "Rig hire",
		Amount:        dec(amount),
		Vendor:        "Acme Drilling",
	}, actor)
}

func (f *fixture) afeTotal(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	var a models.AFE
	f.reload(t, &a, id)
	return a.TotalInvoiced.Decimal
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}
