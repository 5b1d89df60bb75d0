package workflow

import (
	"testing"
	"time"

	"ber-tracker/internal/apperr"
	"ber-tracker/internal/models"

	"github.com/google/uuid"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) bcr(t *testing.T, number string, src *models.Budget, dest *models.WorkElement, amount string) *models.BudgetChange {
	t.Helper()
	bc, err := f.svc.SubmitBudgetChange(f.ctx, BudgetChangeInput{
		BCRNumber:                number,
		SourceBudgetID:           src.ID,
		DestinationWorkElementID: dest.ID,
		TransferAmount:           dec(amount),
	}, alice)
	require.NoError(t, err)
	return bc
}

func TestBCR_TransferIntoExistingBudget(t *testing.T) {
	f := newFixture(t)
	p := f.approvedProject(t, alice, "Alpha")
	alpha := f.approvedBudget(t, f.workElement(t, p, "Alpha"), "10000")
	betaWE := f.workElement(t, p, "Beta")
	beta := f.approvedBudget(t, betaWE, "5000")

	bc := f.bcr(t, "BCR-001", alpha, betaWE, "2000")
	got, err := f.svc.DecideBudgetChange(f.ctx, bc.ID, models.StatusApproved, manager)
	require.NoError(t, err)
	require.NotNil(t, got.DestinationBudgetID)
	assert.Equal(t, beta.ID, *got.DestinationBudgetID)

	var src, dst models.Budget
	f.reload(t, &src, alpha.ID)
	f.reload(t, &dst, beta.ID)
	assertAmount(t, "8000", src.Amount)
	assertAmount(t, "7000", dst.Amount)
	assert.Equal(t, float64(2000), promtest.ToFloat64(f.metrics.FundsTransferred))

	var stored models.BudgetChange
	f.reload(t, &stored, bc.ID)
	assert.Equal(t, models.StatusApproved, stored.Status)
	require.NotNil(t, stored.DestinationBudgetID)
	assert.Equal(t, beta.ID, *stored.DestinationBudgetID)
}

func TestBCR_CreatesDestinationBudget(t *testing.T) {
	f := newFixture(t)
	p := f.approvedProject(t, alice, "Alpha")
	alpha := f.approvedBudget(t, f.workElement(t, p, "Alpha"), "10000")
	gamma := f.workElement(t, p, "Gamma")
	// a pending budget on the destination is not a transfer target
	pendingBudget, err := f.svc.SubmitBudget(f.ctx, BudgetInput{WorkElementID: gamma.ID, Amount: dec("300")}, alice)
	require.NoError(t, err)

	bc := f.bcr(t, "BCR-002", alpha, gamma, "2500.75")
	got, err := f.svc.DecideBudgetChange(f.ctx, bc.ID, models.StatusApproved, manager)
	require.NoError(t, err)
	require.NotNil(t, got.DestinationBudgetID)
	assert.NotEqual(t, pendingBudget.ID, *got.DestinationBudgetID)

	var created models.Budget
	f.reload(t, &created, *got.DestinationBudgetID)
	assert.Equal(t, gamma.ID, created.WorkElementID)
	assert.Equal(t, models.StatusApproved, created.Status)
	assert.Equal(t, "Created by BCR BCR-002", created.Description)
	assert.Equal(t, "alice", created.SubmittedBy)
	require.NotNil(t, created.ApprovedBy)
	assert.Equal(t, "manager1", *created.ApprovedBy)
	assertAmount(t, "2500.75", created.Amount)

	var src, pend models.Budget
	f.reload(t, &src, alpha.ID)
	f.reload(t, &pend, pendingBudget.ID)
	assertAmount(t, "7499.25", src.Amount)
	assertAmount(t, "300", pend.Amount)
}

func TestBCR_OldestApprovedBudgetReceives(t *testing.T) {
	f := newFixture(t)
	p := f.approvedProject(t, alice, "Alpha")
	alpha := f.approvedBudget(t, f.workElement(t, p, "Alpha"), "10000")
	betaWE := f.workElement(t, p, "Beta")
	older := f.approvedBudget(t, betaWE, "100")
	newer := f.approvedBudget(t, betaWE, "200")
	require.NoError(t, f.db.Model(&models.Budget{}).Where("id = ?", older.ID).
		Update("created_at", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)).Error)

	bc := f.bcr(t, "BCR-003", alpha, betaWE, "50")
	_, err := f.svc.DecideBudgetChange(f.ctx, bc.ID, models.StatusApproved, manager)
	require.NoError(t, err)

	var o, n models.Budget
	f.reload(t, &o, older.ID)
	f.reload(t, &n, newer.ID)
	assertAmount(t, "150", o.Amount)
	assertAmount(t, "200", n.Amount)
}

func TestBCR_InsufficientFunds(t *testing.T) {
	f := newFixture(t)
	p := f.approvedProject(t, alice, "Alpha")
	alpha := f.approvedBudget(t, f.workElement(t, p, "Alpha"), "1000")
	betaWE := f.workElement(t, p, "Beta")
	beta := f.approvedBudget(t, betaWE, "5000")

	bc := f.bcr(t, "BCR-004", alpha, betaWE, "1500")
	_, err := f.svc.DecideBudgetChange(f.ctx, bc.ID, models.StatusApproved, manager)
	requireCode(t, err, apperr.CodeInsufficientFunds)

	var src, dst models.Budget
	f.reload(t, &src, alpha.ID)
	f.reload(t, &dst, beta.ID)
	assertAmount(t, "1000", src.Amount)
	assertAmount(t, "5000", dst.Amount)

	var stored models.BudgetChange
	f.reload(t, &stored, bc.ID)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Nil(t, stored.DestinationBudgetID)
	assert.Zero(t, promtest.ToFloat64(f.metrics.FundsTransferred))

	// exact balance drains the source to zero
	exact := f.bcr(t, "BCR-005", alpha, betaWE, "1000")
	_, err = f.svc.DecideBudgetChange(f.ctx, exact.ID, models.StatusApproved, manager)
	require.NoError(t, err)
	f.reload(t, &src, alpha.ID)
	assert.True(t, src.Amount.IsZero())
}

func TestBCR_DeclineMovesNothing(t *testing.T) {
	f := newFixture(t)
	p := f.approvedProject(t, alice, "Alpha")
	alpha := f.approvedBudget(t, f.workElement(t, p, "Alpha"), "10000")
	gamma := f.workElement(t, p, "Gamma")

	bc := f.bcr(t, "BCR-006", alpha, gamma, "2000")
	got, err := f.svc.DecideBudgetChange(f.ctx, bc.ID, models.StatusDeclined, manager)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeclined, got.Status)
	assert.Nil(t, got.DestinationBudgetID)

	var src models.Budget
	f.reload(t, &src, alpha.ID)
	assertAmount(t, "10000", src.Amount)

	var count int64
	require.NoError(t, f.db.Model(&models.Budget{}).Where("work_element_id = ?", gamma.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestBCR_BetweenProjects(t *testing.T) {
	f := newFixture(t)
	alphaWE := f.workElement(t, f.approvedProject(t, alice, "Alpha"), "Alpha drilling")
	betaWE := f.workElement(t, f.approvedProject(t, alice, "Beta"), "Beta drilling")
	alpha := f.approvedBudget(t, alphaWE, "10000")
	beta := f.approvedBudget(t, betaWE, "5000")

	bc := f.bcr(t, "BCR-001", alpha, betaWE, "2000")
	got, err := f.svc.DecideBudgetChange(f.ctx, bc.ID, models.StatusApproved, manager)
	require.NoError(t, err)
	require.NotNil(t, got.DestinationBudgetID)
	assert.Equal(t, beta.ID, *got.DestinationBudgetID)

	var src, dst models.Budget
	f.reload(t, &src, alpha.ID)
	f.reload(t, &dst, beta.ID)
	assertAmount(t, "8000", src.Amount)
	assertAmount(t, "7000", dst.Amount)
}

func TestBCR_RedecideMovesNothing(t *testing.T) {
	f := newFixture(t)
	p := f.approvedProject(t, alice, "Alpha")
	alpha := f.approvedBudget(t, f.workElement(t, p, "Alpha"), "10000")
	betaWE := f.workElement(t, p, "Beta")
	beta := f.approvedBudget(t, betaWE, "5000")

	approved := f.bcr(t, "BCR-001", alpha, betaWE, "2000")
	_, err := f.svc.DecideBudgetChange(f.ctx, approved.ID, models.StatusApproved, manager)
	require.NoError(t, err)
	declined := f.bcr(t, "BCR-002", alpha, betaWE, "1000")
	_, err = f.svc.DecideBudgetChange(f.ctx, declined.ID, models.StatusDeclined, manager)
	require.NoError(t, err)

	for _, id := range []uuid.UUID{approved.ID, declined.ID} {
		for _, d := range []models.Status{models.StatusApproved, models.StatusDeclined} {
			_, err = f.svc.DecideBudgetChange(f.ctx, id, d, manager)
			requireCode(t, err, apperr.CodeInvalidState)
		}
	}

	var src, dst models.Budget
	f.reload(t, &src, alpha.ID)
	f.reload(t, &dst, beta.ID)
	assertAmount(t, "8000", src.Amount)
	assertAmount(t, "7000", dst.Amount)
	assert.Equal(t, float64(2000), promtest.ToFloat64(f.metrics.FundsTransferred))
	assert.Equal(t, int64(2), f.count(t, &models.Budget{}))

	var stored models.BudgetChange
	f.reload(t, &stored, declined.ID)
	assert.Equal(t, models.StatusDeclined, stored.Status)
	assert.Nil(t, stored.DestinationBudgetID)
}
