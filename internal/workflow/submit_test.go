package workflow

import (
	"testing"
	"time"

	"ber-tracker/internal/apperr"
	"ber-tracker/internal/database"
	"ber-tracker/internal/models"

	"github.com/google/uuid"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitProject(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.SubmitProject(f.ctx, ProjectInput{Name: " Alpha ", Description: "Offshore block"}, alice)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, "Alpha", p.Name)
	assert.Equal(t, models.StatusPending, p.Status)
	assert.Equal(t, "alice", p.SubmittedBy)
	assert.Nil(t, p.ApprovedBy)

	logs, err := database.ListAuditLogs(f.db, string(KindProject), p.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "submit", logs[0].Action)
	assert.Equal(t, float64(1), promtest.ToFloat64(f.metrics.Submissions.WithLabelValues("project")))
}

func TestSubmitProject_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SubmitProject(f.ctx, ProjectInput{Description: "x"}, alice)
	requireCode(t, err, apperr.CodeValidation)
	assert.Equal(t, "name", err.(*apperr.Error).Field)

	_, err = f.svc.SubmitProject(f.ctx, ProjectInput{Name: "x", Description: "  "}, alice)
	requireCode(t, err, apperr.CodeValidation)

	_, err = f.svc.SubmitProject(f.ctx, ProjectInput{Name: "x", Description: "y"}, models.Actor{})
	requireCode(t, err, apperr.CodeAuthorization)

	var count int64
	require.NoError(t, f.db.Model(&models.Project{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, float64(1), promtest.ToFloat64(f.metrics.Errors.WithLabelValues("submit_project", "AUTHORIZATION")))
}

func TestSubmitTask_RequiresApprovedOwnedProject(t *testing.T) {
	f := newFixture(t)

	pending, err := f.svc.SubmitProject(f.ctx, ProjectInput{Name: "Pending", Description: "d"}, alice)
	require.NoError(t, err)
	_, err = f.svc.SubmitTask(f.ctx, TaskInput{ProjectID: pending.ID, Name: "Survey"}, alice)
	requireCode(t, err, apperr.CodePrecondition)

	approved := f.approvedProject(t, alice, "Alpha")
	_, err = f.svc.SubmitTask(f.ctx, TaskInput{ProjectID: approved.ID, Name: "Survey"}, bob)
	requireCode(t, err, apperr.CodePrecondition)

	_, err = f.svc.SubmitTask(f.ctx, TaskInput{ProjectID: uuid.New(), Name: "Survey"}, alice)
	requireCode(t, err, apperr.CodeNotFound)
	assert.Equal(t, "project not found", err.Error())

	_, err = f.svc.SubmitTask(f.ctx, TaskInput{ProjectID: approved.ID}, alice)
	requireCode(t, err, apperr.CodeValidation)

	task, err := f.svc.SubmitTask(f.ctx, TaskInput{ProjectID: approved.ID, Name: "Survey"}, alice)
	require.NoError(t, err)
	assert.Equal(t, approved.ID, task.ProjectID)
	assert.Equal(t, "alice", task.SubmittedBy)
}

func TestSubmitBudget_ProjectMustBeApproved(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.SubmitProject(f.ctx, ProjectInput{Name: "Pending", Description: "d"}, alice)
	require.NoError(t, err)
	// Children of an unapproved project can only exist through direct inserts.
	task := models.Task{ProjectID: p.ID, Name: "t", SubmittedBy: "alice"}
	require.NoError(t, f.db.Create(&task).Error)
	we := models.WorkElement{TaskID: task.ID, Name: "w", SubmittedBy: "alice"}
	require.NoError(t, f.db.Create(&we).Error)

	_, err = f.svc.SubmitBudget(f.ctx, BudgetInput{WorkElementID: we.ID, Amount: dec("100")}, alice)
	requireCode(t, err, apperr.CodePrecondition)
	assert.Equal(t, "associated project is not approved, cannot submit budget", err.Error())

	_, err = f.svc.SubmitWorkElement(f.ctx, WorkElementInput{TaskID: task.ID, Name: "w2"}, alice)
	requireCode(t, err, apperr.CodePrecondition)
}

func TestSubmitBudget_Validation(t *testing.T) {
	f := newFixture(t)
	we := f.workElement(t, f.approvedProject(t, alice, "Alpha"), "Drilling")

	_, err := f.svc.SubmitBudget(f.ctx, BudgetInput{WorkElementID: we.ID, Amount: dec("-1")}, alice)
	requireCode(t, err, apperr.CodeValidation)

	_, err = f.svc.SubmitBudget(f.ctx, BudgetInput{WorkElementID: uuid.New(), Amount: dec("1")}, alice)
	requireCode(t, err, apperr.CodeNotFound)

	b, err := f.svc.SubmitBudget(f.ctx, BudgetInput{WorkElementID: we.ID, Amount: dec("0")}, alice)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, b.Status)
}

func TestSubmitAFE(t *testing.T) {
	f := newFixture(t)
	we := f.workElement(t, f.approvedProject(t, alice, "Alpha"), "Drilling")

	pendingBudget, err := f.svc.SubmitBudget(f.ctx, BudgetInput{WorkElementID: we.ID, Amount: dec("1000")}, alice)
	require.NoError(t, err)
	_, err = f.svc.SubmitAFE(f.ctx, AFEInput{BudgetID: pendingBudget.ID, Title: "Casing", Amount: dec("10")}, alice)
	requireCode(t, err, apperr.CodePrecondition)

	b := f.approvedBudget(t, we, "100000")

	a, err := f.svc.SubmitAFE(f.ctx, AFEInput{
		BudgetID:  b.ID,
		AFENumber: "AFE-1",
		Title:     "Casing",
		Unit:      "joint",
		Quantity:  dec("10"),
		UnitPrice: dec("250.50"),
	}, alice)
	require.NoError(t, err)
	assertAmount(t, "2505", a.Amount)
	assert.True(t, a.TotalInvoiced.IsZero())

	_, err = f.svc.SubmitAFE(f.ctx, AFEInput{BudgetID: b.ID, Title: "Empty"}, alice)
	requireCode(t, err, apperr.CodeValidation)

	_, err = f.svc.SubmitAFE(f.ctx, AFEInput{BudgetID: b.ID, Amount: dec("5")}, alice)
	requireCode(t, err, apperr.CodeValidation)
}

func TestSubmitBudgetChange_Validation(t *testing.T) {
	f := newFixture(t)
	p := f.approvedProject(t, alice, "Alpha")
	src := f.approvedBudget(t, f.workElement(t, p, "Alpha WE"), "10000")
	dest := f.workElement(t, p, "Beta WE")

	in := BudgetChangeInput{
		BCRNumber:                "BCR-001",
		SourceBudgetID:           src.ID,
		DestinationWorkElementID: dest.ID,
		TransferAmount:           dec("2000"),
		Reason:                   "rebalance",
	}
	bc, err := f.svc.SubmitBudgetChange(f.ctx, in, alice)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, bc.Status)
	assert.Nil(t, bc.DestinationBudgetID)

	_, err = f.svc.SubmitBudgetChange(f.ctx, in, alice)
	requireCode(t, err, apperr.CodeValidation)
	assert.Equal(t, "bcr_number", err.(*apperr.Error).Field)

	same := in
	same.BCRNumber = "BCR-002"
	same.DestinationWorkElementID = src.WorkElementID
	_, err = f.svc.SubmitBudgetChange(f.ctx, same, alice)
	requireCode(t, err, apperr.CodeValidation)

	zero := in
	zero.BCRNumber = "BCR-003"
	zero.TransferAmount = dec("0")
	_, err = f.svc.SubmitBudgetChange(f.ctx, zero, alice)
	requireCode(t, err, apperr.CodeValidation)

	missing := in
	missing.BCRNumber = "BCR-004"
	missing.DestinationWorkElementID = uuid.New()
	_, err = f.svc.SubmitBudgetChange(f.ctx, missing, alice)
	requireCode(t, err, apperr.CodeNotFound)

	pendingSrc, err := f.svc.SubmitBudget(f.ctx, BudgetInput{WorkElementID: src.WorkElementID, Amount: dec("50")}, alice)
	require.NoError(t, err)
	unapproved := in
	unapproved.BCRNumber = "BCR-005"
	unapproved.SourceBudgetID = pendingSrc.ID
	_, err = f.svc.SubmitBudgetChange(f.ctx, unapproved, alice)
	requireCode(t, err, apperr.CodePrecondition)
}

func TestSubmitProduction(t *testing.T) {
	f := newFixture(t)
	p := f.approvedProject(t, alice, "Alpha")

	pr, err := f.svc.SubmitProduction(f.ctx, ProductionInput{
		ProjectID:       p.ID,
		PricePerBarrel:  dec("80"),
		NumberOfBarrels: 1000,
		Cost:            dec("30000"),
		ProductionDate:  time.Date(2024, 2, 10, 15, 0, 0, 0, time.UTC),
	}, bob)
	require.NoError(t, err)
	assertAmount(t, "50000", pr.Profit())
	assert.Equal(t, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), pr.ProductionDate)

	_, err = f.svc.SubmitProduction(f.ctx, ProductionInput{ProjectID: p.ID, PricePerBarrel: dec("80"), ProductionDate: fixedNow}, bob)
	requireCode(t, err, apperr.CodeValidation)

	pending, err := f.svc.SubmitProject(f.ctx, ProjectInput{Name: "P", Description: "d"}, alice)
	require.NoError(t, err)
	_, err = f.svc.SubmitProduction(f.ctx, ProductionInput{ProjectID: pending.ID, NumberOfBarrels: 1, ProductionDate: fixedNow}, alice)
	requireCode(t, err, apperr.CodePrecondition)
}

func TestSubmitAFE_ProjectMustBeApproved(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.SubmitProject(f.ctx, ProjectInput{Name: "Pending", Description: "d"}, alice)
	require.NoError(t, err)
	task := models.Task{ProjectID: p.ID, Name: "t", SubmittedBy: "alice"}
	require.NoError(t, f.db.Create(&task).Error)
	we := models.WorkElement{TaskID: task.ID, Name: "w", SubmittedBy: "alice"}
	require.NoError(t, f.db.Create(&we).Error)
	b := models.Budget{
		Approval:      models.Approval{Status: models.StatusApproved, SubmittedBy: "alice"},
		WorkElementID: we.ID,
		Amount:        models.NewMoney(dec("1000")),
	}
	require.NoError(t, f.db.Create(&b).Error)

	_, err = f.svc.SubmitAFE(f.ctx, AFEInput{BudgetID: b.ID, Title: "Casing", Amount: dec("10")}, alice)
	requireCode(t, err, apperr.CodePrecondition)
	assert.Equal(t, "associated project is not approved, cannot submit AFE", err.Error())

	_, err = f.svc.DecideProject(f.ctx, p.ID, models.StatusDeclined, manager)
	require.NoError(t, err)
	_, err = f.svc.SubmitAFE(f.ctx, AFEInput{BudgetID: b.ID, Title: "Casing", Amount: dec("10")}, alice)
	requireCode(t, err, apperr.CodePrecondition)
	assert.Zero(t, f.count(t, &models.AFE{}))
}

func TestSubmit_FailedPreconditionCreatesNoRow(t *testing.T) {
	f := newFixture(t)

	pendingProject, err := f.svc.SubmitProject(f.ctx, ProjectInput{Name: "Pending", Description: "d"}, alice)
	require.NoError(t, err)
	p := f.approvedProject(t, alice, "Alpha")
	we := f.workElement(t, p, "Drilling")
	pendingBudget, err := f.svc.SubmitBudget(f.ctx, BudgetInput{WorkElementID: we.ID, Amount: dec("500")}, alice)
	require.NoError(t, err)
	b := f.approvedBudget(t, we, "1000")
	pendingAFE, err := f.svc.SubmitAFE(f.ctx, AFEInput{BudgetID: b.ID, Title: "Pending", Amount: dec("100")}, alice)
	require.NoError(t, err)
	afe := f.approvedAFE(t, b, "200")

	tables := []any{
		&models.Task{}, &models.WorkElement{}, &models.Budget{}, &models.BudgetChange{},
		&models.AFE{}, &models.Invoice{}, &models.AFEOffset{}, &models.AuditLog{},
	}
	before := make([]int64, len(tables))
	for i, m := range tables {
		before[i] = f.count(t, m)
	}

	_, err = f.svc.SubmitTask(f.ctx, TaskInput{ProjectID: pendingProject.ID, Name: "Survey"}, alice)
	requireCode(t, err, apperr.CodePrecondition)
	_, err = f.svc.SubmitAFE(f.ctx, AFEInput{BudgetID: pendingBudget.ID, Title: "Casing", Amount: dec("10")}, alice)
	requireCode(t, err, apperr.CodePrecondition)
	_, err = f.svc.SubmitBudgetChange(f.ctx, BudgetChangeInput{
		BCRNumber:                "BCR-001",
		SourceBudgetID:           pendingBudget.ID,
		DestinationWorkElementID: f.workElement(t, p, "Other").ID,
		TransferAmount:           dec("10"),
	}, alice)
	requireCode(t, err, apperr.CodePrecondition)
	_, err = f.invoice(t, pendingAFE, "INV-1", "10", alice)
	requireCode(t, err, apperr.CodePrecondition)
	_, err = f.invoice(t, afe, "INV-2", "200.01", alice)
	requireCode(t, err, apperr.CodeLimitExceeded)

	// workElement above adds one task, one work element and their audit rows
	added := map[int]int64{0: 1, 1: 1, 7: 2}
	for i, m := range tables {
		assert.Equalf(t, before[i]+added[i], f.count(t, m), "%T", m)
	}
}

func TestSubmitBudget_AmountPrecision(t *testing.T) {
	f := newFixture(t)
	we := f.workElement(t, f.approvedProject(t, alice, "Alpha"), "Drilling")

	b := f.approvedBudget(t, we, "1234567890123456.78")
	var stored models.Budget
	f.reload(t, &stored, b.ID)
	assertAmount(t, "1234567890123456.78", stored.Amount)

	_, err := f.svc.SubmitBudget(f.ctx, BudgetInput{WorkElementID: we.ID, Amount: dec("10000000000000000")}, alice)
	requireCode(t, err, apperr.CodeValidation)
	assert.Equal(t, "amount", err.(*apperr.Error).Field)

	_, err = f.invoice(t, f.approvedAFE(t, b, "100"), "INV-1", "99999999999999999", alice)
	requireCode(t, err, apperr.CodeValidation)
}
