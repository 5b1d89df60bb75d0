package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"ber-tracker/internal/apperr"
	"ber-tracker/internal/blob"
	"ber-tracker/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Invoices are offset against their AFE at submission time, so
// AFE.TotalInvoiced covers pending and approved invoices together and the
// ceiling check stays live for every new submission. All writes to
// TotalInvoiced go through postOffset, which also appends to afe_offsets.

type Attachment struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type InvoiceInput struct {
	AFEID          uuid.UUID       `json:"afe_id"`
	InvoiceNumber  string          `json:"invoice_number"`
	Title          string          `json:"invoice_title"`
	InvoiceDate    *time.Time      `json:"invoice_date"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	Vendor         string          `json:"vendor"`
	UserDepartment string          `json:"user_department"`
	ContractNumber string          `json:"contract_number"`

	Attachment *Attachment `json:"-"`
}

func (in InvoiceInput) validate() error {
	if err := requiredID("afe_id", in.AFEID); err != nil {
		return err
	}
	if err := required("invoice_number", in.InvoiceNumber); err != nil {
		return err
	}
	if !in.Amount.IsPositive() {
		return apperr.InvalidInput("amount", "must be greater than 0")
	}
	return inRange("amount", in.Amount)
}

// SubmitInvoice records a pending invoice against an approved AFE and
// offsets its amount immediately. An attachment is written to the blob
// store first; only the returned key is persisted.
func (s *Service) SubmitInvoice(ctx context.Context, in InvoiceInput, actor models.Actor) (*models.Invoice, error) {
	const op = "submit_invoice"
	if err := requireActor(actor); err != nil {
		return nil, s.fail(op, err)
	}
	if err := in.validate(); err != nil {
		return nil, s.fail(op, err)
	}
	amount := in.Amount.Round(2)

	var filePath *string
	if in.Attachment != nil && in.Attachment.Body != nil {
		key := blob.NewKey("invoices", in.Attachment.Filename)
		stored, err := s.blobs.Put(ctx, key, in.Attachment.Body, in.Attachment.ContentType)
		if err != nil {
			return nil, s.fail(op, apperr.Internal("failed to store invoice file", err))
		}
		filePath = &stored
	}

	var (
		inv *models.Invoice
		afe *models.AFE
	)
	err := s.submitThen(ctx, KindInvoice, actor, func(tx *gorm.DB) (entity, error) {
		a, p, err := projectOfAFE(tx, in.AFEID)
		if err != nil {
			return nil, err
		}
		if err := requireApproved(p, "invoice"); err != nil {
			return nil, err
		}
		if a.Status != models.StatusApproved {
			return nil, apperr.Precondition("AFE is not approved, cannot submit invoice")
		}
		if err := checkCeiling(a, amount); err != nil {
			return nil, err
		}
		afe = a
		var invoiceDate *time.Time
		if in.InvoiceDate != nil {
			d := in.InvoiceDate.UTC().Truncate(24 * time.Hour)
			invoiceDate = &d
		}
		inv = &models.Invoice{
			Approval:       pending(actor),
			AFEID:          a.ID,
			InvoiceNumber:  strings.TrimSpace(in.InvoiceNumber),
			Title:          strings.TrimSpace(in.Title),
			InvoiceDate:    invoiceDate,
			Amount:         models.NewMoney(amount),
			Description:    strings.TrimSpace(in.Description),
			Vendor:         strings.TrimSpace(in.Vendor),
			UserDepartment: strings.TrimSpace(in.UserDepartment),
			ContractNumber: strings.TrimSpace(in.ContractNumber),
			FilePath:       filePath,
		}
		return inv, nil
	}, func(tx *gorm.DB) error {
		return postOffset(tx, afe, inv.ID, amount, models.OffsetSubmit, actor.ID)
	})
	if err != nil {
		if filePath != nil {
			s.log.Warn().Str("path", *filePath).Msg("invoice rejected after its file was stored")
		}
		return nil, err
	}
	s.metrics.InvoicedOffsets.WithLabelValues(string(models.OffsetSubmit)).Inc()
	return inv, nil
}

// CancelInvoice releases a pending invoice's offset. Approved invoices are
// immutable.
func (s *Service) CancelInvoice(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Invoice, error) {
	return s.changeInvoice(ctx, "cancel_invoice", id, actor, func(tx *gorm.DB, inv *models.Invoice) error {
		switch inv.Status {
		case models.StatusApproved:
			return apperr.InvalidState("approved invoices cannot be cancelled")
		case models.StatusCancelled:
			return apperr.InvalidState("invoice is already cancelled")
		}
		var afe models.AFE
		if err := lock(tx, &afe, inv.AFEID, "AFE"); err != nil {
			return err
		}
		if err := postOffset(tx, &afe, inv.ID, inv.Amount.Neg(), models.OffsetCancel, actor.ID); err != nil {
			return err
		}
		inv.MarkCancelled(actor.ID, s.now())
		return nil
	}, models.OffsetCancel)
}

// ReinstateInvoice returns a cancelled invoice to pending and re-offsets
// it, provided the AFE still has room for it.
func (s *Service) ReinstateInvoice(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Invoice, error) {
	return s.changeInvoice(ctx, "reinstate_invoice", id, actor, func(tx *gorm.DB, inv *models.Invoice) error {
		if inv.Status != models.StatusCancelled {
			return apperr.InvalidState("only cancelled invoices can be reinstated")
		}
		var afe models.AFE
		if err := lock(tx, &afe, inv.AFEID, "AFE"); err != nil {
			return err
		}
		if err := checkCeiling(&afe, inv.Amount.Decimal); err != nil {
			return err
		}
		if err := postOffset(tx, &afe, inv.ID, inv.Amount.Decimal, models.OffsetReinstate, actor.ID); err != nil {
			return err
		}
		inv.MarkReinstated()
		return nil
	}, models.OffsetReinstate)
}

func (s *Service) changeInvoice(ctx context.Context, op string, id uuid.UUID, actor models.Actor, mutate func(tx *gorm.DB, inv *models.Invoice) error, reason models.OffsetReason) (*models.Invoice, error) {
	if err := requireActor(actor); err != nil {
		return nil, s.fail(op, err)
	}

	var inv models.Invoice
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		if err := lock(tx, &inv, id, "invoice"); err != nil {
			return err
		}
		if err := mayAccessInvoice(&inv, actor); err != nil {
			return err
		}
		if err := mutate(tx, &inv); err != nil {
			return err
		}
		if err := tx.Save(&inv).Error; err != nil {
			return apperr.Internal("failed to update invoice", err)
		}
		return s.audit(tx, actor, KindInvoice, inv.ID, string(reason), "")
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.metrics.InvoicedOffsets.WithLabelValues(string(reason)).Inc()
	s.log.Info().
		Str("invoice_id", inv.ID.String()).
		Str("afe_id", inv.AFEID.String()).
		Str("amount", inv.Amount.StringFixed(2)).
		Str("actor", actor.ID).
		Msgf("invoice %s", reason)
	return &inv, nil
}

func mayAccessInvoice(inv *models.Invoice, actor models.Actor) error {
	if inv.SubmittedBy != actor.ID && !actor.CanDecide() {
		return apperr.Forbidden("only the submitter or a manager can access this invoice")
	}
	return nil
}

// InvoiceAttachment opens the stored file of an invoice. The caller closes
// the reader.
func (s *Service) InvoiceAttachment(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Invoice, io.ReadCloser, error) {
	const op = "invoice_attachment"
	if err := requireActor(actor); err != nil {
		return nil, nil, s.fail(op, err)
	}
	var inv models.Invoice
	if err := load(s.db.WithContext(ctx), &inv, id, "invoice"); err != nil {
		return nil, nil, s.fail(op, err)
	}
	if err := mayAccessInvoice(&inv, actor); err != nil {
		return nil, nil, s.fail(op, err)
	}
	if inv.FilePath == nil {
		return nil, nil, s.fail(op, apperr.NotFound("invoice file"))
	}
	rc, err := s.blobs.Get(ctx, *inv.FilePath)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, nil, s.fail(op, apperr.NotFound("invoice file"))
	}
	if err != nil {
		return nil, nil, s.fail(op, apperr.Internal("failed to read invoice file", err))
	}
	return &inv, rc, nil
}

// invoiceDecisionEffect charges the parent budget when an invoice is
// approved and releases the AFE offset when it is declined.
func (s *Service) invoiceDecisionEffect(tx *gorm.DB, inv *models.Invoice, decision models.Status, actor models.Actor, _ time.Time) error {
	if decision == models.StatusDeclined {
		var afe models.AFE
		if err := lock(tx, &afe, inv.AFEID, "AFE"); err != nil {
			return err
		}
		return postOffset(tx, &afe, inv.ID, inv.Amount.Neg(), models.OffsetDecline, actor.ID)
	}

	var afe models.AFE
	if err := load(tx, &afe, inv.AFEID, "AFE"); err != nil {
		return err
	}
	var budget models.Budget
	if err := lock(tx, &budget, afe.BudgetID, "budget"); err != nil {
		return err
	}
	if inv.Amount.GreaterThan(budget.Amount.Decimal) {
		return apperr.LimitExceeded(fmt.Sprintf(
			"invoice amount %s exceeds remaining budget %s", inv.Amount.StringFixed(2), budget.Amount.StringFixed(2)))
	}
	budget.Amount = models.NewMoney(budget.Amount.Sub(inv.Amount.Decimal))
	if err := tx.Model(&budget).Update("amount", budget.Amount).Error; err != nil {
		return apperr.Internal("failed to charge budget", err)
	}
	return s.audit(tx, actor, KindBudget, budget.ID, "invoice_charge",
		fmt.Sprintf("invoice %s: -%s", inv.InvoiceNumber, inv.Amount.StringFixed(2)))
}

func checkCeiling(afe *models.AFE, amount decimal.Decimal) error {
	if afe.TotalInvoiced.Add(amount).GreaterThan(afe.Amount.Decimal) {
		return apperr.LimitExceeded(fmt.Sprintf(
			"invoice exceeds AFE balance: %s remaining, %s requested",
			afe.Remaining().StringFixed(2), amount.StringFixed(2)))
	}
	return nil
}

// postOffset is the only writer of AFE.TotalInvoiced. afe must be locked
// by the caller's transaction.
func postOffset(tx *gorm.DB, afe *models.AFE, invoiceID uuid.UUID, delta decimal.Decimal, reason models.OffsetReason, actor string) error {
	afe.TotalInvoiced = models.NewMoney(afe.TotalInvoiced.Add(delta))
	if err := tx.Model(afe).Update("total_invoiced", afe.TotalInvoiced).Error; err != nil {
		return apperr.Internal("failed to update AFE balance", err)
	}
	entry := models.AFEOffset{
		AFEID:     afe.ID,
		InvoiceID: invoiceID,
		Delta:     models.NewMoney(delta),
		Reason:    reason,
		Actor:     actor,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return apperr.Internal("failed to record AFE offset", err)
	}
	return nil
}

// LedgerBalance compares the three views of what an AFE has invoiced.
type LedgerBalance struct {
	AFEID        uuid.UUID       `json:"afe_id"`
	Amount       decimal.Decimal `json:"amount"`
	Cached       decimal.Decimal `json:"total_invoiced"`
	Posted       decimal.Decimal `json:"posted_offsets"`
	OpenInvoices decimal.Decimal `json:"open_invoices"`
}

func (b LedgerBalance) Consistent() bool {
	return b.Cached.Equal(b.Posted) && b.Posted.Equal(b.OpenInvoices)
}

// TotalInvoiced sums the AFE's offset ledger.
func (s *Service) TotalInvoiced(ctx context.Context, afeID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var afe models.AFE
		if err := load(tx, &afe, afeID, "AFE"); err != nil {
			return err
		}
		var err error
		total, err = sumOffsets(tx, afeID)
		return err
	})
	if err != nil {
		return decimal.Zero, s.fail("total_invoiced", err)
	}
	return total, nil
}

func (s *Service) ReconcileAFE(ctx context.Context, afeID uuid.UUID) (*LedgerBalance, error) {
	var bal LedgerBalance
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var afe models.AFE
		if err := load(tx, &afe, afeID, "AFE"); err != nil {
			return err
		}
		posted, err := sumOffsets(tx, afeID)
		if err != nil {
			return err
		}
		var invoices []models.Invoice
		if err := tx.Where("afe_id = ? AND status IN ?", afeID,
			[]models.Status{models.StatusPending, models.StatusApproved}).
			Find(&invoices).Error; err != nil {
			return apperr.Internal("failed to load invoices", err)
		}
		open := decimal.Zero
		for _, inv := range invoices {
			open = open.Add(inv.Amount.Decimal)
		}
		bal = LedgerBalance{
			AFEID:        afe.ID,
			Amount:       afe.Amount.Decimal,
			Cached:       afe.TotalInvoiced.Decimal,
			Posted:       posted,
			OpenInvoices: open,
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("reconcile_afe", err)
	}
	if !bal.Consistent() {
		s.log.Error().
			Str("afe_id", afeID.String()).
			Str("cached", bal.Cached.String()).
			Str("posted", bal.Posted.String()).
			Str("open_invoices", bal.OpenInvoices.String()).
			Msg("AFE ledger out of balance")
	}
	return &bal, nil
}

func sumOffsets(tx *gorm.DB, afeID uuid.UUID) (decimal.Decimal, error) {
	var entries []models.AFEOffset
	if err := tx.Where("afe_id = ?", afeID).Find(&entries).Error; err != nil {
		return decimal.Zero, apperr.Internal("failed to load AFE offsets", err)
	}
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Delta.Decimal)
	}
	return total, nil
}
