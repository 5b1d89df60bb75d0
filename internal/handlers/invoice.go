package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"

	"ber-tracker/internal/apperr"
	"ber-tracker/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxInvoiceFile = 20 << 20

// SubmitInvoice takes a multipart form with an optional invoice_file part.
func (h *Handler) SubmitInvoice(c *gin.Context) {
	in := workflow.InvoiceInput{
		InvoiceNumber:  c.PostForm("invoice_number"),
		Title:          c.PostForm("invoice_title"),
		Description:    c.PostForm("description"),
		Vendor:         c.PostForm("vendor"),
		UserDepartment: c.PostForm("user_department"),
		ContractNumber: c.PostForm("contract_number"),
	}

	if v := c.PostForm("afe_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			h.fail(c, apperr.InvalidInput("afe_id", "must be a uuid"))
			return
		}
		in.AFEID = id
	}
	if v := c.PostForm("amount"); v != "" {
		amount, err := decimal.NewFromString(v)
		if err != nil {
			h.fail(c, apperr.InvalidInput("amount", "must be a number"))
			return
		}
		in.Amount = amount
	}
	date, err := parseDate("invoice_date", c.PostForm("invoice_date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	in.InvoiceDate = date

	fh, err := c.FormFile("invoice_file")
	switch {
	case err == nil:
		if fh.Size > maxInvoiceFile {
			h.fail(c, apperr.InvalidInput("invoice_file", "is larger than 20 MB"))
			return
		}
		f, err := fh.Open()
		if err != nil {
			h.fail(c, apperr.InvalidInput("invoice_file", "could not be read"))
			return
		}
		defer f.Close()
		in.Attachment = &workflow.Attachment{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        f,
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		h.fail(c, apperr.InvalidInput("invoice_file", "malformed upload"))
		return
	}

	inv, err := h.wf.SubmitInvoice(c.Request.Context(), in, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// InvoiceFile streams an invoice's stored attachment to its submitter or
// a manager.
func (h *Handler) InvoiceFile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.fail(c, apperr.InvalidInput("id", "must be a uuid"))
		return
	}
	inv, rc, err := h.wf.InvoiceAttachment(c.Request.Context(), id, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	defer rc.Close()

	name := path.Base(*inv.FilePath)
	ct := mime.TypeByExtension(path.Ext(name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	c.Header("Content-Type", ct)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		h.log.Warn().Err(err).Str("invoice_id", id.String()).Msg("invoice file stream interrupted")
	}
}

// AFELedger reports the offset ledger balance of one AFE.
func (h *Handler) AFELedger(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.fail(c, apperr.InvalidInput("id", "must be a uuid"))
		return
	}
	if _, err := h.wf.Get(c.Request.Context(), workflow.KindAFE, id, actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	bal, err := h.wf.ReconcileAFE(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"afe_id":         bal.AFEID,
		"amount":         bal.Amount,
		"total_invoiced": bal.Cached,
		"posted_offsets": bal.Posted,
		"open_invoices":  bal.OpenInvoices,
		"consistent":     bal.Consistent(),
	})
}
