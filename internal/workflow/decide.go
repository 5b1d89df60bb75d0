package workflow

import (
	"context"
	"fmt"
	"time"

	"ber-tracker/internal/apperr"
	"ber-tracker/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// record is satisfied by pointers to the approvable models.
type record[T any] interface {
	*T
	models.Approvable
}

// transition describes one decidable kind. effect runs inside the
// decision's transaction before the new status is stored; an error from it
// rolls the decision back. apply defaults to MarkDecided.
type transition[T any, P record[T]] struct {
	kind   Kind
	effect func(tx *gorm.DB, rec P, decision models.Status, actor models.Actor, now time.Time) error
	apply  func(rec P, decision models.Status, actor models.Actor, now time.Time)
}

func decide[T any, P record[T]](ctx context.Context, s *Service, tr transition[T, P], id uuid.UUID, decision models.Status, actor models.Actor) (P, error) {
	op := "decide_" + string(tr.kind)
	if err := requireDecider(actor); err != nil {
		return nil, s.fail(op, err)
	}
	if decision != models.StatusApproved && decision != models.StatusDeclined {
		return nil, s.fail(op, apperr.InvalidInput("status", "must be approved or declined"))
	}

	rec := P(new(T))
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		if err := lock(tx, rec, id, tr.kind.Label()); err != nil {
			return err
		}
		if st := rec.CurrentStatus(); st != models.StatusPending {
			return apperr.InvalidState(fmt.Sprintf("%s is already %s", tr.kind.Label(), st))
		}

		now := s.now()
		if tr.effect != nil {
			if err := tr.effect(tx, rec, decision, actor, now); err != nil {
				return err
			}
		}
		if tr.apply != nil {
			tr.apply(rec, decision, actor, now)
		} else {
			rec.MarkDecided(decision, actor.ID, now)
		}

		if err := tx.Save(rec).Error; err != nil {
			return apperr.Internal("failed to update "+tr.kind.Label(), err)
		}
		return s.audit(tx, actor, tr.kind, id, string(rec.CurrentStatus()), "")
	})
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.metrics.Decisions.WithLabelValues(string(tr.kind), string(decision)).Inc()
	s.log.Info().
		Str("kind", string(tr.kind)).
		Str("id", id.String()).
		Str("decision", string(decision)).
		Str("status", string(rec.CurrentStatus())).
		Str("actor", actor.ID).
		Msg("decided")
	return rec, nil
}

var (
	projectTransition = transition[models.Project, *models.Project]{kind: KindProject}
	budgetTransition  = transition[models.Budget, *models.Budget]{kind: KindBudget}
	afeTransition     = transition[models.AFE, *models.AFE]{kind: KindAFE}
)

func (s *Service) DecideProject(ctx context.Context, id uuid.UUID, decision models.Status, actor models.Actor) (*models.Project, error) {
	return decide(ctx, s, projectTransition, id, decision, actor)
}

func (s *Service) DecideBudget(ctx context.Context, id uuid.UUID, decision models.Status, actor models.Actor) (*models.Budget, error) {
	return decide(ctx, s, budgetTransition, id, decision, actor)
}

func (s *Service) DecideAFE(ctx context.Context, id uuid.UUID, decision models.Status, actor models.Actor) (*models.AFE, error) {
	return decide(ctx, s, afeTransition, id, decision, actor)
}

// DecideBudgetChange moves funds when the BCR is approved. Declining has no
// financial effect.
func (s *Service) DecideBudgetChange(ctx context.Context, id uuid.UUID, decision models.Status, actor models.Actor) (*models.BudgetChange, error) {
	bc, err := decide(ctx, s, transition[models.BudgetChange, *models.BudgetChange]{
		kind:   KindBudgetChange,
		effect: s.transferEffect,
	}, id, decision, actor)
	if err != nil {
		return nil, err
	}
	if bc.Status == models.StatusApproved {
		s.metrics.FundsTransferred.Add(bc.TransferAmount.InexactFloat64())
	}
	return bc, nil
}

// DecideInvoice charges the parent budget on approval. Declining a pending
// invoice cancels it and releases its AFE offset.
func (s *Service) DecideInvoice(ctx context.Context, id uuid.UUID, decision models.Status, actor models.Actor) (*models.Invoice, error) {
	inv, err := decide(ctx, s, transition[models.Invoice, *models.Invoice]{
		kind:   KindInvoice,
		effect: s.invoiceDecisionEffect,
		apply: func(inv *models.Invoice, d models.Status, actor models.Actor, now time.Time) {
			if d == models.StatusDeclined {
				inv.MarkCancelled(actor.ID, now)
				return
			}
			inv.MarkDecided(d, actor.ID, now)
		},
	}, id, decision, actor)
	if err != nil {
		return nil, err
	}
	if decision == models.StatusDeclined {
		s.metrics.InvoicedOffsets.WithLabelValues(string(models.OffsetDecline)).Inc()
	}
	return inv, nil
}

// Decide dispatches on kind for callers that route generically.
func (s *Service) Decide(ctx context.Context, kind Kind, id uuid.UUID, decision models.Status, actor models.Actor) (any, error) {
	switch kind {
	case KindProject:
		return s.DecideProject(ctx, id, decision, actor)
	case KindBudget:
		return s.DecideBudget(ctx, id, decision, actor)
	case KindAFE:
		return s.DecideAFE(ctx, id, decision, actor)
	case KindBudgetChange:
		return s.DecideBudgetChange(ctx, id, decision, actor)
	case KindInvoice:
		return s.DecideInvoice(ctx, id, decision, actor)
	}
	return nil, s.fail("decide", apperr.InvalidInput("kind", fmt.Sprintf("%s cannot be approved or declined", kind.Label())))
}
