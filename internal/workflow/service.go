// Package workflow implements BER submissions and approvals: the generic
// pending → approved|declined state machine, the BCR fund transfer engine
// and the AFE/invoice offset ledger. Every mutating call runs as a single
// store transaction; balances are only ever changed as part of one.
package workflow

import (
	"context"
	"errors"
	"time"

	"ber-tracker/internal/apperr"
	"ber-tracker/internal/blob"
	"ber-tracker/internal/database"
	"ber-tracker/internal/metrics"
	"ber-tracker/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db      *gorm.DB
	blobs   blob.Store
	metrics *metrics.Workflow
	log     zerolog.Logger
	now     func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for approved_at/cancelled_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(db *gorm.DB, blobs blob.Store, m *metrics.Workflow, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		db:      db,
		blobs:   blobs,
		metrics: m,
		log:     log.With().Str("component", "workflow").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// fail normalises err to an *apperr.Error, counts it and logs store causes.
func (s *Service) fail(op string, err error) error {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Internal(op+" failed", err)
	}
	s.metrics.Errors.WithLabelValues(op, string(ae.Code)).Inc()
	if ae.Code == apperr.CodeInternal {
		s.log.Error().Err(ae.Unwrap()).Str("op", op).Msg(ae.Message)
	} else {
		s.log.Debug().Str("op", op).Str("code", string(ae.Code)).Msg(ae.Error())
	}
	return ae
}

func (s *Service) audit(tx *gorm.DB, actor models.Actor, kind Kind, id uuid.UUID, action, details string) error {
	if err := database.CreateAuditLog(tx, actor.ID, string(kind), id, action, details); err != nil {
		return apperr.Internal("failed to write audit log", err)
	}
	return nil
}

func requireActor(actor models.Actor) error {
	if actor.ID == "" || !actor.Role.Valid() {
		return apperr.Forbidden("authentication required")
	}
	return nil
}

func requireDecider(actor models.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.CanDecide() {
		return apperr.Forbidden("managers only")
	}
	return nil
}

// load fetches one row by id, mapping a miss to NotFound(label).
func load(tx *gorm.DB, dest any, id uuid.UUID, label string) error {
	if id == uuid.Nil {
		return apperr.NotFound(label)
	}
	err := tx.First(dest, "id = ?", id).Error
	return mapLoadErr(err, label)
}

// lock is load with SELECT ... FOR UPDATE. SQLite ignores the clause and
// serialises the whole transaction instead.
func lock(tx *gorm.DB, dest any, id uuid.UUID, label string) error {
	if id == uuid.Nil {
		return apperr.NotFound(label)
	}
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(dest, "id = ?", id).Error
	return mapLoadErr(err, label)
}

func mapLoadErr(err error, label string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(label)
	default:
		return apperr.Internal("failed to load "+label, err)
	}
}
