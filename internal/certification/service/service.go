package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Publisher

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ecoledger/internal/certification/metrics"
	"ecoledger/internal/certification/models"
	"ecoledger/internal/certification/policy"
	"ecoledger/internal/events"
	"ecoledger/internal/platform/config"
	"ecoledger/internal/platform/tracing"
	"ecoledger/pkg/domain"
	dErrors "ecoledger/pkg/domain-errors"
	"ecoledger/pkg/platform/sentinel"
	"ecoledger/pkg/requestcontext"
)

// DefaultRecalculationReason is recorded when a recalculation names no reason.
const DefaultRecalculationReason = "manual-recalculation"

// ExpiredReason is recorded for changes made by the expiry sweep.
const ExpiredReason = "seal-expired"

const defaultExpiryBatch = 100

// Store persists seals and their change ledger.
type Store interface {
	// FindSeal returns sentinel.ErrNotFound when the producer has no seal yet.
	FindSeal(ctx context.Context, producerID domain.ProducerID) (*models.Seal, error)
	// SaveSeal inserts or replaces the producer's seal.
	SaveSeal(ctx context.Context, seal *models.Seal) error
	AppendChange(ctx context.Context, change *models.Change) error
	// ListChanges returns the producer's ledger, most recent first.
	ListChanges(ctx context.Context, producerID domain.ProducerID) ([]*models.Change, error)
	// ListExpired returns up to limit producers whose seal expired before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.ProducerID, error)
}

// Publisher emits seal-updated events.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// Service is the certification decision engine.
type Service struct {
	store     Store
	tx        Transactor
	policy    *policy.Policy
	validity  time.Duration
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// New builds the engine. Thresholds and the validity window come from cfg and
// are fixed for the lifetime of the service.
func New(store Store, tx Transactor, cfg config.Seal, opts ...Option) *Service {
	s := &Service{
		store:     store,
		tx:        tx,
		policy:    policy.New(cfg),
		validity:  cfg.Validity,
		publisher: events.NoOpPublisher{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// outcome is what one unit of work produced. change is nil when the status
// did not move.
type outcome struct {
	seal     *models.Seal
	previous *models.Status
	change   *models.Change
}

// OnAuditCompleted folds an audit verdict into the producer's seal, creating
// it on first use. Replaying the same outcome leaves the ledger untouched.
func (s *Service) OnAuditCompleted(ctx context.Context, in models.AuditOutcome) (_ *models.Seal, err error) {
	ctx, span := tracing.Start(ctx, "certification", "certification.OnAuditCompleted",
		"producer_id", string(in.ProducerID), "audit_id", in.AuditID.String())
	defer func() { tracing.End(span, err) }()

	now := requestcontext.Now(ctx)
	decision := s.policy.Decide(in.Verdict)

	var out outcome
	err = s.tx.RunInTx(ctx, in.ProducerID, func(ctx context.Context) error {
		current, err := s.findSeal(ctx, in.ProducerID)
		if err != nil {
			return err
		}

		next := &models.Seal{ProducerID: in.ProducerID}
		if current != nil {
			next = current.Clone()
		}
		next.Status = decision.Status
		next.Tier = decision.Tier
		next.Score = decision.Score
		next.Reasons = in.Reasons()
		next.RuleVersion = in.RuleVersion
		auditID, verdict := in.AuditID, in.Verdict
		next.LastAuditID = &auditID
		next.LastVerdict = &verdict
		next.LastCheckedAt = now
		next.ExpiresAt = now.Add(s.validity)

		evidence := "audit " + in.AuditID.String()
		out, err = s.commit(ctx, current, next, "audit verdict "+string(in.Verdict), &evidence, now)
		return err
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply audit outcome")
	}

	s.logger.InfoContext(ctx, "audit outcome applied",
		"producer_id", in.ProducerID,
		"audit_id", in.AuditID,
		"verdict", in.Verdict,
		"status", out.seal.Status,
		"changed", out.change != nil,
	)
	s.afterCommit(ctx, out)
	return out.seal, nil
}

// Recalculate re-derives a seal without a new audit. An expired seal drops to
// PENDENTE; otherwise the last verdict is re-evaluated against the current
// thresholds.
func (s *Service) Recalculate(ctx context.Context, producerID domain.ProducerID, reason string) (_ *models.Seal, err error) {
	ctx, span := tracing.Start(ctx, "certification", "certification.Recalculate", "producer_id", string(producerID))
	defer func() { tracing.End(span, err) }()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultRecalculationReason
	}
	now := requestcontext.Now(ctx)

	var out outcome
	err = s.tx.RunInTx(ctx, producerID, func(ctx context.Context) error {
		current, err := s.findSeal(ctx, producerID)
		if err != nil {
			return err
		}
		if current == nil {
			return dErrors.New(dErrors.CodeNotFound, "seal not found for producer: "+string(producerID))
		}

		next := current.Clone()
		switch {
		case current.Expired(now):
			s.metrics.IncRecalculation("expired")
			next.Status = models.StatusPending
			next.Tier = nil
			next.Score = 0
			next.Reasons = []string{reason}
			next.LastCheckedAt = now
			next.ExpiresAt = now.Add(s.validity)
		case current.LastVerdict != nil:
			s.metrics.IncRecalculation("rederived")
			d := s.policy.Decide(*current.LastVerdict)
			next.Status = d.Status
			next.Tier = d.Tier
			next.Score = d.Score
			next.LastCheckedAt = now
			next.ExpiresAt = now.Add(s.validity)
		default:
			s.metrics.IncRecalculation("unchanged")
		}

		out, err = s.commit(ctx, current, next, reason, nil, now)
		return err
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to recalculate seal")
	}

	s.logger.InfoContext(ctx, "seal recalculated",
		"producer_id", producerID,
		"reason", reason,
		"status", out.seal.Status,
		"changed", out.change != nil,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.afterCommit(ctx, out)
	return out.seal, nil
}

// ExpireDue recalculates up to limit seals that expired before now and
// returns how many were recalculated. A failure on one producer is logged and
// does not stop the sweep.
func (s *Service) ExpireDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultExpiryBatch
	}
	now := requestcontext.Now(ctx)
	producers, err := s.store.ListExpired(ctx, now, limit)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list expired seals")
	}
	n := 0
	for _, producerID := range producers {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if _, err := s.Recalculate(ctx, producerID, ExpiredReason); err != nil {
			s.logger.ErrorContext(ctx, "failed to expire seal",
				"producer_id", producerID,
				"error", err,
			)
			continue
		}
		n++
	}
	return n, nil
}

// Get returns the producer's seal.
func (s *Service) Get(ctx context.Context, producerID domain.ProducerID) (*models.Seal, error) {
	seal, err := s.store.FindSeal(ctx, producerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "seal not found for producer: "+string(producerID))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load seal")
	}
	return seal, nil
}

// History returns the producer's status changes, most recent first. A
// producer without a seal has an empty history.
func (s *Service) History(ctx context.Context, producerID domain.ProducerID) ([]*models.Change, error) {
	changes, err := s.store.ListChanges(ctx, producerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load seal history")
	}
	return changes, nil
}

// findSeal maps a missing seal to nil.
func (s *Service) findSeal(ctx context.Context, producerID domain.ProducerID) (*models.Seal, error) {
	seal, err := s.store.FindSeal(ctx, producerID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	return seal, err
}

// commit persists next and appends a ledger entry when the status differs
// from current, or when there was no seal before. Runs inside RunInTx.
func (s *Service) commit(ctx context.Context, current, next *models.Seal, reason string, evidence *string, now time.Time) (outcome, error) {
	if err := s.store.SaveSeal(ctx, next); err != nil {
		return outcome{}, err
	}
	out := outcome{seal: next}
	if current != nil {
		prev := current.Status
		out.previous = &prev
		if prev == next.Status {
			return out, nil
		}
	}
	out.change = models.NewChange(next.ProducerID, out.previous, next.Status, reason, evidence, now)
	if err := s.store.AppendChange(ctx, out.change); err != nil {
		return outcome{}, err
	}
	return out, nil
}

// afterCommit publishes seal-updated for a status change. Publish failures
// are logged; the change is already durable.
func (s *Service) afterCommit(ctx context.Context, out outcome) {
	if out.change == nil {
		s.metrics.IncUnchanged()
		return
	}
	from := "NONE"
	var previous *string
	if out.previous != nil {
		from = string(*out.previous)
		previous = &from
	}
	s.metrics.IncTransition(from, string(out.seal.Status))

	var tier *string
	if out.seal.Tier != nil {
		t := string(*out.seal.Tier)
		tier = &t
	}
	payload := events.SealUpdated{
		ProducerID:     string(out.seal.ProducerID),
		PreviousStatus: previous,
		NewStatus:      string(out.seal.Status),
		NewTier:        tier,
		Score:          out.seal.Score,
		RuleVersion:    out.seal.RuleVersion,
		Timestamp:      out.change.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, events.TopicSealUpdated, string(out.seal.ProducerID), payload); err != nil {
		s.metrics.IncPublishFailed()
		s.logger.ErrorContext(ctx, "failed to publish seal-updated",
			"producer_id", out.seal.ProducerID,
			"status", out.seal.Status,
			"error", err,
		)
	}
}
