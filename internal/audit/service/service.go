package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Publisher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ecoledger/internal/audit/metrics"
	"ecoledger/internal/audit/models"
	"ecoledger/internal/audit/rules"
	"ecoledger/internal/events"
	"ecoledger/internal/platform/tracing"
	"ecoledger/pkg/domain"
	dErrors "ecoledger/pkg/domain-errors"
	"ecoledger/pkg/platform/sentinel"
	"ecoledger/pkg/requestcontext"
)

// Store persists audit records. At most one record exists per movement.
type Store interface {
	// Create returns sentinel.ErrAlreadyExists when the movement already has a record.
	Create(ctx context.Context, record *models.Record) error
	ExistsByMovement(ctx context.Context, movementID domain.MovementID) (bool, error)
	FindByID(ctx context.Context, id domain.AuditID) (*models.Record, error)
	// ListByProducer returns records most recently processed first.
	ListByProducer(ctx context.Context, producerID domain.ProducerID) ([]*models.Record, error)
	// SaveRevision persists revision fields only if the record is still unrevised,
	// returning sentinel.ErrInvalidState otherwise.
	SaveRevision(ctx context.Context, record *models.Record) error
}

// Publisher emits audit-completed events.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// Engine produces a verdict for a movement.
type Engine interface {
	Validate(ctx context.Context, m *models.Movement) rules.Outcome
}

// Service owns the audit record lifecycle: ingestion of new movements and a
// single manual revision per record.
type Service struct {
	store     Store
	engine    Engine
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Service.
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

func New(store Store, engine Engine, opts ...Option) *Service {
	s := &Service{
		store:     store,
		engine:    engine,
		publisher: events.NoOpPublisher{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest audits a newly registered movement. It is a no-op when the movement
// already has a record, so redelivered messages are harmless. The returned
// bool reports whether a record was created.
func (s *Service) Ingest(ctx context.Context, m *models.Movement) (_ *models.Record, created bool, err error) {
	ctx, span := tracing.Start(ctx, "audit", "audit.Ingest", "movement_id", m.ID.String())
	defer func() { tracing.End(span, err) }()
	start := time.Now()

	exists, err := s.store.ExistsByMovement(ctx, m.ID)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing audit")
	}
	if exists {
		s.metrics.IncDuplicate()
		s.logger.WarnContext(ctx, "audit already exists for movement, skipping",
			"movement_id", m.ID,
		)
		return nil, false, nil
	}

	outcome := s.engine.Validate(ctx, m)
	record := models.NewRecord(m, outcome.Verdict, outcome.Evidence, outcome.RuleVersion, requestcontext.Now(ctx))

	if err := s.store.Create(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			// A concurrent delivery of the same movement won the insert.
			s.metrics.IncDuplicate()
			return nil, false, nil
		}
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save audit record")
	}

	s.metrics.IncVerdict(string(record.Verdict))
	s.metrics.ObserveIngest(time.Since(start))
	s.logger.InfoContext(ctx, "audit record created",
		"audit_id", record.ID,
		"movement_id", record.MovementID,
		"producer_id", record.ProducerID,
		"verdict", record.Verdict,
		"rule_version", record.RuleVersion,
	)

	s.publishCompleted(ctx, record)
	return record, true, nil
}

// Revise applies the one allowed manual revision and emits a fresh audit-completed event.
func (s *Service) Revise(ctx context.Context, id domain.AuditID, rv models.Revision) (_ *models.Record, err error) {
	ctx, span := tracing.Start(ctx, "audit", "audit.Revise", "audit_id", id.String())
	defer func() { tracing.End(span, err) }()

	if err := rv.Validate(); err != nil {
		return nil, err
	}

	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := record.ApplyRevision(rv, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}

	if err := s.store.SaveRevision(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.New(dErrors.CodeInvalidState, "audit record has already been revised")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save revision")
	}

	s.metrics.IncRevision(string(record.Verdict))
	s.logger.InfoContext(ctx, "audit record revised",
		"audit_id", record.ID,
		"auditor_id", rv.AuditorID,
		"verdict", record.Verdict,
		"request_id", requestcontext.RequestID(ctx),
	)

	s.publishCompleted(ctx, record)
	return record, nil
}

// Get returns one audit record.
func (s *Service) Get(ctx context.Context, id domain.AuditID) (*models.Record, error) {
	record, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "audit not found: "+id.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit record")
	}
	return record, nil
}

// History returns a producer's audit records, most recently processed first.
func (s *Service) History(ctx context.Context, producerID domain.ProducerID) ([]*models.Record, error) {
	records, err := s.store.ListByProducer(ctx, producerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit history")
	}
	return records, nil
}

// publishCompleted logs publish failures instead of returning them: the record
// is already durable and a retry of the caller would not republish it.
func (s *Service) publishCompleted(ctx context.Context, record *models.Record) {
	evidence := make([]events.Evidence, len(record.Evidence))
	for i, e := range record.Evidence {
		evidence[i] = events.Evidence{Kind: e.Kind, Detail: e.Detail}
	}
	payload := events.AuditCompleted{
		AuditID:     record.ID,
		MovementID:  record.MovementID,
		ProducerID:  string(record.ProducerID),
		Verdict:     string(record.Verdict),
		RuleVersion: record.RuleVersion,
		Evidence:    evidence,
		Timestamp:   requestcontext.Now(ctx),
	}
	if err := s.publisher.Publish(ctx, events.TopicAuditCompleted, record.MovementID.String(), payload); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish audit-completed",
			"audit_id", record.ID,
			"movement_id", record.MovementID,
			"error", err,
		)
	}
}
