package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Approver,Publisher

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"ecoledger/internal/events"
	"ecoledger/internal/movement/idempotency"
	"ecoledger/internal/movement/metrics"
	"ecoledger/internal/movement/models"
	"ecoledger/internal/platform/config"
	"ecoledger/internal/platform/tracing"
	"ecoledger/pkg/domain"
	dErrors "ecoledger/pkg/domain-errors"
	"ecoledger/pkg/platform/sentinel"
	"ecoledger/pkg/requestcontext"
)

// Store persists movements.
type Store interface {
	Save(ctx context.Context, m *models.Movement) error
	FindByID(ctx context.Context, id domain.MovementID) (*models.Movement, error)
	ListByProducer(ctx context.Context, filter models.ListFilter) (models.Page, error)
	ListByCommodity(ctx context.Context, commodityID domain.CommodityID) ([]*models.Movement, error)
}

// Approver decides whether a producer may register movements.
type Approver interface {
	IsApproved(ctx context.Context, producerID domain.ProducerID) bool
}

// Publisher emits movement-created events.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// Service registers and reads commodity movements.
type Service struct {
	store       Store
	approver    Approver
	coordinator *idempotency.Coordinator
	policy      config.AttachmentPolicy
	publisher   Publisher
	logger      *slog.Logger
	metrics     *metrics.Metrics
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

func New(store Store, approver Approver, coordinator *idempotency.Coordinator, policy config.AttachmentPolicy, opts ...Option) *Service {
	s := &Service{
		store:       store,
		approver:    approver,
		coordinator: coordinator,
		policy:      policy,
		publisher:   events.NoOpPublisher{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterCommand is a create request together with its deduplication identity.
type RegisterCommand struct {
	IdempotencyKey string
	Fingerprint    string
	Movement       models.NewMovement
}

// Register creates the movement once per idempotency key (or fingerprint when
// no key is sent) and returns its id. A key whose earlier request has not
// completed yields a conflict error wrapping idempotency.ErrUnresolved, with a
// distinct message when that request failed.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (_ domain.MovementID, err error) {
	ctx, span := tracing.Start(ctx, "movement", "movement.Register",
		"producer_id", cmd.Movement.ProducerID.String(),
	)
	defer func() { tracing.End(span, err) }()

	id, err := s.coordinator.Handle(ctx, cmd.IdempotencyKey, cmd.Fingerprint, func(ctx context.Context) (domain.MovementID, error) {
		return s.create(ctx, cmd.Movement)
	})
	if err != nil {
		if errors.Is(err, idempotency.ErrUnresolved) {
			s.logger.WarnContext(ctx, "idempotency key still unresolved",
				"request_id", requestcontext.RequestID(ctx),
				"idempotency_key", cmd.IdempotencyKey,
				"failed", errors.Is(err, idempotency.ErrFailed),
			)
			msg := "request with this idempotency key is still in progress"
			if errors.Is(err, idempotency.ErrFailed) {
				msg = "request with this idempotency key did not complete; retry with a new key"
			}
			return domain.MovementID{}, dErrors.Wrap(err, dErrors.CodeConflict, msg)
		}
		return domain.MovementID{}, err
	}
	return id, nil
}

func (s *Service) create(ctx context.Context, nm models.NewMovement) (domain.MovementID, error) {
	if !s.approver.IsApproved(ctx, nm.ProducerID) {
		s.metrics.IncApprovalDenied()
		return domain.MovementID{}, dErrors.New(dErrors.CodeForbidden, "producer not approved: "+nm.ProducerID.String())
	}
	if err := s.checkAttachments(nm.Attachments); err != nil {
		return domain.MovementID{}, err
	}

	m := &models.Movement{
		ID:          domain.NewMovementID(),
		ProducerID:  nm.ProducerID,
		CommodityID: nm.CommodityID,
		Type:        nm.Type,
		Quantity:    nm.Quantity,
		Unit:        nm.Unit,
		OccurredAt:  nm.OccurredAt,
		Location:    nm.Location,
		Attachments: append([]models.Attachment{}, nm.Attachments...),
		CreatedAt:   requestcontext.Now(ctx),
	}
	if err := s.store.Save(ctx, m); err != nil {
		return domain.MovementID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save movement")
	}

	s.metrics.IncRegistered()
	s.logger.InfoContext(ctx, "movement registered",
		"request_id", requestcontext.RequestID(ctx),
		"movement_id", m.ID,
		"producer_id", m.ProducerID,
		"commodity_id", m.CommodityID,
	)
	s.publishCreated(ctx, m)
	return m.ID, nil
}

func (s *Service) checkAttachments(attachments []models.Attachment) error {
	if len(attachments) == 0 {
		return nil
	}
	if s.policy.MaxAttachments > 0 && len(attachments) > s.policy.MaxAttachments {
		return dErrors.Newf(dErrors.CodeValidation, "maximum attachments exceeded (%d)", s.policy.MaxAttachments)
	}
	for _, a := range attachments {
		if !slices.Contains(s.policy.AllowedTypes, a.Type) {
			return dErrors.New(dErrors.CodeValidation, "attachment type not allowed: "+a.Type)
		}
	}
	return nil
}

// publishCreated logs failures: the movement is persisted and its id is
// already committed to the idempotency record.
func (s *Service) publishCreated(ctx context.Context, m *models.Movement) {
	attachments := make([]events.Attachment, len(m.Attachments))
	for i, a := range m.Attachments {
		attachments[i] = events.Attachment{Type: a.Type, URL: a.URL, Hash: a.Hash}
	}
	ev := events.MovementCreated{
		MovementID:  m.ID,
		ProducerID:  m.ProducerID.String(),
		CommodityID: m.CommodityID.String(),
		Type:        m.Type,
		Quantity:    m.Quantity,
		Unit:        m.Unit,
		Timestamp:   m.OccurredAt,
		CreatedAt:   m.CreatedAt,
		Attachments: attachments,
	}
	if m.Location != nil {
		lat, lon := m.Location.Lat, m.Location.Lon
		ev.Latitude, ev.Longitude = &lat, &lon
	}
	if err := s.publisher.Publish(ctx, events.TopicMovementCreated, m.ID.String(), ev); err != nil {
		s.metrics.IncPublishFailed()
		s.logger.ErrorContext(ctx, "failed to publish movement-created",
			"movement_id", m.ID,
			"error", err,
		)
	}
}

// Get returns one movement.
func (s *Service) Get(ctx context.Context, id domain.MovementID) (*models.Movement, error) {
	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "movement not found: "+id.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load movement")
	}
	return m, nil
}

// ListByProducer returns one page of a producer's movements, newest first.
func (s *Service) ListByProducer(ctx context.Context, filter models.ListFilter) (models.Page, error) {
	if filter.Size <= 0 {
		filter.Size = models.DefaultPageSize
	}
	filter.Size = min(filter.Size, models.MaxPageSize)
	filter.Page = max(filter.Page, 1)
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return models.Page{}, dErrors.New(dErrors.CodeValidation, "fromDate must not be after toDate")
	}

	page, err := s.store.ListByProducer(ctx, filter)
	if err != nil {
		return models.Page{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list movements")
	}
	return page, nil
}

// CommodityHistory returns every movement of a commodity, newest first.
func (s *Service) CommodityHistory(ctx context.Context, commodityID domain.CommodityID) ([]*models.Movement, error) {
	list, err := s.store.ListByCommodity(ctx, commodityID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load commodity history")
	}
	return list, nil
}
