package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"ecoledger/internal/events"
	"ecoledger/internal/movement/idempotency"
	"ecoledger/internal/movement/models"
	"ecoledger/internal/movement/service/mocks"
	"ecoledger/internal/platform/config"
	"ecoledger/internal/platform/logger"
	"ecoledger/pkg/domain"
	dErrors "ecoledger/pkg/domain-errors"
	"ecoledger/pkg/platform/sentinel"
	"ecoledger/pkg/requestcontext"
)

var now = time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *mocks.MockStore
	approver  *mocks.MockApprover
	publisher *mocks.MockPublisher
	idem      *idempotency.InMemoryStore
	svc       *Service
	ctx       context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.approver = mocks.NewMockApprover(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.idem = idempotency.NewInMemoryStore()
	coord := idempotency.NewCoordinator(s.idem, idempotency.WithLogger(logger.Discard()))
	s.svc = New(s.store, s.approver, coord, config.AttachmentPolicy{
		MaxAttachments: 2,
		AllowedTypes:   []string{"image/png", "application/pdf"},
	}, WithPublisher(s.publisher), WithLogger(logger.Discard()))
	s.ctx = requestcontext.WithTime(context.Background(), now)
}

func newMovement() models.NewMovement {
	return models.NewMovement{
		ProducerID:  "p-1",
		CommodityID: "coffee",
		Type:        "HARVEST",
		Quantity:    domain.MustQuantity("120.5"),
		Unit:        "kg",
		OccurredAt:  now.Add(-24 * time.Hour),
		Location:    &models.Location{Lat: -19.9, Lon: -43.9},
		Attachments: []models.Attachment{{Type: "image/png", URL: "https://f/1.png", Hash: "abc"}},
	}
}

// =============================================================================
// Register
// =============================================================================
// Justification: registration is the only write path and fronts idempotency.

func (s *ServiceSuite) TestRegisterPersistsAndPublishes() {
	var saved *models.Movement
	s.approver.EXPECT().IsApproved(gomock.Any(), domain.ProducerID("p-1")).Return(true)
	s.store.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m *models.Movement) error {
		saved = m
		return nil
	})
	s.publisher.EXPECT().Publish(gomock.Any(), events.TopicMovementCreated, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _, key string, payload any) error {
			ev := payload.(events.MovementCreated)
			s.Equal(saved.ID.String(), key)
			s.Equal(saved.ID, ev.MovementID)
			s.Equal("coffee", ev.CommodityID)
			s.Require().NotNil(ev.Latitude)
			s.InDelta(-19.9, *ev.Latitude, 1e-9)
			s.Len(ev.Attachments, 1)
			return nil
		})

	id, err := s.svc.Register(s.ctx, RegisterCommand{IdempotencyKey: "k-1", Fingerprint: "fp", Movement: newMovement()})
	s.Require().NoError(err)
	s.Equal(saved.ID, id)
	s.Equal(now, saved.CreatedAt)
}

func (s *ServiceSuite) TestRegisterReplaysCompletedKey() {
	s.approver.EXPECT().IsApproved(gomock.Any(), gomock.Any()).Return(true).Times(1)
	s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)

	cmd := RegisterCommand{IdempotencyKey: "k-2", Fingerprint: "fp", Movement: newMovement()}
	first, err := s.svc.Register(s.ctx, cmd)
	s.Require().NoError(err)
	second, err := s.svc.Register(s.ctx, cmd)
	s.Require().NoError(err)
	s.Equal(first, second)
}

func (s *ServiceSuite) TestRegisterUnresolvedKeyIsConflict() {
	s.Require().NoError(s.idem.Create(s.ctx, &idempotency.Record{
		Key: "k-busy", Fingerprint: "fp", Status: idempotency.StatusInProgress, CreatedAt: now,
	}))

	_, err := s.svc.Register(s.ctx, RegisterCommand{IdempotencyKey: "k-busy", Fingerprint: "fp", Movement: newMovement()})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.ErrorIs(err, idempotency.ErrUnresolved)
}

func (s *ServiceSuite) TestRegisterFailedKeyIsConflictWithRetryHint() {
	s.Require().NoError(s.idem.Create(s.ctx, &idempotency.Record{
		Key: "k-failed", Fingerprint: "fp", Status: idempotency.StatusFailed, CreatedAt: now,
	}))

	_, err := s.svc.Register(s.ctx, RegisterCommand{IdempotencyKey: "k-failed", Fingerprint: "fp", Movement: newMovement()})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.ErrorIs(err, idempotency.ErrFailed)
	s.Equal("request with this idempotency key did not complete; retry with a new key", dErrors.MessageOf(err))
}

func (s *ServiceSuite) TestRegisterRejectsUnapprovedProducer() {
	s.approver.EXPECT().IsApproved(gomock.Any(), domain.ProducerID("p-1")).Return(false)

	_, err := s.svc.Register(s.ctx, RegisterCommand{IdempotencyKey: "k-3", Fingerprint: "fp", Movement: newMovement()})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Contains(dErrors.MessageOf(err), "p-1")

	rec, err := s.idem.FindByKey(s.ctx, "k-3")
	s.Require().NoError(err)
	s.Equal(idempotency.StatusFailed, rec.Status)
}

func (s *ServiceSuite) TestRegisterAttachmentPolicy() {
	s.Run("too many attachments", func() {
		s.approver.EXPECT().IsApproved(gomock.Any(), gomock.Any()).Return(true)
		nm := newMovement()
		nm.Attachments = append(nm.Attachments, nm.Attachments[0], nm.Attachments[0])
		_, err := s.svc.Register(s.ctx, RegisterCommand{Fingerprint: "fp-many", Movement: nm})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(dErrors.MessageOf(err), "maximum attachments")
	})

	s.Run("type outside allow-list", func() {
		s.approver.EXPECT().IsApproved(gomock.Any(), gomock.Any()).Return(true)
		nm := newMovement()
		nm.Attachments = []models.Attachment{{Type: "text/html", URL: "https://f/x"}}
		_, err := s.svc.Register(s.ctx, RegisterCommand{Fingerprint: "fp-html", Movement: nm})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(dErrors.MessageOf(err), "text/html")
	})
}

func (s *ServiceSuite) TestRegisterPublishFailureIsLogged() {
	s.approver.EXPECT().IsApproved(gomock.Any(), gomock.Any()).Return(true)
	s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	id, err := s.svc.Register(s.ctx, RegisterCommand{Fingerprint: "fp-pub", Movement: newMovement()})
	s.Require().NoError(err)
	s.False(id.IsNil())
}

func (s *ServiceSuite) TestRegisterSaveFailureIsInternal() {
	s.approver.EXPECT().IsApproved(gomock.Any(), gomock.Any()).Return(true)
	s.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	_, err := s.svc.Register(s.ctx, RegisterCommand{Fingerprint: "fp-save", Movement: newMovement()})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

// =============================================================================
// Queries
// =============================================================================

func (s *ServiceSuite) TestGetNotFound() {
	id := domain.NewMovementID()
	s.store.EXPECT().FindByID(gomock.Any(), id).Return(nil, sentinel.ErrNotFound)

	_, err := s.svc.Get(s.ctx, id)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Contains(dErrors.MessageOf(err), id.String())
}

func (s *ServiceSuite) TestListByProducerNormalizesPaging() {
	s.store.EXPECT().ListByProducer(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, f models.ListFilter) (models.Page, error) {
			s.Equal(1, f.Page)
			s.Equal(models.MaxPageSize, f.Size)
			return models.Page{Items: []*models.Movement{}}, nil
		})

	_, err := s.svc.ListByProducer(s.ctx, models.ListFilter{ProducerID: "p-1", Page: -3, Size: 10_000})
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestListByProducerRejectsInvertedRange() {
	from, to := now, now.Add(-time.Hour)
	_, err := s.svc.ListByProducer(s.ctx, models.ListFilter{ProducerID: "p-1", From: &from, To: &to})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
