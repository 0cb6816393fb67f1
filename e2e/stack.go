package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	auditconsumer "ecoledger/internal/audit/consumer"
	audithandler "ecoledger/internal/audit/handler"
	"ecoledger/internal/audit/rules"
	auditservice "ecoledger/internal/audit/service"
	auditstore "ecoledger/internal/audit/store"
	certconsumer "ecoledger/internal/certification/consumer"
	certhandler "ecoledger/internal/certification/handler"
	certservice "ecoledger/internal/certification/service"
	certstore "ecoledger/internal/certification/store"
	"ecoledger/internal/events"
	"ecoledger/internal/movement/adapters"
	movementhandler "ecoledger/internal/movement/handler"
	"ecoledger/internal/movement/idempotency"
	movementservice "ecoledger/internal/movement/service"
	movementstore "ecoledger/internal/movement/store"
	"ecoledger/internal/platform/config"
	"ecoledger/internal/platform/httpserver"
	kconsumer "ecoledger/internal/platform/kafka/consumer"
	"ecoledger/internal/platform/logger"
)

// relay delivers published events synchronously to the registered topic
// handlers, standing in for the broker.
type relay struct {
	router *kconsumer.Router
}

func (r *relay) Publish(ctx context.Context, topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.router.Handle(ctx, &kconsumer.Message{Topic: topic, Key: []byte(key), Value: value, Timestamp: time.Now()})
}

// notifications records seal-updated events by producer.
type notifications struct {
	mu    sync.Mutex
	byKey map[string]int
}

func (n *notifications) Handle(_ context.Context, msg *kconsumer.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.byKey[string(msg.Key)]++
	return nil
}

func (n *notifications) Count(producer string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.byKey[producer]
}

type stack struct {
	handler       http.Handler
	notifications *notifications
}

// newStack wires the three subsystems with in-memory stores behind one
// router.
func newStack() *stack {
	cfg := config.Defaults()
	log := logger.Discard()
	topics := kconsumer.NewRouter(log)
	bus := &relay{router: topics}

	movements := movementservice.New(movementstore.NewInMemory(), adapters.AllowAll{},
		idempotency.NewCoordinator(idempotency.NewInMemoryStore(), idempotency.WithLogger(log)),
		cfg.AttachmentPolicy,
		movementservice.WithLogger(log),
		movementservice.WithPublisher(bus),
	)
	audits := auditservice.New(auditstore.NewInMemory(), rules.NewEngineFromConfig(cfg.Rules, rules.WithLogger(log)),
		auditservice.WithLogger(log),
		auditservice.WithPublisher(bus),
	)
	seals := certservice.New(certstore.NewInMemory(), certservice.NewShardedTransactor(), cfg.Seal,
		certservice.WithLogger(log),
		certservice.WithPublisher(bus),
	)

	notes := &notifications{byKey: map[string]int{}}
	topics.Register(events.TopicMovementCreated, auditconsumer.NewMovementCreatedHandler(audits, log))
	topics.Register(events.TopicAuditCompleted, certconsumer.NewAuditCompletedHandler(seals, log))
	topics.Register(events.TopicSealUpdated, notes)

	var r chi.Router = httpserver.NewRouter(log)
	movementhandler.New(movements, log).Register(r)
	audithandler.New(audits, log).Register(r)
	certhandler.New(seals, log).Register(r)
	return &stack{handler: r, notifications: notes}
}
