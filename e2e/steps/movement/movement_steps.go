package movement

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
)

// TestContext is the part of the scenario context movement steps need.
type TestContext interface {
	POST(path string, body any, headers map[string]string) error
	Status() int
	Field(path string) (any, error)
	Remember(name, value string)
}

// RegisterSteps registers movement registration and audit steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &movementSteps{tc: tc}

	ctx.Step(`^producer "([^"]*)" registers a movement of (\d+) kg$`, steps.register)
	ctx.Step(`^producer "([^"]*)" registers a movement of (\d+) kg with idempotency key "([^"]*)"$`, steps.registerWithKey)
	ctx.Step(`^auditor "([^"]*)" revises audit "([^"]*)" to "([^"]*)"$`, steps.revise)
}

type movementSteps struct {
	tc TestContext
}

func movementBody(producer string, kg int) map[string]any {
	return map[string]any{
		"producerId":  producer,
		"commodityId": "soy-lot-1",
		"type":        "HARVEST",
		"quantity":    kg,
		"unit":        "kg",
		"timestamp":   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *movementSteps) register(_ context.Context, producer string, kg int) error {
	return s.created(s.tc.POST("/movements", movementBody(producer, kg), nil))
}

func (s *movementSteps) registerWithKey(_ context.Context, producer string, kg int, key string) error {
	headers := map[string]string{"X-Idempotency-Key": key}
	return s.created(s.tc.POST("/movements", movementBody(producer, kg), headers))
}

func (s *movementSteps) created(err error) error {
	if err != nil {
		return err
	}
	if s.tc.Status() != 201 {
		return fmt.Errorf("movement not created, status %d", s.tc.Status())
	}
	id, err := s.tc.Field("movementId")
	if err != nil {
		return err
	}
	s.tc.Remember("movementId", fmt.Sprint(id))
	return nil
}

func (s *movementSteps) revise(_ context.Context, auditor, auditVar, verdict string) error {
	body := map[string]any{"auditorId": auditor, "verdict": verdict, "observation": "field inspection"}
	return s.tc.POST("/audits/{"+auditVar+"}/revision", body, nil)
}
