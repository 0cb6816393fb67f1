package seal

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the part of the scenario context seal steps need.
type TestContext interface {
	POST(path string, body any, headers map[string]string) error
	SealNotifications(producer string) int
}

// RegisterSteps registers certification steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &sealSteps{tc: tc}

	ctx.Step(`^I request a seal recalculation for "([^"]*)"$`, steps.recalculate)
	ctx.Step(`^(\d+) seal notifications? should have been published for "([^"]*)"$`, steps.notificationsPublished)
}

type sealSteps struct {
	tc TestContext
}

func (s *sealSteps) recalculate(_ context.Context, producer string) error {
	return s.tc.POST("/seals/"+producer+"/recalculate", nil, nil)
}

func (s *sealSteps) notificationsPublished(_ context.Context, want int, producer string) error {
	if got := s.tc.SealNotifications(producer); got != want {
		return fmt.Errorf("expected %d seal notifications for %s, got %d", want, producer, got)
	}
	return nil
}
