package e2e

import (
	"github.com/cucumber/godog"

	"ecoledger/e2e/steps/common"
	"ecoledger/e2e/steps/movement"
	"ecoledger/e2e/steps/seal"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	movement.RegisterSteps(ctx, tc)
	seal.RegisterSteps(ctx, tc)
}
