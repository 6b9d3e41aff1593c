package e2e

import (
	"github.com/cucumber/godog"

	"ballot/e2e/steps/common"
	"ballot/e2e/steps/voting"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (requests, status and field assertions)
	common.RegisterSteps(ctx, tc)

	// Register verify, vote and admin steps
	voting.RegisterSteps(ctx, tc)
}
