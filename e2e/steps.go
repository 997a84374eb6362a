package e2e

import (
	"github.com/cucumber/godog"

	"heritage/e2e/steps/common"
	"heritage/e2e/steps/family"
	"heritage/e2e/steps/members"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (identity, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register member profile steps
	members.RegisterSteps(ctx, tc)

	// Register family graph steps
	family.RegisterSteps(ctx, tc)
}
