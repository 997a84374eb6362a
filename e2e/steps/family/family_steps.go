package family

import (
	"context"
	"fmt"
	"net/url"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers family graph step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &familySteps{tc: tc}

	ctx.Step(`^I ask how "([^"]*)" is related to "([^"]*)"$`, steps.askRelationship)
	ctx.Step(`^the relationship should be "([^"]*)"$`, steps.relationshipShouldBe)
	ctx.Step(`^I request the family tree$`, steps.requestTree)
	ctx.Step(`^member (\d+) should be placed in generation (\d+)$`, steps.memberInGeneration)
	ctx.Step(`^the tree should position member (\d+)$`, steps.treePositions)
	ctx.Step(`^member (\d+) should be named "([^"]*)" in the tree$`, steps.memberNamed)
}

type familySteps struct {
	tc TestContext
}

func (s *familySteps) askRelationship(ctx context.Context, from, to string) error {
	q := url.Values{"from": {from}, "to": {to}}
	return s.tc.GET("/family/relationship?" + q.Encode())
}

func (s *familySteps) relationshipShouldBe(ctx context.Context, want string) error {
	if status := s.tc.GetLastResponseStatus(); status != 200 {
		return fmt.Errorf("relationship lookup returned %d: %s", status, s.tc.GetLastResponseBody())
	}
	v, err := s.tc.GetResponseField("relationship.text")
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("expected relationship %q, got %q", want, got)
	}
	return nil
}

func (s *familySteps) requestTree(ctx context.Context) error {
	return s.tc.GET("/family/tree")
}

func (s *familySteps) memberInGeneration(ctx context.Context, id, generation int) error {
	members, err := s.tc.GetResponseField(fmt.Sprintf("generations.%d", generation))
	if err != nil {
		return err
	}
	list, ok := members.([]any)
	if !ok {
		return fmt.Errorf("generation %d is not a list", generation)
	}
	for _, m := range list {
		node, ok := m.(map[string]any)
		if ok && node["id"] == float64(id) {
			return nil
		}
	}
	return fmt.Errorf("member %d not found in generation %d", id, generation)
}

func (s *familySteps) treePositions(ctx context.Context, id int) error {
	_, err := s.tc.GetResponseField(fmt.Sprintf("positions.%d", id))
	return err
}

func (s *familySteps) memberNamed(ctx context.Context, id int, want string) error {
	timeline, err := s.tc.GetResponseField("timeline")
	if err != nil {
		return err
	}
	list, ok := timeline.([]any)
	if !ok {
		return fmt.Errorf("timeline is not a list")
	}
	for _, m := range list {
		node, ok := m.(map[string]any)
		if !ok || node["id"] != float64(id) {
			continue
		}
		if node["name"] != want {
			return fmt.Errorf("expected member %d to be named %q, got %v", id, want, node["name"])
		}
		return nil
	}
	return fmt.Errorf("member %d not found in the timeline", id)
}
