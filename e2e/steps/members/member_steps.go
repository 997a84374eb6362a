package members

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	PATCH(path, body string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
}

// RegisterSteps registers member profile step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &memberSteps{tc: tc}

	ctx.Step(`^I update the bio of "([^"]*)" to "([^"]*)"$`, steps.updateBio)
	ctx.Step(`^I update the bio of "([^"]*)" (\d+) times$`, steps.updateBioTimes)
	ctx.Step(`^the member "([^"]*)" should have (\w+) "([^"]*)"$`, steps.memberShouldHave)
	ctx.Step(`^the member "([^"]*)" should list (\w+) "([^"]*)"$`, steps.memberShouldList)
	ctx.Step(`^the roster should contain (\d+) members$`, steps.rosterShouldContain)
}

type memberSteps struct {
	tc TestContext
}

func (s *memberSteps) updateBio(ctx context.Context, slug, bio string) error {
	body, err := json.Marshal(map[string]string{"bio": bio})
	if err != nil {
		return err
	}
	return s.tc.PATCH("/members/"+slug, string(body))
}

func (s *memberSteps) updateBioTimes(ctx context.Context, slug string, n int) error {
	for i := range n {
		if err := s.updateBio(ctx, slug, fmt.Sprintf("revision %d", i+1)); err != nil {
			return err
		}
	}
	return nil
}

func (s *memberSteps) fetch(slug string) error {
	if err := s.tc.GET("/members/" + slug); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != 200 {
		return fmt.Errorf("GET /members/%s returned %d", slug, status)
	}
	return nil
}

func (s *memberSteps) memberShouldHave(ctx context.Context, slug, field, want string) error {
	if err := s.fetch(slug); err != nil {
		return err
	}
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("expected %s of %s to be %q, got %q", field, slug, want, got)
	}
	return nil
}

func (s *memberSteps) memberShouldList(ctx context.Context, slug, field, want string) error {
	if err := s.fetch(slug); err != nil {
		return err
	}
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("%s of %s is not a list: %v", field, slug, v)
	}
	if !slices.ContainsFunc(items, func(item any) bool { return fmt.Sprint(item) == want }) {
		return fmt.Errorf("expected %s of %s to contain %q, got %v", field, slug, want, items)
	}
	return nil
}

func (s *memberSteps) rosterShouldContain(ctx context.Context, n int) error {
	if err := s.tc.GET("/members"); err != nil {
		return err
	}
	count, err := s.tc.GetResponseField("count")
	if err != nil {
		return err
	}
	if got, ok := count.(float64); !ok || int(got) != n {
		return fmt.Errorf("expected %d members, got %v", n, count)
	}
	return nil
}
