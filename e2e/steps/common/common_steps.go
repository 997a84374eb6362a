package common

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cucumber/godog"

	jwttoken "heritage/internal/jwt_token"
	"heritage/pkg/requestcontext"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	PATCH(path, body string) error
	SignIn(sub jwttoken.Subject) error
	UseRawToken(token string)
	SignOut()
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(name string) string
}

// RegisterSteps registers identity, request and assertion steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	// Identity
	ctx.Step(`^I am anonymous$`, steps.anonymous)
	ctx.Step(`^I am signed in as the owner of "([^"]*)"$`, steps.signedInAsOwner)
	ctx.Step(`^I am signed in with email "([^"]*)"$`, steps.signedInWithEmail)
	ctx.Step(`^I am signed in as an admin$`, steps.signedInAsAdmin)
	ctx.Step(`^I use the token "([^"]*)"$`, steps.useToken)

	// Requests
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^I PATCH "([^"]*)" with:$`, steps.patch)

	// Assertions
	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the error code should be "([^"]*)"$`, steps.errorCodeShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be (\d+)$`, steps.fieldShouldBeNumber)
	ctx.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, steps.headerShouldBe)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) anonymous(ctx context.Context) error {
	s.tc.SignOut()
	return nil
}

func (s *commonSteps) signedInAsOwner(ctx context.Context, slug string) error {
	return s.tc.SignIn(jwttoken.Subject{UserID: "owner-" + slug, MemberSlug: slug})
}

func (s *commonSteps) signedInWithEmail(ctx context.Context, email string) error {
	return s.tc.SignIn(jwttoken.Subject{UserID: "user-" + email, Email: email})
}

func (s *commonSteps) signedInAsAdmin(ctx context.Context) error {
	return s.tc.SignIn(jwttoken.Subject{UserID: "admin", Roles: []string{requestcontext.RoleAdmin}})
}

func (s *commonSteps) useToken(ctx context.Context, token string) error {
	s.tc.UseRawToken(token)
	return nil
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path)
}

func (s *commonSteps) patch(ctx context.Context, path string, body *godog.DocString) error {
	return s.tc.PATCH(path, body.Content)
}

func (s *commonSteps) statusShouldBe(ctx context.Context, want int) error {
	if got := s.tc.GetLastResponseStatus(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) errorCodeShouldBe(ctx context.Context, want string) error {
	var body map[string]string
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &body); err != nil {
		return fmt.Errorf("error response is not JSON: %w", err)
	}
	if body["error"] != want {
		return fmt.Errorf("expected error code %q, got %q", want, body["error"])
	}
	return nil
}

func (s *commonSteps) fieldShouldBe(ctx context.Context, field, want string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("expected %s to be %q, got %q", field, want, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeNumber(ctx context.Context, field string, want int) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	got, ok := v.(float64)
	if !ok || int(got) != want {
		return fmt.Errorf("expected %s to be %d, got %v", field, want, v)
	}
	return nil
}

func (s *commonSteps) headerShouldBe(ctx context.Context, name, want string) error {
	if got := s.tc.GetLastResponseHeader(name); got != want {
		return fmt.Errorf("expected header %s to be %q, got %q", name, want, got)
	}
	return nil
}
