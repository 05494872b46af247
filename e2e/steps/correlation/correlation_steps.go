package correlation

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext is the part of the scenario context the correlation steps use.
type TestContext interface {
	GET(path string) error
	GetResponseField(path string) (any, error)
}

// RegisterSteps registers correlation-specific step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &correlationSteps{tc: tc}
	ctx.Step(`^I view session "([^"]*)"$`, steps.viewSession)
	ctx.Step(`^I list sessions with "([^"]*)"$`, steps.listSessions)
	ctx.Step(`^the violations should be "([^"]*)" in that order$`, steps.violationsInOrder)
	ctx.Step(`^the session should have no violations$`, steps.noViolations)
	ctx.Step(`^the listed sessions should be "([^"]*)"$`, steps.listedSessions)
	ctx.Step(`^the diagnostics should count (\d+) "([^"]*)"$`, steps.diagnosticCount)
}

type correlationSteps struct {
	tc TestContext
}

func (s *correlationSteps) viewSession(_ context.Context, id string) error {
	return s.tc.GET("/admin/correlation/sessions/" + id)
}

func (s *correlationSteps) listSessions(_ context.Context, query string) error {
	return s.tc.GET("/admin/correlation/sessions?" + query)
}

func (s *correlationSteps) ids(path string) ([]string, error) {
	field, err := s.tc.GetResponseField(path)
	if err != nil {
		return nil, err
	}
	items, ok := field.([]any)
	if !ok {
		return nil, fmt.Errorf("%s is not a list", path)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s contains a non-object", path)
		}
		out = append(out, fmt.Sprint(obj["id"]))
	}
	return out, nil
}

func (s *correlationSteps) violationsInOrder(_ context.Context, want string) error {
	got, err := s.ids("violations")
	if err != nil {
		return err
	}
	if expected := strings.Split(want, ","); !slices.Equal(got, expected) {
		return fmt.Errorf("expected violations %v, got %v", expected, got)
	}
	return nil
}

func (s *correlationSteps) noViolations(context.Context) error {
	got, err := s.ids("violations")
	if err != nil {
		return err
	}
	if len(got) != 0 {
		return fmt.Errorf("expected no violations, got %v", got)
	}
	return nil
}

func (s *correlationSteps) listedSessions(_ context.Context, want string) error {
	got, err := s.ids("sessions")
	if err != nil {
		return err
	}
	if expected := strings.Split(want, ","); !slices.Equal(got, expected) {
		return fmt.Errorf("expected sessions %v, got %v", expected, got)
	}
	return nil
}

func (s *correlationSteps) diagnosticCount(_ context.Context, n int, kind string) error {
	got, err := s.tc.GetResponseField("counts." + kind)
	if err != nil {
		return err
	}
	if count, ok := got.(float64); !ok || int(count) != n {
		return fmt.Errorf("expected %d %s diagnostics, got %v", n, kind, got)
	}
	return nil
}
