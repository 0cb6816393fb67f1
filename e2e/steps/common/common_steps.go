package common

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext is the part of the scenario context generic steps need.
type TestContext interface {
	GET(path string) error
	Status() int
	Field(path string) (any, error)
	Remember(name, value string)
	Expand(s string) string
}

// RegisterSteps registers request and response assertion steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be null$`, steps.fieldShouldBeNull)
	ctx.Step(`^the response field "([^"]*)" should have (\d+) items?$`, steps.fieldShouldHaveItems)
	ctx.Step(`^I remember the response field "([^"]*)" as "([^"]*)"$`, steps.remember)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) get(_ context.Context, path string) error {
	return s.tc.GET(path)
}

func (s *commonSteps) statusShouldBe(_ context.Context, want int) error {
	if got := s.tc.Status(); got != want {
		return fmt.Errorf("expected status %d, got %d", want, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldBe(_ context.Context, path, want string) error {
	v, err := s.tc.Field(path)
	if err != nil {
		return err
	}
	want = s.tc.Expand(want)
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("field %q: expected %q, got %q", path, want, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeNull(_ context.Context, path string) error {
	v, err := s.tc.Field(path)
	if err != nil {
		return err
	}
	if v != nil {
		return fmt.Errorf("field %q: expected null, got %v", path, v)
	}
	return nil
}

func (s *commonSteps) fieldShouldHaveItems(_ context.Context, path string, want int) error {
	v, err := s.tc.Field(path)
	if err != nil {
		return err
	}
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("field %q is not a list", path)
	}
	if len(items) != want {
		return fmt.Errorf("field %q: expected %d items, got %d", path, want, len(items))
	}
	return nil
}

func (s *commonSteps) remember(_ context.Context, path, name string) error {
	v, err := s.tc.Field(path)
	if err != nil {
		return err
	}
	switch x := v.(type) {
	case string:
		s.tc.Remember(name, x)
	case float64:
		s.tc.Remember(name, strconv.FormatFloat(x, 'f', -1, 64))
	default:
		return fmt.Errorf("field %q is not a scalar", path)
	}
	return nil
}
