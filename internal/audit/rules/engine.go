package rules

import (
	"context"
	"fmt"
	"log/slog"

	"ecoledger/internal/audit/metrics"
	"ecoledger/internal/audit/models"
	"ecoledger/internal/platform/config"
)

// Outcome is the aggregated result of running every rule.
type Outcome struct {
	Verdict     models.Verdict
	Evidence    []models.Evidence
	RuleVersion string
}

// Engine runs a fixed, ordered rule list and stamps every outcome with the
// configured rule-set version.
type Engine struct {
	rules   []Rule
	version string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine over rules.
func NewEngine(version string, rules []Rule, opts ...Option) *Engine {
	e := &Engine{
		rules:   append([]Rule(nil), rules...),
		version: version,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewEngineFromConfig creates an engine over the default rule list.
func NewEngineFromConfig(cfg config.Rules, opts ...Option) *Engine {
	return NewEngine(cfg.Version, Default(cfg), opts...)
}

// Version is the rule-set version stamped on every outcome.
func (e *Engine) Version() string { return e.version }

// Validate runs every rule against m. A rule that errors or panics counts as
// failed and contributes a RULE_ERROR evidence item; evaluation continues.
//
// APPROVED when every rule passed, REQUIRES_REVIEW when any evidence item is
// a RULE_ERROR, REJECTED otherwise.
func (e *Engine) Validate(ctx context.Context, m *models.Movement) Outcome {
	evidence := []models.Evidence{}
	allPassed := true

	for _, rule := range e.rules {
		res, err := runRule(rule, m)
		if err != nil {
			allPassed = false
			evidence = append(evidence, models.Evidence{
				Kind:   models.EvidenceRuleError,
				Detail: fmt.Sprintf("error executing rule %s: %v", rule.Name(), err),
			})
			e.metrics.IncRuleError(rule.Name())
			e.logger.ErrorContext(ctx, "rule execution failed",
				"rule", rule.Name(),
				"movement_id", m.ID,
				"error", err,
			)
			continue
		}
		if !res.Passed {
			allPassed = false
			evidence = append(evidence, res.Evidence...)
		}
	}

	verdict := models.VerdictRejected
	switch {
	case allPassed:
		verdict = models.VerdictApproved
	case hasRuleError(evidence):
		verdict = models.VerdictRequiresReview
	}

	return Outcome{Verdict: verdict, Evidence: evidence, RuleVersion: e.version}
}

func runRule(rule Rule, m *models.Movement) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return rule.Validate(m)
}

func hasRuleError(evidence []models.Evidence) bool {
	for _, ev := range evidence {
		if ev.Kind == models.EvidenceRuleError {
			return true
		}
	}
	return false
}
