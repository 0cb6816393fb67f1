package rules

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoledger/internal/audit/models"
	"ecoledger/internal/platform/config"
	"ecoledger/pkg/domain"
)

type stubRule struct {
	name   string
	result Result
	err    error
	panics bool
}

func (r stubRule) Name() string { return r.name }

func (r stubRule) Validate(*models.Movement) (Result, error) {
	if r.panics {
		panic("nil pointer in rule")
	}
	return r.result, r.err
}

func quietEngine(rules ...Rule) *Engine {
	return NewEngine("1.0.0", rules, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func failing(kind string) Rule {
	return stubRule{name: kind, result: Fail(models.Evidence{Kind: kind, Detail: "failed"})}
}

func TestEngineAggregation(t *testing.T) {
	ctx := context.Background()
	m := movementWith("10")

	t.Run("all rules pass gives APPROVED with no evidence", func(t *testing.T) {
		out := quietEngine(stubRule{name: "a", result: Pass()}, stubRule{name: "b", result: Pass()}).Validate(ctx, m)
		assert.Equal(t, models.VerdictApproved, out.Verdict)
		assert.Empty(t, out.Evidence)
		assert.Equal(t, "1.0.0", out.RuleVersion)
	})

	t.Run("plain failures give REJECTED with evidence in rule order", func(t *testing.T) {
		out := quietEngine(failing("FIRST"), stubRule{name: "ok", result: Pass()}, failing("SECOND")).Validate(ctx, m)
		assert.Equal(t, models.VerdictRejected, out.Verdict)
		require.Len(t, out.Evidence, 2)
		assert.Equal(t, "FIRST", out.Evidence[0].Kind)
		assert.Equal(t, "SECOND", out.Evidence[1].Kind)
	})

	t.Run("rule error outranks plain failure", func(t *testing.T) {
		out := quietEngine(failing("FIRST"), stubRule{name: "BROKEN", err: errors.New("lookup failed")}).Validate(ctx, m)
		assert.Equal(t, models.VerdictRequiresReview, out.Verdict)
		require.Len(t, out.Evidence, 2)
		assert.Equal(t, models.EvidenceRuleError, out.Evidence[1].Kind)
		assert.Equal(t, "error executing rule BROKEN: lookup failed", out.Evidence[1].Detail)
	})

	t.Run("rule reporting RULE_ERROR evidence gives REQUIRES_REVIEW", func(t *testing.T) {
		out := quietEngine(failing("FIRST"), failing(models.EvidenceRuleError)).Validate(ctx, m)
		assert.Equal(t, models.VerdictRequiresReview, out.Verdict)
		require.Len(t, out.Evidence, 2)
		assert.Equal(t, models.EvidenceRuleError, out.Evidence[1].Kind)
	})

	t.Run("panicking rule is recovered and later rules still run", func(t *testing.T) {
		out := quietEngine(stubRule{name: "EXPLODES", panics: true}, failing("AFTER")).Validate(ctx, m)
		assert.Equal(t, models.VerdictRequiresReview, out.Verdict)
		require.Len(t, out.Evidence, 2)
		assert.Equal(t, models.EvidenceRuleError, out.Evidence[0].Kind)
		assert.Contains(t, out.Evidence[0].Detail, "EXPLODES")
		assert.Equal(t, "AFTER", out.Evidence[1].Kind)
	})
}

func TestEngineScenarios(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultRules()
	cfg.Quantity.Min = domain.QuantityFromInt(1)

	t.Run("quantity at the maximum is APPROVED", func(t *testing.T) {
		out := NewEngineFromConfig(cfg).Validate(ctx, movementWith("10000"))
		assert.Equal(t, models.VerdictApproved, out.Verdict)
	})

	t.Run("zero quantity with minimum 1 is REJECTED with quantity evidence", func(t *testing.T) {
		out := NewEngineFromConfig(cfg).Validate(ctx, movementWith("0"))
		assert.Equal(t, models.VerdictRejected, out.Verdict)
		require.Len(t, out.Evidence, 1)
		assert.Equal(t, models.EvidenceQuantity, out.Evidence[0].Kind)
	})
}

// TestEngineProperties checks determinism, inclusive bounds and the verdict
// taxonomy over generated quantities.
func TestEngineProperties(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultRules()
	cfg.Quantity.Min = domain.QuantityFromInt(100)
	cfg.Quantity.Max = domain.QuantityFromInt(5000)
	engine := NewEngineFromConfig(cfg)

	properties := gopter.NewProperties(nil)

	properties.Property("same movement yields the same outcome", prop.ForAll(
		func(q int64) bool {
			m := &models.Movement{ID: domain.NewMovementID(), Quantity: domain.QuantityFromInt(q)}
			a := engine.Validate(ctx, m)
			b := engine.Validate(ctx, m)
			return assert.ObjectsAreEqual(a, b)
		},
		gen.Int64Range(-10_000, 10_000),
	))

	properties.Property("APPROVED exactly when quantity lies in [min, max]", prop.ForAll(
		func(q int64) bool {
			out := engine.Validate(ctx, &models.Movement{Quantity: domain.QuantityFromInt(q)})
			inRange := q >= 100 && q <= 5000
			return (out.Verdict == models.VerdictApproved) == inRange
		},
		gen.Int64Range(-10_000, 10_000),
	))

	properties.Property("APPROVED iff no evidence, never REQUIRES_REVIEW without RULE_ERROR", prop.ForAll(
		func(q int64) bool {
			out := engine.Validate(ctx, &models.Movement{Quantity: domain.QuantityFromInt(q)})
			if (out.Verdict == models.VerdictApproved) != (len(out.Evidence) == 0) {
				return false
			}
			return out.Verdict != models.VerdictRequiresReview
		},
		gen.Int64Range(-10_000, 10_000),
	))

	properties.TestingRun(t)
}
