package policy

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoledger/internal/certification/models"
	"ecoledger/internal/platform/config"
)

func defaultPolicy() *Policy {
	return New(config.Seal{BronzeThreshold: 70, SilverThreshold: 80, GoldThreshold: 90})
}

func TestDecideWithDefaultThresholds(t *testing.T) {
	p := defaultPolicy()

	t.Run("approved is gold", func(t *testing.T) {
		d := p.Decide(models.VerdictApproved)
		assert.Equal(t, models.StatusActive, d.Status)
		require.NotNil(t, d.Tier)
		assert.Equal(t, models.TierGold, *d.Tier)
		assert.Equal(t, 95, d.Score)
	})

	t.Run("requires review is pending without tier", func(t *testing.T) {
		d := p.Decide(models.VerdictRequiresReview)
		assert.Equal(t, models.StatusPending, d.Status)
		assert.Nil(t, d.Tier)
		assert.Equal(t, 60, d.Score)
	})

	t.Run("rejected is inactive without tier", func(t *testing.T) {
		d := p.Decide(models.VerdictRejected)
		assert.Equal(t, models.StatusInactive, d.Status)
		assert.Nil(t, d.Tier)
		assert.Zero(t, d.Score)
	})
}

// Justification: tier boundaries are inclusive; thresholds close together
// change which band a fixed score lands in.
func TestDecideTierBands(t *testing.T) {
	// REQUIRES_REVIEW lands exactly on silver when thresholds are not ordered.
	p := New(config.Seal{BronzeThreshold: 20, SilverThreshold: 10, GoldThreshold: 90})
	d := p.Decide(models.VerdictRequiresReview)
	assert.Equal(t, models.StatusActive, d.Status)
	assert.Equal(t, models.TierSilver, *d.Tier)
	assert.Equal(t, 10, d.Score)

	// REJECTED with a zero bronze threshold is still active.
	p = New(config.Seal{BronzeThreshold: 0, SilverThreshold: 80, GoldThreshold: 90})
	d = p.Decide(models.VerdictRejected)
	assert.Equal(t, models.StatusActive, d.Status)
	assert.Equal(t, models.TierBronze, *d.Tier)
}

func TestDecideProperties(t *testing.T) {
	verdicts := gen.OneConstOf(models.VerdictApproved, models.VerdictRejected, models.VerdictRequiresReview)
	thresholds := gen.IntRange(0, 200)

	properties := gopter.NewProperties(nil)

	properties.Property("tier is set exactly when status is ATIVO", prop.ForAll(
		func(v models.Verdict, b, s, g int) bool {
			b, s, g = ordered(b, s, g)
			d := New(config.Seal{BronzeThreshold: b, SilverThreshold: s, GoldThreshold: g}).Decide(v)
			return (d.Tier != nil) == (d.Status == models.StatusActive)
		},
		verdicts, thresholds, thresholds, thresholds,
	))

	properties.Property("PENDENTE only for REQUIRES_REVIEW", prop.ForAll(
		func(v models.Verdict, b, s, g int) bool {
			b, s, g = ordered(b, s, g)
			d := New(config.Seal{BronzeThreshold: b, SilverThreshold: s, GoldThreshold: g}).Decide(v)
			return d.Status != models.StatusPending || v == models.VerdictRequiresReview
		},
		verdicts, thresholds, thresholds, thresholds,
	))

	properties.Property("tier matches the highest threshold the score reaches", prop.ForAll(
		func(v models.Verdict, b, s, g int) bool {
			b, s, g = ordered(b, s, g)
			d := New(config.Seal{BronzeThreshold: b, SilverThreshold: s, GoldThreshold: g}).Decide(v)
			switch {
			case d.Score >= g:
				return *d.Tier == models.TierGold
			case d.Score >= s:
				return *d.Tier == models.TierSilver
			case d.Score >= b:
				return *d.Tier == models.TierBronze
			default:
				return d.Tier == nil
			}
		},
		verdicts, thresholds, thresholds, thresholds,
	))

	properties.Property("decision is deterministic", prop.ForAll(
		func(v models.Verdict, b int) bool {
			p := New(config.Seal{BronzeThreshold: b, SilverThreshold: b + 10, GoldThreshold: b + 20})
			return sameDecision(p.Decide(v), p.Decide(v))
		},
		verdicts, thresholds,
	))

	properties.TestingRun(t)
}

func ordered(a, b, c int) (int, int, int) {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b, c = c, b
	}
	if a > b {
		a, b = b, a
	}
	return a, b, c
}

func sameDecision(x, y Decision) bool {
	if x.Status != y.Status || x.Score != y.Score {
		return false
	}
	if x.Tier == nil || y.Tier == nil {
		return x.Tier == y.Tier
	}
	return *x.Tier == *y.Tier
}
