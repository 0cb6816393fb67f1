// Package policy maps audit verdicts to seal score, tier and status.
package policy

import (
	"ecoledger/internal/certification/models"
	"ecoledger/internal/platform/config"
)

// Decision is the seal state derived from one verdict.
type Decision struct {
	Status models.Status
	Tier   *models.Tier
	Score  int
}

// Policy applies the configured thresholds. It holds no other state, so a
// threshold change takes effect on the next decision.
type Policy struct {
	thresholds config.Seal
}

func New(thresholds config.Seal) *Policy {
	return &Policy{thresholds: thresholds}
}

// Score is gold+5 for APPROVED, bronze-10 for REQUIRES_REVIEW and 0 otherwise.
func (p *Policy) Score(v models.Verdict) int {
	switch v {
	case models.VerdictApproved:
		return p.thresholds.GoldThreshold + 5
	case models.VerdictRequiresReview:
		return p.thresholds.BronzeThreshold - 10
	default:
		return 0
	}
}

// Decide derives the seal state for a verdict.
func (p *Policy) Decide(v models.Verdict) Decision {
	score := p.Score(v)
	t := p.thresholds
	switch {
	case score >= t.GoldThreshold:
		return active(models.TierGold, score)
	case score >= t.SilverThreshold:
		return active(models.TierSilver, score)
	case score >= t.BronzeThreshold:
		return active(models.TierBronze, score)
	case v == models.VerdictRequiresReview:
		return Decision{Status: models.StatusPending, Score: score}
	default:
		return Decision{Status: models.StatusInactive, Score: score}
	}
}

func active(tier models.Tier, score int) Decision {
	return Decision{Status: models.StatusActive, Tier: &tier, Score: score}
}
