package tier

import (
	"fmt"
	"strings"
	"time"

	"velestra/internal/config"
	"velestra/internal/domain"
)

// Policy decides which audience a signal belongs to and whether a free-tier
// release may go out right now. Both decisions are pure functions of their
// inputs; the weekly counter is a derived read the caller supplies fresh on
// every evaluation.
type Policy struct {
	freeThreshold    float64
	premiumThreshold float64
	freeDelay        time.Duration
	maxFreePerWeek   int
	premiumKeywords  []string
}

// ReleaseDecision carries the send/withhold verdict and the reason shown to
// the operator.
type ReleaseDecision struct {
	Send   bool
	Reason string
}

// New builds a policy from tier configuration.
func New(cfg config.TierConfig) *Policy {
	return &Policy{
		freeThreshold:    cfg.FreeThreshold,
		premiumThreshold: cfg.PremiumThreshold,
		freeDelay:        cfg.FreeDelay,
		maxFreePerWeek:   cfg.MaxFreePerWeek,
		premiumKeywords:  cfg.PremiumKeywords,
	}
}

// Assign computes the initial tier for a signal. Premium-only keyword matches
// win over any confidence value, including scores above the free threshold.
func (p *Policy) Assign(signal domain.Signal) domain.Tier {
	content := strings.ToLower(signal.Content)
	for _, keyword := range p.premiumKeywords {
		if strings.Contains(content, keyword) {
			return domain.TierPremium
		}
	}

	switch {
	case signal.Confidence >= p.freeThreshold:
		return domain.TierBoth
	case signal.Confidence >= p.premiumThreshold:
		return domain.TierPremium
	default:
		return domain.TierNone
	}
}

// ShouldReleaseToFree gates a free-tier send. Conditions are checked in
// order and the first failing one wins: weekly cap, premium-only assignment,
// remaining delay.
func (p *Policy) ShouldReleaseToFree(signal domain.Signal, weeklyFreeSends int, now time.Time) ReleaseDecision {
	if weeklyFreeSends >= p.maxFreePerWeek {
		return ReleaseDecision{Send: false, Reason: "weekly limit reached"}
	}

	if signal.TierAssignment == domain.TierPremium {
		return ReleaseDecision{Send: false, Reason: "premium-only signal"}
	}

	elapsed := now.Sub(signal.DetectedAt)
	if elapsed < p.freeDelay {
		remaining := p.freeDelay - elapsed
		return ReleaseDecision{
			Send:   false,
			Reason: fmt.Sprintf("delay required: %.1fh remaining", remaining.Hours()),
		}
	}

	return ReleaseDecision{Send: true, Reason: "approved for free tier"}
}
