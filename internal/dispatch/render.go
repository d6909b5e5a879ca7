package dispatch

import (
	"fmt"
	"strings"
	"time"

	"velestra/internal/domain"
)

// PremiumAlert renders the detailed message sent to the premium channel.
func PremiumAlert(signal domain.Signal, now time.Time) string {
	var b strings.Builder

	b.WriteString("💎 *VELESTRA INTELLIGENCE PRO*\n\n")
	fmt.Fprintf(&b, "🎯 *%s*\n\n", signal.Prediction)

	b.WriteString("📊 *Assessment:*\n")
	fmt.Fprintf(&b, "• Confidence: %.0f%%\n", signal.Confidence*100)
	fmt.Fprintf(&b, "• Signal Strength: %s\n", signalStrength(signal.Confidence))
	fmt.Fprintf(&b, "• Time Advantage: ~%d hours\n\n", timeAdvantage(signal.Confidence))

	fmt.Fprintf(&b, "🎯 *For Founders:*\n%s\n\n", founderContext(signal.Type))

	b.WriteString("💡 *Strategic Implications:*\n")
	b.WriteString("• Market validation for this technology/approach\n")
	b.WriteString("• Potential shifts in customer expectations\n")
	b.WriteString("• New competitive threats or opportunities\n\n")

	b.WriteString("⚡ *Recommended Actions:*\n")
	b.WriteString("• Research competitive implications for your product\n")
	b.WriteString("• Assess integration or partnership opportunities\n")
	b.WriteString("• Consider strategic positioning adjustments\n\n")

	fmt.Fprintf(&b, "⏰ *Action Window:* %s\n\n", actionTimeline(signal.Confidence))

	b.WriteString("🔍 *Competitive Intel:*\n")
	b.WriteString("Market leaders likely responding within 2-4 weeks.\n\n")

	fmt.Fprintf(&b, "---\n*Signal #%s | Exclusive to Pro subscribers*", signal.ID)

	return b.String()
}

// FreeAlert renders the basic message sent to the free channel.
func FreeAlert(signal domain.Signal, now time.Time) string {
	var b strings.Builder

	b.WriteString("🔮 *VELESTRA - FREE SIGNAL*\n\n")
	fmt.Fprintf(&b, "🎯 *%s*\n\n", signal.Prediction)

	fmt.Fprintf(&b, "📊 *Confidence:* %.0f%%\n", signal.Confidence*100)
	fmt.Fprintf(&b, "📡 *Source:* %s\n", signal.Source)
	fmt.Fprintf(&b, "🕐 *Detected:* %s ago\n\n", relativeTime(now.Sub(signal.DetectedAt)))

	fmt.Fprintf(&b, "💡 This indicates movement in the %s space\n\n", signal.Type.Label())

	fmt.Fprintf(&b, "---\n🚀 *Pro subscribers got this %d hours earlier*\n\n", timeAdvantage(signal.Confidence))
	b.WriteString("💎 *Upgrade to Intelligence Pro:*\n")
	b.WriteString("• Real-time alerts (no delays)\n")
	b.WriteString("• Detailed founder action plans\n")
	b.WriteString("• 10+ signals per week vs 2\n\n")
	b.WriteString("💳 *Start 7-day trial:* velestra.com/upgrade")

	return b.String()
}

func signalStrength(confidence float64) string {
	switch {
	case confidence >= 0.95:
		return "🔥 MAXIMUM"
	case confidence >= 0.85:
		return "⚡ HIGH"
	case confidence >= 0.75:
		return "📊 MEDIUM"
	default:
		return "👀 EMERGING"
	}
}

func timeAdvantage(confidence float64) int {
	switch {
	case confidence >= 0.9:
		return 18
	case confidence >= 0.8:
		return 12
	default:
		return 8
	}
}

func relativeTime(delta time.Duration) string {
	switch {
	case delta >= 24*time.Hour:
		return fmt.Sprintf("%dd", int(delta.Hours())/24)
	case delta >= time.Hour:
		return fmt.Sprintf("%dh", int(delta.Hours()))
	default:
		return fmt.Sprintf("%dm", int(delta.Minutes()))
	}
}

func founderContext(signalType domain.SignalType) string {
	switch signalType {
	case domain.TypeFunding:
		return "Major funding validates market opportunity and timing. Competitor advantage window may be closing."
	case domain.TypeProductLaunch:
		return "New product launches shift competitive landscape. Integration or competitive response opportunities."
	case domain.TypeInnovation:
		return "Breakthrough technology creates new possibilities. Early adoption advantage available."
	case domain.TypeAcquisition:
		return "Industry consolidation creating new market gaps and acquisition opportunities."
	case domain.TypeIPO:
		return "Public-market entry signals sector maturity. Valuation benchmarks shifting."
	default:
		return "Market dynamics shifting. Strategic implications for product and positioning decisions."
	}
}

func actionTimeline(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "Act within 48 hours - early mover advantage"
	case confidence >= 0.8:
		return "Research within 1 week - competitive window"
	default:
		return "Add to monthly strategy review"
	}
}
