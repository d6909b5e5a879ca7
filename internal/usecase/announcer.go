package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"velestra/internal/approval"
	"velestra/internal/domain"
	"velestra/internal/ports"
)

// AdminAnnouncer pushes lifecycle notifications to the admin chat: an
// approval request when a signal lands in the queue, and a confirmation when
// one auto-approves. Announcements are best-effort; failures are logged and
// the transition stands.
type AdminAnnouncer struct {
	transport ports.Transport
	adminChat string
	freeDelay time.Duration
	logger    *slog.Logger
}

var _ approval.Announcer = (*AdminAnnouncer)(nil)

// NewAdminAnnouncer wires the transport and destination.
func NewAdminAnnouncer(transport ports.Transport, adminChat string, freeDelay time.Duration, logger *slog.Logger) *AdminAnnouncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminAnnouncer{
		transport: transport,
		adminChat: adminChat,
		freeDelay: freeDelay,
		logger:    logger,
	}
}

// ApprovalRequested sends the full review message for a new pending signal.
func (a *AdminAnnouncer) ApprovalRequested(ctx context.Context, signal domain.Signal) {
	if a.adminChat == "" {
		a.logger.Warn("no admin chat configured, signal waiting in queue", "signal", signal.ID)
		return
	}

	var b strings.Builder
	b.WriteString("📋 *APPROVAL REQUEST*\n\n")
	fmt.Fprintf(&b, "🎯 *Signal:* %s\n\n", signal.Prediction)
	b.WriteString("📊 *Details:*\n")
	fmt.Fprintf(&b, "• Confidence: %.0f%%\n", signal.Confidence*100)
	fmt.Fprintf(&b, "• Source: %s\n", signal.Source)
	fmt.Fprintf(&b, "• Type: %s\n", signal.Type.Label())
	fmt.Fprintf(&b, "• ID: `%s`\n\n", signal.ID)
	fmt.Fprintf(&b, "🎯 *Tier Assignment:* %s\n%s\n\n",
		strings.ToUpper(string(signal.TierAssignment)), a.tierInfo(signal.TierAssignment))

	b.WriteString("🔍 *Evidence:*\n")
	for _, evidence := range signal.Evidence {
		fmt.Fprintf(&b, "• %s\n", evidence)
	}

	b.WriteString("\n📱 *Commands:*\n")
	fmt.Fprintf(&b, "✅ `/approve %s` - Approve for assigned tier(s)\n", signal.ID)
	fmt.Fprintf(&b, "💎 `/premium %s` - Send to premium only\n", signal.ID)
	fmt.Fprintf(&b, "🆓 `/free %s` - Send to free only (with delay)\n", signal.ID)
	fmt.Fprintf(&b, "🎯 `/both %s` - Send to both tiers\n", signal.ID)
	fmt.Fprintf(&b, "❌ `/reject %s` - Reject\n", signal.ID)
	fmt.Fprintf(&b, "📝 `/preview %s` - Preview both versions\n\n", signal.ID)
	fmt.Fprintf(&b, "---\n*Detected:* %s", signal.DetectedAt.UTC().Format("15:04 UTC"))

	a.send(ctx, b.String())
}

// AutoApproved sends the short confirmation for a self-approved signal.
func (a *AdminAnnouncer) AutoApproved(ctx context.Context, signal domain.Signal) {
	if a.adminChat == "" {
		return
	}
	message := fmt.Sprintf("🤖 *AUTO-APPROVED & SENT*\n\n🎯 %s\n📊 Confidence: %.0f%%\n🎯 Tier: %s\n🆔 `%s`",
		signal.Prediction, signal.Confidence*100,
		strings.ToUpper(string(signal.TierAssignment)), signal.ID)
	a.send(ctx, message)
}

func (a *AdminAnnouncer) tierInfo(t domain.Tier) string {
	delay := int(a.freeDelay.Hours())
	switch t {
	case domain.TierBoth:
		return fmt.Sprintf("🆓 Free: Will send with %dh delay\n💎 Premium: Will send immediately", delay)
	case domain.TierPremium:
		return "💎 Premium: Will send immediately\n🆓 Free: No (premium-only signal)"
	case domain.TierFree:
		return "🆓 Free: Will send with delay\n💎 Premium: No (free-only signal)"
	default:
		return "❌ No tier qualifies; override required to dispatch"
	}
}

func (a *AdminAnnouncer) send(ctx context.Context, message string) {
	if err := a.transport.Send(ctx, a.adminChat, message); err != nil {
		a.logger.Warn("send admin notification", "error", err)
	}
}
