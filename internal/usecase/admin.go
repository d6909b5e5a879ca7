package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"velestra/internal/approval"
	"velestra/internal/dispatch"
	"velestra/internal/domain"
	"velestra/internal/ports"
)

const pendingListLimit = 10

// CommandHandler executes operator commands against the state machine and
// renders structured results back to the admin chat. Unknown ids and
// already-processed signals come back as messages, never as crashes.
type CommandHandler struct {
	source    ports.CommandSource
	machine   *approval.Machine
	repo      ports.SignalRepository
	transport ports.Transport
	adminChat string
	logger    *slog.Logger
	now       func() time.Time
}

// CommandDeps wires the handler.
type CommandDeps struct {
	Source    ports.CommandSource
	Machine   *approval.Machine
	Repo      ports.SignalRepository
	Transport ports.Transport
	AdminChat string
	Logger    *slog.Logger
	Now       func() time.Time
}

// NewCommandHandler constructs the admin command dispatcher.
func NewCommandHandler(deps CommandDeps) *CommandHandler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandHandler{
		source:    deps.Source,
		machine:   deps.Machine,
		repo:      deps.Repo,
		transport: deps.Transport,
		adminChat: deps.AdminChat,
		logger:    logger,
		now:       now,
	}
}

// PollAndHandle drains the command source and executes each command. One
// failing command does not block the rest.
func (h *CommandHandler) PollAndHandle(ctx context.Context) {
	if h.source == nil {
		return
	}
	commands, err := h.source.PollCommands(ctx)
	if err != nil {
		h.logger.Warn("poll admin commands", "error", err)
		return
	}
	for _, cmd := range commands {
		reply := h.Handle(ctx, cmd.Text)
		if reply == "" {
			continue
		}
		h.reply(ctx, reply)
	}
}

// Handle parses and executes a single command, returning the operator reply.
func (h *CommandHandler) Handle(ctx context.Context, text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	command := strings.ToLower(fields[0])
	args := fields[1:]

	switch command {
	case "/pending":
		return h.pending(ctx)
	case "/approve":
		return h.approve(ctx, args, nil)
	case "/premium":
		t := domain.TierPremium
		return h.approve(ctx, args, &t)
	case "/free":
		t := domain.TierFree
		return h.approve(ctx, args, &t)
	case "/both":
		t := domain.TierBoth
		return h.approve(ctx, args, &t)
	case "/reject":
		return h.reject(ctx, args)
	case "/preview":
		return h.preview(ctx, args)
	case "/stats":
		return h.stats(ctx)
	case "/help":
		return helpMessage
	default:
		return "❓ Unknown command. Send /help for available commands."
	}
}

func (h *CommandHandler) approve(ctx context.Context, args []string, override *domain.Tier) string {
	if len(args) < 1 {
		return "❌ Usage: /approve <signal_id> (or /premium, /free, /both)"
	}
	id := args[0]

	var (
		signal domain.Signal
		err    error
	)
	if override == nil {
		signal, err = h.machine.Approve(ctx, id)
	} else {
		signal, err = h.machine.ApproveOverride(ctx, id, *override)
	}
	if err != nil {
		return h.transitionError(id, err)
	}

	return fmt.Sprintf("✅ *APPROVED & SENT*\n\n🎯 %s\n🎯 Tier: %s\n🆔 `%s`",
		signal.Prediction, strings.ToUpper(string(signal.TierAssignment)), signal.ID)
}

func (h *CommandHandler) reject(ctx context.Context, args []string) string {
	if len(args) < 1 {
		return "❌ Usage: /reject <signal_id> [reason]"
	}
	id := args[0]
	reason := strings.Join(args[1:], " ")

	signal, err := h.machine.Reject(ctx, id, reason)
	if err != nil {
		return h.transitionError(id, err)
	}
	if reason == "" {
		reason = "No reason provided"
	}
	return fmt.Sprintf("❌ *REJECTED*\n\n🎯 %s\n📝 Reason: %s\n🆔 `%s`", signal.Prediction, reason, id)
}

func (h *CommandHandler) preview(ctx context.Context, args []string) string {
	if len(args) < 1 {
		return "❌ Usage: /preview <signal_id>"
	}
	id := args[0]

	signal, err := h.repo.GetSignal(ctx, id)
	if err != nil {
		return h.transitionError(id, err)
	}

	now := h.now()
	premium := truncate(dispatch.PremiumAlert(signal, now), 500)
	free := truncate(dispatch.FreeAlert(signal, now), 400)

	return fmt.Sprintf("👀 *DUAL PREVIEW FOR* `%s`\n\n💎 *PREMIUM VERSION:*\n%s\n%s\n%s\n\n🆓 *FREE VERSION:*\n%s\n%s\n%s",
		id, divider, premium, divider, divider, free, divider)
}

func (h *CommandHandler) pending(ctx context.Context) string {
	pending, err := h.repo.ListPending(ctx, pendingListLimit)
	if err != nil {
		h.logger.Warn("list pending", "error", err)
		return "❌ Could not load pending signals"
	}
	if len(pending) == 0 {
		return "✅ *No pending signals for approval*"
	}

	now := h.now()
	var b strings.Builder
	fmt.Fprintf(&b, "📋 *PENDING APPROVAL (%d signals):*\n\n", len(pending))
	for i, signal := range pending {
		prediction := truncate(signal.Prediction, 45)
		fmt.Fprintf(&b, "*%d. %s*\n", i+1, prediction)
		fmt.Fprintf(&b, "   📊 %.0f%% | %s | 📡 %s | ⏰ %s ago\n",
			signal.Confidence*100, strings.ToUpper(string(signal.TierAssignment)),
			signal.Source, ageString(now.Sub(signal.DetectedAt)))
		fmt.Fprintf(&b, "   🆔 `%s` | ✅ `/approve %s` | ❌ `/reject %s`\n\n", signal.ID, signal.ID, signal.ID)
	}
	return b.String()
}

func (h *CommandHandler) stats(ctx context.Context) string {
	stats, err := h.repo.StatsSince(ctx, h.now().Add(-7*24*time.Hour))
	if err != nil {
		h.logger.Warn("load stats", "error", err)
		return "❌ Could not load stats"
	}

	approved := stats.ByStatus[domain.StatusApproved] + stats.ByStatus[domain.StatusAutoApproved]

	var b strings.Builder
	b.WriteString("📊 *SYSTEM STATS (Last 7 Days)*\n\n")
	b.WriteString("📈 *Signal Performance:*\n")
	fmt.Fprintf(&b, "• Total Detected: %d\n", stats.Total())
	fmt.Fprintf(&b, "• Approved: %d\n", approved)
	fmt.Fprintf(&b, "• Rejected: %d\n", stats.ByStatus[domain.StatusRejected])
	fmt.Fprintf(&b, "• Pending: %d\n\n", stats.ByStatus[domain.StatusPending])
	b.WriteString("📤 *Delivery Stats:*\n")
	fmt.Fprintf(&b, "• Premium Sent: %d\n", stats.PremiumSent)
	fmt.Fprintf(&b, "• Free Sent: %d\n", stats.FreeSent)
	fmt.Fprintf(&b, "• Auto-approved: %d\n\n", stats.AutoApproved)
	b.WriteString("📋 Send `/pending` to see current queue")
	return b.String()
}

func (h *CommandHandler) transitionError(id string, err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Sprintf("❌ Signal `%s` not found", id)
	case errors.Is(err, domain.ErrAlreadyProcessed):
		return fmt.Sprintf("❌ Signal `%s` already processed", id)
	default:
		h.logger.Warn("command failed", "signal", id, "error", err)
		return fmt.Sprintf("❌ Error processing `%s`", id)
	}
}

func (h *CommandHandler) reply(ctx context.Context, message string) {
	if h.adminChat == "" {
		h.logger.Info("admin reply (no admin chat configured)", "message", message)
		return
	}
	if err := h.transport.Send(ctx, h.adminChat, message); err != nil {
		h.logger.Warn("send admin reply", "error", err)
	}
}

const divider = "------------------------------"

const helpMessage = `🤖 *ADMIN COMMANDS*

📋 *Queue Management:*
• /pending - Show pending signals
• /approve <id> - Approve for assigned tier(s)
• /premium <id> - Send to premium only
• /free <id> - Send to free only (with delay)
• /both <id> - Send to both tiers
• /reject <id> [reason] - Reject signal
• /preview <id> - Preview both tier versions

📊 *Statistics:*
• /stats - System stats for the last 7 days

ℹ️ *Other:*
• /help - Show this help`

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func ageString(delta time.Duration) string {
	if delta >= 24*time.Hour {
		return fmt.Sprintf("%dd", int(delta.Hours())/24)
	}
	return fmt.Sprintf("%dh", int(delta.Hours()))
}
