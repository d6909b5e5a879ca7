package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"velestra/internal/config"
	"velestra/internal/domain"
	"velestra/internal/ports"
	"velestra/internal/tier"
)

// Coordinator delivers approved signals to their tier destinations. Every
// send is idempotent per (signal, tier): the sent flag is claimed with a
// compare-and-set before transmission and released again if the transmission
// fails, so concurrent triggers cannot double-send and failures are retried
// by the next relevant trigger.
type Coordinator struct {
	repo      ports.SignalRepository
	transport ports.Transport
	policy    *tier.Policy
	channels  config.TelegramConfig
	logger    *slog.Logger
	now       func() time.Time
}

// Deps wires the coordinator's collaborators.
type Deps struct {
	Repo      ports.SignalRepository
	Transport ports.Transport
	Policy    *tier.Policy
	Channels  config.TelegramConfig
	Logger    *slog.Logger
	Now       func() time.Time
}

// NewCoordinator constructs the dispatch component.
func NewCoordinator(deps Deps) *Coordinator {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		repo:      deps.Repo,
		transport: deps.Transport,
		policy:    deps.Policy,
		channels:  deps.Channels,
		logger:    logger,
		now:       now,
	}
}

// SendToTier dispatches an approved signal according to its tier decision.
// Premium goes out immediately; the free leg passes through the release gate
// and may be withheld for the delayed-release scan to pick up later.
func (c *Coordinator) SendToTier(ctx context.Context, signal domain.Signal, t domain.Tier) error {
	switch t {
	case domain.TierPremium:
		return c.sendPremium(ctx, signal)
	case domain.TierFree:
		return c.TryReleaseToFree(ctx, signal)
	case domain.TierBoth:
		if err := c.sendPremium(ctx, signal); err != nil {
			return err
		}
		return c.TryReleaseToFree(ctx, signal)
	default:
		c.logger.Debug("signal assigned to no tier, nothing to dispatch", "signal", signal.ID)
		return nil
	}
}

// TryReleaseToFree consults the release gate and sends the free alert when it
// allows. A withheld signal stays a candidate for the next scheduler tick.
func (c *Coordinator) TryReleaseToFree(ctx context.Context, signal domain.Signal) error {
	now := c.now()

	weekly, err := c.repo.FreeSentCountSince(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		return fmt.Errorf("count weekly free sends: %w", err)
	}

	decision := c.policy.ShouldReleaseToFree(signal, weekly, now)
	if !decision.Send {
		c.logger.Info("free alert withheld", "signal", signal.ID, "reason", decision.Reason)
		return nil
	}

	return c.sendFree(ctx, signal)
}

func (c *Coordinator) sendPremium(ctx context.Context, signal domain.Signal) error {
	if c.channels.PremiumChannelID == "" {
		c.logger.Warn("premium channel not configured, skipping send", "signal", signal.ID)
		return nil
	}
	return c.deliver(ctx, signal, domain.TierPremium, c.channels.PremiumChannelID, PremiumAlert(signal, c.now()))
}

func (c *Coordinator) sendFree(ctx context.Context, signal domain.Signal) error {
	if c.channels.FreeChannelID == "" {
		c.logger.Warn("free channel not configured, skipping send", "signal", signal.ID)
		return nil
	}
	return c.deliver(ctx, signal, domain.TierFree, c.channels.FreeChannelID, FreeAlert(signal, c.now()))
}

func (c *Coordinator) deliver(ctx context.Context, signal domain.Signal, t domain.Tier, destination, message string) error {
	claimed, err := c.repo.ClaimSent(ctx, signal.ID, t, c.now())
	if err != nil {
		return fmt.Errorf("claim %s send for %s: %w", t, signal.ID, err)
	}
	if !claimed {
		c.logger.Debug("send already recorded, skipping", "signal", signal.ID, "tier", t)
		return nil
	}

	if err := c.transport.Send(ctx, destination, message); err != nil {
		// Transport failure is not fatal: put the flag back so the next
		// trigger retries the send.
		if relErr := c.repo.ReleaseSent(ctx, signal.ID, t); relErr != nil {
			c.logger.Error("release sent flag after failed transmit", "signal", signal.ID, "tier", t, "error", relErr)
		}
		c.logger.Warn("transmit failed, will retry on next trigger", "signal", signal.ID, "tier", t, "error", err)
		return nil
	}

	c.logger.Info("alert sent", "signal", signal.ID, "tier", t)
	return nil
}
