package approval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"velestra/internal/domain"
	"velestra/internal/ports"
	"velestra/internal/tier"
)

const (
	idLength         = 16
	idCollisionTries = 5
)

// Dispatcher is the slice of the dispatch coordinator the machine needs.
type Dispatcher interface {
	SendToTier(ctx context.Context, signal domain.Signal, t domain.Tier) error
}

// Announcer receives lifecycle notifications for the operator. Failures to
// announce are logged, never surfaced: the transition has already happened.
type Announcer interface {
	ApprovalRequested(ctx context.Context, signal domain.Signal)
	AutoApproved(ctx context.Context, signal domain.Signal)
}

// Machine owns each signal's lifecycle from creation through its terminal
// disposition. Pending is the only non-terminal status; every transition is
// applied by the repository as one atomic compare-and-set, so concurrent
// operator actions cannot approve-after-reject or double-dispatch.
type Machine struct {
	repo                 ports.SignalRepository
	policy               *tier.Policy
	dispatcher           Dispatcher
	announcer            Announcer
	autoApproveThreshold float64
	logger               *slog.Logger
	now                  func() time.Time
}

// Deps wires the machine's collaborators.
type Deps struct {
	Repo                 ports.SignalRepository
	Policy               *tier.Policy
	Dispatcher           Dispatcher
	Announcer            Announcer
	AutoApproveThreshold float64
	Logger               *slog.Logger
	Now                  func() time.Time
}

// NewMachine constructs the state machine.
func NewMachine(deps Deps) *Machine {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		repo:                 deps.Repo,
		policy:               deps.Policy,
		dispatcher:           deps.Dispatcher,
		announcer:            deps.Announcer,
		autoApproveThreshold: deps.AutoApproveThreshold,
		logger:               logger,
		now:                  now,
	}
}

// Create assigns an id, computes the initial tier assignment, and persists
// the signal as pending. Signals at or above the auto-approve threshold
// transition to auto_approved and dispatch synchronously within the same
// call; everything else waits for an explicit operator decision.
func (m *Machine) Create(ctx context.Context, signal domain.Signal) (domain.Signal, error) {
	signal.ApprovalStatus = domain.StatusPending
	signal.TierAssignment = m.policy.Assign(signal)
	if signal.DetectedAt.IsZero() {
		signal.DetectedAt = m.now()
	}

	if err := m.insertWithUniqueID(ctx, &signal); err != nil {
		return domain.Signal{}, err
	}
	m.logger.Info("signal queued for approval",
		"signal", signal.ID, "type", signal.Type, "tier", signal.TierAssignment,
		"confidence", signal.Confidence)

	if signal.Confidence >= m.autoApproveThreshold {
		return m.autoApprove(ctx, signal)
	}

	if m.announcer != nil {
		m.announcer.ApprovalRequested(ctx, signal)
	}
	return signal, nil
}

func (m *Machine) autoApprove(ctx context.Context, signal domain.Signal) (domain.Signal, error) {
	at := m.now()
	if err := m.repo.TransitionApproval(ctx, signal.ID, domain.StatusAutoApproved, nil, "Auto-approved (high confidence)", at); err != nil {
		return domain.Signal{}, fmt.Errorf("auto-approve %s: %w", signal.ID, err)
	}
	signal.ApprovalStatus = domain.StatusAutoApproved
	signal.ApprovedAt = &at
	m.logger.Info("signal auto-approved", "signal", signal.ID)

	if err := m.dispatcher.SendToTier(ctx, signal, signal.TierAssignment); err != nil {
		return domain.Signal{}, fmt.Errorf("dispatch auto-approved %s: %w", signal.ID, err)
	}
	if m.announcer != nil {
		m.announcer.AutoApproved(ctx, signal)
	}
	return signal, nil
}

// Approve moves a pending signal to approved and dispatches it with the
// tier assignment computed at creation.
func (m *Machine) Approve(ctx context.Context, id string) (domain.Signal, error) {
	return m.approve(ctx, id, nil, "Manually approved")
}

// ApproveOverride approves a pending signal but replaces its tier assignment
// with the operator's explicit choice before dispatch. This is the only way
// the tier assignment changes after creation.
func (m *Machine) ApproveOverride(ctx context.Context, id string, t domain.Tier) (domain.Signal, error) {
	switch t {
	case domain.TierPremium, domain.TierFree, domain.TierBoth:
	default:
		return domain.Signal{}, fmt.Errorf("tier %q is not a valid override", t)
	}
	return m.approve(ctx, id, &t, fmt.Sprintf("Override: %s only", t))
}

func (m *Machine) approve(ctx context.Context, id string, override *domain.Tier, note string) (domain.Signal, error) {
	at := m.now()
	if err := m.repo.TransitionApproval(ctx, id, domain.StatusApproved, override, note, at); err != nil {
		return domain.Signal{}, err
	}

	signal, err := m.repo.GetSignal(ctx, id)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("reload approved %s: %w", id, err)
	}
	m.logger.Info("signal approved", "signal", id, "tier", signal.TierAssignment)

	if err := m.dispatcher.SendToTier(ctx, signal, signal.TierAssignment); err != nil {
		return domain.Signal{}, fmt.Errorf("dispatch approved %s: %w", id, err)
	}
	return signal, nil
}

// Reject moves a pending signal to rejected with the given reason. No
// dispatch happens.
func (m *Machine) Reject(ctx context.Context, id, reason string) (domain.Signal, error) {
	if reason == "" {
		reason = "No reason provided"
	}
	if err := m.repo.TransitionApproval(ctx, id, domain.StatusRejected, nil, "Rejected: "+reason, m.now()); err != nil {
		return domain.Signal{}, err
	}
	m.logger.Info("signal rejected", "signal", id, "reason", reason)
	return m.repo.GetSignal(ctx, id)
}

// insertWithUniqueID derives a deterministic id from source, content, and
// creation time, then retries with a nonce on the unlikely collision. The
// id is a truncated SHA-256, long enough that collisions are an anomaly
// rather than an expectation.
func (m *Machine) insertWithUniqueID(ctx context.Context, signal *domain.Signal) error {
	for nonce := 0; nonce < idCollisionTries; nonce++ {
		signal.ID = deriveID(signal.Source, signal.Content, signal.DetectedAt, nonce)
		err := m.repo.CreateSignal(ctx, *signal)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateID) {
			return fmt.Errorf("create signal: %w", err)
		}
		m.logger.Warn("signal id collision, retrying with nonce", "signal", signal.ID, "nonce", nonce+1)
	}
	return fmt.Errorf("create signal: exhausted %d id collision retries", idCollisionTries)
}

func deriveID(source, content string, detectedAt time.Time, nonce int) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte(content))
	h.Write([]byte(detectedAt.UTC().Format(time.RFC3339Nano)))
	if nonce > 0 {
		h.Write([]byte(strconv.Itoa(nonce)))
	}
	return hex.EncodeToString(h.Sum(nil))[:idLength]
}
