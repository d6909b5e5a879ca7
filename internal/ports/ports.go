package ports

import (
	"context"
	"time"

	"velestra/internal/domain"
)

// FeedSource pulls fresh articles from one upstream feed. Transient failures
// must not be fatal to the tick; the caller isolates them per feed.
type FeedSource interface {
	Poll(ctx context.Context, name, url string) ([]domain.Article, error)
}

// ArticleRepository is the dedup ledger. Entries are append-only.
type ArticleRepository interface {
	// InsertArticleIfNew records the article and reports whether it was
	// unseen. A false return is the dedup gate: the article is dropped.
	InsertArticleIfNew(ctx context.Context, article domain.Article) (bool, error)
}

// SignalRepository persists signals with the atomicity guarantees the state
// machine relies on: every transition and every sent-flag flip checks its
// precondition and applies its write as one statement.
type SignalRepository interface {
	CreateSignal(ctx context.Context, signal domain.Signal) error
	GetSignal(ctx context.Context, id string) (domain.Signal, error)

	// TransitionApproval moves a pending signal to the given terminal status.
	// A non-nil tier replaces the stored tier assignment in the same write.
	// Returns domain.ErrNotFound when no signal has the id, and
	// domain.ErrAlreadyProcessed when the signal exists but is terminal.
	TransitionApproval(ctx context.Context, id string, status domain.ApprovalStatus, tier *domain.Tier, note string, at time.Time) error

	// ClaimSent atomically flips the tier's sent flag from false to true,
	// provided the signal is approved or auto-approved. The boolean reports
	// whether this caller won the claim; false means nothing to do.
	ClaimSent(ctx context.Context, id string, tier domain.Tier, at time.Time) (bool, error)

	// ReleaseSent clears a sent flag after a failed transmission so the next
	// relevant trigger retries it.
	ReleaseSent(ctx context.Context, id string, tier domain.Tier) error

	ListPending(ctx context.Context, limit int) ([]domain.Signal, error)

	// DelayedReleaseCandidates returns approved/auto-approved signals with
	// tier free or both whose free alert has not gone out yet.
	DelayedReleaseCandidates(ctx context.Context) ([]domain.Signal, error)

	// FreeSentCountSince counts free alerts dispatched in the window; the
	// delayed-release gate derives the weekly cap from it on every tick.
	FreeSentCountSince(ctx context.Context, since time.Time) (int, error)

	TopPremiumSince(ctx context.Context, since time.Time, limit int) ([]domain.Signal, error)
	StatsSince(ctx context.Context, since time.Time) (domain.Stats, error)
}

// JobLedger guards calendar jobs so each runs once per period.
type JobLedger interface {
	// MarkJobRun records the (job, period) pair and reports whether this is
	// the first run for that period.
	MarkJobRun(ctx context.Context, job, period string) (bool, error)
}

// Transport delivers one rendered message to one destination. It does not
// retry beyond its own bounded policy; a failure means "not yet sent".
type Transport interface {
	Send(ctx context.Context, destination, message string) error
}

// InboundCommand is one administrative instruction awaiting execution.
type InboundCommand struct {
	Text string
}

// CommandSource subscribes to operator commands. Implementations track their
// own cursor so each command is delivered once.
type CommandSource interface {
	PollCommands(ctx context.Context) ([]InboundCommand, error)
}

// ContentProvider supplies the narrative text for periodic digests. It is
// deliberately outside the signal state machine.
type ContentProvider interface {
	WeeklyTrend() string
	WeeklyInsight() string
	OracleQA() (question, answer string)
	MonthlyOutlook() string
	MissedOpportunities() string
}

// Scheduler drives the recurring tick.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
