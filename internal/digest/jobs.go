package digest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"velestra/internal/ports"
)

const (
	jobWeeklyDigest = "weekly_digest"
	jobMissedOpps   = "missed_opportunities"
	jobOracleQA     = "oracle_qa"
	jobMonthly      = "monthly_outlook"
)

// Jobs runs the calendar-triggered free-channel content. Each job is
// idempotent per calendar period: the job ledger records (job, period key)
// and only the first claim in a period actually sends.
type Jobs struct {
	repo        ports.SignalRepository
	ledger      ports.JobLedger
	transport   ports.Transport
	provider    ports.ContentProvider
	freeChannel string
	logger      *slog.Logger
}

// Deps wires the digest jobs.
type Deps struct {
	Repo        ports.SignalRepository
	Ledger      ports.JobLedger
	Transport   ports.Transport
	Provider    ports.ContentProvider
	FreeChannel string
	Logger      *slog.Logger
}

// NewJobs constructs the calendar job runner.
func NewJobs(deps Deps) *Jobs {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Jobs{
		repo:        deps.Repo,
		ledger:      deps.Ledger,
		transport:   deps.Transport,
		provider:    deps.Provider,
		freeChannel: deps.FreeChannel,
		logger:      logger,
	}
}

// RunDue executes every job whose scheduled time has arrived. A failing job
// does not block the others.
func (j *Jobs) RunDue(ctx context.Context, now time.Time) {
	if j.freeChannel == "" {
		j.logger.Debug("free channel not configured, skipping calendar jobs")
		return
	}

	type slot struct {
		name   string
		due    bool
		period string
		send   func(context.Context, time.Time) error
	}

	year, week := now.ISOWeek()
	weekKey := fmt.Sprintf("%d-W%02d", year, week)
	monthKey := now.Format("2006-01")

	slots := []slot{
		{jobWeeklyDigest, now.Weekday() == time.Sunday && now.Hour() >= 9, weekKey, j.sendWeeklyDigest},
		{jobMissedOpps, now.Weekday() == time.Wednesday && now.Hour() >= 14, weekKey, j.sendMissedOpportunities},
		{jobOracleQA, now.Weekday() == time.Friday && now.Hour() >= 16, weekKey, j.sendOracleQA},
		{jobMonthly, now.Weekday() == time.Sunday && now.Day() <= 7 && now.Hour() >= 10, monthKey, j.sendMonthlyOutlook},
	}

	for _, s := range slots {
		if !s.due {
			continue
		}
		first, err := j.ledger.MarkJobRun(ctx, s.name, s.period)
		if err != nil {
			j.logger.Warn("claim calendar job", "job", s.name, "error", err)
			continue
		}
		if !first {
			continue
		}
		if err := s.send(ctx, now); err != nil {
			j.logger.Warn("calendar job failed", "job", s.name, "error", err)
			continue
		}
		j.logger.Info("calendar job sent", "job", s.name, "period", s.period)
	}
}

func (j *Jobs) sendWeeklyDigest(ctx context.Context, now time.Time) error {
	top, err := j.repo.TopPremiumSince(ctx, now.Add(-7*24*time.Hour), 3)
	if err != nil {
		return fmt.Errorf("load top signals: %w", err)
	}
	stats, err := j.repo.StatsSince(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}

	var b strings.Builder
	b.WriteString("📊 *VELESTRA WEEKLY DIGEST*\n")
	fmt.Fprintf(&b, "*Free Edition - %s*\n\n", now.Format("January 2, 2006"))

	b.WriteString("🔥 *This Week's Top Signals:*\n")
	if len(top) == 0 {
		b.WriteString("• Market consolidation signals in AI infrastructure\n")
	}
	for i, signal := range top {
		prediction := signal.Prediction
		if len(prediction) > 60 {
			prediction = prediction[:60] + "..."
		}
		fmt.Fprintf(&b, "%d. %s (%.0f%% confidence)\n", i+1, prediction, signal.Confidence*100)
	}

	fmt.Fprintf(&b, "\n📈 *Trend Spotted:*\n%s\n", j.provider.WeeklyTrend())
	fmt.Fprintf(&b, "\n💡 *One Key Insight:*\n%s\n", j.provider.WeeklyInsight())
	fmt.Fprintf(&b, "\n📊 Pro subscribers received %d signals this week\n", stats.PremiumSent)
	b.WriteString("\n---\n💎 *Upgrade for real-time alerts & action plans*")

	return j.transport.Send(ctx, j.freeChannel, b.String())
}

func (j *Jobs) sendMissedOpportunities(ctx context.Context, now time.Time) error {
	message := "⚠️ *OPPORTUNITIES YOU MISSED THIS WEEK*\n\n" +
		j.provider.MissedOpportunities() +
		"\n\n---\nDon't miss the next wave: velestra.com/upgrade"
	return j.transport.Send(ctx, j.freeChannel, message)
}

func (j *Jobs) sendOracleQA(ctx context.Context, now time.Time) error {
	question, answer := j.provider.OracleQA()

	var b strings.Builder
	b.WriteString("🔮 *ASK THE ORACLE*\n")
	b.WriteString("*Weekly Q&A with Velestra Intelligence*\n\n")
	fmt.Fprintf(&b, "*Q: \"%s\"*\n\n", question)
	fmt.Fprintf(&b, "*A:* %s\n\n", answer)
	b.WriteString("---\n📝 Submit questions: reply with \"ORACLE: [your question]\"\n")
	fmt.Fprintf(&b, "Next Q&A: %s", now.Add(7*24*time.Hour).Format("January 2"))

	return j.transport.Send(ctx, j.freeChannel, b.String())
}

func (j *Jobs) sendMonthlyOutlook(ctx context.Context, now time.Time) error {
	var b strings.Builder
	b.WriteString("🔮 *VELESTRA PREDICTIONS*\n")
	fmt.Fprintf(&b, "*Free Monthly Edition - %s*\n\n", now.Format("January 2006"))
	b.WriteString(j.provider.MonthlyOutlook())
	b.WriteString("\n\n---\n💎 *Pro subscribers get specific timing, companies, and action plans*")

	return j.transport.Send(ctx, j.freeChannel, b.String())
}
