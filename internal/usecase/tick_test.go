package usecase

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"velestra/internal/approval"
	"velestra/internal/classifier"
	"velestra/internal/config"
	"velestra/internal/dispatch"
	"velestra/internal/domain"
	"velestra/internal/ports"
	"velestra/internal/tier"
)

// memoryStore implements the signal repository and the article dedup ledger
// with the same transition and claim semantics as the SQLite implementation.
type memoryStore struct {
	signals  map[string]domain.Signal
	sentFree map[string]time.Time
	articles map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		signals:  map[string]domain.Signal{},
		sentFree: map[string]time.Time{},
		articles: map[string]bool{},
	}
}

func (s *memoryStore) CreateSignal(ctx context.Context, signal domain.Signal) error {
	if _, exists := s.signals[signal.ID]; exists {
		return domain.ErrDuplicateID
	}
	s.signals[signal.ID] = signal
	return nil
}

func (s *memoryStore) GetSignal(ctx context.Context, id string) (domain.Signal, error) {
	signal, ok := s.signals[id]
	if !ok {
		return domain.Signal{}, domain.ErrNotFound
	}
	return signal, nil
}

func (s *memoryStore) TransitionApproval(ctx context.Context, id string, status domain.ApprovalStatus, t *domain.Tier, note string, at time.Time) error {
	signal, ok := s.signals[id]
	if !ok {
		return domain.ErrNotFound
	}
	if signal.ApprovalStatus.Terminal() {
		return domain.ErrAlreadyProcessed
	}
	signal.ApprovalStatus = status
	signal.Notes = note
	signal.ApprovedAt = &at
	if t != nil {
		signal.TierAssignment = *t
	}
	s.signals[id] = signal
	return nil
}

func (s *memoryStore) ClaimSent(ctx context.Context, id string, t domain.Tier, at time.Time) (bool, error) {
	signal, ok := s.signals[id]
	if !ok {
		return false, nil
	}
	if signal.ApprovalStatus != domain.StatusApproved && signal.ApprovalStatus != domain.StatusAutoApproved {
		return false, nil
	}
	switch t {
	case domain.TierFree:
		if signal.SentFree {
			return false, nil
		}
		signal.SentFree = true
		s.sentFree[id] = at
	case domain.TierPremium:
		if signal.SentPremium {
			return false, nil
		}
		signal.SentPremium = true
	default:
		return false, fmt.Errorf("tier %q has no sent flag", t)
	}
	s.signals[id] = signal
	return true, nil
}

func (s *memoryStore) ReleaseSent(ctx context.Context, id string, t domain.Tier) error {
	signal, ok := s.signals[id]
	if !ok {
		return nil
	}
	switch t {
	case domain.TierFree:
		signal.SentFree = false
		delete(s.sentFree, id)
	case domain.TierPremium:
		signal.SentPremium = false
	}
	s.signals[id] = signal
	return nil
}

func (s *memoryStore) ListPending(ctx context.Context, limit int) ([]domain.Signal, error) {
	var pending []domain.Signal
	for _, signal := range s.signals {
		if signal.ApprovalStatus == domain.StatusPending {
			pending = append(pending, signal)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].DetectedAt.After(pending[j].DetectedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *memoryStore) DelayedReleaseCandidates(ctx context.Context) ([]domain.Signal, error) {
	var candidates []domain.Signal
	for _, signal := range s.signals {
		if signal.ApprovalStatus != domain.StatusApproved && signal.ApprovalStatus != domain.StatusAutoApproved {
			continue
		}
		if signal.TierAssignment != domain.TierFree && signal.TierAssignment != domain.TierBoth {
			continue
		}
		if signal.SentFree {
			continue
		}
		candidates = append(candidates, signal)
	}
	return candidates, nil
}

func (s *memoryStore) FreeSentCountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	for _, at := range s.sentFree {
		if !at.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *memoryStore) TopPremiumSince(ctx context.Context, since time.Time, limit int) ([]domain.Signal, error) {
	return nil, nil
}

func (s *memoryStore) StatsSince(ctx context.Context, since time.Time) (domain.Stats, error) {
	stats := domain.Stats{ByStatus: map[domain.ApprovalStatus]int{}}
	for _, signal := range s.signals {
		stats.ByStatus[signal.ApprovalStatus]++
		if signal.SentFree {
			stats.FreeSent++
		}
		if signal.SentPremium {
			stats.PremiumSent++
		}
	}
	stats.AutoApproved = stats.ByStatus[domain.StatusAutoApproved]
	return stats, nil
}

func (s *memoryStore) InsertArticleIfNew(ctx context.Context, article domain.Article) (bool, error) {
	if s.articles[article.ID] {
		return false, nil
	}
	s.articles[article.ID] = true
	return true, nil
}

type stubFeedSource struct {
	articles map[string][]domain.Article
	failing  map[string]bool
}

func (s *stubFeedSource) Poll(ctx context.Context, name, url string) ([]domain.Article, error) {
	if s.failing[name] {
		return nil, fmt.Errorf("connection refused")
	}
	return s.articles[name], nil
}

type channelTransport struct {
	byDestination map[string][]string
}

func newChannelTransport() *channelTransport {
	return &channelTransport{byDestination: map[string][]string{}}
}

func (t *channelTransport) Send(ctx context.Context, destination, message string) error {
	t.byDestination[destination] = append(t.byDestination[destination], message)
	return nil
}

type tickFixture struct {
	loop      *Loop
	store     *memoryStore
	transport *channelTransport
	machine   *approval.Machine
	now       time.Time
}

func newTickFixture(t *testing.T, source ports.FeedSource, feeds []config.FeedConfig) *tickFixture {
	t.Helper()

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	transport := newChannelTransport()

	tierCfg := config.TierConfig{
		FreeThreshold:        0.90,
		PremiumThreshold:     0.70,
		AutoApproveThreshold: 0.95,
		FreeDelay:            18 * time.Hour,
		MaxFreePerWeek:       2,
	}
	policy := tier.New(tierCfg)

	coordinator := dispatch.NewCoordinator(dispatch.Deps{
		Repo:      store,
		Transport: transport,
		Policy:    policy,
		Channels: config.TelegramConfig{
			AdminChatID:      "admin",
			FreeChannelID:    "@free",
			PremiumChannelID: "@premium",
		},
		Now: func() time.Time { return now },
	})

	announcer := NewAdminAnnouncer(transport, "admin", tierCfg.FreeDelay, nil)

	machine := approval.NewMachine(approval.Deps{
		Repo:                 store,
		Policy:               policy,
		Dispatcher:           coordinator,
		Announcer:            announcer,
		AutoApproveThreshold: tierCfg.AutoApproveThreshold,
		Now:                  func() time.Time { return now },
	})

	loop := NewLoop(LoopDeps{
		Feeds:  feeds,
		Source: source,
		Classifier: classifier.New(config.ScoringConfig{
			KeywordWeight: 0.20,
			MinConfidence: 0.50,
			Keywords:      []string{"ai", "startup", "funding"},
		}),
		Articles:      store,
		Machine:       machine,
		Repo:          store,
		Coordinator:   coordinator,
		RecencyWindow: 4 * time.Hour,
	})

	return &tickFixture{loop: loop, store: store, transport: transport, machine: machine, now: now}
}

func freshArticle(title string, now time.Time) domain.Article {
	return domain.Article{
		ID:          "hash-" + title,
		Title:       title,
		URL:         "https://example.com/" + title,
		Source:      "TestFeed",
		PublishedAt: now.Add(-time.Hour),
	}
}

func TestTickAutoApprovesAndSendsPremiumOnce(t *testing.T) {
	t.Parallel()

	feeds := []config.FeedConfig{{Name: "TestFeed", URL: "https://example.com/feed"}}
	source := &stubFeedSource{articles: map[string][]domain.Article{}}
	f := newTickFixture(t, source, feeds)

	// 3 keywords * 0.20 + acquisition bonus, clamped to 1.0: auto-approved.
	source.articles["TestFeed"] = []domain.Article{
		freshArticle("AI startup funding merger confirmed", f.now),
	}

	require.NoError(t, f.loop.Tick(context.Background(), f.now))

	require.Len(t, f.store.signals, 1)
	for _, signal := range f.store.signals {
		require.Equal(t, domain.StatusAutoApproved, signal.ApprovalStatus)
		require.Equal(t, domain.TierBoth, signal.TierAssignment)
		require.True(t, signal.SentPremium)
		require.False(t, signal.SentFree, "free leg waits out the delay")
	}

	require.Len(t, f.transport.byDestination["@premium"], 1)
	require.Empty(t, f.transport.byDestination["@free"])
	require.Len(t, f.transport.byDestination["admin"], 1, "auto-approval confirmation")

	// The same feed content on the next tick is fully deduplicated.
	require.NoError(t, f.loop.Tick(context.Background(), f.now.Add(5*time.Minute)))
	require.Len(t, f.store.signals, 1)
	require.Len(t, f.transport.byDestination["@premium"], 1)
}

func TestTickQueuesMediumConfidenceForApproval(t *testing.T) {
	t.Parallel()

	feeds := []config.FeedConfig{{Name: "TestFeed", URL: "https://example.com/feed"}}
	source := &stubFeedSource{articles: map[string][]domain.Article{}}
	f := newTickFixture(t, source, feeds)

	// 2 keywords * 0.20 + ipo bonus 0.35 = 0.75: pending, premium tier.
	source.articles["TestFeed"] = []domain.Article{
		freshArticle("AI startup stock listing rumored", f.now),
	}

	require.NoError(t, f.loop.Tick(context.Background(), f.now))

	require.Len(t, f.store.signals, 1)
	for _, signal := range f.store.signals {
		require.Equal(t, domain.StatusPending, signal.ApprovalStatus)
		require.Equal(t, domain.TierPremium, signal.TierAssignment)
	}

	require.Empty(t, f.transport.byDestination["@premium"], "pending signals do not dispatch")
	require.Len(t, f.transport.byDestination["admin"], 1, "approval request")
}

func TestTickIsolatesFeedFailures(t *testing.T) {
	t.Parallel()

	feeds := []config.FeedConfig{
		{Name: "Broken", URL: "https://example.com/broken"},
		{Name: "TestFeed", URL: "https://example.com/feed"},
	}
	source := &stubFeedSource{
		articles: map[string][]domain.Article{},
		failing:  map[string]bool{"Broken": true},
	}
	f := newTickFixture(t, source, feeds)
	source.articles["TestFeed"] = []domain.Article{
		freshArticle("AI startup funding merger confirmed", f.now),
	}

	require.NoError(t, f.loop.Tick(context.Background(), f.now), "one dead feed must not abort the tick")
	require.Len(t, f.store.signals, 1)
}

func TestTickSkipsStaleArticles(t *testing.T) {
	t.Parallel()

	feeds := []config.FeedConfig{{Name: "TestFeed", URL: "https://example.com/feed"}}
	source := &stubFeedSource{articles: map[string][]domain.Article{}}
	f := newTickFixture(t, source, feeds)

	stale := freshArticle("AI startup funding merger confirmed", f.now)
	stale.PublishedAt = f.now.Add(-6 * time.Hour)
	source.articles["TestFeed"] = []domain.Article{stale}

	require.NoError(t, f.loop.Tick(context.Background(), f.now))
	require.Empty(t, f.store.signals, "articles outside the recency window are dropped")
	require.Empty(t, f.store.articles, "stale articles never reach the dedup ledger")
}

func TestTickReleasesDelayedFreeAlerts(t *testing.T) {
	t.Parallel()

	feeds := []config.FeedConfig{{Name: "TestFeed", URL: "https://example.com/feed"}}
	source := &stubFeedSource{articles: map[string][]domain.Article{}}
	f := newTickFixture(t, source, feeds)

	detected := f.now.Add(-20 * time.Hour)
	approvedAt := f.now.Add(-19 * time.Hour)
	f.store.signals["sig1"] = domain.Signal{
		ID:             "sig1",
		Type:           domain.TypeFunding,
		Source:         "TestFeed",
		Content:        "Example raised a round",
		Confidence:     0.92,
		DetectedAt:     detected,
		Prediction:     "New funding development: Example raised a round",
		Evidence:       []string{"Keywords: funding"},
		ApprovalStatus: domain.StatusApproved,
		TierAssignment: domain.TierBoth,
		SentPremium:    true,
		ApprovedAt:     &approvedAt,
	}

	require.NoError(t, f.loop.Tick(context.Background(), f.now))

	require.Len(t, f.transport.byDestination["@free"], 1)
	require.True(t, f.store.signals["sig1"].SentFree)

	// Re-ticking does not send the free alert again.
	require.NoError(t, f.loop.Tick(context.Background(), f.now.Add(5*time.Minute)))
	require.Len(t, f.transport.byDestination["@free"], 1)
}

func TestTickHoldsFreeAlertInsideDelay(t *testing.T) {
	t.Parallel()

	feeds := []config.FeedConfig{{Name: "TestFeed", URL: "https://example.com/feed"}}
	source := &stubFeedSource{articles: map[string][]domain.Article{}}
	f := newTickFixture(t, source, feeds)

	approvedAt := f.now.Add(-time.Hour)
	f.store.signals["sig1"] = domain.Signal{
		ID:             "sig1",
		Source:         "TestFeed",
		Content:        "Example raised a round",
		Confidence:     0.92,
		DetectedAt:     f.now.Add(-2 * time.Hour),
		Prediction:     "New funding development: Example raised a round",
		ApprovalStatus: domain.StatusApproved,
		TierAssignment: domain.TierBoth,
		ApprovedAt:     &approvedAt,
	}

	require.NoError(t, f.loop.Tick(context.Background(), f.now))
	require.Empty(t, f.transport.byDestination["@free"])
	require.False(t, f.store.signals["sig1"].SentFree)
}

func TestTickEnforcesWeeklyFreeCap(t *testing.T) {
	t.Parallel()

	feeds := []config.FeedConfig{{Name: "TestFeed", URL: "https://example.com/feed"}}
	source := &stubFeedSource{articles: map[string][]domain.Article{}}
	f := newTickFixture(t, source, feeds)

	approvedAt := f.now.Add(-30 * time.Hour)
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("sig%d", i)
		f.store.signals[id] = domain.Signal{
			ID:             id,
			Source:         "TestFeed",
			Content:        fmt.Sprintf("Example %d raised a round", i),
			Confidence:     0.92,
			DetectedAt:     f.now.Add(-40 * time.Hour),
			Prediction:     fmt.Sprintf("New funding development: Example %d", i),
			ApprovalStatus: domain.StatusApproved,
			TierAssignment: domain.TierBoth,
			ApprovedAt:     &approvedAt,
		}
	}

	require.NoError(t, f.loop.Tick(context.Background(), f.now))
	require.Len(t, f.transport.byDestination["@free"], 2, "cap is two free alerts per trailing week")
}
