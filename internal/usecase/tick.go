package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"velestra/internal/approval"
	"velestra/internal/classifier"
	"velestra/internal/config"
	"velestra/internal/digest"
	"velestra/internal/dispatch"
	"velestra/internal/domain"
	"velestra/internal/ports"
)

// Loop is the scheduler tick: poll feeds through the classifier and dedup
// gate into the state machine, re-scan delayed free releases, then run any
// due calendar jobs. Failure in one feed or one signal never aborts the rest
// of the tick; only an unavailable store does, and the next tick retries.
type Loop struct {
	feeds         []config.FeedConfig
	source        ports.FeedSource
	articles      ports.ArticleRepository
	classifier    *classifier.Classifier
	machine       *approval.Machine
	repo          ports.SignalRepository
	coordinator   *dispatch.Coordinator
	digests       *digest.Jobs
	recencyWindow time.Duration
	logger        *slog.Logger
}

// LoopDeps wires the tick's collaborators.
type LoopDeps struct {
	Feeds         []config.FeedConfig
	Source        ports.FeedSource
	Articles      ports.ArticleRepository
	Classifier    *classifier.Classifier
	Machine       *approval.Machine
	Repo          ports.SignalRepository
	Coordinator   *dispatch.Coordinator
	Digests       *digest.Jobs
	RecencyWindow time.Duration
	Logger        *slog.Logger
}

// NewLoop constructs the tick orchestrator.
func NewLoop(deps LoopDeps) *Loop {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		feeds:         deps.Feeds,
		source:        deps.Source,
		articles:      deps.Articles,
		classifier:    deps.Classifier,
		machine:       deps.Machine,
		repo:          deps.Repo,
		coordinator:   deps.Coordinator,
		digests:       deps.Digests,
		recencyWindow: deps.RecencyWindow,
		logger:        logger,
	}
}

// Tick runs one full pass. It returns an error only when the store is
// unavailable; everything else is logged and skipped.
func (l *Loop) Tick(ctx context.Context, now time.Time) error {
	if err := l.ingestFeeds(ctx, now); err != nil {
		return err
	}
	if err := l.releaseDelayed(ctx); err != nil {
		return err
	}
	if l.digests != nil {
		l.digests.RunDue(ctx, now)
	}
	return nil
}

func (l *Loop) ingestFeeds(ctx context.Context, now time.Time) error {
	for _, feed := range l.feeds {
		articles, err := l.source.Poll(ctx, feed.Name, feed.URL)
		if err != nil {
			l.logger.Warn("feed poll failed", "feed", feed.Name, "error", err)
			continue
		}

		for _, article := range articles {
			if now.Sub(article.PublishedAt) > l.recencyWindow {
				continue
			}

			fresh, err := l.articles.InsertArticleIfNew(ctx, article)
			if err != nil {
				if errors.Is(err, domain.ErrStoreUnavailable) {
					return fmt.Errorf("dedup gate: %w", err)
				}
				l.logger.Warn("dedup check failed", "article", article.ID, "error", err)
				continue
			}
			if !fresh {
				continue
			}

			signal := l.classifier.Classify(article, now)
			if signal == nil {
				continue
			}

			if _, err := l.machine.Create(ctx, *signal); err != nil {
				if errors.Is(err, domain.ErrStoreUnavailable) {
					return fmt.Errorf("create signal: %w", err)
				}
				l.logger.Warn("signal creation failed", "article", article.ID, "error", err)
			}
		}
	}
	return nil
}

func (l *Loop) releaseDelayed(ctx context.Context) error {
	candidates, err := l.repo.DelayedReleaseCandidates(ctx)
	if err != nil {
		return fmt.Errorf("scan delayed releases: %w", err)
	}

	for _, signal := range candidates {
		if err := l.coordinator.TryReleaseToFree(ctx, signal); err != nil {
			if errors.Is(err, domain.ErrStoreUnavailable) {
				return fmt.Errorf("release %s: %w", signal.ID, err)
			}
			l.logger.Warn("delayed release failed", "signal", signal.ID, "error", err)
		}
	}
	return nil
}
