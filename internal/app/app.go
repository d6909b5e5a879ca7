package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"velestra/internal/approval"
	"velestra/internal/classifier"
	"velestra/internal/config"
	"velestra/internal/digest"
	"velestra/internal/dispatch"
	"velestra/internal/infrastructure/feed"
	"velestra/internal/infrastructure/scheduler"
	"velestra/internal/infrastructure/storage"
	"velestra/internal/infrastructure/telegram"
	"velestra/internal/logging"
	"velestra/internal/tier"
	"velestra/internal/usecase"
)

// Application wires configuration into the two long-running workers: the
// scheduler tick and the admin command listener. They share the repository,
// which provides the atomicity both rely on.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	loop     *usecase.Loop
	commands *usecase.CommandHandler
	ticker   *scheduler.IntervalScheduler
	adminDrv *scheduler.IntervalScheduler
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	repo := storage.NewSQLiteRepository(db)
	if err := repo.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	transport := telegram.NewClient(cfg.Telegram.BotToken)

	policy := tier.New(cfg.Tiers)
	coordinator := dispatch.NewCoordinator(dispatch.Deps{
		Repo:      repo,
		Transport: transport,
		Policy:    policy,
		Channels:  cfg.Telegram,
		Logger:    baseLogger.With("component", "dispatch"),
	})

	announcer := usecase.NewAdminAnnouncer(transport, cfg.Telegram.AdminChatID,
		cfg.Tiers.FreeDelay, baseLogger.With("component", "announcer"))

	machine := approval.NewMachine(approval.Deps{
		Repo:                 repo,
		Policy:               policy,
		Dispatcher:           coordinator,
		Announcer:            announcer,
		AutoApproveThreshold: cfg.Tiers.AutoApproveThreshold,
		Logger:               baseLogger.With("component", "approval"),
	})

	digests := digest.NewJobs(digest.Deps{
		Repo:        repo,
		Ledger:      repo,
		Transport:   transport,
		Provider:    digest.NewStaticProvider(),
		FreeChannel: cfg.Telegram.FreeChannelID,
		Logger:      baseLogger.With("component", "digest"),
	})

	loop := usecase.NewLoop(usecase.LoopDeps{
		Feeds:         cfg.Feeds,
		Source:        feed.NewPoller(nil),
		Articles:      repo,
		Classifier:    classifier.New(cfg.Scoring),
		Machine:       machine,
		Repo:          repo,
		Coordinator:   coordinator,
		Digests:       digests,
		RecencyWindow: cfg.Scoring.RecencyWindow,
		Logger:        baseLogger.With("component", "tick"),
	})

	var commands *usecase.CommandHandler
	if cfg.Telegram.AdminChatID != "" {
		source, err := telegram.NewUpdateSource(transport, cfg.Telegram.AdminChatID)
		if err != nil {
			return nil, fmt.Errorf("admin update source: %w", err)
		}
		commands = usecase.NewCommandHandler(usecase.CommandDeps{
			Source:    source,
			Machine:   machine,
			Repo:      repo,
			Transport: transport,
			AdminChat: cfg.Telegram.AdminChatID,
			Logger:    baseLogger.With("component", "admin"),
		})
	}

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		loop:     loop,
		commands: commands,
		ticker:   scheduler.NewIntervalScheduler(cfg.Scheduler.CheckInterval),
		adminDrv: scheduler.NewIntervalScheduler(cfg.Scheduler.AdminPollInterval),
	}, nil
}

// Run starts both workers and blocks until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	a.logger.Info("velestra starting",
		"feeds", len(a.cfg.Feeds),
		"keywords", len(a.cfg.Scoring.Keywords),
		"free_threshold", a.cfg.Tiers.FreeThreshold,
		"premium_threshold", a.cfg.Tiers.PremiumThreshold,
		"auto_approve_threshold", a.cfg.Tiers.AutoApproveThreshold,
		"free_delay", a.cfg.Tiers.FreeDelay,
		"max_free_per_week", a.cfg.Tiers.MaxFreePerWeek,
		"check_interval", a.cfg.Scheduler.CheckInterval,
	)

	err := a.ticker.Start(ctx, func(now time.Time) {
		if err := a.loop.Tick(ctx, now); err != nil {
			a.logger.Error("tick aborted, will retry next interval", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	if a.commands != nil {
		if err := a.adminDrv.Start(ctx, func(time.Time) {
			a.commands.PollAndHandle(ctx)
		}); err != nil {
			return fmt.Errorf("start admin listener: %w", err)
		}
		a.logger.Info("admin command listener started")
	} else {
		a.logger.Warn("no admin chat configured, manual approval unavailable")
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.ticker.Stop(stopCtx)
	_ = a.adminDrv.Stop(stopCtx)
	return nil
}
