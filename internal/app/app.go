// Package app wires the triage pipeline from configuration. Both the queue
// worker and the one-shot runner share this assembly.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/mailsift/mailsift/internal/cache"
	"github.com/mailsift/mailsift/internal/config"
	"github.com/mailsift/mailsift/internal/database"
	"github.com/mailsift/mailsift/internal/mailstore"
	"github.com/mailsift/mailsift/internal/models"
	"github.com/mailsift/mailsift/internal/queue"
	"github.com/mailsift/mailsift/internal/services/classifier"
	"github.com/mailsift/mailsift/internal/triage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App holds the assembled pipeline and the connections it owns.
type App struct {
	Config       *config.Config
	DB           *database.DB
	Redis        *redis.Client
	Mail         mailstore.Store
	Queue        *queue.RabbitMQQueue
	Scheduler    queue.Scheduler
	Orchestrator *triage.Orchestrator

	logger *zap.Logger
}

// Build connects every backing service and assembles the orchestrator.
// On any failure the connections opened so far are closed.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, debugMode bool) (*App, error) {
	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
	}

	a := &App{Config: cfg, logger: logger}

	a.DB, err = database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := a.DB.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	a.Redis, err = cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		a.Close()
		return nil, err
	}
	store := cache.NewRedisStore(a.Redis)

	a.Queue, err = queue.NewRabbitMQQueue(cfg.RabbitMQURL)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Scheduler = queue.NewQueueScheduler(a.Queue, store, logger)

	a.Mail, err = mailstore.DialIMAP(
		cfg.IMAPAddr,
		cfg.IMAPUsername,
		cfg.IMAPPassword,
		cfg.ArchiveMailbox,
		models.VocabularyNames(),
		cfg.PreviewCharLimit,
		logger,
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	ruleRepo := database.NewRuleRepository(a.DB)
	suggestionRepo := database.NewSuggestionRepository(a.DB)
	runLogRepo := database.NewRunLogRepository(a.DB)
	stateRepo := database.NewStateRepository(a.DB)

	clf := classifier.NewOpenAIClassifier(cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, logger, debugMode)

	rules := triage.NewRuleTable(ruleRepo, store, cfg.RuleCacheTTL, logger)
	decisions := triage.NewDecisionCache(store, cfg.DecisionCacheTTL, logger)
	rejections := triage.NewRejectionCache(store, cfg.RejectionCacheTTL)

	cascade := triage.NewCascade(a.Mail, rules, decisions, clf, logger)
	limiter := triage.NewSafetyLimiter(triage.Limits{
		MaxRuntime:         cfg.MaxRuntime,
		MaxItems:           cfg.MaxItemsPerRun,
		APICallSafetyLimit: cfg.APICallSafetyLimit,
	}, logger)

	var minAge time.Duration
	if !cfg.ProcessRecentMail {
		minAge = cfg.RecentMailAge
	}
	driver := triage.NewBatchDriver(a.Mail, cascade, limiter, cfg.BatchSize, minAge, logger)

	suggestions := triage.NewSuggestionEngine(
		a.Mail, rules, suggestionRepo, rejections,
		cfg.SuggestionThreshold, cfg.SuggestionScanLimit, logger,
	)
	ledger := triage.NewQuotaLedger(stateRepo, loc, logger)

	a.Orchestrator = triage.NewOrchestrator(
		a.Mail, rules, driver, suggestions, ledger,
		a.Scheduler, stateRepo, runLogRepo,
		loc, cfg.FollowUpDelay, logger,
	)

	return a, nil
}

// Close releases all connections the app owns, in reverse order of opening.
func (a *App) Close() {
	if a.Mail != nil {
		if err := a.Mail.Close(); err != nil {
			a.logger.Warn("failed_to_close_mail_store", zap.Error(err))
		}
	}
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil {
			a.logger.Warn("failed_to_close_queue", zap.Error(err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.logger.Warn("failed_to_close_redis", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.logger.Warn("failed_to_close_database", zap.Error(err))
		}
	}
}
