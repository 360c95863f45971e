package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/smitsergei/tma-subscription-sub002/internal/config"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/adapter"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/adapters/events"
	tele "github.com/smitsergei/tma-subscription-sub002/internal/infra/adapters/telegram"
	pg "github.com/smitsergei/tma-subscription-sub002/internal/infra/db/postgres"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/logging"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/metrics"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/payment"
	red "github.com/smitsergei/tma-subscription-sub002/internal/infra/redis"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/sched"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/security"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/web"
	"github.com/smitsergei/tma-subscription-sub002/internal/infra/worker"
	"github.com/smitsergei/tma-subscription-sub002/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, test bypass allowed)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	logger.Info().Str("env", cfg.Env).Str("version", version).Bool("dev", cfg.Runtime.Dev).Msg("starting")

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrations")
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	userRepo := pg.NewUserRepo(pool)
	adminRepo := pg.NewAdminRepo(pool)
	channelRepo := pg.NewChannelRepo(pool)
	productRepo := pg.NewProductRepoCacheDecorator(pg.NewProductRepo(pool), redisClient, cfg.Redis.TTL)
	paymentRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	demoRepo := pg.NewDemoAccessRepo(pool)
	promoRepo := pg.NewPromoRepo(pool)
	broadcastRepo := pg.NewBroadcastRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Security ----
	verifier := security.NewInitDataVerifier(cfg.Bot.Token, cfg.Auth)
	var sessions adapter.SessionManager
	if cfg.Auth.SessionSecret != "" {
		sessions = security.NewSessionManager(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)
	} else {
		logger.Warn().Msg("auth.session_secret not set; bearer sessions disabled")
	}

	// ---- Telegram ----
	var bot adapter.TelegramBotAdapter
	var realBot *tele.RealTelegramBotAdapter
	if cfg.Bot.Token != "" {
		realBot, err = tele.NewRealTelegramBotAdapter(&cfg.Bot, rateLimiter, 8, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		bot = realBot
	} else {
		logger.Warn().Msg("bot.token not set; messages are only logged")
		bot = tele.NewNoopBotAdapter(logger)
	}

	// ---- Events ----
	var publisher adapter.EventPublisher = events.NewLogPublisher(logger)
	if cfg.Events.AMQPURL != "" {
		rp, err := events.NewRabbitPublisher(cfg.Events, logger)
		if err != nil {
			logger.Error().Err(err).Msg("rabbitmq unavailable; events are only logged")
		} else {
			defer rp.Close()
			publisher = rp
		}
	}

	workers := worker.NewPool(4, logger)
	workers.Start(ctx)
	defer workers.Stop()

	// ---- Use cases ----
	identityUC := usecase.NewIdentityUseCase(verifier, sessions, userRepo, adminRepo, nil, logger)
	catalogUC := usecase.NewCatalogUseCase(channelRepo, productRepo, nil, logger)
	subUC := usecase.NewSubscriptionUseCase(subRepo, productRepo, channelRepo, userRepo, tm, publisher, nil, logger)
	demoUC := usecase.NewDemoUseCase(demoRepo, productRepo, tm, publisher, nil, logger)
	promoUC := usecase.NewPromoUseCase(promoRepo, tm, nil, logger)
	notifyUC := usecase.NewNotificationUseCase(bot, demoRepo, cfg.Bot.WebAppURL, nil, logger)
	paymentUC := usecase.NewPaymentUseCase(paymentRepo, productRepo, promoRepo, subUC, notifyUC, tm, publisher, nil,
		usecase.PaymentOptions{
			Currency:    cfg.Payment.Currency,
			MemoLength:  cfg.Payment.MemoLength,
			MaxAttempts: cfg.Payment.MemoMaxAttempts,
			PendingTTL:  cfg.Payment.PendingTTL,
		}, nil, logger)
	broadcastUC := usecase.NewBroadcastUseCase(userRepo, broadcastRepo, bot, workers, 25, nil, logger)

	if err := identityUC.EnsureAdmins(ctx, cfg.Bot.AdminIDs); err != nil {
		logger.Fatal().Err(err).Msg("bootstrap admins")
	}

	// ---- Scheduled jobs ----
	scheduler := sched.NewScheduler(locker, 5*time.Minute, logger)
	mustRegister := func(name, spec string, job sched.JobFunc) {
		if err := scheduler.Register(name, spec, job); err != nil {
			logger.Fatal().Err(err).Str("job", name).Msg("scheduler")
		}
	}
	mustRegister("subscription_expiry", cfg.Scheduler.ExpirySweepCron, sched.ExpirySweep(subUC))
	mustRegister("demo_reminders", cfg.Scheduler.DemoReminderCron, sched.DemoReminders(notifyUC, cfg.Scheduler.DemoReminderBefore))
	mustRegister("db_pool_stats", "@every 30s", sched.PoolStats(pool))
	if cfg.Payment.TON.WalletAddress != "" {
		watcher := sched.NewPaymentWatcher(payment.NewTonCenterClient(cfg.Payment.TON), paymentUC, cfg.Payment.Currency, logger)
		mustRegister("ton_payment_watch", cfg.Scheduler.PaymentWatchCron, watcher.Run)
	} else {
		logger.Warn().Msg("payment.ton.wallet_address not set; on-chain matching disabled")
	}
	scheduler.Start()

	// ---- HTTP ----
	server := web.NewServer(cfg.HTTP, cfg.RateLimit, web.Deps{
		Identity:      identityUC,
		Catalog:       catalogUC,
		Payments:      paymentUC,
		Subscriptions: subUC,
		Demos:         demoUC,
		Promos:        promoUC,
		Broadcasts:    broadcastUC,
		IPN:           payment.NewNOWPaymentsIPN(cfg.Payment.IPNSecret),
		RateLimiter:   rateLimiter,
		Ready: func(ctx context.Context) error {
			return errors.Join(pool.Ping(ctx), redisClient.Ping(ctx))
		},
	}, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	if realBot != nil {
		go func() {
			if err := realBot.StartPolling(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("telegram polling stopped")
			}
		}()
	}

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("scheduled jobs still running at shutdown")
	}
	logger.Info().Msg("bye")
}
