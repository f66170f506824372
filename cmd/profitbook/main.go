package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"exchange_profitbook/internal/app"
	"exchange_profitbook/internal/domain/ledger"
	"exchange_profitbook/internal/infra/config"
	idb "exchange_profitbook/internal/infra/database"
	"exchange_profitbook/internal/infra/httpapi"
	"exchange_profitbook/internal/infra/logger"
	"exchange_profitbook/internal/infra/memory"
	"exchange_profitbook/internal/infra/scheduler"
	"exchange_profitbook/internal/infra/telegram"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")

	mainLogger.WithFields(logrus.Fields{
		"environment":    cfg.Environment,
		"storage_driver": cfg.StorageDriver,
		"sell_policy":    cfg.SellBalancePolicy,
		"bot_enabled":    cfg.BotEnabled(),
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, mainLogger); err != nil {
		mainLogger.WithError(err).Fatal("Application stopped with error")
	}
	mainLogger.Info("Application shut down gracefully.")
}

func run(ctx context.Context, cfg *config.AppConfig, mainLogger *logrus.Entry) error {
	repo, closeRepo, err := openRepository(ctx, cfg, mainLogger)
	if err != nil {
		return err
	}
	defer closeRepo()

	sellPolicy, err := app.ParseSellPolicy(cfg.SellBalancePolicy)
	if err != nil {
		return err
	}

	baseLogger := logrus.NewEntry(logger.Log)
	cycleService := app.NewCycleService(repo, baseLogger)
	transactionService := app.NewTransactionService(repo, sellPolicy, baseLogger)
	ledgerService := app.NewLedgerService(repo, baseLogger)
	mainLogger.Info("Ledger services initialized.")

	if cfg.BotEnabled() {
		stopBot, err := startBot(ctx, cfg, cycleService, transactionService, ledgerService, baseLogger)
		if err != nil {
			return err
		}
		defer stopBot()
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	auth := httpapi.NewAuthenticator(cfg.LoginPassword, cfg.JWTSecret, cfg.TokenTTL, cfg.RequireHTTPS, baseLogger)
	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Cycles:       cycleService,
			Transactions: transactionService,
			Ledger:       ledgerService,
			Auth:         auth,
			Logger:       baseLogger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		mainLogger.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	mainLogger.Info("Shutting down application...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openRepository(ctx context.Context, cfg *config.AppConfig, mainLogger *logrus.Entry) (ledger.Repository, func(), error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		mainLogger.Warn("Using in-memory storage, data is lost on restart.")
		return memory.NewStore(), func() {}, nil
	}

	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	mainLogger.Info("Database connection established successfully.")
	return idb.NewPostgresLedgerRepository(db), func() { db.Close() }, nil
}

// startBot starts the long poller and the digest job. The returned func stops both.
func startBot(
	ctx context.Context,
	cfg *config.AppConfig,
	cycles *app.CycleService,
	transactions *app.TransactionService,
	ls *app.LedgerService,
	baseLogger *logrus.Entry,
) (func(), error) {
	botLogger := logger.Component("telegram")
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := botLogger.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
			}
			entry.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		return nil, err
	}

	cmds := telegram.NewCommands(cycles, transactions, ls, baseLogger)
	telegram.RegisterBotCommands(bot, cfg.AdminTelegramID, botLogger)
	telegram.RegisterAdminHandlers(ctx, bot, cmds, cfg.AdminTelegramID, botLogger)
	telegram.RegisterConfirmationHandlers(ctx, bot, cmds, cfg.AdminTelegramID, botLogger)
	botLogger.Info("Telegram handlers registered.")

	reports := app.NewReportService(ls, telegram.NewTelebotAdapter(bot), cfg.AdminTelegramID, baseLogger)
	digest := scheduler.NewDigestScheduler(reports, cfg.CronSpecDailyDigest, baseLogger)
	if err := digest.Start(); err != nil {
		return nil, err
	}

	go bot.Start()
	return func() {
		bot.Stop()
		digest.Stop()
	}, nil
}
