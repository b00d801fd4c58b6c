package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"cryptoMarketAnalysis/internal/coingecko"
	"cryptoMarketAnalysis/internal/config"
	"cryptoMarketAnalysis/internal/finance"
	"cryptoMarketAnalysis/internal/logger"
	"cryptoMarketAnalysis/internal/openai"
	"cryptoMarketAnalysis/internal/report"
	"cryptoMarketAnalysis/internal/server"
	"cryptoMarketAnalysis/internal/service"
	"cryptoMarketAnalysis/internal/storage"
	"cryptoMarketAnalysis/internal/telegram"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: failed to load .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.OpenSQLite(cfg.Storage.DSN)
	if err != nil {
		lg.Fatal("open sqlite", zap.Error(err))
	}
	defer db.Close()
	if err := storage.InitSchema(ctx, db); err != nil {
		lg.Fatal("init schema", zap.Error(err))
	}
	lg.Info("db ready", zap.String("dsn", cfg.Storage.DSN))

	client := coingecko.New(coingecko.Config{
		BaseURL:         cfg.CoinGecko.BaseURL,
		APIKey:          cfg.CoinGecko.APIKey,
		APIKeyHeader:    cfg.CoinGecko.APIKeyHeader,
		Timeout:         cfg.CoinGecko.Timeout,
		RequestInterval: cfg.CoinGecko.RequestInterval,
		SnapInterval:    cfg.CoinGecko.SnapInterval,
	}, lg)

	loc := report.Location(cfg.Report.Timezone)
	opts := service.Options{
		Defaults: cfg.Analysis,
		Renderer: report.NewRenderer(loc, cfg.Report.Width, cfg.Report.Height),
		Cache:    report.NewCache(cfg.Server.ReportTTL),
		Usage:    storage.NewStore(db),
		Location: loc,
		Logger:   lg,
	}
	if cfg.OpenAI.Enabled() {
		opts.Commentator = openai.NewCommentator(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens)
		lg.Info("openai commentary enabled", zap.String("model", cfg.OpenAI.Model))
	}
	svc := service.New(finance.NewAnalyzer(client, lg), opts)

	var (
		bot     *telegram.Bot
		webhook http.HandlerFunc
	)
	if cfg.Telegram.Enabled() {
		bot, err = telegram.NewBot(cfg.Telegram.Token, cfg.Telegram.WebhookURL, svc, lg)
		if err != nil {
			lg.Fatal("telegram", zap.Error(err))
		}
		webhook = bot.WebhookHandler
		lg.Info("telegram bot initialized", zap.String("webhook", cfg.Telegram.WebhookURL))
	}

	srv, err := server.New(svc, webhook, lg)
	if err != nil {
		lg.Fatal("http", zap.Error(err))
	}
	if err := srv.ListenAndServe(ctx, ":"+cfg.Server.Port, cfg.Server.ShutdownTimeout); err != nil {
		lg.Error("server error", zap.Error(err))
	}
	if bot != nil {
		bot.Wait()
	}
	lg.Info("stopped")
}
