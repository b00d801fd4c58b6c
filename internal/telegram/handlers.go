package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"cryptoMarketAnalysis/internal/config"
	"cryptoMarketAnalysis/internal/finance"
	"cryptoMarketAnalysis/internal/report"
	"cryptoMarketAnalysis/internal/service"
	"cryptoMarketAnalysis/internal/storage"
)

// Sender is the part of *tgbotapi.BotAPI the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Analyst is implemented by *service.Service.
type Analyst interface {
	Analyze(ctx context.Context, req service.Request) (*service.Result, error)
	Usage(ctx context.Context, days int) (*service.Usage, error)
	Universe() finance.Universe
	Defaults() config.AnalysisConfig
}

// photoKinds are the charts sent back for /analyze.
var photoKinds = []report.ChartKind{report.ChartPrice, report.ChartDrawdown, report.ChartVolatility}

type Handlers struct {
	api     Sender
	svc     Analyst
	logger  *zap.Logger
	timeout time.Duration
}

func NewHandlers(api Sender, svc Analyst, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{api: api, svc: svc, logger: logger.Named("telegram"), timeout: 2 * time.Minute}
}

func (h *Handlers) HandleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m == nil || m.Chat == nil {
		return
	}
	txt := strings.TrimSpace(m.Text)
	switch {
	case reAnalyze.MatchString(txt):
		g := reAnalyze.FindStringSubmatch(txt)
		ids, days, err := ParseAnalyzeArgs(g[1])
		if err != nil {
			h.reply(m.Chat.ID, "Usage: /analyze ID [ID ...] [window], e.g. /analyze bitcoin solana 90d ("+err.Error()+")")
			return
		}
		h.handleAnalyze(ctx, m.Chat.ID, ids, days)

	case reCoins.MatchString(txt):
		h.handleCoins(m.Chat.ID)

	case reUsage.MatchString(txt):
		days := 7
		if g := reUsage.FindStringSubmatch(txt); len(g) == 2 && g[1] != "" {
			days, _ = strconv.Atoi(g[1])
			days = min(max(days, 1), 90)
		}
		h.handleUsage(ctx, m.Chat.ID, days)

	case reHelp.MatchString(txt):
		h.handleHelp(m.Chat.ID)
	}
}

func (h *Handlers) handleAnalyze(ctx context.Context, chatID int64, ids []finance.AssetID, days int) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	d := h.svc.Defaults()
	label := "default selection"
	if len(ids) > 0 {
		label = joinIDs(ids)
	}
	if days == 0 {
		days = d.LookbackDays
	}
	h.reply(chatID, fmt.Sprintf("Analyzing %s over %dd…", label, days))

	res, err := h.svc.Analyze(ctx, service.Request{Assets: ids, LookbackDays: days, Source: storage.SourceTelegram, ChatID: chatID})
	if err != nil {
		h.logger.Warn("analyze failed", zap.Int64("chat_id", chatID), zap.Error(err))
		h.reply(chatID, failureText(err))
		return
	}

	r := res.Report
	h.markdown(chatID, report.FormatSnapshotText(r)+"\n"+report.FormatRiskText(r))
	if len(r.Assets) > 1 {
		h.markdown(chatID, report.FormatCorrelationText(r))
	}
	if r.Commentary != "" {
		h.reply(chatID, r.Commentary)
	}
	for _, kind := range photoKinds {
		img, ok := res.Charts[kind]
		if !ok {
			continue
		}
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: string(kind) + ".png", Bytes: img})
		photo.Caption = captions[kind] + " • " + strings.Join(r.Assets, ", ") + " • " + strconv.Itoa(r.Config.LookbackDays) + "d"
		h.send(photo)
	}
}

var captions = map[report.ChartKind]string{
	report.ChartPrice:      "Price History",
	report.ChartDrawdown:   "Drawdowns",
	report.ChartVolatility: "Rolling Volatility",
}

func (h *Handlers) handleCoins(chatID int64) {
	var b strings.Builder
	b.WriteString("Supported assets:\n")
	for _, id := range h.svc.Universe() {
		b.WriteString("- " + string(id) + "\n")
	}
	h.reply(chatID, b.String())
}

func (h *Handlers) handleUsage(ctx context.Context, chatID int64, days int) {
	u, err := h.svc.Usage(ctx, days)
	if err != nil {
		h.reply(chatID, "Usage failed: "+err.Error())
		return
	}
	if len(u.Stats) == 0 {
		h.reply(chatID, report.FormatUsageStatsText(nil, days))
		return
	}
	if img, err := report.MakeUsageChart(u.Stats, days); err == nil {
		h.send(tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "usage.png", Bytes: img}))
	} else {
		h.logger.Warn("usage chart failed", zap.Error(err))
	}
	if len(u.Series) > 0 {
		if img, err := report.MakeUsageTimeSeriesChart(u.Series, days, u.Location); err == nil {
			h.send(tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "usage_timeseries.png", Bytes: img}))
		} else {
			h.logger.Warn("usage time series chart failed", zap.Error(err))
		}
	}
	h.markdown(chatID, report.FormatUsageStatsText(u.Stats, days)+report.FormatRecentRuns(u.Recent, u.Location))
}

func (h *Handlers) handleHelp(chatID int64) {
	d := h.svc.Defaults()
	help := "Commands\n\n" +
		"- /analyze ID [ID ...] [window] - Snapshot, risk table, correlation and charts (window: 90, 90d, 12w, 6m, 1y)\n" +
		"- /coins - List supported CoinGecko ids\n" +
		"- /usage [days] - Runs per source over the last N days (default: 7, max: 90)\n" +
		fmt.Sprintf("\nDefaults: %s over %dd. Lookback between %d and %d days. Sharpe_like has no risk-free rate.",
			strings.Join(d.AssetIDs, ", "), d.LookbackDays, d.MinLookbackDays, d.MaxLookbackDays)
	h.reply(chatID, help)
}

func failureText(err error) string {
	var ue *service.UnknownAssetError
	switch {
	case errors.As(err, &ue):
		if ue.Suggestion != "" {
			return fmt.Sprintf("Unknown asset %q. Did you mean %q? See /coins.", ue.Asset, ue.Suggestion)
		}
		return fmt.Sprintf("Unknown asset %q. See /coins.", ue.Asset)
	case errors.Is(err, finance.ErrInvalidConfig):
		return "Invalid request: " + err.Error()
	case errors.Is(err, finance.ErrDataUnavailable):
		return "Market data unavailable: " + err.Error()
	default:
		return "Analysis failed: " + err.Error()
	}
}

func (h *Handlers) reply(chatID int64, text string) {
	h.send(tgbotapi.NewMessage(chatID, text))
}

func (h *Handlers) markdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	h.send(msg)
}

func (h *Handlers) send(c tgbotapi.Chattable) {
	if _, err := h.api.Send(c); err != nil {
		h.logger.Warn("send failed", zap.Error(err))
	}
}

func joinIDs(ids []finance.AssetID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
