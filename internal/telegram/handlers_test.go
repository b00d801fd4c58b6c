package telegram

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cryptoMarketAnalysis/internal/config"
	"cryptoMarketAnalysis/internal/finance"
	"cryptoMarketAnalysis/internal/report"
	"cryptoMarketAnalysis/internal/service"
	"cryptoMarketAnalysis/internal/storage"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeSender) photos() []tgbotapi.PhotoConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.PhotoConfig
	for _, c := range f.sent {
		if p, ok := c.(tgbotapi.PhotoConfig); ok {
			out = append(out, p)
		}
	}
	return out
}

type fakeAnalyst struct {
	err      error
	req      service.Request
	usage    *service.Usage
	excluded []finance.Exclusion
}

func (f *fakeAnalyst) Analyze(_ context.Context, req service.Request) (*service.Result, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &service.Result{
		Report: &report.Report{
			ID:     uuid.New(),
			Config: finance.AnalysisConfig{VsCurrency: "usd", LookbackDays: req.LookbackDays},
			Assets: []string{"bitcoin", "solana"},
			Risk: report.Table{
				Index:   []string{"bitcoin", "solana"},
				Columns: []string{"Sharpe_like", "Vol_30d_ann", "Max_Drawdown"},
				Data: [][]finance.Value{
					{finance.Number(1), finance.Number(0.5), finance.Number(-0.1)},
					{finance.Undefined(), finance.Missing(), finance.Number(-0.4)},
				},
			},
			Correlation: report.Table{
				Index:   []string{"bitcoin", "solana"},
				Columns: []string{"bitcoin", "solana"},
				Data:    [][]finance.Value{{finance.Number(1), finance.Number(0.7)}, {finance.Number(0.7), finance.Number(1)}},
			},
			Excluded:   f.excluded,
			Commentary: "- calm week",
		},
		Charts: map[report.ChartKind][]byte{
			report.ChartPrice:    []byte("p"),
			report.ChartDrawdown: []byte("d"),
			report.ChartRisk:     []byte("r"),
		},
	}, nil
}

func (f *fakeAnalyst) Usage(_ context.Context, days int) (*service.Usage, error) {
	if f.usage == nil {
		return &service.Usage{Days: days}, nil
	}
	return f.usage, nil
}

func (f *fakeAnalyst) Universe() finance.Universe {
	return finance.Universe{"bitcoin", "ethereum", "solana"}
}

func (f *fakeAnalyst) Defaults() config.AnalysisConfig {
	return config.AnalysisConfig{AssetIDs: []string{"bitcoin", "ethereum"}, LookbackDays: 180, MinLookbackDays: 30, MaxLookbackDays: 365}
}

func message(text string) *tgbotapi.Message {
	return &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: 99}, From: &tgbotapi.User{ID: 1}}
}

func TestHandleAnalyze(t *testing.T) {
	sender, analyst := &fakeSender{}, &fakeAnalyst{}
	NewHandlers(sender, analyst, zap.NewNop()).HandleMessage(context.Background(), message("/analyze bitcoin Solana 90d"))

	assert.Equal(t, []finance.AssetID{"bitcoin", "solana"}, analyst.req.Assets)
	assert.Equal(t, 90, analyst.req.LookbackDays)
	assert.Equal(t, storage.SourceTelegram, analyst.req.Source)
	assert.Equal(t, int64(99), analyst.req.ChatID)

	texts := sender.texts()
	require.Len(t, texts, 4)
	assert.Equal(t, "Analyzing bitcoin, solana over 90d…", texts[0])
	assert.Contains(t, texts[1], "Risk Metrics")
	assert.Contains(t, texts[2], "Return Correlation")
	assert.Equal(t, "- calm week", texts[3])

	photos := sender.photos()
	require.Len(t, photos, 2, "only price and drawdown were rendered")
	assert.True(t, strings.HasPrefix(photos[0].Caption, "Price History"))
	assert.True(t, strings.HasPrefix(photos[1].Caption, "Drawdowns"))
}

// markdownEntities reports whether text outside ``` blocks holds an
// unpaired Telegram Markdown marker.
func markdownEntities(text string) bool {
	var outside strings.Builder
	for i, part := range strings.Split(text, "```") {
		if i%2 == 0 {
			outside.WriteString(part)
		}
	}
	for _, marker := range []string{"_", "*", "`"} {
		if strings.Count(outside.String(), marker)%2 != 0 {
			return false
		}
	}
	return true
}

func TestHandleAnalyze_ExclusionsKeepMarkdownValid(t *testing.T) {
	sender := &fakeSender{}
	analyst := &fakeAnalyst{excluded: []finance.Exclusion{
		{Asset: "ripple", Err: "unknown asset (market_chart returned 404: coin not found)"},
	}}
	NewHandlers(sender, analyst, nil).HandleMessage(context.Background(), message("/analyze bitcoin solana"))

	var risk tgbotapi.MessageConfig
	for _, c := range sender.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok && strings.Contains(m.Text, "Risk Metrics") {
			risk = m
		}
	}
	require.NotEmpty(t, risk.Text)
	assert.Equal(t, tgbotapi.ModeMarkdown, risk.ParseMode)
	assert.Contains(t, risk.Text, "market_chart returned 404")
	assert.True(t, markdownEntities(risk.Text), "unbalanced Markdown in:\n%s", risk.Text)
}

func TestHandleAnalyze_Defaults(t *testing.T) {
	sender, analyst := &fakeSender{}, &fakeAnalyst{}
	NewHandlers(sender, analyst, nil).HandleMessage(context.Background(), message("/analyze"))
	assert.Empty(t, analyst.req.Assets)
	assert.Equal(t, 180, analyst.req.LookbackDays)
	assert.Equal(t, "Analyzing default selection over 180d…", sender.texts()[0])
}

func TestHandleAnalyze_Failures(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&service.UnknownAssetError{Asset: "etherium", Suggestion: "ethereum"}, `Did you mean "ethereum"?`},
		{finance.Unavailable("solana", "HTTP 429"), "Market data unavailable"},
		{context.DeadlineExceeded, "Analysis failed"},
	}
	for _, tc := range cases {
		sender := &fakeSender{}
		NewHandlers(sender, &fakeAnalyst{err: tc.err}, nil).HandleMessage(context.Background(), message("/analyze solana"))
		texts := sender.texts()
		require.Len(t, texts, 2)
		assert.Contains(t, texts[1], tc.want)
		assert.Empty(t, sender.photos())
	}
}

func TestHandleCoinsAndHelp(t *testing.T) {
	sender := &fakeSender{}
	h := NewHandlers(sender, &fakeAnalyst{}, nil)
	h.HandleMessage(context.Background(), message("/coins"))
	h.HandleMessage(context.Background(), message("/help"))
	h.HandleMessage(context.Background(), message("hello there"))

	texts := sender.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "- ethereum")
	assert.Contains(t, texts[1], "/analyze ID")
	assert.Contains(t, texts[1], "bitcoin, ethereum over 180d")
}

func TestHandleUsage(t *testing.T) {
	sender := &fakeSender{}
	day := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	analyst := &fakeAnalyst{usage: &service.Usage{
		Days: 30,
		Stats: map[string]*storage.UsageStats{
			storage.SourceWeb: {Count: 2, Failed: 1, Assets: map[string]int{"bitcoin": 2}},
		},
		Series: map[string][]storage.TimeSeriesPoint{
			storage.SourceWeb: {{Timestamp: day.Unix(), Count: 1}, {Timestamp: day.AddDate(0, 0, 1).Unix(), Count: 1}},
		},
		Recent: []storage.Run{
			{Source: storage.SourceWeb, Assets: []string{"bitcoin"}, LookbackDays: 90, At: day, Error: "bitcoin: market_chart returned 429"},
			{Source: storage.SourceWeb, Assets: []string{"bitcoin"}, LookbackDays: 90, At: day, OK: true},
		},
		Location: time.UTC,
	}}
	NewHandlers(sender, analyst, nil).HandleMessage(context.Background(), message("/usage 30"))

	photos := sender.photos()
	require.Len(t, photos, 2)
	assert.Equal(t, "usage.png", photos[0].File.(tgbotapi.FileBytes).Name)
	assert.Equal(t, "usage_timeseries.png", photos[1].File.(tgbotapi.FileBytes).Name)
	texts := sender.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "*Total runs*: 2")
	assert.Contains(t, texts[0], "*Recent runs*")
	assert.True(t, markdownEntities(texts[0]))

	empty := &fakeSender{}
	NewHandlers(empty, &fakeAnalyst{}, nil).HandleMessage(context.Background(), message("/usage"))
	assert.Equal(t, []string{"No usage data available for the specified period."}, empty.texts())
}

func TestWebhookHandler(t *testing.T) {
	sender := &fakeSender{}
	b := newBot(NewHandlers(sender, &fakeAnalyst{}, nil), zap.NewNop())

	rec := httptest.NewRecorder()
	b.WebhookHandler(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	b.WebhookHandler(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(`{"update_id":1}`)))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := []byte(`{"update_id":2,"message":{"message_id":5,"date":1711929600,"chat":{"id":99,"type":"private"},"text":"/coins"}}`)
	rec = httptest.NewRecorder()
	b.WebhookHandler(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", bytes.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code)

	done := make(chan struct{})
	go func() { b.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not handled")
	}
	require.Len(t, sender.texts(), 1)
	assert.Contains(t, sender.texts()[0], "Supported assets")
}
