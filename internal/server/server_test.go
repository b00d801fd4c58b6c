package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoMarketAnalysis/internal/config"
	"cryptoMarketAnalysis/internal/finance"
	"cryptoMarketAnalysis/internal/report"
	"cryptoMarketAnalysis/internal/service"
)

type fakeAnalyst struct {
	cache *report.Cache
	err   error
	got   []service.Request
}

func (f *fakeAnalyst) Analyze(_ context.Context, req service.Request) (*service.Result, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	r := &report.Report{
		ID:          uuid.New(),
		GeneratedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Config:      finance.AnalysisConfig{VsCurrency: "usd", AssetIDs: req.Assets, LookbackDays: 90},
		Assets:      []string{"bitcoin"},
		Risk: report.Table{
			Name:    "risk",
			Index:   []string{"bitcoin"},
			Columns: []string{"Sharpe_like", "Vol_30d_ann", "Max_Drawdown"},
			Data:    [][]finance.Value{{finance.Number(1.25), finance.Missing(), finance.Number(-0.4)}},
		},
		Correlation: report.Table{
			Name:    "correlation",
			Index:   []string{"bitcoin"},
			Columns: []string{"bitcoin"},
			Data:    [][]finance.Value{{finance.Number(1)}},
		},
		Commentary: "Bitcoin drew down 40%.",
	}
	charts := map[report.ChartKind][]byte{report.ChartPrice: []byte("\x89PNG-fake")}
	f.cache.Put(r, charts)
	return &service.Result{Report: r, Charts: charts}, nil
}

func (f *fakeAnalyst) Universe() finance.Universe {
	return finance.Universe{"bitcoin", "ethereum", "solana"}
}

func (f *fakeAnalyst) Defaults() config.AnalysisConfig {
	return config.AnalysisConfig{
		VsCurrency:      "usd",
		AssetIDs:        []string{"bitcoin", "ethereum"},
		LookbackDays:    180,
		MinLookbackDays: 30,
		MaxLookbackDays: 365,
	}
}

func (f *fakeAnalyst) Cache() *report.Cache { return f.cache }

func newTestServer(t *testing.T, svc *fakeAnalyst, webhook http.HandlerFunc) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, err := New(svc, webhook, nil)
	require.NoError(t, err)
	return s
}

func do(s *Server, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	s.Router().ServeHTTP(w, req)
	return w
}

func TestIndex(t *testing.T) {
	s := newTestServer(t, &fakeAnalyst{cache: report.NewCache(time.Minute)}, nil)

	w := do(s, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `<option value="bitcoin" selected>`)
	assert.Contains(t, body, `<option value="solana">`)
	assert.Contains(t, body, `value="180"`)
}

func TestAnalysisPage(t *testing.T) {
	svc := &fakeAnalyst{cache: report.NewCache(time.Minute)}
	s := newTestServer(t, svc, nil)

	w := do(s, http.MethodGet, "/analysis?ids=bitcoin,solana&days=90")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, svc.got, 1)
	assert.Equal(t, []finance.AssetID{"bitcoin", "solana"}, svc.got[0].Assets)
	assert.Equal(t, 90, svc.got[0].LookbackDays)
	assert.Equal(t, "web", svc.got[0].Source)

	body := w.Body.String()
	assert.Contains(t, body, "Sharpe_like")
	assert.Contains(t, body, "1.2500")
	assert.Contains(t, body, "Bitcoin drew down 40%.")
	assert.Contains(t, body, "/charts/")
	assert.Contains(t, body, "price.png")
}

func TestAnalysisPage_UnknownAsset(t *testing.T) {
	svc := &fakeAnalyst{
		cache: report.NewCache(time.Minute),
		err:   &service.UnknownAssetError{Asset: "bitcon", Suggestion: "bitcoin"},
	}
	s := newTestServer(t, svc, nil)

	w := do(s, http.MethodGet, "/analysis?ids=bitcon")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Did you mean bitcoin?")
}

func TestAPIAnalysis(t *testing.T) {
	svc := &fakeAnalyst{cache: report.NewCache(time.Minute)}
	s := newTestServer(t, svc, nil)

	w := do(s, http.MethodGet, "/api/v1/analysis?ids=bitcoin&ids=ethereum")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "api", svc.got[0].Source)
	assert.Equal(t, []finance.AssetID{"bitcoin", "ethereum"}, svc.got[0].Assets)

	var body struct {
		ID     string            `json:"id"`
		Risk   report.Table      `json:"risk"`
		Charts map[string]string `json:"charts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.ID)
	assert.Equal(t, "/charts/"+body.ID+"/price.png", body.Charts["price"])
	require.Len(t, body.Risk.Data, 1)
	assert.True(t, body.Risk.Data[0][1].IsMissing())

	again := do(s, http.MethodGet, "/api/v1/analysis/"+body.ID)
	require.Equal(t, http.StatusOK, again.Code)
	assert.JSONEq(t, w.Body.String(), again.Body.String())
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/api/v1/analysis/"+uuid.NewString()).Code)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/api/v1/analysis/nope").Code)

	img := do(s, http.MethodGet, body.Charts["price"])
	require.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "image/png", img.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG-fake", img.Body.String())
}

func TestAPIAnalysis_Errors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"unknown", &service.UnknownAssetError{Asset: "bitcon", Suggestion: "bitcoin"}, http.StatusBadRequest, "unknown_asset"},
		{"invalid", finance.ErrInvalidConfig, http.StatusBadRequest, "invalid_request"},
		{"unavailable", finance.Unavailable("solana", "HTTP 503"), http.StatusBadGateway, "data_unavailable"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"internal", assert.AnError, http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, &fakeAnalyst{cache: report.NewCache(time.Minute), err: tc.err}, nil)
			w := do(s, http.MethodGet, "/api/v1/analysis?ids=bitcoin")
			assert.Equal(t, tc.status, w.Code)

			var body apiError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.kind, body.Kind)
		})
	}
}

func TestChart_NotFound(t *testing.T) {
	s := newTestServer(t, &fakeAnalyst{cache: report.NewCache(time.Minute)}, nil)

	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/charts/not-a-uuid/price.png").Code)
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/charts/"+uuid.NewString()+"/price.png").Code)
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/charts/"+uuid.NewString()+"/pie.png").Code)
}

func TestAPIAssets(t *testing.T) {
	s := newTestServer(t, &fakeAnalyst{cache: report.NewCache(time.Minute)}, nil)

	w := do(s, http.MethodGet, "/api/v1/assets")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []any{"bitcoin", "ethereum", "solana"}, body["universe"])
	assert.Equal(t, float64(30), body["min_lookback"])
}

func TestWebhookRoute(t *testing.T) {
	svc := &fakeAnalyst{cache: report.NewCache(time.Minute)}
	assert.Equal(t, http.StatusNotFound, do(newTestServer(t, svc, nil), http.MethodPost, "/telegram/webhook").Code)

	called := false
	s := newTestServer(t, svc, func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	assert.Equal(t, http.StatusOK, do(s, http.MethodPost, "/telegram/webhook").Code)
	assert.True(t, called)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, &fakeAnalyst{cache: report.NewCache(time.Minute)}, nil)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/metrics").Code)
}
