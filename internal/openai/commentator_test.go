package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoMarketAnalysis/internal/finance"
	"cryptoMarketAnalysis/internal/report"
)

func testReport() *report.Report {
	return &report.Report{
		Config: finance.AnalysisConfig{VsCurrency: "usd", LookbackDays: 90},
		Assets: []string{"bitcoin", "ethereum"},
		Risk: report.Table{
			Name:    "risk",
			Index:   []string{"bitcoin", "ethereum"},
			Columns: []string{"Sharpe_like", "Vol_30d_ann", "Max_Drawdown"},
			Data: [][]finance.Value{
				{finance.Number(1.2), finance.Number(0.45), finance.Number(-0.2)},
				{finance.Undefined(), finance.Missing(), finance.Number(-0.3)},
			},
		},
		Correlation: report.Table{
			Name:    "correlation",
			Index:   []string{"bitcoin", "ethereum"},
			Columns: []string{"bitcoin", "ethereum"},
			Data: [][]finance.Value{
				{finance.Number(1), finance.Number(0.8)},
				{finance.Number(0.8), finance.Number(1)},
			},
		},
	}
}

func TestPrompt(t *testing.T) {
	p := Prompt(testReport())
	assert.Contains(t, p, "Assets: bitcoin, ethereum")
	assert.Contains(t, p, "Lookback: 90 days, quoted in USD")
	assert.Contains(t, p, "Sharpe_like")
	assert.Contains(t, p, "NaN")
	assert.Contains(t, p, "0.8000")
	assert.NotContains(t, p, "```")
}

func TestCommentator_Comment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "gpt-4", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  - Bitcoin leads.  "}}]}`))
	}))
	defer srv.Close()

	c := NewCommentator("sk-test", "gpt-4", 300, option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	out, err := c.Comment(context.Background(), testReport())
	require.NoError(t, err)
	assert.Equal(t, "- Bitcoin leads.", out)
}

func TestCommentator_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := NewCommentator("sk-bad", "gpt-4", 300, option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	_, err := c.Comment(context.Background(), testReport())
	assert.ErrorContains(t, err, "OpenAI API error")
}
