package openai

import (
	"context"
	"fmt"
	"strings"

	oa "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"cryptoMarketAnalysis/internal/report"
)

const systemPrompt = `You are a concise crypto market analyst. You receive a market snapshot, a risk table and a return correlation matrix for a set of assets.

Write at most 5 short bullet points in plain text:
- which asset had the best and worst risk-adjusted performance
- which asset is the most volatile and which had the deepest drawdown
- notable correlations (highly correlated pairs, diversifiers)

Rules:
- Sharpe_like is annualized mean return over annualized volatility without a risk-free rate; call it "Sharpe-like", never "Sharpe ratio"
- "NaN" means undefined and "—" means not enough history; say so instead of guessing
- No investment advice, no price targets, no links`

// Commentator asks the chat completions API for a short reading of a report.
type Commentator struct {
	cli       oa.Client
	model     string
	maxTokens int
}

func NewCommentator(apiKey, model string, maxTokens int, opts ...option.RequestOption) *Commentator {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Commentator{cli: oa.NewClient(opts...), model: model, maxTokens: maxTokens}
}

func (c *Commentator) Comment(ctx context.Context, r *report.Report) (string, error) {
	resp, err := c.cli.Chat.Completions.New(ctx, oa.ChatCompletionNewParams{
		Model: oa.ChatModel(c.model),
		Messages: []oa.ChatCompletionMessageParamUnion{
			oa.SystemMessage(systemPrompt),
			oa.UserMessage(Prompt(r)),
		},
		MaxTokens: oa.Int(int64(c.maxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Prompt renders the report sections sent to the model.
func Prompt(r *report.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assets: %s\nLookback: %d days, quoted in %s\n\n",
		strings.Join(r.Assets, ", "), r.Config.LookbackDays, strings.ToUpper(r.Config.VsCurrency))
	b.WriteString(stripMarkdown(report.FormatSnapshotText(r)))
	b.WriteString("\n")
	b.WriteString(stripMarkdown(report.FormatRiskText(r)))
	b.WriteString("\n")
	b.WriteString(stripMarkdown(report.FormatCorrelationText(r)))
	return b.String()
}

var markdown = strings.NewReplacer("```\n", "", "*", "")

func stripMarkdown(s string) string { return markdown.Replace(s) }
