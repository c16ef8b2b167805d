package script

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nexgsol/hmva/internal/models"
)

const (
	maxAttempts    = 3
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 15 * time.Second
)

// stubParagraph is returned when no OPENAI_API_KEY is configured, keeping the
// whole pipeline runnable against local fixtures.
const stubParagraph = "This icon shaped menswear with rugged simplicity. Signature pieces included a Harrington jacket, " +
	"slim chinos, desert boots, and often Persol sunglasses. Across film sets and city streets, " +
	"his wardrobe adapted without losing its edge. His legacy anchors modern heritage style."

// Generator produces paragraphs and SSML through the OpenAI chat API.
type Generator struct {
	client *openai.Client
	model  string
	stub   bool
}

func NewGenerator(apiKey, model string) *Generator {
	if model == "" {
		model = "gpt-4o-mini"
	}
	g := &Generator{model: model}
	if apiKey == "" {
		log.Printf("[Script] OPENAI_API_KEY not set, using stub paragraphs")
		g.stub = true
		return g
	}
	g.client = openai.NewClient(apiKey)
	return g
}

// Chat sends one system+user exchange and returns the raw reply. Transient
// vendor failures are retried with capped exponential backoff and jitter.
func (g *Generator) Chat(ctx context.Context, system, user string, temperature float32, jsonMode bool) (string, error) {
	if g.stub {
		if jsonMode {
			return fmt.Sprintf(`{"paragraph": %q, "ssml": ""}`, stubParagraph), nil
		}
		return stubParagraph, nil
	}

	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := retryDelay(attempt)
			log.Printf("[Script] Chat retry %d/%d (waiting %v)...", attempt, maxAttempts-1, delay)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("chat cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, err := g.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = fmt.Errorf("openai request failed: %w", err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("no response from openai")
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("chat failed after %d attempts: %w", maxAttempts, lastErr)
}

// ProcessRow generates the paragraph and SSML for a single source row. The
// vendor call may error after retries; parse problems never do — they
// degrade to paragraph-only output.
func (g *Generator) ProcessRow(ctx context.Context, row models.Row) (models.RowResult, error) {
	lo, hi := 120, 180
	prompt := ParagraphPrompt(row.Icon, row.Category, row.Notes, lo, hi)

	raw, err := g.Chat(ctx, GeneratorSystem, prompt, 0.2, true)
	if err != nil {
		return models.RowResult{}, fmt.Errorf("row %d: %w", row.Number, err)
	}

	outcome := Parse(raw)
	if outcome.Kind == OutcomeDegraded {
		log.Printf("[Script] Row %d reply was not JSON, degraded to paragraph-only", row.Number)
	}

	return models.RowResult{
		Number:    row.Number,
		Icon:      row.Icon,
		Category:  row.Category,
		Notes:     row.Notes,
		Paragraph: outcome.Paragraph,
		SSML:      outcome.SSML,
	}, nil
}

// GenerateScript produces a plain video script for the duration, applying the
// local QC gate and at most one editor fix round.
func (g *Generator) GenerateScript(ctx context.Context, icon, notes, duration string) (string, QCReport, error) {
	lo, hi := WordRange(duration)

	raw, err := g.Chat(ctx, ScriptSystem, ScriptPrompt(icon, notes, lo, hi), 0.5, false)
	if err != nil {
		return "", QCReport{}, err
	}
	text := NormalizeParagraph(raw)

	report := Evaluate(text, lo, hi)
	if !report.FixNeeded {
		return text, report, nil
	}

	log.Printf("[Script] QC flags %v, running editor fix round", report.RiskFlags)
	fixed, err := g.Chat(ctx, EditorSystem, FixPrompt(icon, notes, text, lo, hi), 0.3, false)
	if err != nil {
		// Keep the draft rather than failing the request over a fix round.
		log.Printf("[Script] Editor fix failed, keeping draft: %v", err)
		return text, report, nil
	}
	text = NormalizeParagraph(fixed)
	return text, Evaluate(text, lo, hi), nil
}

func retryDelay(attempt int) time.Duration {
	delay := float64(baseRetryDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxRetryDelay) {
		delay = float64(maxRetryDelay)
	}
	// Add 0–25% jitter to avoid thundering herd
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}
