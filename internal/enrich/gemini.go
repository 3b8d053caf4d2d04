package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	genai "github.com/google/generative-ai-go/genai"

	"knowledge-ingest-platform/internal/logger"
	"knowledge-ingest-platform/models"
)

// GeminiEnricher produces a one-sentence description of acquired content.
type GeminiEnricher struct {
	client  *genai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
}

func NewGeminiEnricher(client *genai.Client, model string) *GeminiEnricher {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiEnrichment",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &GeminiEnricher{
		client:  client,
		model:   model,
		breaker: breaker,
	}
}

func (e *GeminiEnricher) Describe(ctx context.Context, identity, text string) (*models.EnrichmentResult, error) {
	if e.client == nil {
		return nil, errors.New("gemini client not configured")
	}

	tracer := otel.Tracer("enrichment")
	ctx, span := tracer.Start(ctx, "enrich.describe")
	defer span.End()

	span.SetAttributes(
		attribute.String("enrich.identity", identity),
		attribute.Int("enrich.input_bytes", len(text)),
		attribute.String("enrich.model", e.model),
	)

	prompt := buildDescriptionPrompt(identity, text)

	result, err := e.breaker.Execute(func() (interface{}, error) {
		model := e.client.GenerativeModel(e.model)
		model.SetTemperature(0.2)
		model.SetMaxOutputTokens(256)

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			span.SetAttributes(attribute.Bool("enrich.circuit_breaker_open", true))
			return nil, fmt.Errorf("enrichment temporarily unavailable: %w", err)
		}
		span.SetAttributes(attribute.Bool("enrich.error", true))
		return nil, err
	}

	summary := firstCandidateText(result.(*genai.GenerateContentResponse))
	if summary == "" {
		return nil, errors.New("empty response from model")
	}

	span.SetAttributes(attribute.Int("enrich.summary_chars", len(summary)))

	return &models.EnrichmentResult{
		SummaryText:     summary,
		GeneratingModel: e.model,
		GeneratedAt:     time.Now().UTC(),
	}, nil
}

func buildDescriptionPrompt(identity, text string) string {
	return fmt.Sprintf(
		"Describe the following content from %q in a single concise sentence. "+
			"Focus on what the content is about and what it is used for. "+
			"Respond with only the sentence, no preamble.\n\n%s",
		identity, text)
}

func firstCandidateText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		break
	}
	return strings.TrimSpace(sb.String())
}
