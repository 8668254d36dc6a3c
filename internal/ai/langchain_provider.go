package ai

import (
	"context"

	"jobapplicator/internal/config"
	appErrors "jobapplicator/internal/errors"
	"jobapplicator/internal/types"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// LangchainProvider implements FormDescriber on top of any langchaingo model.
type LangchainProvider struct {
	model          llms.Model
	config         *config.OperationAIConfig
	circuitBreaker *AICircuitBreaker[*llms.ContentResponse]
	logger         *appErrors.Logger
}

var _ FormDescriber = (*LangchainProvider)(nil)

// NewLangchainProvider creates a provider backed by the langchaingo Google AI client.
func NewLangchainProvider(ctx context.Context, cfg *config.OperationAIConfig, logger *appErrors.Logger, opts ...ProviderOption) (*LangchainProvider, error) {
	var o providerOptions
	for _, opt := range opts {
		opt(&o)
	}

	gOpts := []googleai.Option{
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(cfg.Model),
		googleai.WithDefaultTemperature(float64(*cfg.Temperature)),
	}
	if o.httpClient != nil {
		gOpts = append(gOpts, googleai.WithHTTPClient(o.httpClient))
	}

	model, err := googleai.New(ctx, gOpts...)
	if err != nil {
		return nil, appErrors.NewAIError(appErrors.ErrCodeAIServiceFailed,
			"Failed to create langchain Google AI client", err)
	}

	return NewLangchainProviderWithModel(model, cfg, logger), nil
}

// NewLangchainProviderWithModel wraps an already constructed langchaingo model.
func NewLangchainProviderWithModel(model llms.Model, cfg *config.OperationAIConfig, logger *appErrors.Logger) *LangchainProvider {
	return &LangchainProvider{
		model:          model,
		config:         cfg,
		circuitBreaker: NewAICircuitBreaker[*llms.ContentResponse]("inspect", cfg, logger),
		logger:         logger,
	}
}

// Describe implements FormDescriber
func (l *LangchainProvider) Describe(ctx context.Context, page types.PageSnapshot) (*types.FormDescription, *TokenUsage, error) {
	tracer := otel.Tracer("jobapplicator.ai.langchain")
	ctx, span := tracer.Start(ctx, "langchain.describe_form")
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "langchain"),
		attribute.String("ai.model", l.config.Model),
		attribute.String("page.url", page.URL),
		attribute.Int("input.form_count", len(page.Forms)),
	)

	systemPrompt, userPrompt := buildDescribePrompts(l.config, page)

	var messages []llms.MessageContent
	if *l.config.UseSystemPrompts && systemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, userPrompt))

	callOpts := []llms.CallOption{
		llms.WithJSONMode(),
		llms.WithModel(l.config.Model),
	}
	if *l.config.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(float64(*l.config.Temperature)))
	}

	resp, err := l.circuitBreaker.Execute(func() (*llms.ContentResponse, error) {
		return executeWithRetry(ctx, l.logger, "describe_form", *l.config.MaxRetries, func() (*llms.ContentResponse, error) {
			return l.model.GenerateContent(ctx, messages, callOpts...)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, nil, appErrors.NewAIError(appErrors.ErrCodeAIServiceFailed, "Failed to generate content for describe_form", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		span.SetAttributes(attribute.Bool("success", false))
		return nil, nil, appErrors.NewFormError(appErrors.ErrCodeFormUnparseable, "empty response from model", nil)
	}

	choice := resp.Choices[0]
	tokenUsage := usageFromGenerationInfo(choice.GenerationInfo)

	desc, err := ParseFormDescription([]byte(choice.Content))
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, tokenUsage, err
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("output.field_count", len(desc.Fields)),
	)
	return desc, tokenUsage, nil
}

// GetModelInfo reports the configured model and breaker state
func (l *LangchainProvider) GetModelInfo() *ModelInfo {
	return &ModelInfo{
		Provider: "langchain",
		Name:     l.config.Model,
		Breaker:  l.circuitBreaker.GetStats(),
		Healthy:  l.circuitBreaker.IsHealthy(),
	}
}

// Close implements FormDescriber
func (l *LangchainProvider) Close() error {
	if c, ok := l.model.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// usageFromGenerationInfo reads the token counters googleai attaches to a choice.
func usageFromGenerationInfo(info map[string]any) *TokenUsage {
	if len(info) == 0 {
		return nil
	}
	usage := &TokenUsage{
		InputTokens:  toInt64(info["input_tokens"]),
		OutputTokens: toInt64(info["output_tokens"]),
		TotalTokens:  toInt64(info["total_tokens"]),
	}
	if usage.InputTokens == 0 && usage.OutputTokens == 0 && usage.TotalTokens == 0 {
		return nil
	}
	return usage
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
