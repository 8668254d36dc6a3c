package ai

import (
	"context"
	"net/http"

	"jobapplicator/internal/config"
	appErrors "jobapplicator/internal/errors"
	"jobapplicator/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"
)

// GeminiProvider implements FormDescriber for Google Gemini
type GeminiProvider struct {
	client         *genai.Client
	config         *config.OperationAIConfig
	circuitBreaker *AICircuitBreaker[*genai.GenerateContentResponse]
	logger         *appErrors.Logger
}

// Ensure GeminiProvider implements FormDescriber
var _ FormDescriber = (*GeminiProvider)(nil)

// ProviderOption customizes how a provider reaches its backend.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	baseURL    string
	httpClient *http.Client
}

// WithBaseURL points the provider at a different API endpoint.
func WithBaseURL(url string) ProviderOption {
	return func(o *providerOptions) { o.baseURL = url }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(o *providerOptions) { o.httpClient = c }
}

// NewGeminiProvider creates a new Gemini provider for form inspection
func NewGeminiProvider(ctx context.Context, cfg *config.OperationAIConfig, logger *appErrors.Logger, opts ...ProviderOption) (*GeminiProvider, error) {
	var o providerOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: *cfg.Timeout}
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	}
	if o.baseURL != "" {
		clientConfig.HTTPOptions.BaseURL = o.baseURL
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, appErrors.NewAIError(appErrors.ErrCodeAIServiceFailed,
			"Failed to create Gemini client", err)
	}

	return &GeminiProvider{
		client:         client,
		config:         cfg,
		circuitBreaker: NewAICircuitBreaker[*genai.GenerateContentResponse]("inspect", cfg, logger),
		logger:         logger,
	}, nil
}

// Describe implements FormDescriber
func (g *GeminiProvider) Describe(ctx context.Context, page types.PageSnapshot) (*types.FormDescription, *TokenUsage, error) {
	tracer := otel.Tracer("jobapplicator.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini.describe_form")
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.Float64("ai.temperature", float64(*g.config.Temperature)),
		attribute.String("page.url", page.URL),
		attribute.Int("input.text_length", len(page.Text)),
		attribute.Int("input.form_count", len(page.Forms)),
	)

	systemPrompt, userPrompt := buildDescribePrompts(g.config, page)
	genaiConfig := g.buildDescribeSchema()
	if *g.config.UseSystemPrompts && systemPrompt != "" {
		genaiConfig.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	result, err := g.circuitBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return executeWithRetry(ctx, g.logger, "describe_form", *g.config.MaxRetries, func() (*genai.GenerateContentResponse, error) {
			return g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(userPrompt), genaiConfig)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, nil, appErrors.NewAIError(appErrors.ErrCodeAIServiceFailed, "Failed to generate content for describe_form", err)
	}

	tokenUsage := extractTokenUsage(result)
	if tokenUsage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", tokenUsage.InputTokens),
			attribute.Int64("ai.tokens.output", tokenUsage.OutputTokens),
			attribute.Int64("ai.tokens.total", tokenUsage.TotalTokens),
		)
	}

	desc, err := ParseFormDescription([]byte(result.Text()))
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, tokenUsage, err
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("output.field_count", len(desc.Fields)),
		attribute.Bool("output.has_upload", desc.ResumeUploadID != ""),
	)
	return desc, tokenUsage, nil
}

// GetModelInfo reports the configured model and breaker state
func (g *GeminiProvider) GetModelInfo() *ModelInfo {
	return &ModelInfo{
		Provider: "gemini",
		Name:     g.config.Model,
		Breaker:  g.circuitBreaker.GetStats(),
		Healthy:  g.circuitBreaker.IsHealthy(),
	}
}

// Close implements FormDescriber
func (g *GeminiProvider) Close() error {
	// The genai client holds no long-lived connections in single-shot usage
	return nil
}

// buildDescribeSchema creates the response schema for form description requests
func (g *GeminiProvider) buildDescribeSchema() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"form_fields": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"field_id":   {Type: genai.TypeString},
							"field_type": {Type: genai.TypeString},
							"label":      {Type: genai.TypeString},
							"required":   {Type: genai.TypeBoolean},
						},
						Required: []string{"field_id", "field_type", "label", "required"},
					},
				},
				"resume_upload_id": {Type: genai.TypeString, Nullable: genai.Ptr(true)},
				"submit_button_id": {Type: genai.TypeString, Nullable: genai.Ptr(true)},
			},
			Required: []string{"form_fields"},
		},
	}

	if *g.config.Temperature > 0 {
		cfg.Temperature = g.config.Temperature
	}

	return cfg
}

// extractTokenUsage extracts token usage information from Gemini API response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
