// Package llm provides language-model providers for the content agents.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel/trace"

	"joby/internal/domain"
	"joby/internal/infra/config"
	"joby/internal/infra/tracer"
)

// bedrockConverseAPI abstracts the Bedrock runtime methods for testability.
type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockProvider implements domain.LLMProvider via the AWS Bedrock
// Converse API.
type BedrockProvider struct {
	model       string
	maxTokens   int
	temperature float64
	client      bedrockConverseAPI
	logger      *slog.Logger
}

// NewBedrockProvider creates a Bedrock provider using the default AWS
// credential chain.
func NewBedrockProvider(cfg config.LLMConfig, logger *slog.Logger) (*BedrockProvider, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &BedrockProvider{
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      bedrockruntime.NewFromConfig(awsCfg),
		logger:      logger,
	}, nil
}

// newBedrockProviderWithClient injects a client for testing.
func newBedrockProviderWithClient(cfg config.LLMConfig, client bedrockConverseAPI, logger *slog.Logger) *BedrockProvider {
	return &BedrockProvider{
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      client,
		logger:      logger,
	}
}

// Chat implements domain.LLMProvider.
func (p *BedrockProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, span := tracer.StartSpan(ctx, "llm.chat",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", p.Name()),
			tracer.StringAttr("llm.model", req.Model),
		),
	)
	defer span.End()

	if req.Model == "" {
		req.Model = p.model
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = p.maxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = p.temperature
	}

	output, err := p.client.Converse(ctx, toConverseInput(req))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, mapBedrockError(err)
	}

	result := fromConverseOutput(output, req.Model)
	span.SetAttributes(
		tracer.IntAttr("llm.usage.prompt_tokens", result.Usage.PromptTokens),
		tracer.IntAttr("llm.usage.completion_tokens", result.Usage.CompletionTokens),
	)
	tracer.SetOK(span)
	p.logger.Debug("chat completed",
		"model", req.Model,
		"prompt_tokens", result.Usage.PromptTokens,
		"completion_tokens", result.Usage.CompletionTokens,
	)

	return result, nil
}

// Name implements domain.LLMProvider.
func (p *BedrockProvider) Name() string { return "bedrock" }

func toConverseInput(req domain.ChatRequest) *bedrockruntime.ConverseInput {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(req.Model),
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	input.InferenceConfig = &types.InferenceConfiguration{
		MaxTokens: aws.Int32(int32(maxTokens)),
	}
	if req.Temperature > 0 {
		input.InferenceConfig.Temperature = aws.Float32(float32(req.Temperature))
	}

	if req.System != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}

	for i, m := range req.Messages {
		msg := types.Message{}
		switch m.Role {
		case domain.RoleAssistant:
			msg.Role = types.ConversationRoleAssistant
		case domain.RoleUser:
			msg.Role = types.ConversationRoleUser
		case domain.RoleSystem:
			// System text travels in the dedicated block; a second
			// system message folds into it.
			input.System = append(input.System,
				&types.SystemContentBlockMemberText{Value: m.Content})
			continue
		default:
			continue
		}
		if m.Content != "" {
			msg.Content = append(msg.Content, &types.ContentBlockMemberText{Value: m.Content})
		}
		// The document rides with the last user message of the request.
		if req.Document != nil && m.Role == domain.RoleUser && i == lastUserIndex(req.Messages) {
			msg.Content = append(msg.Content, documentBlock(req.Document))
		}
		if len(msg.Content) > 0 {
			input.Messages = append(input.Messages, msg)
		}
	}

	return input
}

func lastUserIndex(msgs []domain.ChatMessage) int {
	last := -1
	for i, m := range msgs {
		if m.Role == domain.RoleUser {
			last = i
		}
	}
	return last
}

func documentBlock(doc *domain.DocumentAttachment) types.ContentBlock {
	format := types.DocumentFormatPdf
	switch doc.Format {
	case domain.DocumentDOCX:
		format = types.DocumentFormatDocx
	case domain.DocumentTXT:
		format = types.DocumentFormatTxt
	}
	name := doc.Name
	if name == "" {
		name = "document"
	}
	return &types.ContentBlockMemberDocument{
		Value: types.DocumentBlock{
			Format: format,
			Name:   aws.String(name),
			Source: &types.DocumentSourceMemberBytes{Value: doc.Bytes},
		},
	}
}

func fromConverseOutput(output *bedrockruntime.ConverseOutput, model string) *domain.ChatResponse {
	result := &domain.ChatResponse{
		Model:     model,
		CreatedAt: time.Now(),
	}

	if output.Usage != nil {
		in := int(aws.ToInt32(output.Usage.InputTokens))
		out := int(aws.ToInt32(output.Usage.OutputTokens))
		result.Usage = domain.Usage{
			PromptTokens:     in,
			CompletionTokens: out,
			TotalTokens:      in + out,
		}
	}

	if outMsg, ok := output.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range outMsg.Value.Content {
			if b, ok := block.(*types.ContentBlockMemberText); ok {
				result.Content += b.Value
			}
		}
	}

	return result
}

func mapBedrockError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return fmt.Errorf("%w: %s", domain.ErrRateLimit, err)
		case "ModelNotReadyException", "ServiceUnavailableException", "InternalServerException":
			return fmt.Errorf("%w: %s", domain.ErrProviderError, err)
		}
	}

	return domain.WrapOp("bedrock", err)
}

var _ domain.LLMProvider = (*BedrockProvider)(nil)
