package llm

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"agentrouter/internal/domain"
	"agentrouter/internal/log"
)

// BedrockProvider implements domain.ChatClient over the Bedrock Runtime
// Converse API. Unlike the other providers it never holds a bare API-key
// string: its credentials are an AWS access/secret key pair recovered from
// the tenant's decrypted binding ciphertext (formatted "accessKey:secretKey").
type BedrockProvider struct {
	client    *bedrockruntime.Client
	logger    *log.Logger
	modelName string
}

// NewBedrockProvider builds a BedrockProvider from decrypted AWS
// credentials, never from process environment variables.
func NewBedrockProvider(accessKeyID, secretAccessKey, region, modelName string, logger *log.Logger) (*BedrockProvider, error) {
	if accessKeyID == "" || secretAccessKey == "" {
		return nil, fmt.Errorf("%w: bedrock: missing access key or secret key", domain.ErrConfigMissing)
	}
	if region == "" {
		region = "us-west-2"
	}

	cfg := aws.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
	}

	return &BedrockProvider{
		client:    bedrockruntime.NewFromConfig(cfg),
		logger:    logger,
		modelName: modelName,
	}, nil
}

// Provider returns the provider identifier.
func (p *BedrockProvider) Provider() string {
	return "bedrock"
}

// ChatCompletion performs one Converse call.
func (p *BedrockProvider) ChatCompletion(ctx context.Context, req *domain.ChatCompletionRequest) (*domain.ChatCompletionResponse, error) {
	system, messages := p.buildConverseRequest(req)

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(p.modelName),
		Messages: messages,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(req.MaxTokens)),
			Temperature: aws.Float32(req.Temperature),
		},
	}
	if len(system) > 0 {
		input.System = system
	}

	result, err := p.client.Converse(ctx, input)
	if err != nil {
		p.logger.WithContext(ctx).Error().Err(err).Msg("bedrock converse failed")
		return nil, fmt.Errorf("%w: bedrock: %v", domain.ErrLLMTransport, err)
	}

	return p.parseConverseResponse(result)
}

func (p *BedrockProvider) buildConverseRequest(req *domain.ChatCompletionRequest) ([]types.SystemContentBlock, []types.Message) {
	var system []types.SystemContentBlock
	var messages []types.Message

	for _, msg := range req.Messages {
		if msg.Role == domain.RoleSystem {
			system = append(system, &types.SystemContentBlockMemberText{Value: msg.Content})
			continue
		}

		role := types.ConversationRoleUser
		if msg.Role == domain.RoleAssistant {
			role = types.ConversationRoleAssistant
		}

		messages = append(messages, types.Message{
			Role: role,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: msg.Content},
			},
		})
	}

	return system, messages
}

func (p *BedrockProvider) parseConverseResponse(result *bedrockruntime.ConverseOutput) (*domain.ChatCompletionResponse, error) {
	content := ""
	if msg, ok := result.Output.(*types.ConverseOutputMemberMessage); ok && len(msg.Value.Content) > 0 {
		if textBlock, ok := msg.Value.Content[0].(*types.ContentBlockMemberText); ok {
			content = textBlock.Value
		}
	}

	var usage *domain.TokenUsage
	if result.Usage != nil {
		usage = &domain.TokenUsage{
			PromptTokens:     int(aws.ToInt32(result.Usage.InputTokens)),
			CompletionTokens: int(aws.ToInt32(result.Usage.OutputTokens)),
			TotalTokens:      int(aws.ToInt32(result.Usage.TotalTokens)),
		}
	}

	return &domain.ChatCompletionResponse{
		Message: domain.ChatMessage{
			Role:    domain.RoleAssistant,
			Content: content,
		},
		Usage: usage,
	}, nil
}
