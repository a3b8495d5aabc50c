// Package app builds the chat service from configuration. It is shared by the
// Lambda and HTTP entry points.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"site-assistant/handler"
	"site-assistant/internal/assistant"
	"site-assistant/internal/config"
	"site-assistant/internal/integrations/openrouter"
	"site-assistant/internal/integrations/paramstore"
	"site-assistant/internal/repository"
	"site-assistant/internal/usecase"
)

// AWSLoader loads the AWS SDK configuration. It is only called when SSM or
// DynamoDB is needed.
type AWSLoader func(ctx context.Context) (aws.Config, error)

func DefaultAWSLoader(ctx context.Context) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx)
}

// Deps overrides the AWS clients, mainly for tests.
type Deps struct {
	LoadAWS    AWSLoader
	SSM        paramstore.SSMAPI
	Dynamo     repository.DynamoDBAPI
	HTTPClient *http.Client
}

// BuildHandler wires config into a ready handler.
func BuildHandler(ctx context.Context, cfg config.Config, logger *slog.Logger, deps Deps) (*handler.Handler, error) {
	if deps.LoadAWS == nil {
		deps.LoadAWS = DefaultAWSLoader
	}

	needAWS := (cfg.UsesParamStore() && deps.SSM == nil) || (cfg.AuditTable != "" && deps.Dynamo == nil)
	var awsCfg aws.Config
	if needAWS {
		var err error
		awsCfg, err = deps.LoadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: load AWS config: %w", err)
		}
	}

	keys, err := keySource(cfg, awsCfg, deps)
	if err != nil {
		return nil, err
	}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	llm, err := openrouter.NewClient(keys,
		openrouter.WithBaseURL(cfg.BaseURL),
		openrouter.WithHTTPClient(httpClient),
		openrouter.WithAttribution(cfg.SiteURL, cfg.SiteTitle),
	)
	if err != nil {
		return nil, fmt.Errorf("app: create OpenRouter client: %w", err)
	}

	opts := []usecase.Option{usecase.WithLogger(logger)}
	if cfg.AuditTable != "" {
		api := deps.Dynamo
		if api == nil {
			api = awsdynamodb.NewFromConfig(awsCfg)
		}
		audit, err := repository.New(api, cfg.AuditTable)
		if err != nil {
			return nil, fmt.Errorf("app: create audit log: %w", err)
		}
		opts = append(opts, usecase.WithAudit(audit))
		logger.Info("exchange audit enabled", "table", cfg.AuditTable)
	}

	svc, err := usecase.NewChatService(llm, usecase.Settings{
		Model:           cfg.Model,
		OwnerName:       cfg.OwnerName,
		OwnerTitle:      cfg.OwnerTitle,
		MaxPromptLength: cfg.MaxPromptLength,
		MaxHistoryItems: cfg.MaxHistoryItems,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("app: create chat service: %w", err)
	}

	hopts := []handler.Option{handler.WithLogger(logger)}
	if cfg.RenderMarkdown {
		hopts = append(hopts, handler.WithFormatter(assistant.Markdown))
	}
	h, err := handler.NewHandler(svc, hopts...)
	if err != nil {
		return nil, fmt.Errorf("app: create handler: %w", err)
	}
	return h, nil
}

// keySource prefers OPENROUTER_API_KEY and falls back to SSM when a
// parameter prefix is configured. With neither, requests fail with
// "API key not configured" rather than failing startup.
func keySource(cfg config.Config, awsCfg aws.Config, deps Deps) (openrouter.KeySource, error) {
	if !cfg.UsesParamStore() {
		return openrouter.StaticKey(cfg.APIKey), nil
	}
	api := deps.SSM
	if api == nil {
		api = awsssm.NewFromConfig(awsCfg)
	}
	params, err := paramstore.New(api)
	if err != nil {
		return nil, fmt.Errorf("app: create SSM client: %w", err)
	}
	tokens, err := paramstore.NewTokenSource(params, cfg.ParamPrefix)
	if err != nil {
		return nil, fmt.Errorf("app: create token source: %w", err)
	}
	return tokens, nil
}
