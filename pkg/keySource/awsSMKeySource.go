package keySource

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"go.uber.org/zap"
)

// AWSSMKeySourceConfig holds the configuration for the AWS Secrets Manager key source.
type AWSSMKeySourceConfig struct {
	// Region specifies the AWS region where the secret is stored
	Region string
	// SecretName is the name or ARN of the secret holding the key
	SecretName string
	// VersionStage selects the secret version, AWSCURRENT when empty
	VersionStage string
	// Field is the JSON field holding the key when the secret is a JSON object
	Field string
}

// AWSSMKeySource reads a private key from AWS Secrets Manager on every call,
// so the key is only held in memory for the duration of one signing.
//
// The secret is either the hex key itself or a JSON object carrying it in Field.
type AWSSMKeySource struct {
	logger *zap.Logger
	config *AWSSMKeySourceConfig
	client secretsmanageriface.SecretsManagerAPI
}

// NewAWSSMKeySource creates a key source backed by a new AWS session.
//
// Parameters:
//   - config: The secret location
//   - logger: A zap logger for logging operations and errors
//
// Returns:
//   - *AWSSMKeySource: The key source
//   - error: An error if the AWS session cannot be created
func NewAWSSMKeySource(config *AWSSMKeySourceConfig, logger *zap.Logger) (*AWSSMKeySource, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewAWSSMKeySourceWithClient(config, secretsmanager.New(sess), logger), nil
}

// NewAWSSMKeySourceWithClient creates a key source over an existing Secrets Manager client.
func NewAWSSMKeySourceWithClient(config *AWSSMKeySourceConfig, client secretsmanageriface.SecretsManagerAPI, logger *zap.Logger) *AWSSMKeySource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AWSSMKeySource{
		logger: logger,
		config: config,
		client: client,
	}
}

func (a *AWSSMKeySource) PrivateKey(ctx context.Context) ([]byte, error) {
	stage := a.config.VersionStage
	if stage == "" {
		stage = "AWSCURRENT"
	}
	result, err := a.client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(a.config.SecretName),
		VersionStage: aws.String(stage),
	})
	if err != nil {
		a.logger.Sugar().Errorw("Failed to read private key secret",
			zap.String("secret", a.config.SecretName),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}
	if result.SecretString == nil {
		return nil, fmt.Errorf("secret string is nil")
	}
	return a.parseSecret(*result.SecretString)
}

func (a *AWSSMKeySource) parseSecret(secret string) ([]byte, error) {
	if !strings.HasPrefix(strings.TrimSpace(secret), "{") {
		return decodeHexKey(secret)
	}
	field := a.config.Field
	if field == "" {
		field = "privateKey"
	}
	var fields map[string]string
	if err := json.Unmarshal([]byte(secret), &fields); err != nil {
		return nil, fmt.Errorf("failed to parse secret JSON: %w", err)
	}
	value, ok := fields[field]
	if !ok {
		return nil, fmt.Errorf("secret has no field %q", field)
	}
	return decodeHexKey(value)
}
