package creds

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used by the
// source.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerSource fetches the destination secret payload from AWS
// Secrets Manager.
type SecretsManagerSource struct {
	client   SecretsManagerAPI
	secretID string
}

// NewSecretsManagerSource creates a source reading the named secret.
func NewSecretsManagerSource(client SecretsManagerAPI, secretID string) *SecretsManagerSource {
	return &SecretsManagerSource{client: client, secretID: secretID}
}

// Fetch returns the secret's string payload.
func (s *SecretsManagerSource) Fetch(ctx context.Context) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretID),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %q: %w", s.secretID, err)
	}

	payload := aws.ToString(out.SecretString)
	if payload == "" {
		return "", fmt.Errorf("secret %q has no string payload", s.secretID)
	}
	return payload, nil
}
