package secrets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// awsProvider reads secrets out of AWS Secrets Manager. Backend credentials
// for this service live there as JSON objects, one secret per backend.
type awsProvider struct {
	client *secretsmanager.Client
}

// NewAWSProvider builds a Secrets Manager backed Provider for the region.
func NewAWSProvider(region string) (Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &awsProvider{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// GetSecret fetches the named secret and decodes its JSON object payload.
func (p *awsProvider) GetSecret(ctx context.Context, name string) (map[string]string, error) {
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch secret %q: %w", name, err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secret %q carries no string payload", name)
	}

	values := make(map[string]string)
	if err := json.Unmarshal([]byte(*out.SecretString), &values); err != nil {
		return nil, fmt.Errorf("decode secret %q: %w", name, err)
	}
	return values, nil
}
