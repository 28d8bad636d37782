package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"golang.org/x/sync/singleflight"
)

// SecretGetter resolves a secret by name.
type SecretGetter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

type secretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsClient resolves config secrets such as product/MONGO_URI. Each name
// is fetched once per process; concurrent first reads share one request.
type SecretsClient struct {
	api    secretsAPI
	values sync.Map
	group  singleflight.Group
}

func NewSecretsClient(cfg sdkaws.Config) *SecretsClient {
	return &SecretsClient{api: secretsmanager.NewFromConfig(cfg)}
}

// GetSecret returns the value of name. "secret#field" selects one field of
// a JSON secret.
func (s *SecretsClient) GetSecret(ctx context.Context, name string) (string, error) {
	if v, ok := s.values.Load(name); ok {
		return v.(string), nil
	}

	v, err, _ := s.group.Do(name, func() (interface{}, error) {
		id, field, _ := strings.Cut(name, "#")
		value, err := s.fetch(ctx, id)
		if err != nil {
			return "", err
		}
		if field != "" {
			if value, err = secretField(value, field); err != nil {
				return "", fmt.Errorf("secret %s: %w", id, err)
			}
		}
		s.values.Store(name, value)
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *SecretsClient) fetch(ctx context.Context, id string) (string, error) {
	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: sdkaws.String(id)})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", id, err)
	}
	switch {
	case out.SecretString != nil:
		return *out.SecretString, nil
	case len(out.SecretBinary) > 0:
		return string(out.SecretBinary), nil
	}
	return "", fmt.Errorf("secret %s has no value", id)
}

func secretField(raw, field string) (string, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return "", fmt.Errorf("not a JSON object: %w", err)
	}
	v, ok := fields[field]
	if !ok {
		return "", fmt.Errorf("no field %q", field)
	}
	if str, ok := v.(string); ok {
		return str, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
