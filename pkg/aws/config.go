package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"go.uber.org/zap"
)

// Settings describes how to reach AWS or a LocalStack edge endpoint.
type Settings struct {
	Region          string
	Endpoint        string // e.g. http://localstack:4566, empty for real AWS
	AccessKeyID     string
	SecretAccessKey string
}

// LoadAWSConfig loads the SDK config. When Endpoint is set every service
// client resolves to it so LocalStack's single edge port is used.
func LoadAWSConfig(ctx context.Context, s Settings) (sdkaws.Config, error) {
	if s.Region == "" {
		s.Region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(s.Region),
	}
	if s.AccessKeyID != "" || s.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, ""),
		))
	}
	if s.Endpoint != "" {
		endpoint, region := s.Endpoint, s.Region
		opts = append(opts, config.WithEndpointResolverWithOptions(
			sdkaws.EndpointResolverWithOptionsFunc(func(service, _ string, _ ...interface{}) (sdkaws.Endpoint, error) {
				return sdkaws.Endpoint{URL: endpoint, SigningRegion: region, HostnameImmutable: true}, nil
			}),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load aws config: %w", err)
	}

	zap.L().Info("AWS configuration loaded",
		zap.String("region", cfg.Region),
		zap.String("endpoint", s.Endpoint),
	)
	return cfg, nil
}
