package publish

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/headsync/internal/errors"
)

// NewClient builds an S3 client for region using the default AWS credential
// chain: environment, shared config and credentials files, SSO, and
// container or instance roles. Endpoint, when set, overrides the S3
// endpoint (for MinIO or LocalStack) and switches to path-style addressing.
func NewClient(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, errors.New("E102").
			WithDetail("Failed to load AWS configuration").
			WithSuggestion("Check AWS_PROFILE and the shared AWS config files").
			Wrap(err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
