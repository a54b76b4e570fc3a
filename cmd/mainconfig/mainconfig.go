package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/requirements-analyzer/internal/config"
)

// LoadAWSConfig centralizes AWS SDK initialization so every binary shares the
// same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}

	if endpoint := cfg.AWSEndpointOverride; endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
				switch service {
				case sqs.ServiceID, dynamodb.ServiceID, s3.ServiceID, sesv2.ServiceID:
					return aws.Endpoint{
						URL:           endpoint,
						PartitionID:   "aws",
						SigningRegion: cfg.AWSRegion,
					}, nil
				default:
					return aws.Endpoint{}, &aws.EndpointNotFoundError{}
				}
			},
		)
	}

	return awsCfg, nil
}

// Clients are the AWS service clients used by the analyzer binaries. A client
// is nil when the config does not call for it.
type Clients struct {
	SQS    *sqs.Client
	Dynamo *dynamodb.Client
	S3     *s3.Client
	SES    *sesv2.Client
}

// NewClients builds the clients needed by cfg.
func NewClients(awsCfg aws.Config, cfg *appconfig.Config) Clients {
	var c Clients
	if !cfg.UseMemoryQueue && strings.TrimSpace(cfg.AnalysisQueueURL) != "" {
		c.SQS = sqs.NewFromConfig(awsCfg)
		c.Dynamo = dynamodb.NewFromConfig(awsCfg)
	}
	if strings.TrimSpace(cfg.ArchiveBucket) != "" {
		c.S3 = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			// LocalStack serves buckets on the path, not a subdomain
			o.UsePathStyle = cfg.AWSEndpointOverride != ""
		})
	}
	if cfg.UsesSES() {
		c.SES = sesv2.NewFromConfig(awsCfg)
	}
	return c
}
