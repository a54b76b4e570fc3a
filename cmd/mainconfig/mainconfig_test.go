package mainconfig

import (
	"context"
	"testing"

	appconfig "github.com/wolfman30/requirements-analyzer/internal/config"
)

func TestNewClientsOnlyBuildsConfiguredServices(t *testing.T) {
	cfg := &appconfig.Config{
		AWSRegion:          "us-east-1",
		AWSAccessKeyID:     "test",
		AWSSecretAccessKey: "test",
	}
	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("load aws config: %v", err)
	}

	c := NewClients(awsCfg, cfg)
	if c.SQS != nil || c.Dynamo != nil || c.S3 != nil || c.SES != nil {
		t.Fatalf("expected no clients, got %+v", c)
	}

	cfg.AnalysisQueueURL = "http://localhost:4566/000000000000/analysis"
	cfg.ArchiveBucket = "archive"
	cfg.UrgentAlertEmail = "oncall@example.com"
	cfg.EmailProvider = "SES"
	c = NewClients(awsCfg, cfg)
	if c.SQS == nil || c.Dynamo == nil || c.S3 == nil || c.SES == nil {
		t.Fatalf("expected all clients, got %+v", c)
	}

	cfg.UseMemoryQueue = true
	if c = NewClients(awsCfg, cfg); c.SQS != nil {
		t.Fatalf("memory queue must not build an SQS client")
	}
}

func TestLoadAWSConfigEndpointOverride(t *testing.T) {
	cfg := &appconfig.Config{AWSRegion: "us-west-2", AWSEndpointOverride: "http://localhost:4566"}
	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("load aws config: %v", err)
	}
	if awsCfg.Region != "us-west-2" {
		t.Fatalf("unexpected region %q", awsCfg.Region)
	}
	//nolint:staticcheck // resolver is how the override is applied
	ep, err := awsCfg.EndpointResolverWithOptions.ResolveEndpoint("SQS", "us-west-2")
	if err != nil || ep.URL != "http://localhost:4566" {
		t.Fatalf("expected override endpoint, got %+v %v", ep, err)
	}
	//nolint:staticcheck
	if _, err := awsCfg.EndpointResolverWithOptions.ResolveEndpoint("Lambda", "us-west-2"); err == nil {
		t.Fatalf("expected other services to use default resolution")
	}
}
