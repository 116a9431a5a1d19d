package utils

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	log "github.com/sirupsen/logrus"
)

// AWSClient loads the default AWS configuration (environment, shared config
// files, instance metadata). A non-empty region overrides the configured one.
func AWSClient(ctx context.Context, region string) (*aws.Config, error) {
	profileName, ok := os.LookupEnv("AWS_PROFILE")
	if !ok {
		profileName = "default"
	}
	log.Println("Using AWS profile:", profileName)

	var options []func(*config.LoadOptions) error
	if region != "" {
		options = append(options, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS configuration: %w", err)
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("AWS region is not set")
	}
	log.Println("Using AWS region:", cfg.Region)
	return &cfg, nil
}
