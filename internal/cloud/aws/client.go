// Package aws implements the cloud gateway on top of EC2 and CloudWatch.
package aws

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"

	"github.com/stratus-dev/stratus/internal/cloud"
)

// Client is the AWS-backed gateway.
type Client struct {
	ec2    *ec2.Client
	cw     *cloudwatch.Client
	region string
}

var _ cloud.Gateway = (*Client)(nil)

// New builds a gateway for the given region. An empty profile uses the SDK's
// default credential chain (environment variables or default shared profile).
func New(ctx context.Context, region, profile string) (*Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
		log.Info().Str("profile", profile).Msg("using AWS profile")
	} else {
		log.Info().Msg("using default AWS credentials")
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &Client{
		ec2:    ec2.NewFromConfig(cfg),
		cw:     cloudwatch.NewFromConfig(cfg),
		region: region,
	}, nil
}

// apiErrorCode extracts the provider error code, or "" for non-API errors.
func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// tagList converts the Name tag plus arbitrary key/values into EC2 tags,
// sorted for stable request bodies.
func tagList(name string, tags map[string]string) []ec2types.Tag {
	out := []ec2types.Tag{{Key: aws.String("Name"), Value: aws.String(name)}}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, ec2types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}
