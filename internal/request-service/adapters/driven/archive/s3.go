package archive

import (
	"bytes"
	"context"
	"fmt"

	"blood-link/internal/config"
	"blood-link/internal/request-service/core/ports"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 writes archived requests to a single bucket (AWS or any S3 compatible endpoint).
type S3 struct {
	client *s3.Client
	bucket string
}

var _ ports.IArchive = (*S3)(nil)

// NewS3 loads credentials from the default AWS chain.
func NewS3(ctx context.Context, cfg *config.Archiveconfig, opts ...func(*awsconfig.LoadOptions) error) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, append([]func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3{client: client, bucket: cfg.Bucket}, nil
}

func (a *S3) Put(ctx context.Context, key string, body []byte) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(k),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", k, err)
	}
	return nil
}
