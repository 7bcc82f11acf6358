package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stevecastle/reblog/appconfig"
)

// ObjectGetter is the part of the S3 client the feed needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Manifest is the release document stored in the mirror bucket.
type Manifest struct {
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Packages    map[string]string `json:"packages"`
}

// S3Feed reads a release manifest from an S3-compatible bucket.
type S3Feed struct {
	client ObjectGetter
	bucket string
	key    string
}

// NewS3Feed wraps an existing client.
func NewS3Feed(client ObjectGetter, bucket, key string) *S3Feed {
	return &S3Feed{client: client, bucket: bucket, key: key}
}

// NewS3FeedFromConfig builds an S3 client from the bootstrap feed section.
// A custom endpoint switches to path-style addressing for self-hosted
// mirrors.
func NewS3FeedFromConfig(ctx context.Context, cfg appconfig.FeedConfig) (*S3Feed, error) {
	var creds aws.CredentialsProvider = aws.AnonymousCredentials{}
	if cfg.AccessKeyID != "" {
		creds = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Feed(client, cfg.Bucket, cfg.Key), nil
}

// Latest downloads the manifest and picks the package for arch.
func (f *S3Feed) Latest(ctx context.Context, arch string) (*ReleaseInfo, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NoSuchBucket") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch s3://%s/%s: %w", f.bucket, f.key, err)
	}
	defer out.Body.Close()

	var m Manifest
	if err := json.NewDecoder(out.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode release manifest: %w", err)
	}

	url := m.Packages[arch]
	if m.Version == "" || url == "" {
		return nil, nil
	}
	return &ReleaseInfo{Version: m.Version, DownloadURL: url, Description: m.Description}, nil
}
