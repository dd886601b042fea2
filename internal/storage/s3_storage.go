package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"krishilink/api/internal/config"
)

// IS3Storage hands out upload URLs for crop images.
type IS3Storage interface {
	GeneratePresignedPutURL(ctx context.Context, cropID, filename, contentType string) (url string, key string, err error)
}

type s3Storage struct {
	bucket        string
	expiration    time.Duration
	presignClient *s3.PresignClient
}

// NewS3Storage creates a new S3 storage service from static credentials.
func NewS3Storage(ctx context.Context, cfg *config.Config) (IS3Storage, error) {
	if cfg.AwsS3Bucket == "" {
		return nil, fmt.Errorf("AWS_S3_BUCKET is not set")
	}
	awsCfg, err := aws_config.LoadDefaultConfig(ctx,
		aws_config.WithRegion(cfg.AwsRegion),
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &s3Storage{
		bucket:        cfg.AwsS3Bucket,
		expiration:    cfg.ImageUploadURLTTL,
		presignClient: s3.NewPresignClient(s3.NewFromConfig(awsCfg)),
	}, nil
}

// ObjectKey builds crops/<cropID>/<uuid>_<base name>. Only the base name of
// filename is kept so callers cannot escape the crop prefix.
func ObjectKey(cropID, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "image"
	}
	return fmt.Sprintf("crops/%s/%s_%s", cropID, uuid.NewString(), base)
}

// GeneratePresignedPutURL returns a pre-signed PUT URL and the object key it
// uploads to.
func (s *s3Storage) GeneratePresignedPutURL(ctx context.Context, cropID, filename, contentType string) (string, string, error) {
	objectKey := ObjectKey(cropID, filename)

	presignedReq, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.expiration))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate presigned PUT URL for key %s: %w", objectKey, err)
	}
	return presignedReq.URL, objectKey, nil
}
