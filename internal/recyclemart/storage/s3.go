package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// S3Uploader stores photos in an S3 bucket
type S3Uploader struct {
	bucket   string
	uploader *manager.Uploader
	log      *zap.Logger
}

// NewS3Uploader loads AWS credentials from the environment and targets bucket
func NewS3Uploader(ctx context.Context, bucket, region string, log *zap.Logger) (*S3Uploader, error) {
	if bucket == "" {
		return nil, fmt.Errorf("missing S3 bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3Uploader{
		bucket:   bucket,
		uploader: manager.NewUploader(s3.NewFromConfig(cfg)),
		log:      log.With(zap.String("component", "s3_uploader"), zap.String("bucket", bucket)),
	}, nil
}

// UploadPhoto implements PhotoUploader
func (u *S3Uploader) UploadPhoto(ctx context.Context, owner uuid.UUID, photo *Photo) (string, error) {
	key := ObjectKey(owner, photo)

	out, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        photo.reader(),
		ContentType: aws.String(photo.ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	u.log.Info("photo uploaded", zap.String("key", key), zap.Int("bytes", len(photo.Data)))
	return out.Location, nil
}
