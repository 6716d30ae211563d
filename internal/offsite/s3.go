package offsite

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Uploader replicates finished artifacts to an S3-compatible bucket. Uploads
// are best-effort: the local artifact remains authoritative and a failed
// upload never fails the backup job.
type Uploader struct {
	logger zerolog.Logger
	client *s3.Client
	bucket string
	prefix string
}

// NewUploader builds an uploader against an S3-compatible endpoint with
// static credentials. Path-style addressing keeps it working against MinIO
// and Ceph RGW.
func NewUploader(logger zerolog.Logger, endpoint, accessKey, secretKey, bucket, prefix string) *Uploader {
	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(endpoint),
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle: true,
	})
	return &Uploader{
		logger: logger.With().Str("component", "offsite-uploader").Logger(),
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// Upload streams the local file to the bucket under prefix/<basename>.
func (u *Uploader) Upload(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}

	key := path.Join(u.prefix, path.Base(localPath))
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(stat.Size()),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", u.bucket, key, err)
	}

	u.logger.Info().Str("key", key).Int64("bytes", stat.Size()).Msg("artifact replicated offsite")
	return nil
}
