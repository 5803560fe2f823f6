package output

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	"github.com/nhle/mailpdf/internal/model"
)

// S3Sink mirrors attachments to an S3 compatible bucket (AWS S3,
// Cloudflare R2, MinIO) as <prefix><name>.
type S3Sink struct {
	uploader s3manageriface.UploaderAPI
	bucket   string
	prefix   string
}

// NewS3Sink builds a sink from cfg. A custom endpoint switches to
// path-style addressing; static keys are used when both are set,
// otherwise the default AWS credential chain applies.
func NewS3Sink(cfg model.S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("output.s3.bucket is required")
	}

	awsCfg := &aws.Config{}
	if cfg.Region != "" {
		awsCfg.Region = aws.String(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
		if cfg.Region == "" {
			awsCfg.Region = aws.String("auto")
		}
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("creating S3 session: %w", err)
	}

	return NewS3SinkWithUploader(s3manager.NewUploader(sess), cfg.Bucket, cfg.Prefix), nil
}

// NewS3SinkWithUploader creates a sink around an existing uploader.
func NewS3SinkWithUploader(uploader s3manageriface.UploaderAPI, bucket, prefix string) *S3Sink {
	return &S3Sink{uploader: uploader, bucket: bucket, prefix: prefix}
}

func (s *S3Sink) Write(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := s.prefix + name
	location := "s3://" + s.bucket + "/" + key

	input := &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.uploader.UploadWithContext(ctx, input); err != nil {
		return "", &model.PersistenceError{Op: "upload attachment", Path: location, Err: err}
	}
	return location, nil
}
