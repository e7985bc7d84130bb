package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/notesapp/notes-api/internal/config"
	"github.com/notesapp/notes-api/internal/model"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store keeps media in an S3-compatible bucket (AWS or MinIO).
type S3Store struct {
	client    S3API
	bucket    string
	publicURL string
	now       func() time.Time
}

// NewS3Store builds an S3 client from cfg. Static credentials are used when
// an access key is configured, otherwise the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg config.S3Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3StoreWithClient(client, cfg.Bucket, publicURLFor(cfg)), nil
}

// NewS3StoreWithClient wraps an existing client. publicURL is the prefix
// object keys are appended to when building note URLs.
func NewS3StoreWithClient(client S3API, bucket, publicURL string) *S3Store {
	return &S3Store{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

func publicURLFor(cfg config.S3Config) string {
	switch {
	case cfg.PublicURL != "":
		return cfg.PublicURL
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

// Save uploads the attachment under <kind dir>/<object name>.
func (s *S3Store) Save(ctx context.Context, att model.Attachment) (string, error) {
	mediaType, err := ValidateContentType(att.Kind, att.ContentType)
	if err != nil {
		return "", err
	}

	key := Dir(att.Kind) + "/" + objectName(s.now(), att.Filename, mediaType, att.Kind)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        att.Body,
		ContentType: aws.String(mediaType),
	}
	if att.Size > 0 {
		input.ContentLength = aws.Int64(att.Size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}

	return s.publicURL + "/" + key, nil
}

// Owns reports whether url points into this bucket's public prefix.
func (s *S3Store) Owns(url string) bool {
	_, ok := s.keyFor(url)
	return ok
}

// Delete removes the object behind url. Foreign URLs are ignored.
func (s *S3Store) Delete(ctx context.Context, url string) error {
	key, ok := s.keyFor(url)
	if !ok {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *S3Store) keyFor(url string) (string, bool) {
	key, found := strings.CutPrefix(url, s.publicURL+"/")
	if !found || key == "" {
		return "", false
	}
	if !strings.HasPrefix(key, Dir(model.MediaImage)+"/") && !strings.HasPrefix(key, Dir(model.MediaAudio)+"/") {
		return "", false
	}
	return key, true
}
