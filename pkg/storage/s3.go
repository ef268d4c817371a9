package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bucket names a logical storage bucket.
type Bucket string

const (
	BucketDocuments Bucket = "documents"
	BucketPhotos    Bucket = "photos"
)

const (
	// MaxUploadSize is the maximum accepted upload size (10MB).
	MaxUploadSize = 10 * 1024 * 1024
	// CacheControl is set on every uploaded object.
	CacheControl = "max-age=3600"
)

var (
	ErrUnknownBucket = errors.New("unknown bucket")
	ErrInvalidPath   = errors.New("invalid object path")
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	DocumentsBucket string
	PhotosBucket    string
	PublicBaseURL   string
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3 stores tenant files in the documents and photos buckets.
type S3 struct {
	client   *s3.Client
	uploader uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or .env (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY).
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region),
			zap.String("documents_bucket", cfg.DocumentsBucket), zap.String("photos_bucket", cfg.PhotosBucket))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3{
		client:   client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) { u.PartSize = 5 * 1024 * 1024 }),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// BucketName resolves a logical bucket to its configured S3 bucket.
func (s *S3) BucketName(b Bucket) (string, error) {
	switch b {
	case BucketDocuments:
		return s.cfg.DocumentsBucket, nil
	case BucketPhotos:
		return s.cfg.PhotosBucket, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownBucket, b)
}

// ParseBucket validates a bucket name from a request.
func ParseBucket(name string) (Bucket, error) {
	switch b := Bucket(name); b {
	case BucketDocuments, BucketPhotos:
		return b, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownBucket, name)
}

// ObjectKey places p under the organization's prefix: {org_id}/{p}.
func ObjectKey(orgID uuid.UUID, p string) (string, error) {
	p = strings.TrimPrefix(strings.TrimSpace(p), "/")
	if p == "" || orgID == uuid.Nil {
		return "", ErrInvalidPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." || seg == "." {
			return "", ErrInvalidPath
		}
	}
	return path.Join(orgID.String(), p), nil
}

// ContentTypeFor returns the MIME type for a filename extension.
func ContentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// PublicURL returns the public URL of an object.
func (s *S3) PublicURL(b Bucket, key string) string {
	bucket, err := s.BucketName(b)
	if err != nil {
		return ""
	}
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.cfg.Region, key)
}

// Upload streams body to the bucket, replacing any existing object, and
// returns the object's public URL.
func (s *S3) Upload(ctx context.Context, b Bucket, key, contentType string, body io.Reader, size int64) (string, error) {
	bucket, err := s.BucketName(b)
	if err != nil {
		return "", err
	}
	input := &s3.PutObjectInput{
		Bucket:       aws.String(bucket),
		Key:          aws.String(key),
		Body:         body,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(CacheControl),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return s.PublicURL(b, key), nil
}

// PresignedDownloadURL returns a pre-signed GET URL for a private object.
func (s *S3) PresignedDownloadURL(ctx context.Context, b Bucket, key string, expires time.Duration) (string, error) {
	bucket, err := s.BucketName(b)
	if err != nil {
		return "", err
	}
	req, err := s3.NewPresignClient(s.client).PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// Delete removes an object.
func (s *S3) Delete(ctx context.Context, b Bucket, key string) error {
	bucket, err := s.BucketName(b)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
