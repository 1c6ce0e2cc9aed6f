package storage

import (
	"context"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-userauth"
)

// S3Config holds the bucket settings. Endpoint is set for S3 compatible
// services such as MinIO.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// PublicURL, when set, prefixes returned references.
	PublicURL string
}

// ObjectAPI is the subset of *s3.Client used by S3Store.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store uploads avatars to a bucket under the avatars/ prefix.
type S3Store struct {
	client    ObjectAPI
	bucket    string
	prefix    string
	publicURL string
}

var _ auth.AvatarStore = (*S3Store)(nil)

// NewS3Client builds an s3 client from cfg. Static credentials are used
// when both keys are present, otherwise the default AWS chain applies.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load aws config")
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewS3Store(client ObjectAPI, cfg S3Config) *S3Store {
	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    DefaultAvatarPrefix,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}
}

// Store uploads tmpPath as avatars/<filename> and removes the local file.
func (s *S3Store) Store(ctx context.Context, tmpPath, filename string) (string, error) {
	filename = filepath.Base(filename)
	key := path.Join(s.prefix, filename)

	f, err := os.Open(tmpPath)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open avatar")
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to upload avatar").
			WithMetadata(map[string]any{"bucket": s.bucket, "key": key})
	}

	f.Close()
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove temporary avatar")
	}

	if s.publicURL != "" {
		return s.publicURL + "/" + key, nil
	}
	return key, nil
}

// Remove deletes the object behind a reference returned by Store.
func (s *S3Store) Remove(ctx context.Context, ref string) error {
	filename := path.Base(strings.TrimPrefix(ref, s.publicURL))
	if filename == "." || filename == "/" {
		return goerrors.New("avatar reference is required", goerrors.CategoryBadInput)
	}
	key := path.Join(s.prefix, filename)

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete avatar").
			WithMetadata(map[string]any{"bucket": s.bucket, "key": key})
	}

	return nil
}
