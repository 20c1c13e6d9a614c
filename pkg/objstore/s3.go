package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/stratus-cloud/stratus/pkg/errdefs"
)

// S3 stores bundle objects in an S3 bucket. Content hashes ride along as
// object metadata so unchanged files are skipped on re-publish without
// downloading anything.
type S3 struct {
	client   *s3.Client
	bucket   string
	endpoint string
}

// NewS3 creates an S3-backed store using the ambient AWS configuration
// (environment, shared config, instance role).
func NewS3(ctx context.Context, bucket string) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3WithClient(s3.NewFromConfig(cfg), bucket), nil
}

// NewS3WithClient creates an S3-backed store with a preconfigured client
func NewS3WithClient(client *s3.Client, bucket string) *S3 {
	return &S3{
		client:   client,
		bucket:   bucket,
		endpoint: fmt.Sprintf("https://%s.s3.amazonaws.com", bucket),
	}
}

// WithEndpoint overrides the published base URL, e.g. with the bucket's
// website or CDN endpoint
func (s *S3) WithEndpoint(endpoint string) *S3 {
	s.endpoint = endpoint
	return s
}

// Endpoint returns the base URL consumers fetch objects from
func (s *S3) Endpoint() string {
	return s.endpoint
}

// Stat heads the object and returns its stored metadata
func (s *S3) Stat(ctx context.Context, key string) (*Object, bool, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("head %s: %w", key, err)
	}
	return &Object{
		Key:         key,
		ContentType: aws.ToString(head.ContentType),
		Hash:        head.Metadata[HashMetadataKey],
		Size:        aws.ToInt64(head.ContentLength),
	}, true, nil
}

// Put uploads one object with its content hash as metadata
func (s *S3) Put(ctx context.Context, obj Object, body io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(obj.Key),
		Body:        body,
		ContentType: aws.String(obj.ContentType),
		Metadata:    map[string]string{HashMetadataKey: obj.Hash},
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", obj.Key, err)
	}
	return nil
}

// Get fetches the object's metadata and content
func (s *S3) Get(ctx context.Context, key string) (*Object, io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, nil, errdefs.New(errdefs.CodeInputNotFound, key, "object not in store")
		}
		return nil, nil, fmt.Errorf("get %s: %w", key, err)
	}
	return &Object{
		Key:         key,
		ContentType: aws.ToString(out.ContentType),
		Hash:        out.Metadata[HashMetadataKey],
		Size:        aws.ToInt64(out.ContentLength),
	}, out.Body, nil
}
