package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mx-space/contentgen/internal/config"
)

// S3 stores objects in a bucket, optionally below a key prefix.
type S3 struct {
	client       *s3.Client
	bucket       string
	region       string
	endpoint     string
	prefix       string
	customDomain string
	pathStyle    bool
}

// NewS3 builds a client from static credentials. httpClient may be nil.
func NewS3(opts config.S3Options, httpClient *http.Client) (*S3, error) {
	if !opts.Enabled() {
		return nil, ErrNotConfigured
	}

	cfg := aws.Config{
		Region:           opts.Region,
		RetryMaxAttempts: 1,
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.PathStyleAccess
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	return &S3{
		client:       client,
		bucket:       opts.Bucket,
		region:       opts.Region,
		endpoint:     opts.Endpoint,
		prefix:       strings.Trim(opts.Prefix, "/"),
		customDomain: opts.CustomDomain,
		pathStyle:    opts.PathStyleAccess,
	}, nil
}

func (s *S3) objectKey(key string) (string, error) {
	k, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return k, nil
	}
	return s.prefix + "/" + k, nil
}

func (s *S3) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return "", err
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("s3 put %s: %w", objectKey, err)
	}
	return s.publicURL(objectKey), nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", objectKey, err)
	}
	return nil
}

func (s *S3) publicURL(objectKey string) string {
	if s.customDomain != "" {
		return s.customDomain + "/" + objectKey
	}
	endpoint := strings.TrimRight(s.endpoint, "/")
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", s.region)
	}
	if s.pathStyle || s.endpoint == "" {
		return endpoint + "/" + s.bucket + "/" + objectKey
	}
	scheme, host, ok := strings.Cut(endpoint, "://")
	if !ok {
		return endpoint + "/" + s.bucket + "/" + objectKey
	}
	return scheme + "://" + s.bucket + "." + host + "/" + objectKey
}
