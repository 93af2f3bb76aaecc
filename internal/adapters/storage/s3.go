package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"quoteflow/internal/domain"
)

const defaultURLTTL = 7 * 24 * time.Hour

// S3Config configures the S3-compatible document store. Endpoint is optional and
// selects a non-AWS service such as MinIO, which also switches to path-style addressing.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Endpoint        string
	KeyPrefix       string
	URLTTL          time.Duration
}

// Config selects the document store implementation.
type Config struct {
	Provider string
	S3       S3Config
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// NewDocumentStore returns the configured store. Provider "s3" uploads to a bucket;
// "noop" or unknown disables document storage.
func NewDocumentStore(config Config, logger *slog.Logger) (domain.DocumentStore, error) {
	switch config.Provider {
	case "s3":
		if config.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 document store: bucket is required")
		}
		client := s3.NewFromConfig(s3AWSConfig(config.S3), func(o *s3.Options) {
			if config.S3.Endpoint != "" {
				o.BaseEndpoint = aws.String(config.S3.Endpoint)
				o.UsePathStyle = true
			}
		})
		return newS3Store(client, s3.NewPresignClient(client), config.S3), nil
	case "noop", "":
		return noopStore{}, nil
	default:
		logger.Warn("unknown document store provider, documents disabled", "provider", config.Provider)
		return noopStore{}, nil
	}
}

func s3AWSConfig(c S3Config) aws.Config {
	cfg := aws.Config{Region: c.Region}
	if c.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		)
	}
	return cfg
}

type s3Store struct {
	client    objectPutter
	presigner objectPresigner
	bucket    string
	keyPrefix string
	urlTTL    time.Duration
	newID     func() string
}

func newS3Store(client objectPutter, presigner objectPresigner, c S3Config) *s3Store {
	ttl := c.URLTTL
	if ttl <= 0 {
		ttl = defaultURLTTL
	}
	return &s3Store{
		client:    client,
		presigner: presigner,
		bucket:    c.Bucket,
		keyPrefix: strings.Trim(c.KeyPrefix, "/"),
		urlTTL:    ttl,
		newID:     func() string { return uuid.NewString() },
	}
}

// Put uploads doc under a fresh unguessable key and returns a presigned GET URL for it.
func (s *s3Store) Put(ctx context.Context, doc *domain.Document) (string, error) {
	key := s.objectKey(doc.Key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(doc.Body),
		ContentType: aws.String(doc.ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload document %s: %w", key, err)
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.urlTTL))
	if err != nil {
		return "", fmt.Errorf("presign document %s: %w", key, err)
	}
	return req.URL, nil
}

// objectKey is <prefix>/<random id>/<document name>.
func (s *s3Store) objectKey(name string) string {
	return path.Join(s.keyPrefix, s.newID(), path.Base(name))
}

type noopStore struct{}

func (noopStore) Put(ctx context.Context, doc *domain.Document) (string, error) {
	return "", domain.ErrDocumentStoreDisabled
}
