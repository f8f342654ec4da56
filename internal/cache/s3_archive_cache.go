package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/bbernstein/baroalt/backend-go/internal/clock"
	"github.com/rs/zerolog/log"
)

// S3Client defines the interface for S3 operations we need
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

const archivePrefix = "archives/"

// S3ArchiveCache keeps downloaded archives in a bucket. Objects older than the
// TTL are treated as missing.
type S3ArchiveCache struct {
	client     S3Client
	bucketName string
	ttl        time.Duration
	clock      clock.Clock
}

func NewS3ArchiveCache(client S3Client, bucketName string, ttl time.Duration) *S3ArchiveCache {
	return &S3ArchiveCache{
		client:     client,
		bucketName: bucketName,
		ttl:        ttl,
		clock:      clock.System{},
	}
}

// objectKey maps an archive URL to a bucket key that keeps its directory structure
func objectKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return archivePrefix + strings.TrimPrefix(rawURL, "/")
	}
	return archivePrefix + u.Host + u.Path
}

// GetArchive retrieves an archive body if cached and not expired
func (c *S3ArchiveCache) GetArchive(ctx context.Context, rawURL string) ([]byte, error) {
	if c.bucketName == "" {
		return nil, fmt.Errorf("empty bucket name")
	}

	key := objectKey(rawURL)
	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting %s from S3: %w", key, err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			log.Error().Err(err).Msg("Error closing S3 object body")
		}
	}(result.Body)

	if result.LastModified != nil && c.clock.Now().Sub(*result.LastModified) > c.ttl {
		log.Debug().Str("key", key).Msg("Archive cache expired")
		return nil, nil
	}

	body, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s from S3: %w", key, err)
	}

	return body, nil
}

// SaveArchive saves an archive body to the bucket
func (c *S3ArchiveCache) SaveArchive(ctx context.Context, rawURL string, body []byte) error {
	if c.bucketName == "" {
		return fmt.Errorf("empty bucket name")
	}

	key := objectKey(rawURL)
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return fmt.Errorf("saving to S3: %w", err)
	}

	log.Debug().Str("key", key).Int("bytes", len(body)).Msg("Saved archive to S3 cache")
	return nil
}
