package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/johnwmail/pastelite/models"
)

// maxCASAttempts bounds the optimistic retry loop in IncrementViewAndFetch
const maxCASAttempts = 16

// s3API is the subset of the S3 client used by S3Store
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps each paste as a JSON object. View counts are bumped with a
// compare-and-swap loop on the object ETag using conditional writes.
type S3Store struct {
	bucket string
	prefix string
	client s3API
}

// NewS3Store creates a new S3Store instance
func NewS3Store(ctx context.Context, bucket, prefix string) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket name must not be empty")
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Store{bucket: bucket, prefix: normalizeS3Prefix(prefix), client: s3.NewFromConfig(cfg)}, nil
}

func (s *S3Store) objectKey(id string) string {
	return applyS3Prefix(s.prefix, id+".json")
}

func (s *S3Store) Store(ctx context.Context, paste *models.Paste) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	data, err := json.Marshal(paste)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(paste.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		IfNoneMatch: aws.String("*"),
	})
	if isS3ConditionFailed(err) {
		return ErrDuplicateID
	}
	return err
}

func (s *S3Store) Get(ctx context.Context, id string) (*models.Paste, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	paste, _, err := s.fetch(ctx, id)
	return paste, err
}

// fetch reads a paste together with its ETag
func (s *S3Store) fetch(ctx context.Context, id string) (*models.Paste, string, error) {
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(id)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, "", nil
		}
		return nil, "", err
	}
	defer func() {
		_ = obj.Body.Close()
	}()
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read paste %s: %w", id, err)
	}
	var paste models.Paste
	if err := json.Unmarshal(data, &paste); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal paste %s: %w", id, err)
	}
	return &paste, aws.ToString(obj.ETag), nil
}

func (s *S3Store) IncrementViewAndFetch(ctx context.Context, id string) (*models.Paste, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		paste, etag, err := s.fetch(ctx, id)
		if err != nil || paste == nil {
			return nil, err
		}
		paste.ViewCount++
		data, err := json.Marshal(paste)
		if err != nil {
			return nil, err
		}
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(s.objectKey(id)),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
			IfMatch:     aws.String(etag),
		})
		if err == nil {
			return paste, nil
		}
		if !isS3ConditionFailed(err) {
			return nil, err
		}
		// another writer won; reload and try again
	}
	return nil, fmt.Errorf("view count for %s still contended after %d attempts", id, maxCASAttempts)
}

func (s *S3Store) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(id)),
	})
	return err
}

// DeleteExpired lists the prefix and removes pastes expired at now.
func (s *S3Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var removed int64
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return removed, err
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			id := strings.TrimSuffix(strings.TrimPrefix(key, s.prefix), ".json")
			paste, _, err := s.fetch(ctx, id)
			if err != nil || paste == nil || !paste.IsExpired(now) {
				continue
			}
			if err := s.Delete(ctx, id); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func (s *S3Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func (s *S3Store) Close() error {
	return nil
}
