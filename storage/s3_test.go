package storage

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"

	"github.com/johnwmail/pastelite/models"
)

type fakeS3Object struct {
	data []byte
	etag string
}

// fakeS3 is an in-memory bucket honouring If-Match and If-None-Match
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]fakeS3Object
	version  int
	conflict int // number of upcoming If-Match writes to reject
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]fakeS3Object)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data)), ETag: aws.String(obj.etag)}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	existing, ok := f.objects[key]
	if aws.ToString(in.IfNoneMatch) == "*" && ok {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed"}
	}
	if in.IfMatch != nil {
		if f.conflict > 0 {
			f.conflict--
			return nil, &smithy.GenericAPIError{Code: "ConditionalRequestConflict"}
		}
		if !ok || existing.etag != aws.ToString(in.IfMatch) {
			return nil, &smithy.GenericAPIError{Code: "PreconditionFailed"}
		}
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.version++
	etag := `"v` + strconv.Itoa(f.version) + `"`
	f.objects[key] = fakeS3Object{data: data, etag: etag}
	return &s3.PutObjectOutput{ETag: aws.String(etag)}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{}
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
		}
	}
	return out, nil
}

func newTestS3Store() (*S3Store, *fakeS3) {
	fake := newFakeS3()
	return &S3Store{bucket: "bucket", prefix: normalizeS3Prefix("pastes"), client: fake}, fake
}

func TestNewS3Store_EmptyBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), "", "prefix")
	require.Error(t, err)
}

func TestS3Store_StoreGetDuplicate(t *testing.T) {
	store, fake := newTestS3Store()
	ctx := context.Background()

	paste := &models.Paste{ID: "s1", Content: "hello", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Store(ctx, paste))
	require.Contains(t, fake.objects, "pastes/s1.json")

	dup := &models.Paste{ID: "s1", Content: "other"}
	require.ErrorIs(t, store.Store(ctx, dup), ErrDuplicateID)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "hello", got.Content)

	missing, err := store.Get(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestS3Store_IncrementRetriesOnConflict(t *testing.T) {
	store, fake := newTestS3Store()
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, &models.Paste{ID: "s2", Content: "x"}))
	fake.conflict = 3

	got, err := store.IncrementViewAndFetch(ctx, "s2")
	require.NoError(t, err)
	require.Equal(t, 1, got.ViewCount)
	require.Equal(t, 0, fake.conflict)
}

func TestS3Store_IncrementMissing(t *testing.T) {
	store, fake := newTestS3Store()

	got, err := store.IncrementViewAndFetch(context.Background(), "ghost")
	require.NoError(t, err)
	require.Nil(t, got)
	require.Empty(t, fake.objects)
}

func TestS3Store_ConcurrentIncrements(t *testing.T) {
	store, _ := newTestS3Store()
	ctx := context.Background()
	require.NoError(t, store.Store(ctx, &models.Paste{ID: "s3", Content: "x"}))

	const workers = 10
	seen := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := store.IncrementViewAndFetch(ctx, "s3")
			if err == nil && p != nil {
				seen <- p.ViewCount
			}
		}()
	}
	wg.Wait()
	close(seen)

	counts := make(map[int]bool)
	for c := range seen {
		require.False(t, counts[c], "view number %d handed out twice", c)
		counts[c] = true
	}
	require.Len(t, counts, workers)

	final, err := store.Get(ctx, "s3")
	require.NoError(t, err)
	require.Equal(t, workers, final.ViewCount)
}

func TestS3Store_DeleteExpired(t *testing.T) {
	store, fake := newTestS3Store()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	require.NoError(t, store.Store(ctx, &models.Paste{ID: "old", Content: "a", ExpiresAt: &past}))
	require.NoError(t, store.Store(ctx, &models.Paste{ID: "new", Content: "b", ExpiresAt: &future}))
	require.NoError(t, store.Store(ctx, &models.Paste{ID: "forever", Content: "c"}))

	removed, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
	require.NotContains(t, fake.objects, "pastes/old.json")
	require.Len(t, fake.objects, 2)
	require.NoError(t, store.Ping(ctx))
}
