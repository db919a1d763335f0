package statuscheck

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/flipbook/internal/document"
	"github.com/local/flipbook/internal/flipbook"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

type fakeBucket struct {
	err    error
	bucket string
}

func (b *fakeBucket) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	b.bucket = aws.ToString(in.Bucket)
	return &s3.HeadBucketOutput{}, b.err
}

type fixedState flipbook.State

func (s fixedState) State() flipbook.State { return flipbook.State(s) }

type fixedCache bool

func (c fixedCache) Installed() bool { return bool(c) }

func TestSummaryAllHealthy(t *testing.T) {
	bucket := &fakeBucket{}
	c := New(Options{
		Redis:    fakePinger{},
		S3Bucket: "books",
		S3:       bucket,
		Loader:   fixedState(flipbook.StateReady),
		Cache:    fixedCache(true),
	})

	s := c.Summary(context.Background())
	assert.True(t, s.OK)
	assert.Equal(t, "Ready", s.Book.Message)
	assert.Equal(t, "Connected", s.Redis.Message)
	assert.Equal(t, "Connected", s.S3.Message)
	assert.Equal(t, "Installed", s.AssetCache.Message)
	assert.True(t, s.Document.OK)
	assert.Equal(t, "books", bucket.bucket)
}

func TestSummaryUnusedDependencies(t *testing.T) {
	c := New(Options{Loader: fixedState(flipbook.StateRendering)})
	s := c.Summary(context.Background())

	assert.True(t, s.OK)
	assert.Equal(t, "Not used", s.Redis.Message)
	assert.Equal(t, "Not used", s.S3.Message)
	assert.Equal(t, "Disabled", s.AssetCache.Message)
	assert.Equal(t, "Loading (rendering)", s.Book.Message)
}

func TestSummaryFailures(t *testing.T) {
	c := New(Options{
		Redis:    fakePinger{err: errors.New("connection refused")},
		S3Bucket: "books",
		S3:       &fakeBucket{err: errors.New(strings.Repeat("x", 300))},
		Loader:   fixedState(flipbook.StateFailed),
		Cache:    fixedCache(false),
	})
	s := c.Summary(context.Background())

	assert.False(t, s.OK)
	assert.False(t, s.Redis.OK)
	assert.Equal(t, "connection refused", s.Redis.Message)
	assert.False(t, s.S3.OK)
	assert.Len(t, s.S3.Message, 120)
	assert.False(t, s.Book.OK)
	assert.False(t, s.AssetCache.OK)
}

func TestSummaryDocumentBackendMissing(t *testing.T) {
	c := New(Options{Loader: fixedState(flipbook.StateReady)})
	c.opener = func() (document.Opener, error) { return nil, errors.New("no PDF opener configured") }

	s := c.Summary(context.Background())
	assert.False(t, s.OK)
	assert.Equal(t, "no PDF opener configured", s.Document.Message)
}

func TestHandler(t *testing.T) {
	ok := New(Options{Loader: fixedState(flipbook.StateReady)})
	rec := httptest.NewRecorder()
	ok.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var s Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.True(t, s.OK)

	bad := New(Options{Loader: fixedState(flipbook.StateFailed)})
	rec = httptest.NewRecorder()
	bad.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
