package statuscheck

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/local/flipbook/internal/document"
	"github.com/local/flipbook/internal/flipbook"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// RedisClient adapts a go-redis client to RedisPinger.
type RedisClient struct{ C *redis.Client }

func (r RedisClient) Ping(ctx context.Context) error { return r.C.Ping(ctx).Err() }

// BucketHeader is the S3 call used to probe the source bucket.
type BucketHeader interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// LoadState reports the document load progress.
type LoadState interface {
	State() flipbook.State
}

// CacheState reports whether the asset cache is installed.
type CacheState interface {
	Installed() bool
}

// Checker aggregates health checks for the viewer's dependencies.
type Checker struct {
	redis    RedisPinger
	s3Bucket string
	loader   LoadState
	cache    CacheState
	opener   func() (document.Opener, error)

	s3once sync.Once
	s3     BucketHeader
	s3err  error
}

// Options configures the Checker. Nil Redis or empty S3Bucket mark the dependency as unused.
type Options struct {
	Redis    RedisPinger
	S3Bucket string
	S3       BucketHeader
	Loader   LoadState
	Cache    CacheState
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	OK         bool   `json:"ok"`
	Book       Status `json:"book"`
	Document   Status `json:"document"`
	AssetCache Status `json:"asset_cache"`
	Redis      Status `json:"redis"`
	S3         Status `json:"s3"`
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	c := &Checker{
		redis:    opts.Redis,
		s3Bucket: opts.S3Bucket,
		loader:   opts.Loader,
		cache:    opts.Cache,
		opener:   document.Default,
	}
	if opts.S3 != nil {
		c.s3once.Do(func() { c.s3 = opts.S3 })
	}
	return c
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	s := Summary{
		Book:       c.checkBook(),
		Document:   c.checkDocument(),
		AssetCache: c.checkCache(),
		Redis:      c.checkRedis(ctx),
		S3:         c.checkS3(ctx),
	}
	s.OK = s.Book.OK && s.Document.OK && s.AssetCache.OK && s.Redis.OK && s.S3.OK
	return s
}

// Handler serves the summary as JSON, 503 when any check fails.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := c.Summary(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !s.OK {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(s); err != nil {
			log.Warn().Err(err).Msg("encode status summary")
		}
	})
}

func (c *Checker) checkBook() Status {
	if c.loader == nil {
		return Status{OK: false, Message: "loader unavailable"}
	}
	switch st := c.loader.State(); st {
	case flipbook.StateReady:
		return Status{OK: true, Message: "Ready"}
	case flipbook.StateFailed:
		return Status{OK: false, Message: "Load failed"}
	default:
		return Status{OK: true, Message: "Loading (" + st.String() + ")"}
	}
}

func (c *Checker) checkDocument() Status {
	if _, err := c.opener(); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "MuPDF available"}
}

func (c *Checker) checkCache() Status {
	if c.cache == nil {
		return Status{OK: true, Message: "Disabled"}
	}
	if !c.cache.Installed() {
		return Status{OK: false, Message: "Not installed"}
	}
	return Status{OK: true, Message: "Installed"}
}

func (c *Checker) checkRedis(ctx context.Context) Status {
	if c.redis == nil {
		return Status{OK: true, Message: "Not used"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) s3Client(ctx context.Context) (BucketHeader, error) {
	c.s3once.Do(func() {
		cfg, err := awscfg.LoadDefaultConfig(ctx)
		if err != nil {
			c.s3err = err
			return
		}
		c.s3 = s3.NewFromConfig(cfg)
	})
	return c.s3, c.s3err
}

func (c *Checker) checkS3(ctx context.Context) Status {
	if c.s3Bucket == "" {
		return Status{OK: true, Message: "Not used"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cli, err := c.s3Client(ctx)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	if _, err := cli.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &c.s3Bucket}); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
