// Package source resolves a book reference (path, file://, http(s)://, s3://)
// to a validated local PDF.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// TempPrefix names every temp file created by this package.
const TempPrefix = "flipbook-src-"

// S3Downloader is the part of manager.Downloader used for s3:// sources.
type S3Downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error)
}

// Local is a fetched source on disk.
type Local struct {
	Path string
	// Temp is set when Path was created by the fetcher and must be removed.
	Temp bool
}

// Remove deletes the file if the fetcher created it.
func (l *Local) Remove() error {
	if l == nil || !l.Temp {
		return nil
	}
	if err := os.Remove(l.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Fetcher downloads remote sources to temp files and decrypts framed payloads.
type Fetcher struct {
	HTTP     *http.Client
	Password string
	TempDir  string

	s3once sync.Once
	s3     S3Downloader
	s3err  error
}

// NewFetcher returns a fetcher using client for http(s) sources.
func NewFetcher(client *http.Client, password string) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{HTTP: client, Password: password}
}

// WithS3 sets the downloader used for s3:// sources instead of the default AWS chain.
func (f *Fetcher) WithS3(d S3Downloader) *Fetcher {
	f.s3once.Do(func() { f.s3 = d })
	return f
}

// Fetch resolves ref to a local file. A trailing #fragment is ignored.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (*Local, error) {
	if i := strings.Index(ref, "#"); i >= 0 {
		ref = ref[:i]
	}
	if ref == "" {
		return nil, errors.New("empty source reference")
	}

	var (
		local *Local
		err   error
	)
	switch {
	case strings.HasPrefix(ref, "s3://"):
		local, err = f.fetchS3(ctx, ref)
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		local, err = f.fetchHTTP(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		local, err = localFile(strings.TrimPrefix(ref, "file://"))
	default:
		local, err = localFile(ref)
	}
	if err != nil {
		return nil, err
	}

	out, err := f.decrypt(local)
	if err != nil {
		_ = local.Remove()
		return nil, err
	}
	return out, nil
}

func localFile(path string) (*Local, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	return &Local{Path: path}, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, url string) (*Local, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download source: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download source: http %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(f.TempDir, TempPrefix+"*.pdf")
	if err != nil {
		return nil, err
	}
	local := &Local{Path: tmp.Name(), Temp: true}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		_ = local.Remove()
		return nil, fmt.Errorf("download source: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = local.Remove()
		return nil, err
	}
	log.Info().Str("url", url).Str("file", filepath.Base(local.Path)).Msg("downloaded source to temp")
	return local, nil
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(ref string) (bucket, key string, err error) {
	path, ok := strings.CutPrefix(ref, "s3://")
	if !ok {
		return "", "", fmt.Errorf("invalid s3 url: %s", ref)
	}
	slash := strings.Index(path, "/")
	if slash <= 0 || slash == len(path)-1 {
		return "", "", fmt.Errorf("invalid s3 url: %s", ref)
	}
	return path[:slash], path[slash+1:], nil
}

func (f *Fetcher) downloader(ctx context.Context) (S3Downloader, error) {
	f.s3once.Do(func() {
		cfg, err := awscfg.LoadDefaultConfig(ctx)
		if err != nil {
			f.s3err = fmt.Errorf("load AWS config: %w", err)
			return
		}
		f.s3 = manager.NewDownloader(s3.NewFromConfig(cfg))
	})
	return f.s3, f.s3err
}

func (f *Fetcher) fetchS3(ctx context.Context, ref string) (*Local, error) {
	bucket, key, err := ParseS3URL(ref)
	if err != nil {
		return nil, err
	}
	dl, err := f.downloader(ctx)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(f.TempDir, TempPrefix+"*.pdf")
	if err != nil {
		return nil, err
	}
	local := &Local{Path: tmp.Name(), Temp: true}
	n, err := dl.Download(ctx, tmp, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = local.Remove()
		return nil, fmt.Errorf("download s3 source: %w", err)
	}
	log.Info().Str("bucket", bucket).Str("key", key).Int64("bytes", n).Str("file", filepath.Base(local.Path)).Msg("downloaded s3 source to temp")
	return local, nil
}
