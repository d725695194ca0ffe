// Package publish uploads built assets to S3-compatible object storage.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/conneroisu/stencil/internal/logging"
	"github.com/conneroisu/stencil/internal/output"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config locates the bucket assets are published to.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	// Prefix is prepended to every object key.
	Prefix string
	UseSSL bool
}

// Client is the subset of *minio.Client the publisher uses.
type Client interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Summary describes one Publish call.
type Summary struct {
	Uploaded int
	Bytes    int64
	Keys     []string
}

// S3Publisher uploads assets to one bucket.
type S3Publisher struct {
	client Client
	bucket string
	region string
	prefix string
	logger logging.Logger

	initOnce sync.Once
	initErr  error
}

// NewS3Publisher validates cfg and connects a minio client.
func NewS3Publisher(cfg Config, logger logging.Logger) (*S3Publisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: regionOrDefault(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return NewWithClient(client, cfg, logger)
}

// NewWithClient builds a publisher around an existing client.
func NewWithClient(client Client, cfg Config, logger logging.Logger) (*S3Publisher, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &S3Publisher{
		client: client,
		bucket: bucket,
		region: regionOrDefault(cfg.Region),
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger.WithComponent("publish"),
	}, nil
}

func regionOrDefault(region string) string {
	if r := strings.TrimSpace(region); r != "" {
		return r
	}
	return "us-east-1"
}

func (p *S3Publisher) ensureBucket(ctx context.Context) error {
	p.initOnce.Do(func() {
		exists, err := p.client.BucketExists(ctx, p.bucket)
		if err != nil {
			p.initErr = err
			return
		}
		if exists {
			return
		}
		p.initErr = p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region})
	})
	return p.initErr
}

// Publish uploads every asset, in name order, and stops at the first
// failure.
func (p *S3Publisher) Publish(ctx context.Context, assets map[string]output.Asset) (Summary, error) {
	var summary Summary
	if err := p.ensureBucket(ctx); err != nil {
		return summary, fmt.Errorf("ensure bucket %s: %w", p.bucket, err)
	}

	names := make([]string, 0, len(assets))
	for name := range assets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		content := assets[name].Source()
		key := ObjectKey(p.prefix, name)
		_, err := p.client.PutObject(ctx, p.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
			ContentType: ContentType(name),
		})
		if err != nil {
			return summary, fmt.Errorf("upload %s: %w", key, err)
		}
		summary.Uploaded++
		summary.Bytes += int64(len(content))
		summary.Keys = append(summary.Keys, key)
		p.logger.Debug(ctx, "Uploaded asset", "bucket", p.bucket, "key", key, "size", len(content))
	}

	p.logger.Info(ctx, "Published assets", "bucket", p.bucket, "count", summary.Uploaded, "bytes", summary.Bytes)
	return summary, nil
}

// ObjectKey joins prefix and an asset name into an object key.
func ObjectKey(prefix, name string) string {
	name = strings.TrimLeft(filepath.ToSlash(name), "/")
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return path.Clean(name)
	}
	return path.Join(prefix, name)
}

// ContentType guesses an asset's MIME type from its extension.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
