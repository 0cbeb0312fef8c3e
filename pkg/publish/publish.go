// Package publish uploads a finished report directory to S3-compatible
// object storage.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/devicelab-dev/shift-runner/pkg/core"
	"github.com/devicelab-dev/shift-runner/pkg/logger"
)

// Config holds the storage target.
type Config struct {
	// Endpoint is the S3 endpoint URL. Empty means AWS S3.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// Prefix is prepended to every object key.
	Prefix string
	// UsePathStyle enables path-style addressing (MinIO, gofakes3).
	UsePathStyle bool
}

// Enabled reports whether a bucket is configured.
func (c Config) Enabled() bool { return c.Bucket != "" }

// Publisher uploads report files.
type Publisher struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates a publisher from cfg. Credentials fall back to the default
// AWS chain when no static keys are given.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, core.ErrMissingRequired.WithMessage("publish: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	sdkConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewFromS3Client(client, cfg.Bucket, cfg.Prefix), nil
}

// NewFromS3Client wraps an existing client.
func NewFromS3Client(client *s3.Client, bucket, prefix string) *Publisher {
	return &Publisher{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Result lists the uploaded object keys.
type Result struct {
	Keys []string
}

// Upload copies every file under reportDir to
// <prefix>/<base of reportDir>/<relative path>. It stops at the first
// failed upload.
func (p *Publisher) Upload(ctx context.Context, reportDir string) (Result, error) {
	var res Result
	root := filepath.Base(filepath.Clean(reportDir))

	err := filepath.WalkDir(reportDir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(file, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(reportDir, file)
		if err != nil {
			return err
		}
		key := p.Key(root, filepath.ToSlash(rel))
		if err := p.put(ctx, file, key); err != nil {
			return err
		}
		res.Keys = append(res.Keys, key)
		return nil
	})
	if err != nil {
		return res, err
	}
	logger.Info("published %d files to s3://%s/%s", len(res.Keys), p.bucket, p.Key(root))
	return res, nil
}

// Key joins parts under the configured prefix.
func (p *Publisher) Key(parts ...string) string {
	return path.Join(append([]string{p.prefix}, parts...)...)
}

func (p *Publisher) put(ctx context.Context, file, key string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(file)),
	})
	if err != nil {
		return fmt.Errorf("publish: failed to put object %q: %w", key, err)
	}
	return nil
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		return "application/json"
	case ".xml":
		return "application/xml"
	case ".properties", ".log":
		return "text/plain; charset=utf-8"
	}
	if t := mime.TypeByExtension(filepath.Ext(file)); t != "" {
		return t
	}
	return "application/octet-stream"
}
