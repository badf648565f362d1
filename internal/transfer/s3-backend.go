package transfer

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/tanq16/xferbench/internal/utils"
)

// S3Backend stores payloads as objects under s3://bucket/prefix.
type S3Backend struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

func NewS3Backend(ctx context.Context, server string, cfg utils.S3Config, httpCfg utils.HTTPClientConfig) (*S3Backend, error) {
	bucket, prefix, err := parseS3URL(server)
	if err != nil {
		return nil, err
	}
	// Retries belong to the caller, not the SDK.
	opts := []func(*config.LoadOptions) error{
		config.WithRetryMaxAttempts(1),
		config.WithHTTPClient(utils.NewXferHTTPClient(httpCfg)),
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %v", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return &S3Backend{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
	}, nil
}

func parseS3URL(server string) (bucket, prefix string, err error) {
	parsed, err := url.Parse(server)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 URL: %v", err)
	}
	if parsed.Scheme != "s3" || parsed.Host == "" {
		return "", "", fmt.Errorf("invalid S3 URL %q (expected s3://bucket[/prefix])", server)
	}
	return parsed.Host, strings.Trim(parsed.Path, "/"), nil
}

func (b *S3Backend) key(name string) string {
	if b.prefix == "" {
		return name
	}
	return path.Join(b.prefix, name)
}

func (b *S3Backend) Delete(ctx context.Context, name string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(name)),
	})
	return err
}

func (b *S3Backend) Upload(ctx context.Context, name, filePath string) (int64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return 0, &utils.IOError{Op: "open", Path: filePath, Err: err}
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return 0, &utils.IOError{Op: "stat", Path: filePath, Err: err}
	}
	_, err = b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(name)),
		Body:   file,
	})
	if err != nil {
		return 0, fmt.Errorf("error uploading to s3://%s/%s: %v", b.bucket, b.key(name), err)
	}
	return info.Size(), nil
}

func (b *S3Backend) Probe(ctx context.Context, name string) (int64, error) {
	head, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(name)),
	})
	if err != nil {
		return 0, fmt.Errorf("error reading object info: %v", err)
	}
	if head.ContentLength == nil || *head.ContentLength < 0 {
		return 0, utils.ErrSizeUnknown
	}
	return *head.ContentLength, nil
}

func (b *S3Backend) Fetch(ctx context.Context, name string, w io.Writer) (int64, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(name)),
	})
	if err != nil {
		return 0, fmt.Errorf("error getting object: %v", err)
	}
	defer out.Body.Close()
	buffer := make([]byte, utils.DefaultBufferSize)
	n, err := io.CopyBuffer(w, out.Body, buffer)
	if err != nil {
		return n, err
	}
	if out.ContentLength != nil && n != *out.ContentLength {
		return n, fmt.Errorf("%w: object advertised %d bytes, received %d", utils.ErrLengthMismatch, *out.ContentLength, n)
	}
	return n, nil
}

func (b *S3Backend) FetchRange(ctx context.Context, name string, r ChunkRange, w io.Writer) (int64, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(name)),
		Range:  aws.String(r.Header()),
	})
	if err != nil {
		return 0, fmt.Errorf("error getting object range: %v", err)
	}
	defer out.Body.Close()
	if err := checkContentRange(aws.ToString(out.ContentRange), r); err != nil {
		return 0, err
	}
	return copyRange(w, out.Body, r)
}
