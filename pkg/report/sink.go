package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pierrec/lz4/v4"
)

const (
	s3Scheme         = "s3://"
	lz4Suffix        = ".lz4"
	stdoutTarget     = "-"
	defaultS3Region  = "us-east-1"
	outputFilePerm   = 0o644
	jsonContentType  = "application/json"
	lz4ContentType   = "application/x-lz4"
	s3KeySeparator   = "/"
	s3TargetSegments = 2
)

var (
	// ErrWriteOutput wraps every failure to persist a rendered report.
	ErrWriteOutput = errors.New("write output")
	// ErrInvalidTarget is returned for a malformed output target.
	ErrInvalidTarget = errors.New("invalid output target")
)

// S3Config holds the object storage settings used by s3:// targets.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Sink persists a rendered report.
type Sink interface {
	Write(ctx context.Context, data []byte) error
	String() string
}

// OpenSink picks the sink for target: empty or "-" writes to stdout, an
// s3://bucket/key target uploads to object storage, a path ending in .lz4 is
// written LZ4 compressed, anything else is a plain file.
func OpenSink(target string, stdout io.Writer, s3cfg S3Config) (Sink, error) {
	switch {
	case target == "" || target == stdoutTarget:
		return &writerSink{w: stdout}, nil
	case strings.HasPrefix(target, s3Scheme):
		return newS3Sink(target, s3cfg)
	default:
		return &fileSink{path: target, compress: strings.HasSuffix(target, lz4Suffix)}, nil
	}
}

type writerSink struct {
	w io.Writer
}

func (s *writerSink) Write(_ context.Context, data []byte) error {
	_, err := s.w.Write(data)
	if err != nil {
		return fmt.Errorf("%w: stdout: %w", ErrWriteOutput, err)
	}

	return nil
}

func (s *writerSink) String() string { return "stdout" }

type fileSink struct {
	path     string
	compress bool
}

func (s *fileSink) Write(_ context.Context, data []byte) error {
	if !s.compress {
		err := os.WriteFile(s.path, data, outputFilePerm)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrWriteOutput, err)
		}

		return nil
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, outputFilePerm)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}

	zw := lz4.NewWriter(f)

	_, writeErr := zw.Write(data)
	closeErr := zw.Close()
	fileErr := f.Close()

	err = errors.Join(writeErr, closeErr, fileErr)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteOutput, s.path, err)
	}

	return nil
}

func (s *fileSink) String() string { return s.path }

type s3Sink struct {
	client *minio.Client
	bucket string
	key    string
}

func newS3Sink(target string, cfg S3Config) (*s3Sink, error) {
	parts := strings.SplitN(strings.TrimPrefix(target, s3Scheme), s3KeySeparator, s3TargetSegments)
	if len(parts) != s3TargetSegments || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: %s (want s3://bucket/key)", ErrInvalidTarget, target)
	}

	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("%w: s3 endpoint is required", ErrInvalidTarget)
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultS3Region
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &s3Sink{client: client, bucket: parts[0], key: parts[1]}, nil
}

func (s *s3Sink) Write(ctx context.Context, data []byte) error {
	contentType := jsonContentType

	if strings.HasSuffix(s.key, lz4Suffix) {
		compressed, err := compressLZ4(data)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrWriteOutput, err)
		}

		data = compressed
		contentType = lz4ContentType
	}

	_, err := s.client.PutObject(ctx, s.bucket, s.key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteOutput, s.String(), err)
	}

	return nil
}

func (s *s3Sink) String() string { return s3Scheme + s.bucket + s3KeySeparator + s.key }

func compressLZ4(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	zw := lz4.NewWriter(&buf)

	_, writeErr := zw.Write(data)
	closeErr := zw.Close()

	err := errors.Join(writeErr, closeErr)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}

	return buf.Bytes(), nil
}

// ReadFile reads a saved report, decompressing .lz4 files.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, lz4Suffix) {
		r = lz4.NewReader(f)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}

	return data, nil
}
