// Package storage hands finished recordings off to object storage. The
// handoff is retry-tolerant: the encoder may still be flushing the file
// when upload begins, so busy reads back off indefinitely and missing
// files are retried against a bounded budget.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"meetingbot/internal/config"
	"meetingbot/internal/logging"
)

const (
	defaultReadRetryDelay  = time.Second
	defaultMissingReadsMax = 10
)

// Seams for tests.
var (
	readFile   = os.ReadFile
	removeFile = os.Remove
)

// ErrFileMissing reports that the recording never appeared within the
// retry budget.
var ErrFileMissing = errors.New("recording file not found after retries")

type objectPutter interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader moves one recording per session into the bucket.
type Uploader struct {
	client objectPutter
	bucket string
	logger *slog.Logger

	retryDelay      time.Duration
	missingReadsMax int
}

// New constructs an uploader. Bucket and region are required; absent
// credentials fall back to the ambient provider chain, matching how the
// bot runs inside its task role in production.
func New(ctx context.Context, cfg config.Storage, logger *slog.Logger) (*Uploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("storage: bucket is required (set AWS_BUCKET_NAME)")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, errors.New("storage: region is required (set AWS_REGION)")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newWithClient(client, cfg.Bucket, logger), nil
}

func newWithClient(client objectPutter, bucket string, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Uploader{
		client:          client,
		bucket:          bucket,
		logger:          logger.With(logging.String(logging.FieldComponent, "storage")),
		retryDelay:      defaultReadRetryDelay,
		missingReadsMax: defaultMissingReadsMax,
	}
}

// UploadRecording reads the finished recording, uploads it under a fresh
// content-addressed key, and deletes the local file. Transport failures
// are logged and swallowed: the session's terminal state is already
// decided by the time the upload runs, so an empty key is returned
// instead of an error.
func (u *Uploader) UploadRecording(ctx context.Context, path, platform, contentType string) (string, error) {
	content, err := u.readWithRetry(ctx, path)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("recordings/%s-%s-recording.%s", uuid.NewString(), platform, extensionFor(contentType))
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		u.logger.Error("upload failed", logging.String("key", key), logging.Error(err))
		return "", nil
	}
	u.logger.Info("recording uploaded", logging.String("key", key), logging.Int("bytes", len(content)))

	if err := removeFile(path); err != nil {
		u.logger.Warn("remove local recording failed", logging.Error(err))
	}
	return key, nil
}

// readWithRetry implements the busy/missing retry contract. Busy reads do
// not consume the attempt budget because the encoder may legitimately
// still hold the file.
func (u *Uploader) readWithRetry(ctx context.Context, path string) ([]byte, error) {
	missingLeft := u.missingReadsMax
	for {
		content, err := readFile(path)
		if err == nil {
			return content, nil
		}

		switch {
		case isBusy(err):
			u.logger.Info("recording file busy, retrying", logging.String("path", path))
		case errors.Is(err, fs.ErrNotExist):
			if missingLeft <= 0 {
				return nil, fmt.Errorf("%w: %s", ErrFileMissing, path)
			}
			missingLeft--
			u.logger.Info("recording file not found, retrying",
				logging.String("path", path),
				logging.Int("attempts_left", missingLeft),
			)
		default:
			return nil, fmt.Errorf("read recording %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(u.retryDelay):
		}
	}
}

func isBusy(err error) bool {
	return errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.ETXTBSY)
}

// extensionFor derives the object key suffix from the declared content
// type, e.g. video/mp4 -> mp4.
func extensionFor(contentType string) string {
	if idx := strings.Index(contentType, "/"); idx >= 0 && idx+1 < len(contentType) {
		return contentType[idx+1:]
	}
	return "bin"
}
