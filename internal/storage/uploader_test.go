package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"meetingbot/internal/config"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

// stubReads makes readFile return one scripted result per call, the last
// result repeating. removeFile records its argument.
func stubReads(t *testing.T, results []error, content []byte, removed *[]string) *int {
	t.Helper()
	originalRead := readFile
	originalRemove := removeFile
	reads := 0
	readFile = func(string) ([]byte, error) {
		idx := reads
		if idx >= len(results) {
			idx = len(results) - 1
		}
		reads++
		if results[idx] != nil {
			return nil, results[idx]
		}
		return content, nil
	}
	removeFile = func(path string) error {
		if removed != nil {
			*removed = append(*removed, path)
		}
		return nil
	}
	t.Cleanup(func() {
		readFile = originalRead
		removeFile = originalRemove
	})
	return &reads
}

func newTestUploader(putter objectPutter) *Uploader {
	uploader := newWithClient(putter, "bucket", nil)
	uploader.retryDelay = time.Millisecond
	return uploader
}

func TestUploadRecordingHappyPath(t *testing.T) {
	var removed []string
	stubReads(t, []error{nil}, []byte("video-bytes"), &removed)
	putter := &fakePutter{}
	uploader := newTestUploader(putter)

	key, err := uploader.UploadRecording(context.Background(), "/tmp/recording.mp4", "google", "video/mp4")
	if err != nil {
		t.Fatalf("UploadRecording returned error: %v", err)
	}
	if !strings.HasPrefix(key, "recordings/") {
		t.Fatalf("key %q lacks recordings/ prefix", key)
	}
	if !strings.HasSuffix(key, "-google-recording.mp4") {
		t.Fatalf("key %q lacks platform suffix", key)
	}

	if len(putter.inputs) != 1 {
		t.Fatalf("PutObject called %d times, want 1", len(putter.inputs))
	}
	input := putter.inputs[0]
	if *input.Bucket != "bucket" || *input.Key != key {
		t.Fatalf("put input bucket=%s key=%s", *input.Bucket, *input.Key)
	}
	if *input.ContentType != "video/mp4" {
		t.Fatalf("content type = %s", *input.ContentType)
	}
	body, _ := io.ReadAll(input.Body)
	if string(body) != "video-bytes" {
		t.Fatalf("uploaded body = %q", body)
	}

	if len(removed) != 1 || removed[0] != "/tmp/recording.mp4" {
		t.Fatalf("local file not removed: %v", removed)
	}
}

func TestUploadRecordingRetriesBusyReads(t *testing.T) {
	results := []error{syscall.EBUSY, syscall.ETXTBSY, syscall.EBUSY, nil}
	reads := stubReads(t, results, []byte("data"), nil)
	uploader := newTestUploader(&fakePutter{})

	key, err := uploader.UploadRecording(context.Background(), "/tmp/recording.webm", "teams", "video/webm")
	if err != nil {
		t.Fatalf("UploadRecording returned error: %v", err)
	}
	if key == "" {
		t.Fatal("expected a key after busy reads resolved")
	}
	if *reads != 4 {
		t.Fatalf("read attempts = %d, want 4", *reads)
	}
}

func TestUploadRecordingMissingFileBudget(t *testing.T) {
	reads := stubReads(t, []error{fs.ErrNotExist}, nil, nil)
	uploader := newTestUploader(&fakePutter{})
	uploader.missingReadsMax = 3

	_, err := uploader.UploadRecording(context.Background(), "/tmp/recording.mp4", "zoom", "video/mp4")
	if !errors.Is(err, ErrFileMissing) {
		t.Fatalf("error = %v, want ErrFileMissing", err)
	}
	// Initial attempt plus the three budgeted retries.
	if *reads != 4 {
		t.Fatalf("read attempts = %d, want 4", *reads)
	}
}

func TestUploadRecordingBusyReadsDoNotConsumeBudget(t *testing.T) {
	results := []error{
		fs.ErrNotExist,
		syscall.EBUSY,
		syscall.EBUSY,
		fs.ErrNotExist,
		nil,
	}
	stubReads(t, results, []byte("data"), nil)
	uploader := newTestUploader(&fakePutter{})
	uploader.missingReadsMax = 2

	if _, err := uploader.UploadRecording(context.Background(), "/tmp/r.mp4", "google", "video/mp4"); err != nil {
		t.Fatalf("UploadRecording returned error: %v", err)
	}
}

func TestUploadRecordingSurfacesUnexpectedReadError(t *testing.T) {
	stubReads(t, []error{fmt.Errorf("permission denied")}, nil, nil)
	uploader := newTestUploader(&fakePutter{})

	_, err := uploader.UploadRecording(context.Background(), "/tmp/recording.mp4", "google", "video/mp4")
	if err == nil || !strings.Contains(err.Error(), "permission denied") {
		t.Fatalf("error = %v, want read failure", err)
	}
}

func TestUploadRecordingSwallowsTransportFailure(t *testing.T) {
	var removed []string
	stubReads(t, []error{nil}, []byte("data"), &removed)
	uploader := newTestUploader(&fakePutter{err: errors.New("connection reset")})

	key, err := uploader.UploadRecording(context.Background(), "/tmp/recording.mp4", "google", "video/mp4")
	if err != nil {
		t.Fatalf("transport failure must not surface, got %v", err)
	}
	if key != "" {
		t.Fatalf("key = %q, want empty after failed put", key)
	}
	if len(removed) != 0 {
		t.Fatal("local file must survive a failed upload")
	}
}

func TestUploadRecordingStopsOnCancelledContext(t *testing.T) {
	stubReads(t, []error{syscall.EBUSY}, nil, nil)
	uploader := newTestUploader(&fakePutter{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := uploader.UploadRecording(ctx, "/tmp/recording.mp4", "google", "video/mp4")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestNewRequiresBucketAndRegion(t *testing.T) {
	if _, err := New(context.Background(), config.Storage{Region: "us-east-1"}, nil); err == nil {
		t.Fatal("expected error when bucket missing")
	}
	if _, err := New(context.Background(), config.Storage{Bucket: "b"}, nil); err == nil {
		t.Fatal("expected error when region missing")
	}
}

func TestExtensionFor(t *testing.T) {
	tests := map[string]string{
		"video/mp4":  "mp4",
		"video/webm": "webm",
		"":           "bin",
		"mp4":        "bin",
	}
	for contentType, want := range tests {
		if got := extensionFor(contentType); got != want {
			t.Errorf("extensionFor(%q) = %q, want %q", contentType, got, want)
		}
	}
}
