package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestNewS3Storage(t *testing.T) {
	tempDir := filepath.Join(os.TempDir(), "srtsegment_s3_test_"+randomSuffix())
	defer os.RemoveAll(tempDir)

	cfg := S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Prefix:          "/corpus/run-1/",
		Endpoint:        "http://localhost:4566", // LocalStack-like endpoint
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	storage, err := NewS3Storage(tempDir, cfg)
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	if storage.bucket != cfg.Bucket {
		t.Errorf("bucket = %v, want %v", storage.bucket, cfg.Bucket)
	}
	if storage.region != cfg.Region {
		t.Errorf("region = %v, want %v", storage.region, cfg.Region)
	}
	if storage.prefix != "corpus/run-1" {
		t.Errorf("prefix = %v, want corpus/run-1", storage.prefix)
	}
}

func TestS3Storage_InheritsLocalStorage(t *testing.T) {
	tempDir := filepath.Join(os.TempDir(), "srtsegment_s3_test_"+randomSuffix())
	defer os.RemoveAll(tempDir)

	cfg := S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	storage, err := NewS3Storage(tempDir, cfg)
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	ctx := context.Background()

	path, err := storage.ReserveTemp(ctx, "decoded_*.wav")
	if err != nil {
		t.Fatalf("ReserveTemp() error = %v", err)
	}
	if filepath.Dir(path) != tempDir {
		t.Errorf("scratch file %s not under %s", path, tempDir)
	}

	if err := storage.CleanupTemp(ctx, []string{path}); err != nil {
		t.Fatalf("CleanupTemp() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("scratch file %s still exists", path)
	}
}

// newMockS3 records PUT object requests keyed by URL path.
func newMockS3(t *testing.T) (*httptest.Server, map[string]string) {
	t.Helper()
	var mu sync.Mutex
	objects := make(map[string]string)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT method, got %s", r.Method)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
		}
		mu.Lock()
		objects[r.URL.Path] = string(body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server, objects
}

func newMockS3Storage(t *testing.T, endpoint, prefix string) *S3Storage {
	t.Helper()
	tempDir := filepath.Join(os.TempDir(), "srtsegment_s3_mock_test_"+randomSuffix())
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })

	storage, err := NewS3Storage(tempDir, S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Prefix:          prefix,
		Endpoint:        endpoint,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	})
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}
	return storage
}

func TestS3Storage_Publish_MockServer(t *testing.T) {
	server, objects := newMockS3(t)
	storage := newMockS3Storage(t, server.URL, "corpus")

	url, err := storage.Publish(context.Background(), "out.csv", bytes.NewReader([]byte("wavs/0-audio.wav|hello\n")))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	expectedURL := server.URL + "/test-bucket/corpus/out.csv"
	if url != expectedURL {
		t.Errorf("url = %v, want %v", url, expectedURL)
	}

	body, ok := objects["/test-bucket/corpus/out.csv"]
	if !ok {
		t.Fatalf("object not uploaded, got %v", objects)
	}
	if body != "wavs/0-audio.wav|hello\n" {
		t.Errorf("unexpected body: %q", body)
	}
}

func TestS3Storage_ObjectURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		want     string
	}{
		{"aws", "", "https://test-bucket.s3.eu-west-1.amazonaws.com/corpus/out.csv"},
		{"custom endpoint", "http://localhost:4566", "http://localhost:4566/test-bucket/corpus/out.csv"},
		{"custom endpoint with trailing slash", "https://minio.internal:9000/", "https://minio.internal:9000/test-bucket/corpus/out.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := filepath.Join(os.TempDir(), "srtsegment_s3_url_test_"+randomSuffix())
			defer os.RemoveAll(tempDir)

			storage, err := NewS3Storage(tempDir, S3Config{
				Bucket:          "test-bucket",
				Region:          "eu-west-1",
				Endpoint:        tt.endpoint,
				AccessKeyID:     "test-access-key",
				SecretAccessKey: "test-secret-key",
			})
			if err != nil {
				t.Fatalf("NewS3Storage() error = %v", err)
			}

			if got := storage.objectURL("corpus/out.csv"); got != tt.want {
				t.Errorf("objectURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPublishDir(t *testing.T) {
	server, objects := newMockS3(t)
	storage := newMockS3Storage(t, server.URL, "")

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "wavs"), 0o750); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"out.csv":          "wavs/0-audio.wav|a\n",
		"wavs/0-audio.wav": "RIFF",
		".srtsegment.lock": "",
		"wavs/1-audio.wav": "RIFF",
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	urls, err := PublishDir(context.Background(), storage, dir, func(rel string) bool {
		return strings.HasSuffix(rel, ".lock")
	})
	if err != nil {
		t.Fatalf("PublishDir() error = %v", err)
	}

	if len(urls) != 3 {
		t.Errorf("expected 3 uploads, got %d: %v", len(urls), urls)
	}
	for _, key := range []string{"out.csv", "wavs/0-audio.wav", "wavs/1-audio.wav"} {
		if _, ok := objects["/test-bucket/"+key]; !ok {
			t.Errorf("missing upload for %s", key)
		}
	}
	if _, ok := objects["/test-bucket/.srtsegment.lock"]; ok {
		t.Error("lock file should be skipped")
	}
}

func TestPublishDir_LocalStorageNotConfigured(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "out.csv"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := PublishDir(context.Background(), setupTestStorage(t), dir, nil)
	if !errors.Is(err, ErrS3NotConfigured) {
		t.Errorf("expected ErrS3NotConfigured, got %v", err)
	}
}
