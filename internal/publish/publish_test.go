package publish

import (
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

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := *input.Bucket + "/" + *input.Key
	m.objects[key] = data
	m.types[key] = *input.ContentType
	return &s3.PutObjectOutput{}, nil
}

type failingSink struct{}

func (failingSink) Name() string                          { return "failing" }
func (failingSink) Publish(context.Context, []byte) error { return errors.New("boom") }

func TestFileSinkWritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "duty.ics")
	sink := FileSink{Path: path}

	for _, body := range []string{"first", "second"} {
		if err := sink.Publish(context.Background(), []byte(body)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(got) != body {
			t.Errorf("content = %q, want %q", got, body)
		}
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("leftover files: %v", entries)
	}
}

func TestWriteFileAtomicEmptyPath(t *testing.T) {
	if err := WriteFileAtomic("", []byte("x"), 0o644); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestS3SinkPutsObject(t *testing.T) {
	mock := newMockS3()
	sink := newS3Sink(mock, "calendars", "crew/duty.ics")

	if err := sink.Publish(context.Background(), []byte("BEGIN:VCALENDAR")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := string(mock.objects["calendars/crew/duty.ics"]); got != "BEGIN:VCALENDAR" {
		t.Errorf("object = %q", got)
	}
	if ct := mock.types["calendars/crew/duty.ics"]; !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("content type = %q", ct)
	}
}

func TestNewS3SinkRequiresBucketAndKey(t *testing.T) {
	if _, err := NewS3Sink(S3Config{Bucket: "b"}); err == nil {
		t.Fatal("expected error without key")
	}
}

func TestWebDAVSinkUploads(t *testing.T) {
	var (
		mu      sync.Mutex
		gotPath string
		gotBody string
		gotUser string
		gotPass string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath = r.URL.Path
		gotBody = string(body)
		gotUser, gotPass, _ = r.BasicAuth()
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sink, err := NewWebDAVSink(WebDAVConfig{
		Endpoint: srv.URL + "/dav/",
		Path:     "duty.ics",
		Username: "crew",
		Password: "secret",
	}, srv.Client())
	if err != nil {
		t.Fatalf("NewWebDAVSink: %v", err)
	}
	if err := sink.Publish(context.Background(), []byte("calendar")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !strings.HasSuffix(gotPath, "/duty.ics") {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody != "calendar" {
		t.Errorf("body = %q", gotBody)
	}
	if gotUser != "crew" || gotPass != "secret" {
		t.Errorf("auth = %q/%q", gotUser, gotPass)
	}
}

func TestNewSFTPSinkValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  SFTPConfig
	}{
		{"missing host", SFTPConfig{User: "u", Password: "p", RemotePath: "/x.ics"}},
		{"missing auth", SFTPConfig{Host: "h", User: "u", RemotePath: "/x.ics"}},
		{"missing key file", SFTPConfig{Host: "h", User: "u", KeyFile: "/nonexistent/key", RemotePath: "/x.ics"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSFTPSink(tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestAllContinuesAfterFailure(t *testing.T) {
	mock := newMockS3()
	path := filepath.Join(t.TempDir(), "duty.ics")
	sinks := []Sink{failingSink{}, FileSink{Path: path}, newS3Sink(mock, "b", "k")}

	errs := All(context.Background(), sinks, []byte("data"))
	if len(errs) != 1 || !strings.HasPrefix(errs[0].Error(), "failing:") {
		t.Fatalf("errs = %v", errs)
	}
	if got, _ := os.ReadFile(path); string(got) != "data" {
		t.Errorf("file = %q", got)
	}
	if string(mock.objects["b/k"]) != "data" {
		t.Error("s3 object missing")
	}
}

func TestConfigSinks(t *testing.T) {
	sinks, err := Config{S3: &S3Config{Bucket: "b", Key: "k"}}.Sinks("/tmp/duty.ics")
	if err != nil {
		t.Fatalf("Sinks: %v", err)
	}
	if len(sinks) != 2 || sinks[0].Name() != "file:/tmp/duty.ics" || sinks[1].Name() != "s3:b/k" {
		t.Errorf("sinks = %v", sinks)
	}
}
