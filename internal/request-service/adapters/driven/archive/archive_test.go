package archive

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"blood-link/internal/config"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

func TestFSPutOverwrites(t *testing.T) {
	root := filepath.Join(t.TempDir(), "archive")
	a, err := NewFS(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	key := "requests/expired/2024/05/01/r1.json"

	if err := a.Put(ctx, key, []byte(`{"id":"r1"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := a.Put(ctx, key, []byte(`{"id":"r1","v":2}`)); err != nil {
		t.Fatalf("second put: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(root, "requests", "expired", "2024", "05", "01", "r1.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != `{"id":"r1","v":2}` {
		t.Fatalf("content = %s", got)
	}
	leftovers, _ := filepath.Glob(filepath.Join(root, "requests", "expired", "2024", "05", "01", ".tmp-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestFSRejectsEscapingKeys(t *testing.T) {
	a, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"", "  ", "../etc/passwd", "/abs/path", "a/../../b"} {
		if err := a.Put(context.Background(), key, []byte("x")); err == nil {
			t.Fatalf("key %q should be rejected", key)
		}
	}
}

func TestFSHonoursCancelledContext(t *testing.T) {
	a, _ := NewFS(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Put(ctx, "k.json", []byte("x")); err == nil {
		t.Fatal("expected context error")
	}
}

// bucketRoundTripper is a tiny in-memory S3 that only understands path style PUT.
type bucketRoundTripper struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *bucketRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPut {
		return &http.Response{StatusCode: http.StatusNotImplemented, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}
	body, _ := io.ReadAll(req.Body)
	b.mu.Lock()
	b.objects[strings.TrimPrefix(req.URL.Path, "/")] = body
	b.mu.Unlock()
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{"Etag": {`"etag"`}}}, nil
}

func TestS3Put(t *testing.T) {
	rt := &bucketRoundTripper{objects: make(map[string][]byte)}
	cfg := &config.Archiveconfig{
		Bucket:    "bloodlink-archive",
		Region:    "us-east-1",
		Endpoint:  "https://s3.mock.local",
		PathStyle: true,
	}
	a, err := NewS3(context.Background(), cfg,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
		awsconfig.WithHTTPClient(&http.Client{Transport: rt}),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := a.Put(context.Background(), "requests/expired/2024/05/01/r1.json", []byte(`{"id":"r1"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	got, ok := rt.objects["bloodlink-archive/requests/expired/2024/05/01/r1.json"]
	if !ok {
		t.Fatalf("object not stored, have %v", rt.objects)
	}
	if !bytes.Contains(got, []byte(`{"id":"r1"}`)) {
		t.Fatalf("body = %q", got)
	}

	if err := a.Put(context.Background(), "../x", nil); err == nil {
		t.Fatal("escaping key should be rejected")
	}
}

func TestNewS3RequiresBucket(t *testing.T) {
	if _, err := NewS3(context.Background(), &config.Archiveconfig{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
