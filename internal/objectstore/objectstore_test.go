package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/me/shennong/pkg/model"
)

// fakeS3 is a minimal path-style S3 endpoint.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	deny    bool
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deny {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
		return
	}

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3(t *testing.T) (*fakeS3, *S3Store) {
	t.Helper()
	fake := &fakeS3{objects: make(map[string][]byte)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	creds := model.TempCredentials{AccessKeyID: "AK", SecretAccessKey: "SK", SessionToken: "ST"}
	store, err := NewS3Store(context.Background(), S3Config{
		Bucket:     "test-bucket",
		Region:     "us-east-1",
		Endpoint:   srv.URL,
		HTTPClient: srv.Client(),
	}, creds, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewS3Store: %v", err)
	}
	return fake, store
}

func TestS3Store_PutAndDelete(t *testing.T) {
	fake, store := newTestS3(t)
	content := []byte("RIFF....WAVEfmt audio bytes")

	var last, total int64
	storedAtFull := false
	err := store.Put(context.Background(), "prefix/a.wav", bytes.NewReader(content), int64(len(content)), func(l, tot int64) {
		last, total = l, tot
		if l == tot {
			fake.mu.Lock()
			_, storedAtFull = fake.objects["/test-bucket/prefix/a.wav"]
			fake.mu.Unlock()
		}
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if last != int64(len(content)) || total != int64(len(content)) {
		t.Errorf("final progress = %d/%d, want %d/%d", last, total, len(content), len(content))
	}
	if !storedAtFull {
		t.Error("full size reported before the object was stored")
	}

	fake.mu.Lock()
	stored, ok := fake.objects["/test-bucket/prefix/a.wav"]
	fake.mu.Unlock()
	if !ok {
		t.Fatalf("object not stored at path-style key; have %v", fake.objects)
	}
	if !bytes.Contains(stored, content) {
		t.Errorf("stored body does not contain upload content")
	}

	if err := store.Delete(context.Background(), "prefix/a.wav"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	fake.mu.Lock()
	_, ok = fake.objects["/test-bucket/prefix/a.wav"]
	fake.mu.Unlock()
	if ok {
		t.Error("object still present after Delete")
	}
}

func TestS3Store_APIErrorCode(t *testing.T) {
	fake, store := newTestS3(t)
	fake.deny = true

	err := store.Delete(context.Background(), "prefix/a.wav")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "AccessDenied") {
		t.Errorf("error %q should name the S3 error code", err)
	}
}

func TestS3Store_IgnoresAmbientAWSConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_CA_BUNDLE", dir+"/missing-ca.pem")
	t.Setenv("AWS_PROFILE", "no-such-profile")
	t.Setenv("AWS_CONFIG_FILE", dir+"/config")
	t.Setenv("AWS_ENDPOINT_URL_S3", "http://127.0.0.1:1")

	fake, store := newTestS3(t)
	content := []byte("audio")
	if err := store.Put(context.Background(), "p/b.wav", bytes.NewReader(content), int64(len(content)), nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	fake.mu.Lock()
	_, ok := fake.objects["/test-bucket/p/b.wav"]
	fake.mu.Unlock()
	if !ok {
		t.Error("object not stored at the configured endpoint")
	}
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{Region: "us-east-1"}, model.TempCredentials{}, slog.Default())
	if err == nil {
		t.Error("expected error without bucket")
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	boom := errors.New("boom")
	m.Fail = func(key string) error {
		if key == "bad" {
			return boom
		}
		return nil
	}

	var calls int
	if err := m.Put(context.Background(), "good", strings.NewReader("abc"), 3, func(l, t int64) { calls++ }); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := m.Put(context.Background(), "bad", strings.NewReader("x"), 1, nil); !errors.Is(err, boom) {
		t.Errorf("Put(bad) = %v, want boom", err)
	}
	if calls == 0 {
		t.Error("progress never reported")
	}
	if got := m.Keys(); len(got) != 1 || got[0] != "good" {
		t.Errorf("Keys = %v", got)
	}
	if m.Puts() != 2 {
		t.Errorf("Puts = %d, want 2", m.Puts())
	}
	m.Delete(context.Background(), "good")
	if _, ok := m.Object("good"); ok {
		t.Error("object survived Delete")
	}
}
