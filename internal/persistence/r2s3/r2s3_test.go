package r2s3

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"
)

func TestSigningKeyMatchesAWSExample(t *testing.T) {
	// Example from the AWS SigV4 docs.
	got := hex.EncodeToString(signingKey("wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY", "20120215", "us-east-1", "iam"))
	if got != "f4780e2d9f65fa895f9c67b32ce1baf0b0d8a43505a000a1a9e090d414db404d" {
		t.Fatalf("signing key=%s", got)
	}
}

func TestPutFileSignsPathStyleRequest(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotHash string
		gotDate string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		gotHash = r.Header.Get("x-amz-content-sha256")
		gotDate = r.Header.Get("x-amz-date")
		gotBody, _ = io.ReadAll(r.Body)
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(Credentials{Endpoint: srv.URL, Bucket: "realm", AccessKeyID: "AKID", SecretAccessKey: "secret"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	c.now = func() time.Time { return time.Date(2026, 1, 2, 0, 6, 0, 0, time.UTC) }

	local := filepath.Join(t.TempDir(), "summary.json")
	body := []byte(`{"archive_id":"world_alpha:season:1"}`)
	if err := os.WriteFile(local, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := c.PutFile(context.Background(), "worlds/world alpha/archives/season_001/summary.json", local); err != nil {
		t.Fatalf("put: %v", err)
	}

	if gotPath != "/realm/worlds/world%20alpha/archives/season_001/summary.json" {
		t.Fatalf("path=%s", gotPath)
	}
	if string(gotBody) != string(body) {
		t.Fatalf("body=%q", gotBody)
	}
	sum := sha256.Sum256(body)
	if gotHash != hex.EncodeToString(sum[:]) {
		t.Fatalf("payload hash=%s", gotHash)
	}
	if gotDate != "20260102T000600Z" {
		t.Fatalf("x-amz-date=%s", gotDate)
	}
	re := regexp.MustCompile(`^AWS4-HMAC-SHA256 Credential=AKID/20260102/auto/s3/aws4_request, SignedHeaders=host;x-amz-content-sha256;x-amz-date, Signature=[0-9a-f]{64}$`)
	if !re.MatchString(gotAuth) {
		t.Fatalf("authorization=%s", gotAuth)
	}
}

func TestPutFileReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, "AccessDenied", http.StatusForbidden)
	}))
	defer srv.Close()
	c, err := New(Credentials{Endpoint: srv.URL, Bucket: "realm", AccessKeyID: "AKID", SecretAccessKey: "secret"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	local := filepath.Join(t.TempDir(), "x")
	_ = os.WriteFile(local, []byte("x"), 0o644)
	if err := c.PutFile(context.Background(), "x", local); err == nil {
		t.Fatalf("expected error on 403")
	}
	if err := c.PutFile(context.Background(), "../escape", local); err == nil {
		t.Fatalf("expected error for escaping key")
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Credentials{Endpoint: "acct.r2.cloudflarestorage.com", Bucket: "realm"}); err == nil {
		t.Fatalf("expected missing key error")
	}
	c, err := New(Credentials{Endpoint: "acct.r2.cloudflarestorage.com", Bucket: "realm", AccessKeyID: "a", SecretAccessKey: "b"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.endpoint != "https://acct.r2.cloudflarestorage.com" || c.creds.Region != "auto" {
		t.Fatalf("endpoint=%s region=%s", c.endpoint, c.creds.Region)
	}
}

type fakePutter struct {
	mu    sync.Mutex
	keys  []string
	fails int
}

func (f *fakePutter) PutFile(_ context.Context, key, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("transient")
	}
	f.keys = append(f.keys, key)
	return nil
}

func TestMirrorUploadsRelativeKeysWithRetry(t *testing.T) {
	dataDir := t.TempDir()
	local := filepath.Join(dataDir, "worlds", "world_alpha", "archives", "season_001", "summary.json")
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	_ = os.WriteFile(local, []byte("{}"), 0o644)

	fp := &fakePutter{fails: 1}
	m := NewMirror(fp, dataDir, MirrorOptions{Prefix: "/prod/", Backoff: time.Millisecond}, nil)
	if !m.Enqueue(local) {
		t.Fatalf("enqueue refused")
	}
	if m.Enqueue(filepath.Join(t.TempDir(), "outside.json")) != true {
		t.Fatalf("enqueue refused outside path")
	}
	m.Close()

	if len(fp.keys) != 1 || fp.keys[0] != "prod/worlds/world_alpha/archives/season_001/summary.json" {
		t.Fatalf("keys=%v", fp.keys)
	}
	st := m.Stats()
	if st.Enqueued != 2 || st.Uploaded != 1 || st.Failed != 1 || st.LastSuccess.IsZero() {
		t.Fatalf("stats=%+v", st)
	}
	if m.Enqueue(local) {
		t.Fatalf("closed mirror accepted a file")
	}
	m.Close()
}

func TestNilMirror(t *testing.T) {
	var m *Mirror
	if m.Enqueue("x") {
		t.Fatalf("nil mirror accepted a file")
	}
	m.Close()
	if (m.Stats() != Stats{}) {
		t.Fatalf("nil stats")
	}
}
