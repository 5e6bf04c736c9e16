package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/page-modules/pkg/pagemodules"
)

// fakeS3 serves the path-style object calls the store issues.
type fakeS3 struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.objects[r.URL.Path] = body
		f.contentTypes[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", f.contentTypes[r.URL.Path])
		_, _ = w.Write(body)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3Store_Configuration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("InvalidSSE", func(t *testing.T) {
		_, err := New(Config{Bucket: "snapshots", SSEAlgorithm: "rot13"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid SSE")
	})

	t.Run("DefaultRegion", func(t *testing.T) {
		store, err := New(Config{Bucket: "snapshots", AccessKeyID: "test-key", SecretAccessKey: "test-secret"})
		require.NoError(t, err)
		assert.Equal(t, "us-east-1", store.config.Region)
	})

	t.Run("Prefix", func(t *testing.T) {
		store := &Store{config: Config{Prefix: "site-a"}}
		assert.Equal(t, "site-a/pages/x/tree.json", store.objectKey("pages/x/tree.json"))
		store.config.Prefix = ""
		assert.Equal(t, "pages/x/tree.json", store.objectKey("pages/x/tree.json"))
	})
}

func TestS3Store_RoundTrip(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, contentTypes: map[string]string{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	store, err := New(Config{
		Bucket:          "snapshots",
		Prefix:          "published",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Endpoint:        server.URL,
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	ctx := context.Background()
	key := "pages/abc/tree.json"

	require.NoError(t, store.Put(ctx, key, strings.NewReader(`{"modules":[]}`)))
	fake.mu.Lock()
	assert.Equal(t, "application/json", fake.contentTypes["/snapshots/published/pages/abc/tree.json"])
	fake.mu.Unlock()

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, `{"modules":[]}`, string(data))

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, pagemodules.ErrNotFound)
}
