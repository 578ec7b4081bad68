package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	u "carbone2pdf/internal/utils"
)

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("PO-0047.pdf"))
	assert.True(t, ValidName("client_name.docx"))
	assert.False(t, ValidName(""))
	assert.False(t, ValidName(".."))
	assert.False(t, ValidName("../etc/passwd"))
	assert.False(t, ValidName("a b.pdf"))
	assert.False(t, ValidName("dir/a.pdf"))
}

func TestLocalStore_PutOverwrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "completed")
	s, err := NewLocalStore(dir)
	require.NoError(t, err)

	loc, err := s.Put(context.Background(), "out.pdf", "application/pdf", []byte("%PDF-long-first-version"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out.pdf"), loc)

	_, err = s.Put(context.Background(), "out.pdf", "application/pdf", []byte("%PDF-2"))
	require.NoError(t, err)

	got, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-2", string(got))
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "../x.pdf", "", []byte("x"))
	assert.True(t, errors.Is(err, ErrInvalidName))
}

func TestNew_SelectsProvider(t *testing.T) {
	var cfg u.StorageConfig
	cfg.LocalDir = t.TempDir()
	s, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, s)

	cfg.Provider = "s3"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err, "missing bucket must be rejected")

	cfg.Provider = "ftp"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestS3Store_PutUsesPathStyleEndpoint(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	var mu sync.Mutex
	var gotMethod, gotPath, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotMethod, gotPath, gotType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		mu.Unlock()
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewS3Store(context.Background(), u.S3Config{
		Region:          "us-east-1",
		Bucket:          "documents",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Endpoint:        srv.URL,
		ForcePathStyle:  true,
	})
	require.NoError(t, err)

	loc, err := s.Put(context.Background(), "PO-0047.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "s3://documents/PO-0047.pdf", loc)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/documents/PO-0047.pdf", gotPath)
	assert.Equal(t, "application/pdf", gotType)
}
