package report

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/config"
)

func TestS3UploaderPutsObjectUnderPrefix(t *testing.T) {
	var (
		mu       sync.Mutex
		method   string
		path     string
		ctype    string
		received []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, ctype, received = r.Method, r.URL.Path, r.Header.Get("Content-Type"), body
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	local := filepath.Join(t.TempDir(), "bitcoin_trend.png")
	require.NoError(t, os.WriteFile(local, []byte("png-bytes"), 0o644))

	uploader, err := NewS3Uploader(context.Background(), config.S3Config{
		Enabled:         true,
		Bucket:          "charts-bucket",
		Prefix:          "/charts/",
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		PathStyle:       true,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}, zerolog.Nop())
	require.NoError(t, err)

	location, err := uploader.Upload(context.Background(), local)
	require.NoError(t, err)
	assert.Equal(t, "s3://charts-bucket/charts/bitcoin_trend.png", location)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/charts-bucket/charts/bitcoin_trend.png", path)
	assert.Equal(t, "image/png", ctype)
	assert.Contains(t, string(received), "png-bytes")
}

func TestS3UploaderMissingFile(t *testing.T) {
	uploader, err := NewS3Uploader(context.Background(), config.S3Config{
		Bucket: "b", Region: "us-east-1", AccessKeyID: "k", SecretAccessKey: "s",
	}, zerolog.Nop())
	require.NoError(t, err)

	_, err = uploader.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
