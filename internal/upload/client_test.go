package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/asset-derivatives/internal/infra/httpclient"
)

func newClient() *Client {
	return New(httpclient.New(nil, retry.Strategy{Attempts: 3, Delay: time.Millisecond, Backoff: 2}))
}

func TestPut(t *testing.T) {
	var got *http.Request
	var body []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newClient().Put(context.Background(), srv.URL+"/thumb.webp?X-Amz-Signature=abc", "image/webp", []byte("RIFF"))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, got.Method)
	assert.Equal(t, "image/webp", got.Header.Get("Content-Type"))
	assert.Equal(t, "image/webp", got.Header.Get("X-Content-Type"))
	assert.Equal(t, "abc", got.URL.Query().Get("X-Amz-Signature"))
	assert.Equal(t, []byte("RIFF"), body)
}

func TestPut_NeverSendsAuthorization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Values("Authorization"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	for _, ct := range []string{"image/webp", "image/png", "application/pdf"} {
		require.NoError(t, newClient().Put(context.Background(), srv.URL, ct, []byte("x")))
	}
}

func TestPut_RejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "signature expired", http.StatusForbidden)
	}))
	defer srv.Close()

	err := newClient().Put(context.Background(), srv.URL, "application/pdf", []byte("%PDF"))

	var serr *httpclient.StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusForbidden, serr.StatusCode)
	assert.ErrorContains(t, err, "upload application/pdf")
}
