package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/asset-derivatives/internal/api/handlers/derivative"
	"github.com/aliskhannn/asset-derivatives/internal/model"
	"github.com/aliskhannn/asset-derivatives/internal/processor"
)

func TestMain(m *testing.M) {
	zlog.Init()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type nopRenderer struct{}

func (nopRenderer) Thumbnail(context.Context, string, string, int) ([]byte, error) { return nil, nil }

func (nopRenderer) OgImage(context.Context, processor.OgInput) ([]byte, error) { return nil, nil }

func (nopRenderer) PDF(context.Context, string, model.Asset, string) ([]byte, error) { return nil, nil }

func TestSetup(t *testing.T) {
	r := Setup(derivative.NewHandler(nopRenderer{}, nil), 64)

	t.Run("preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/thumbnail", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("request id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "abc")
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
	})

	t.Run("body limit", func(t *testing.T) {
		body := `{"svgContent":"` + strings.Repeat("a", 128) + `"}`
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/thumbnail", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
