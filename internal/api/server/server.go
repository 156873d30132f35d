package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// New creates the HTTP server. Write timeout leaves room for a full PDF
// render.
func New(addr string, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
