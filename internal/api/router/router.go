package router

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aliskhannn/asset-derivatives/internal/api/handlers/derivative"
	"github.com/aliskhannn/asset-derivatives/internal/middleware"
)

func Setup(h *derivative.Handler, maxBodyBytes int64) *gin.Engine {
	r := gin.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.RequestID(uuid.NewString))
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.BodyLimit(maxBodyBytes))

	r.GET("/health", h.Health)

	r.POST("/thumbnail", h.Thumbnail) // WebP thumbnail with banner
	r.POST("/og-image", h.OgImage)    // 1200×630 social preview
	r.POST("/pdf", h.PDF)             // print document

	r.POST("/queue/sweep", h.Sweep) // manual backlog sweep

	return r
}
