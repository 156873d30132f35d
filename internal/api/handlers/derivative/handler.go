package derivative

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/asset-derivatives/internal/api/respond"
	"github.com/aliskhannn/asset-derivatives/internal/model"
	"github.com/aliskhannn/asset-derivatives/internal/processor"
)

// maxThumbnailWidth bounds the requested thumbnail size.
const maxThumbnailWidth = 4096

// renderer defines the interface for producing derivative buffers.
type renderer interface {
	Thumbnail(ctx context.Context, svgContent, assetID string, size int) ([]byte, error)
	OgImage(ctx context.Context, in processor.OgInput) ([]byte, error)
	PDF(ctx context.Context, svgContent string, asset model.Asset, publicURL string) ([]byte, error)
}

// sweeper starts a backlog sweep.
type sweeper interface {
	TriggerSweep(ctx context.Context) bool
}

// Handler provides the synchronous rendering endpoints.
type Handler struct {
	renderer renderer
	sweeper  sweeper
}

// NewHandler creates a new Handler. s may be nil when the queue is
// disabled.
func NewHandler(r renderer, s sweeper) *Handler {
	return &Handler{renderer: r, sweeper: s}
}

// ThumbnailRequest is the body of POST /thumbnail.
type ThumbnailRequest struct {
	SVGContent string `json:"svgContent"`
	Width      int    `json:"width"`
	AssetID    string `json:"assetId"`
}

// ImageResponse carries a rendered image.
type ImageResponse struct {
	ImageBase64 string `json:"imageBase64"`
	MimeType    string `json:"mimeType"`
}

// OgImageRequest is the body of POST /og-image.
type OgImageRequest struct {
	Title             string `json:"title"`
	ThumbnailBase64   string `json:"thumbnailBase64"`
	ThumbnailMimeType string `json:"thumbnailMimeType"`
}

// PDFMetadata describes the asset printed in the PDF.
type PDFMetadata struct {
	AssetID   string `json:"assetId"`
	Title     string `json:"title"`
	PublicURL string `json:"publicUrl"`
}

// PDFRequest is the body of POST /pdf.
type PDFRequest struct {
	SVGContent string      `json:"svgContent"`
	Filename   string      `json:"filename"`
	Metadata   PDFMetadata `json:"metadata"`
}

// PDFResponse carries a rendered PDF.
type PDFResponse struct {
	PDFBase64 string `json:"pdfBase64"`
	MimeType  string `json:"mimeType"`
	Filename  string `json:"filename"`
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	respond.OK(c, gin.H{"status": "ok"})
}

// Thumbnail renders a WebP thumbnail.
func (h *Handler) Thumbnail(c *gin.Context) {
	var req ThumbnailRequest
	if !bind(c, &req) {
		return
	}

	if strings.TrimSpace(req.SVGContent) == "" {
		respond.Fail(c, http.StatusBadRequest, errors.New("svgContent is required"))
		return
	}
	if req.Width < 0 || req.Width > maxThumbnailWidth {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("width must be between 1 and %d", maxThumbnailWidth))
		return
	}

	data, err := h.renderer.Thumbnail(c.Request.Context(), req.SVGContent, req.AssetID, req.Width)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to render thumbnail")
		respond.Fail(c, http.StatusInternalServerError, err)
		return
	}

	respond.OK(c, ImageResponse{
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    model.KindThumbnail.MIME(),
	})
}

// OgImage renders the social preview from a title and an optional raster
// thumbnail.
func (h *Handler) OgImage(c *gin.Context) {
	var req OgImageRequest
	if !bind(c, &req) {
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		respond.Fail(c, http.StatusBadRequest, errors.New("title is required"))
		return
	}

	in := processor.OgInput{Title: req.Title, ThumbnailMIME: req.ThumbnailMimeType}
	if req.ThumbnailBase64 != "" {
		thumb, err := base64.StdEncoding.DecodeString(req.ThumbnailBase64)
		if err != nil {
			respond.Fail(c, http.StatusBadRequest, errors.New("thumbnailBase64 is not valid base64"))
			return
		}
		in.Thumbnail = thumb
	}

	data, err := h.renderer.OgImage(c.Request.Context(), in)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to render og image")
		respond.Fail(c, http.StatusInternalServerError, err)
		return
	}

	respond.OK(c, ImageResponse{
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    model.KindOG.MIME(),
	})
}

// PDF renders the print document.
func (h *Handler) PDF(c *gin.Context) {
	var req PDFRequest
	if !bind(c, &req) {
		return
	}

	if strings.TrimSpace(req.SVGContent) == "" {
		respond.Fail(c, http.StatusBadRequest, errors.New("svgContent is required"))
		return
	}

	asset := model.Asset{
		AssetID:   req.Metadata.AssetID,
		Title:     req.Metadata.Title,
		PublicURL: req.Metadata.PublicURL,
	}

	data, err := h.renderer.PDF(c.Request.Context(), req.SVGContent, asset, asset.PublicURL)
	if err != nil {
		zlog.Logger.Err(err).Str("asset_id", asset.AssetID).Msg("failed to render pdf")
		respond.Fail(c, http.StatusInternalServerError, err)
		return
	}

	respond.OK(c, PDFResponse{
		PDFBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:  model.KindPDF.MIME(),
		Filename:  pdfFilename(req.Filename, asset.AssetID),
	})
}

// Sweep triggers a backlog sweep in the background.
func (h *Handler) Sweep(c *gin.Context) {
	if h.sweeper == nil {
		respond.Fail(c, http.StatusServiceUnavailable, errors.New("queue is disabled"))
		return
	}

	// the sweep outlives the request
	started := h.sweeper.TriggerSweep(context.WithoutCancel(c.Request.Context()))

	respond.Accepted(c, gin.H{"started": started})
}

// bind decodes the JSON body, answering 400 itself on failure.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		zlog.Logger.Warn().Err(err).Str("path", c.FullPath()).Msg("invalid request body")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
		return false
	}
	return true
}

// pdfFilename returns a safe download name ending in .pdf.
func pdfFilename(requested, assetID string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(requested), `\`, "/"))
	if name == "." || name == ".." || name == "/" || name == "" {
		name = assetID
	}
	if name == "" {
		name = "asset"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
