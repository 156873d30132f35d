package job

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aliskhannn/asset-derivatives/internal/config"
	"github.com/aliskhannn/asset-derivatives/internal/infra/httpclient"
	"github.com/aliskhannn/asset-derivatives/internal/model"
)

var ErrAssetNotFound = errors.New("asset not found")

// Repository reads and updates derivative jobs through the job-store API.
type Repository struct {
	client  *httpclient.Client
	baseURL string
	token   func() string
}

// NewRepository creates a new Repository. The service token is resolved
// from cfg on every call.
func NewRepository(c *httpclient.Client, cfg config.JobStore) *Repository {
	return &Repository{
		client:  c,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.CurrentToken,
	}
}

type pendingResponse struct {
	Jobs []model.Job `json:"jobs"`
}

// ListPending returns every job currently pending in the store.
func (r *Repository) ListPending(ctx context.Context) ([]model.Job, error) {
	var resp pendingResponse

	err := r.client.DoJSON(ctx, http.MethodGet, r.baseURL+"/internal/queue/pending", r.auth(""), nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}

	return resp.Jobs, nil
}

// UpdateStatus sets the status of job. Setting the same status twice is
// harmless on the store side.
func (r *Repository) UpdateStatus(ctx context.Context, job model.Job, upd model.StatusUpdate) error {
	u := r.baseURL + "/internal/queue/" + url.PathEscape(job.ID)

	if err := r.client.DoJSON(ctx, http.MethodPatch, u, r.auth(job.UploadToken), upd, nil); err != nil {
		return fmt.Errorf("update job %s to %s: %w", job.ID, upd.Status, err)
	}

	return nil
}

// GetAsset fetches the asset of job together with its SVG markup.
func (r *Repository) GetAsset(ctx context.Context, job model.Job) (model.AssetSource, error) {
	u := r.baseURL + "/internal/assets/" + url.PathEscape(job.AssetID)

	var src model.AssetSource
	err := r.client.DoJSON(ctx, http.MethodGet, u, r.auth(job.UploadToken), nil, &src)

	var serr *httpclient.StatusError
	if errors.As(err, &serr) && serr.StatusCode == http.StatusNotFound {
		return model.AssetSource{}, fmt.Errorf("%w: %s: %w", ErrAssetNotFound, job.AssetID, err)
	}
	if err != nil {
		return model.AssetSource{}, fmt.Errorf("get asset %s: %w", job.AssetID, err)
	}

	return src, nil
}

// auth builds the bearer header. A job-scoped token wins over the service
// token.
func (r *Repository) auth(jobToken string) http.Header {
	token := jobToken
	if token == "" && r.token != nil {
		token = r.token()
	}

	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
