package model

// Status is the lifecycle state of a Job in the job store.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Kind identifies one of the derivatives produced for an asset.
type Kind string

const (
	KindThumbnail Kind = "thumbnail"
	KindOG        Kind = "og"
	KindPDF       Kind = "pdf"
)

// Kinds lists every derivative in the order a job produces them.
var Kinds = []Kind{KindThumbnail, KindOG, KindPDF}

// MIME returns the content type uploaded for the derivative.
func (k Kind) MIME() string {
	switch k {
	case KindThumbnail:
		return "image/webp"
	case KindOG:
		return "image/png"
	case KindPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Job is a unit of work leased from the job store.
type Job struct {
	ID          string          `json:"id"`
	AssetID     string          `json:"asset_id"`
	Status      Status          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	UploadURLs  map[Kind]string `json:"upload_urls,omitempty"` // pre-signed PUT URL per derivative
	UploadToken string          `json:"upload_token,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// HasUploadURL reports whether a pre-signed URL was supplied for k.
func (j Job) HasUploadURL(k Kind) bool {
	return j.UploadURLs[k] != ""
}

// StatusUpdate is the body of a job status change.
type StatusUpdate struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}
