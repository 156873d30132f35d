// Package queue drains the job store's pending backlog: it leases each job,
// renders and uploads its derivatives and reports the outcome.
package queue

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/aliskhannn/asset-derivatives/internal/config"
	"github.com/aliskhannn/asset-derivatives/internal/model"
	"github.com/aliskhannn/asset-derivatives/internal/processor"
	"github.com/aliskhannn/asset-derivatives/internal/svg"
)

var (
	ErrNoUploadURLs = errors.New("no signed upload URLs provided")
	ErrJobTimeout   = errors.New("job timed out")
)

// statusTimeout bounds a final status update, which runs even after the
// sweep context is canceled.
const statusTimeout = 30 * time.Second

// jobStore defines the interface of the external job-store API.
type jobStore interface {
	ListPending(ctx context.Context) ([]model.Job, error)
	UpdateStatus(ctx context.Context, job model.Job, upd model.StatusUpdate) error
	GetAsset(ctx context.Context, job model.Job) (model.AssetSource, error)
}

// renderer produces the derivative buffers.
type renderer interface {
	Thumbnail(ctx context.Context, svgContent, assetID string, size int) ([]byte, error)
	OgImage(ctx context.Context, in processor.OgInput) ([]byte, error)
	PDF(ctx context.Context, svgContent string, asset model.Asset, publicURL string) ([]byte, error)
}

// uploader puts a buffer to a pre-signed URL.
type uploader interface {
	Put(ctx context.Context, url, contentType string, body []byte) error
}

// publisher announces job outcomes (e.g., Kafka).
type publisher interface {
	Publish(ctx context.Context, ev model.JobEvent) error
}

// Processor runs sweeps over the pending backlog. At most one sweep runs
// at a time and a sweep executes at most cfg.Concurrency jobs at once.
type Processor struct {
	store    jobStore
	renderer renderer
	uploader uploader
	events   publisher
	cfg      config.Queue

	sweeping atomic.Bool
	wg       sync.WaitGroup

	shuffle func([]model.Job)
	now     func() time.Time
}

// New creates a new Processor. events may be nil.
func New(store jobStore, r renderer, u uploader, events publisher, cfg config.Queue) *Processor {
	return &Processor{
		store:    store,
		renderer: r,
		uploader: u,
		events:   events,
		cfg:      cfg,
		shuffle:  shuffleJobs,
		now:      time.Now,
	}
}

func shuffleJobs(jobs []model.Job) {
	rand.Shuffle(len(jobs), func(i, j int) {
		jobs[i], jobs[j] = jobs[j], jobs[i]
	})
}

// TriggerSweep starts a sweep in the background. It returns false without
// touching the job store when a sweep is already running.
func (p *Processor) TriggerSweep(ctx context.Context) bool {
	if !p.sweeping.CompareAndSwap(false, true) {
		return false
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sweeping.Store(false)

		p.sweep(ctx)
	}()

	return true
}

// Sweep runs a sweep synchronously. started is false when another sweep
// was already running.
func (p *Processor) Sweep(ctx context.Context) (started bool) {
	if !p.sweeping.CompareAndSwap(false, true) {
		return false
	}
	defer p.sweeping.Store(false)

	p.sweep(ctx)
	return true
}

// Sweeping reports whether a sweep is in progress.
func (p *Processor) Sweeping() bool {
	return p.sweeping.Load()
}

// Wait blocks until every background sweep has returned.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Run triggers a sweep immediately and then every cfg.PollInterval until
// ctx is canceled. A zero interval disables polling.
func (p *Processor) Run(ctx context.Context) {
	p.TriggerSweep(ctx)

	if p.cfg.PollInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("shutdown signal received, stopping queue poller")
			return
		case <-ticker.C:
			if !p.TriggerSweep(ctx) {
				zlog.Logger.Debug().Msg("sweep already running, tick skipped")
			}
		}
	}
}

func (p *Processor) sweep(ctx context.Context) {
	sweepID := uuid.NewString()
	start := p.now()

	jobs, err := p.store.ListPending(ctx)
	if err != nil {
		zlog.Logger.Err(err).Str("sweep_id", sweepID).Msg("failed to fetch pending jobs")
		return
	}

	zlog.Logger.Info().
		Str("sweep_id", sweepID).
		Int("jobs", len(jobs)).
		Msg("sweep started")

	p.shuffle(jobs)

	var g errgroup.Group
	g.SetLimit(max(p.cfg.Concurrency, 1))

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			p.process(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		zlog.Logger.Warn().Err(err).Str("sweep_id", sweepID).Msg("sweep interrupted, unstarted jobs left pending")
	}

	zlog.Logger.Info().
		Str("sweep_id", sweepID).
		Int("jobs", len(jobs)).
		Dur("took", p.now().Sub(start)).
		Msg("sweep finished")
}

// process runs one job and records its outcome. It never returns an error:
// a failing job must not stop the sweep.
func (p *Processor) process(ctx context.Context, job model.Job) {
	start := p.now()

	err := p.lease(ctx, job)
	if err != nil && ctx.Err() != nil {
		zlog.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("sweep canceled before job was leased")
		return
	}
	if err == nil {
		err = p.runWithTimeout(ctx, job)
	}

	upd := p.outcome(job, err)
	if err != nil && ctx.Err() != nil {
		// an interrupted job goes back without attempt accounting
		upd = model.StatusUpdate{Status: model.StatusPending, Error: "interrupted: " + err.Error()}
	}

	log := zlog.Logger.Info()
	if err != nil {
		log = zlog.Logger.Warn().Err(err)
	}
	log.Str("job_id", job.ID).
		Str("asset_id", job.AssetID).
		Int("attempts", job.Attempts).
		Str("status", string(upd.Status)).
		Msg("job finished")

	statusCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusTimeout)
	defer cancel()

	if uerr := p.store.UpdateStatus(statusCtx, job, upd); uerr != nil {
		// the original failure stays the reported one
		zlog.Logger.Err(uerr).Str("job_id", job.ID).Msg("failed to record job status")
	}

	p.publish(statusCtx, job, upd, p.now().Sub(start))
}

// lease marks the job as processing. It completes before the run starts so
// no abandoned run can write a status after the final one.
func (p *Processor) lease(ctx context.Context, job model.Job) error {
	leaseCtx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	if err := p.store.UpdateStatus(leaseCtx, job, model.StatusUpdate{Status: model.StatusProcessing}); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	return nil
}

// runWithTimeout races run against cfg.JobTimeout. On timeout the run is
// abandoned; its context is canceled so in-flight calls wind down.
func (p *Processor) runWithTimeout(ctx context.Context, job model.Job) error {
	jobCtx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("job panicked: %v", r)
			}
		}()
		done <- p.run(jobCtx, job)
	}()

	select {
	case err := <-done:
		return err
	case <-jobCtx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%w after %s", ErrJobTimeout, p.cfg.JobTimeout)
	}
}

// run renders every derivative of a leased job that has an upload URL and
// uploads it. Every present derivative is attempted; their errors are
// combined.
func (p *Processor) run(ctx context.Context, job model.Job) error {
	if !hasAnyUploadURL(job) {
		return ErrNoUploadURLs
	}

	src, err := p.store.GetAsset(ctx, job)
	if err != nil {
		return err
	}

	clean, err := svg.Sanitize(src.SVGContent)
	if err != nil {
		return err
	}

	var errs error
	for _, kind := range model.Kinds {
		if !job.HasUploadURL(kind) {
			continue
		}

		if err := p.derivative(ctx, job, kind, clean, src.Asset); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", kind, err))
		}
	}

	return errs
}

func (p *Processor) derivative(ctx context.Context, job model.Job, kind model.Kind, clean string, asset model.Asset) error {
	var (
		data []byte
		err  error
	)

	switch kind {
	case model.KindThumbnail:
		data, err = p.renderer.Thumbnail(ctx, clean, asset.AssetID, processor.DefaultThumbnailSize)
	case model.KindOG:
		data, err = p.renderer.OgImage(ctx, processor.OgInput{Title: asset.Title, SVG: clean})
	case model.KindPDF:
		data, err = p.renderer.PDF(ctx, clean, asset, asset.PublicURL)
	default:
		return fmt.Errorf("unknown derivative %q", kind)
	}
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	return p.uploader.Put(ctx, job.UploadURLs[kind], kind.MIME(), data)
}

func (p *Processor) publish(ctx context.Context, job model.Job, upd model.StatusUpdate, took time.Duration) {
	if p.events == nil {
		return
	}

	ev := model.JobEvent{
		JobID:      job.ID,
		AssetID:    job.AssetID,
		Status:     upd.Status,
		Attempts:   job.Attempts,
		Error:      upd.Error,
		Duration:   took.String(),
		OccurredAt: p.now().UTC(),
	}

	if err := p.events.Publish(ctx, ev); err != nil {
		zlog.Logger.Err(err).Str("job_id", job.ID).Msg("failed to publish job event")
	}
}

func hasAnyUploadURL(job model.Job) bool {
	for _, k := range model.Kinds {
		if job.HasUploadURL(k) {
			return true
		}
	}
	return false
}
