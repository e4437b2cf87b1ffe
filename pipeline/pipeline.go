// Package pipeline drives one run: pick fresh items, summarize, render and publish them.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/scipunch/technews/config"
	"github.com/scipunch/technews/fetcher/types"
	"github.com/scipunch/technews/render"
	"github.com/scipunch/technews/summarize"
)

const artifactTimeLayout = "20060102_150405"

type Picker interface {
	PickFreshTop(ctx context.Context, n int) ([]types.NewsItem, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, title, url string, maxBullets int) []string
}

type Renderer interface {
	Render(ctx context.Context, p render.Poster, outPath string) error
}

type Publisher interface {
	Publish(ctx context.Context, path, caption string) (mediaID, postID string, err error)
}

// Observer receives run outcomes, e.g. for metrics
type Observer interface {
	Picked(n int)
	Rendered(err error)
	Published(err error)
	RunFinished(d time.Duration, at time.Time)
}

// PublishResult describes one processed item. Empty MediaID and PostID without Err mean a dry run.
type PublishResult struct {
	ArtifactPath string
	MediaID      string
	PostID       string
	Item         types.NewsItem
	Err          error
}

type Report struct {
	RunID   string
	DryRun  bool
	Results []PublishResult
}

func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

func (r Report) OK() int {
	return len(r.Results) - r.Failed()
}

type Driver struct {
	cfg        config.Config
	picker     Picker
	summarizer Summarizer
	renderer   Renderer
	publisher  Publisher
	observer   Observer
	now        func() time.Time
	newRunID   func() string
	location   *time.Location
}

type Option func(*Driver)

func WithObserver(o Observer) Option {
	return func(d *Driver) { d.observer = o }
}

func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

func WithRunID(newRunID func() string) Option {
	return func(d *Driver) { d.newRunID = newRunID }
}

// New builds a driver. publisher may be nil for dry runs.
func New(cfg config.Config, picker Picker, summarizer Summarizer, renderer Renderer, publisher Publisher, opts ...Option) *Driver {
	d := &Driver{
		cfg:        cfg,
		picker:     picker,
		summarizer: summarizer,
		renderer:   renderer,
		publisher:  publisher,
		observer:   nopObserver{},
		now:        time.Now,
		newRunID:   func() string { return uuid.NewString() },
		location:   time.Local,
	}
	for _, opt := range opts {
		opt(d)
	}
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			slog.Warn("unknown timezone, using local time", "timezone", cfg.Timezone, "with", err)
		} else {
			d.location = loc
		}
	}
	return d
}

// RunOnce publishes up to cfg.MaxPosts items. Per-item failures land in the report;
// only configuration, storage and cancellation errors are returned.
func (d *Driver) RunOnce(ctx context.Context) (Report, error) {
	start := d.now()
	report := Report{RunID: d.newRunID(), DryRun: d.cfg.DryRun}
	log := slog.With("run_id", report.RunID)

	if !d.cfg.DryRun && d.publisher == nil {
		return report, fmt.Errorf("%w: live run without a publisher", config.ErrConfiguration)
	}
	if err := os.MkdirAll(d.cfg.OutputDirectory, os.ModePerm); err != nil {
		return report, fmt.Errorf("failed to create output directory at '%s' with %w", d.cfg.OutputDirectory, err)
	}

	picks, err := d.picker.PickFreshTop(ctx, d.cfg.MaxPosts)
	if err != nil {
		return report, fmt.Errorf("failed to pick news items with %w", err)
	}
	d.observer.Picked(len(picks))
	log.Info("picked news items", "amount", len(picks), "dry_run", d.cfg.DryRun)

	for i, item := range picks {
		select {
		case <-ctx.Done():
			log.Info("interrupted, stopping run", "processed", len(report.Results))
			return report, ctx.Err()
		default:
		}

		res := d.process(ctx, log, i+1, item)
		if res.Err != nil {
			log.Error("failed to publish item", "url", item.URL, "with", res.Err)
		}
		report.Results = append(report.Results, res)
	}

	finished := d.now()
	d.observer.RunFinished(finished.Sub(start), finished)
	log.Info("run finished", "ok", report.OK(), "failed", report.Failed())
	return report, nil
}

func (d *Driver) process(ctx context.Context, log *slog.Logger, idx int, item types.NewsItem) PublishResult {
	res := PublishResult{Item: item}

	title := Shorten(Sanitize(item.Title), d.cfg.Poster.MaxTitleLength)
	var bullets []string
	for _, b := range d.summarizer.Summarize(ctx, title, item.URL, d.maxBullets()) {
		if b = Sanitize(b); b != "" {
			bullets = append(bullets, b)
		}
	}

	res.ArtifactPath = d.artifactPath(idx)
	err := d.renderer.Render(ctx, render.Poster{Title: title, Bullets: bullets}, res.ArtifactPath)
	d.observer.Rendered(err)
	if err != nil {
		res.Err = fmt.Errorf("failed to render poster for '%s' with %w", item.URL, err)
		return res
	}

	if d.cfg.DryRun {
		log.Info("dry run, would post", "title", title, "artifact", res.ArtifactPath)
		return res
	}

	source := item.Source
	if source == "" {
		source = d.cfg.Caption.DefaultSource
	}
	caption := Caption(title, bullets, source, item.URL, d.cfg.Caption.Hashtags)
	res.MediaID, res.PostID, err = d.publisher.Publish(ctx, res.ArtifactPath, caption)
	d.observer.Published(err)
	if err != nil {
		res.Err = fmt.Errorf("failed to publish '%s' with %w", item.URL, err)
		return res
	}
	log.Info("posted", "title", title, "post", res.PostID, "media", res.MediaID)
	return res
}

func (d *Driver) maxBullets() int {
	if d.cfg.Poster.MaxBullets > 0 {
		return d.cfg.Poster.MaxBullets
	}
	return summarize.DefaultMaxBullets
}

func (d *Driver) artifactPath(idx int) string {
	format := render.ParseFormat(d.cfg.Poster.Format)
	ts := d.now().In(d.location).Format(artifactTimeLayout)
	return filepath.Join(d.cfg.OutputDirectory, fmt.Sprintf("poster_%s_%s_%d.png", format, ts, idx))
}

type nopObserver struct{}

func (nopObserver) Picked(int) {}
func (nopObserver) Rendered(error) {}
func (nopObserver) Published(error) {}
func (nopObserver) RunFinished(time.Duration, time.Time) {}
