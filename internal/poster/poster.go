// Package poster drives a submission through validation and out to every
// selected website. Sites are posted concurrently and independently; the
// same (profile, website) pair is never posted to twice at once.
package poster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/itchan-dev/crosspost/internal/markup"
	"github.com/itchan-dev/crosspost/internal/metrics"
	"github.com/itchan-dev/crosspost/internal/session"
	"github.com/itchan-dev/crosspost/internal/validation"
	"github.com/itchan-dev/crosspost/internal/website"
	"github.com/itchan-dev/crosspost/shared/clock"
	"github.com/itchan-dev/crosspost/shared/config"
	"github.com/itchan-dev/crosspost/shared/domain"
	"github.com/itchan-dev/crosspost/shared/logger"
)

var ErrUnknownSubmissionType = errors.New("unknown submission type")

// Locker serialises work per (profile, website).
type Locker interface {
	Acquire(key session.Key) func()
}

type Thumbnailer interface {
	Generate(file domain.PostFile) (domain.PostFile, error)
}

type Files struct {
	Primary    *domain.PostFile
	Additional []domain.PostFile
	Thumbnail  *domain.PostFile
}

type Job struct {
	Submission *domain.Submission
	Form       domain.FormData
	Files      Files
}

type Report struct {
	ID           string              `json:"id"`
	SubmissionID string              `json:"submission_id"`
	Results      []domain.PostResult `json:"results"`
	Problems     []domain.Problem    `json:"problems,omitempty"`
	Warnings     []domain.Problem    `json:"warnings,omitempty"`
}

// Failed reports whether anything was blocked or did not post.
func (r Report) Failed() bool {
	if len(r.Problems) > 0 {
		return true
	}
	for _, res := range r.Results {
		if !res.Success {
			return true
		}
	}
	return false
}

type Options struct {
	Registry   *website.Registry
	Validator  *validation.Validator
	Sessions   Locker
	Clock      clock.Clock
	Backoff    time.Duration
	Signatures []string
	// Concurrency bounds how many sites are posted to at once.
	Concurrency int
	Thumbnails  Thumbnailer
	Shortcuts   *markup.Shortcuts
}

type Poster struct {
	registry    *website.Registry
	validator   *validation.Validator
	sessions    Locker
	clock       clock.Clock
	backoff     time.Duration
	signatures  []string
	concurrency int
	thumbnails  Thumbnailer
	shortcuts   *markup.Shortcuts
}

func New(opts Options) *Poster {
	p := &Poster{
		registry:    opts.Registry,
		validator:   opts.Validator,
		sessions:    opts.Sessions,
		clock:       opts.Clock,
		backoff:     opts.Backoff,
		concurrency: opts.Concurrency,
		thumbnails:  opts.Thumbnails,
		shortcuts:   opts.Shortcuts,
	}
	if p.clock == nil {
		p.clock = clock.Real()
	}
	if p.backoff <= 0 {
		p.backoff = config.DefaultRetryBackoff
	}
	if p.concurrency <= 0 {
		p.concurrency = config.DefaultConcurrency
	}
	if p.shortcuts == nil {
		p.shortcuts = markup.DefaultShortcuts()
	}
	signatures := opts.Signatures
	if signatures == nil {
		signatures = config.DefaultRetrySignatures
	}
	for _, s := range signatures {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			p.signatures = append(p.signatures, s)
		}
	}
	return p
}

// Validate runs generic and per-site validation without posting. Findings
// are also written to the submission.
func (p *Poster) Validate(sub *domain.Submission, form domain.FormData) validation.Report {
	report := p.validator.Validate(sub, form)
	for _, part := range form.Parts {
		adapter, cfg, ok := p.lookup(part)
		if !ok || part.ProfileID == "" {
			continue
		}
		_, site := p.prepare(sub, form.Defaults, part, adapter, cfg, Files{})
		site.ApplyTo(sub)
		report.Merge(site)
	}
	return report
}

// Post validates the job and posts it to every selected website. Problems
// are reported, not returned; the error is only for programmer mistakes.
func (p *Poster) Post(ctx context.Context, job Job) (Report, error) {
	sub := job.Submission
	if !sub.Type.Valid() {
		return Report{}, fmt.Errorf("%w: %q", ErrUnknownSubmissionType, sub.Type)
	}
	report := Report{ID: uuid.NewString(), SubmissionID: sub.ID}
	log := logger.Component("poster").With("report", report.ID, "submission", sub.ID)

	generic := p.validator.Validate(sub, job.Form)
	if generic.Blocked() {
		report.Problems, report.Warnings = generic.Problems, generic.Warnings
		log.Info("submission blocked by validation", "problems", len(generic.Problems))
		return report, nil
	}

	files := job.Files
	if files.Thumbnail == nil && files.Primary != nil && p.thumbnails != nil && sub.Type == domain.TypeSubmission {
		if thumb, err := p.thumbnails.Generate(*files.Primary); err == nil {
			files.Thumbnail = &thumb
		} else {
			log.Debug("no thumbnail generated", "error", err)
		}
	}

	parts := job.Form.Parts
	results := make([]domain.PostResult, len(parts))
	siteReports := make([]validation.Report, len(parts))

	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)
	for i, part := range parts {
		if ctx.Err() != nil {
			results[i] = p.cancelled(part)
			continue
		}
		g.Go(func() error {
			results[i], siteReports[i] = p.postPart(ctx, sub, job.Form.Defaults, part, files)
			return nil
		})
	}
	// postPart never returns an error.
	_ = g.Wait()

	merged := generic
	for _, r := range siteReports {
		merged.Merge(r)
		r.ApplyTo(sub)
	}
	report.Results = results
	report.Problems, report.Warnings = merged.Problems, merged.Warnings
	log.Info("submission processed", "websites", len(parts), "failed", report.Failed())
	return report, nil
}

func (p *Poster) lookup(part domain.WebsitePart) (website.Adapter, website.Config, bool) {
	adapter, ok := p.registry.Adapter(part.Website)
	if !ok {
		return nil, website.Config{}, false
	}
	cfg, _ := p.registry.Config(part.Website)
	return adapter, cfg, true
}

func (p *Poster) cancelled(part domain.WebsitePart) domain.PostResult {
	metrics.ObservePost(part.Website, metrics.OutcomeCancelled, 0)
	return domain.PostResult{
		Website:   part.Website,
		ProfileID: part.ProfileID,
		Error:     "cancelled",
		Time:      p.clock.Now(),
	}
}

// Resolve builds the payload one website receives.
func (p *Poster) Resolve(sub *domain.Submission, defaults domain.DefaultOptions, part domain.WebsitePart, cfg website.Config, files Files) (domain.PostData, error) {
	site := part.Data
	data := domain.PostData{
		Title:      defaults.Title,
		Tags:       markup.ResolveTags(defaults.Tags, site.Tags),
		Primary:    files.Primary,
		Additional: files.Additional,
		Thumbnail:  files.Thumbnail,
		ProfileID:  part.ProfileID,
		SrcURLs:    defaults.Sources,
		Login:      domain.LoginInformation{ProfileID: part.ProfileID, Website: part.Website},
		Type:       sub.Type,
		Rating:     sub.Rating,
	}
	if site.Title != "" {
		data.Title = site.Title
	}
	if site.Rating != "" {
		data.Rating = site.Rating
	}
	chain := cfg.Markup.WithPreparsers(p.shortcuts.Preparser(cfg.Name))
	data.Description = chain.Apply(markup.ResolveDescription(defaults.Description, site.Description))

	opts, err := cfg.DecodeOptions(site.Options)
	if err != nil {
		return data, err
	}
	data.Options = opts
	return data, nil
}

// prepare resolves one part and runs the site's rules against it.
func (p *Poster) prepare(sub *domain.Submission, defaults domain.DefaultOptions, part domain.WebsitePart, adapter website.Adapter, cfg website.Config, files Files) (domain.PostData, validation.Report) {
	data, err := p.Resolve(sub, defaults, part, cfg, files)
	if err != nil {
		var report validation.Report
		report.Problem(part.Website, "%v", err)
		return data, report
	}
	return data, p.validator.ValidateWebsite(sub, data, cfg.Rules, adapter.Folders(part.ProfileID))
}

func (p *Poster) postPart(ctx context.Context, sub *domain.Submission, defaults domain.DefaultOptions, part domain.WebsitePart, files Files) (domain.PostResult, validation.Report) {
	adapter, cfg, ok := p.lookup(part)
	if !ok {
		// Generic validation rejects unknown websites before this point.
		return domain.PostResult{Website: part.Website, ProfileID: part.ProfileID, Error: "unknown website", Time: p.clock.Now()}, validation.Report{}
	}
	if ctx.Err() != nil {
		return p.cancelled(part), validation.Report{}
	}
	log := logger.Component("poster").With("website", part.Website, "profile", part.ProfileID)

	data, report := p.prepare(sub, defaults, part, adapter, cfg, files)
	if report.Blocked() {
		metrics.ObservePost(part.Website, metrics.OutcomeInvalid, 0)
		log.Info("website blocked by validation", "problems", len(report.Problems))
		return domain.PostResult{
			Website:   part.Website,
			ProfileID: part.ProfileID,
			Error:     "validation failed",
			Time:      p.clock.Now(),
			Problems:  report.Problems,
		}, report
	}

	release := p.sessions.Acquire(session.Key{ProfileID: part.ProfileID, Website: part.Website})
	defer release()

	start := time.Now()
	result := p.postWithRetry(ctx, log, adapter, cfg, sub, data)
	result.Website, result.ProfileID = part.Website, part.ProfileID

	outcome := metrics.OutcomeSuccess
	if !result.Success {
		outcome = metrics.OutcomeFailed
	}
	metrics.ObservePost(part.Website, outcome, time.Since(start))
	return result, report
}

// postWithRetry posts once and, if the failure matches a transient
// signature, waits the backoff and posts exactly once more. Rejected
// credentials are never retried.
func (p *Poster) postWithRetry(ctx context.Context, log *slog.Logger, adapter website.Adapter, cfg website.Config, sub *domain.Submission, data domain.PostData) domain.PostResult {
	// A started upload runs to completion; cancellation only stops new work.
	postCtx := context.WithoutCancel(ctx)
	for attempt := 1; ; attempt++ {
		result, err := adapter.Post(postCtx, sub, data)
		result.Attempts = attempt
		if err == nil {
			result.Success = true
			log.Info("posted", "attempts", attempt, "url", result.SrcURL)
			return result
		}
		result.Success = false
		if result.Error == "" {
			result.Error, result.Response = website.Describe(err)
		}
		if attempt > 1 || !p.transient(err, result, cfg.RetrySignatures) {
			log.Warn("post failed", "attempts", attempt, "error", err)
			return result
		}

		metrics.ObserveRetry(adapter.Name())
		log.Warn("transient failure, retrying", "error", err, "backoff", p.backoff)
		select {
		case <-p.clock.After(p.backoff):
		case <-ctx.Done():
			result.Error = fmt.Sprintf("%s (retry cancelled)", result.Error)
			return result
		}
	}
}

func (p *Poster) transient(err error, result domain.PostResult, site []string) bool {
	if website.IsUnauthorized(err) {
		return false
	}
	haystack := strings.ToLower(err.Error() + "\n" + result.Error + "\n" + result.Response)
	for _, sig := range p.signatures {
		if strings.Contains(haystack, sig) {
			return true
		}
	}
	for _, sig := range site {
		if sig = strings.ToLower(strings.TrimSpace(sig)); sig != "" && strings.Contains(haystack, sig) {
			return true
		}
	}
	return false
}
