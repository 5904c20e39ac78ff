package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"newsharvest/internal/domain"
	"newsharvest/internal/extract"
	"newsharvest/internal/fetch"
	"newsharvest/internal/ports"
	"newsharvest/internal/sources"
)

// Options bounds the runner's parallelism and crawl depth.
type Options struct {
	MaxPagesPerCategory int
	SourceWorkers       int
	CandidateWorkers    int
}

// Runner orchestrates one ingestion job across its scope items. Scope
// items run on a bounded worker pool and candidates within an item fetch
// concurrently under a per-item cap. Every candidate outcome lands in
// exactly one counter; individual failures never abort the job.
type Runner struct {
	registry *sources.Registry
	client   *fetch.Client
	articles ports.ArticleStore
	jobs     ports.JobStore
	logger   *slog.Logger
	opts     Options
}

// NewRunner wires the pipeline components into a runner.
func NewRunner(registry *sources.Registry, client *fetch.Client, articles ports.ArticleStore, jobs ports.JobStore, logger *slog.Logger, opts Options) *Runner {
	if opts.MaxPagesPerCategory < 1 {
		opts.MaxPagesPerCategory = 3
	}
	if opts.SourceWorkers < 1 {
		opts.SourceWorkers = 3
	}
	if opts.CandidateWorkers < 1 {
		opts.CandidateWorkers = 4
	}

	return &Runner{
		registry: registry,
		client:   client,
		articles: articles,
		jobs:     jobs,
		logger:   logger,
		opts:     opts,
	}
}

// Run executes one ingestion job over the given scope and returns the
// finalized job record. The returned job is always in a terminal state.
// Only an unreachable persistence gateway is fatal.
func (r *Runner) Run(ctx context.Context, scope []domain.ScopeItem) (*domain.IngestionJob, error) {
	if len(scope) == 0 {
		return nil, errors.New("empty job scope")
	}

	jobID, err := r.jobs.CreateJob(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	// Store writes must survive run cancellation so the job never stays
	// stuck in a non-terminal state.
	store := context.WithoutCancel(ctx)

	if err := r.jobs.MarkJobRunning(store, jobID); err != nil {
		return nil, fmt.Errorf("mark job running: %w", err)
	}

	r.logger.Info("job started", "job_id", jobID, "scope_items", len(scope))

	var (
		mu    sync.Mutex
		total domain.Counters
	)

	sem := make(chan struct{}, r.opts.SourceWorkers)
	var wg sync.WaitGroup

	for _, item := range scope {
		wg.Add(1)
		go func(item domain.ScopeItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			counters := r.runScopeItem(ctx, jobID, item)

			mu.Lock()
			total.Add(counters)
			mu.Unlock()
		}(item)
	}
	wg.Wait()

	status := domain.FinalStatus(total)
	if ctx.Err() != nil {
		r.recordError(store, jobID, domain.JobError{
			Kind:    domain.ErrKindCancelled,
			Message: fmt.Sprintf("run cancelled: %v", ctx.Err()),
		})
		if total.Succeeded+total.SkippedDuplicate > 0 {
			status = domain.JobPartiallyFailed
		} else {
			status = domain.JobFailed
		}
	}

	if err := r.jobs.FinalizeJob(store, jobID, status); err != nil {
		return nil, fmt.Errorf("finalize job: %w", err)
	}

	r.logger.Info("job finished",
		"job_id", jobID,
		"status", status,
		"attempted", total.Attempted,
		"succeeded", total.Succeeded,
		"skipped_duplicate", total.SkippedDuplicate,
		"failed", total.Failed)

	job, err := r.jobs.GetJob(store, jobID)
	if err != nil {
		return nil, fmt.Errorf("load finished job: %w", err)
	}
	return job, nil
}

// runScopeItem processes one (source, category) pair and returns its
// counters. Failures of the listing itself count as one failed attempt so
// the counter identity attempted = succeeded + skipped + failed holds for
// every item.
func (r *Runner) runScopeItem(ctx context.Context, jobID uuid.UUID, item domain.ScopeItem) domain.Counters {
	log := r.logger.With("job_id", jobID, "scope", item.String())

	adapter, err := r.registry.Resolve(item.Source)
	if err != nil {
		return r.failScopeItem(ctx, jobID, item, domain.ErrKindNotImplemented, err)
	}

	candidates, err := adapter.ListCandidates(ctx, r.client, item.Category, r.opts.MaxPagesPerCategory)
	if err != nil {
		kind := domain.ErrKindListing
		if errors.Is(err, sources.ErrNotImplemented) {
			kind = domain.ErrKindNotImplemented
		}
		return r.failScopeItem(ctx, jobID, item, kind, err)
	}

	if len(candidates) == 0 {
		return r.failScopeItem(ctx, jobID, item, domain.ErrKindListing, errors.New("listing yielded zero candidates"))
	}

	log.Debug("candidates listed", "count", len(candidates))

	var (
		mu       sync.Mutex
		counters domain.Counters
	)

	sem := make(chan struct{}, r.opts.CandidateWorkers)
	var wg sync.WaitGroup

	for _, candidate := range candidates {
		// Abandon remaining candidates on cancellation; unattempted
		// candidates are not counted.
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(candidate sources.Candidate) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			outcome := r.processCandidate(ctx, jobID, item, adapter, candidate)

			mu.Lock()
			counters.Add(outcome)
			mu.Unlock()
		}(candidate)
	}
	wg.Wait()

	if err := r.jobs.AddJobCounters(context.WithoutCancel(ctx), jobID, counters); err != nil {
		log.Error("progress update failed", "error", err)
	}

	return counters
}

// processCandidate drives fetch → extract → dedup → store for one article
// URL and returns a counter with exactly one bucket set.
func (r *Runner) processCandidate(ctx context.Context, jobID uuid.UUID, item domain.ScopeItem, adapter sources.Adapter, candidate sources.Candidate) domain.Counters {
	outcome := domain.Counters{Attempted: 1}

	// In-storage lookup before fetching saves bandwidth on re-runs; the
	// unique constraint behind SaveArticleIfNew remains the authoritative
	// guard, so a failed lookup is not an error.
	exists, err := r.articles.Exists(ctx, item.Source, candidate.URL)
	if err == nil && exists {
		outcome.SkippedDuplicate = 1
		return outcome
	}

	doc, err := r.client.FetchDocument(ctx, candidate.URL)
	if err != nil {
		kind := domain.ErrKindConnection
		var ferr *fetch.Error
		if errors.As(err, &ferr) {
			kind = ferr.DomainKind()
		}
		r.recordError(ctx, jobID, domain.JobError{Scope: item, Kind: kind, Message: err.Error()})
		outcome.Failed = 1
		return outcome
	}

	payload, strategy, err := adapter.Extractor().Extract(doc)
	if err != nil {
		kind := domain.ErrKindNoStructure
		if errors.Is(err, extract.ErrEmptyContent) {
			kind = domain.ErrKindEmptyContent
		}
		r.recordError(ctx, jobID, domain.JobError{
			Scope:   item,
			Kind:    kind,
			Message: fmt.Sprintf("%s: %v", candidate.URL, err),
		})
		outcome.Failed = 1
		return outcome
	}

	title := payload.Title
	if title == "" {
		title = candidate.Title
	}

	article := domain.Article{
		Source:      item.Source,
		Category:    item.Category,
		URL:         candidate.URL,
		Title:       title,
		Content:     payload.Body,
		PublishedAt: payload.PublishedAt,
		ScrapedAt:   time.Now().UTC(),
	}

	result, err := r.articles.SaveArticleIfNew(context.WithoutCancel(ctx), article)
	if err != nil {
		r.recordError(ctx, jobID, domain.JobError{
			Scope:   item,
			Kind:    domain.ErrKindStorage,
			Message: fmt.Sprintf("%s: %v", candidate.URL, err),
		})
		outcome.Failed = 1
		return outcome
	}

	if result == domain.DuplicateSkipped {
		outcome.SkippedDuplicate = 1
		return outcome
	}

	r.logger.Debug("article stored", "url", candidate.URL, "strategy", strategy)
	outcome.Succeeded = 1
	return outcome
}

func (r *Runner) failScopeItem(ctx context.Context, jobID uuid.UUID, item domain.ScopeItem, kind domain.ErrorKind, cause error) domain.Counters {
	r.logger.Warn("scope item failed", "job_id", jobID, "scope", item.String(), "kind", kind, "error", cause)

	r.recordError(ctx, jobID, domain.JobError{Scope: item, Kind: kind, Message: cause.Error()})

	counters := domain.Counters{Attempted: 1, Failed: 1}
	if err := r.jobs.AddJobCounters(context.WithoutCancel(ctx), jobID, counters); err != nil {
		r.logger.Error("progress update failed", "job_id", jobID, "error", err)
	}
	return counters
}

func (r *Runner) recordError(ctx context.Context, jobID uuid.UUID, jobErr domain.JobError) {
	jobErr.At = time.Now().UTC()
	if err := r.jobs.AppendJobError(context.WithoutCancel(ctx), jobID, jobErr); err != nil {
		r.logger.Error("error record write failed", "job_id", jobID, "error", err)
	}
}
