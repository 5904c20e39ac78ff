package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"newsharvest/internal/domain"
	"newsharvest/internal/ports"
)

// Store is the only component touching durable storage. The unique
// constraint on (source, url) is the authoritative duplicate guard across
// concurrent job runs; counter updates are atomic increments.
type Store struct {
	pool   *pgxpool.Pool
	sb     sq.StatementBuilderType
	logger *slog.Logger
}

var _ ports.ArticleStore = (*Store)(nil)
var _ ports.JobStore = (*Store)(nil)

// Connect opens a pgx pool and verifies the connection.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return pool, nil
}

// New wires a pool into the gateway.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{
		pool:   pool,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger: logger,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS articles (
    id BIGSERIAL PRIMARY KEY,
    source TEXT NOT NULL,
    category TEXT NOT NULL,
    url TEXT NOT NULL,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    published_at TIMESTAMPTZ,
    scraped_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (source, url)
);

CREATE TABLE IF NOT EXISTS ingestion_jobs (
    id UUID PRIMARY KEY,
    scope JSONB NOT NULL,
    status TEXT NOT NULL,
    started_at TIMESTAMPTZ,
    finished_at TIMESTAMPTZ,
    attempted INT NOT NULL DEFAULT 0,
    succeeded INT NOT NULL DEFAULT 0,
    skipped_duplicate INT NOT NULL DEFAULT 0,
    failed INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS job_errors (
    id BIGSERIAL PRIMARY KEY,
    job_id UUID NOT NULL REFERENCES ingestion_jobs(id),
    scope_source TEXT NOT NULL DEFAULT '',
    scope_category TEXT NOT NULL DEFAULT '',
    kind TEXT NOT NULL,
    message TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates the pipeline tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	s.logger.Debug("schema ensured")
	return nil
}

// SaveArticleIfNew inserts the article unless its (source, url) key already
// exists. ON CONFLICT DO NOTHING makes the check-then-insert atomic, so a
// duplicate-key race resolves as a skip, never an error.
func (s *Store) SaveArticleIfNew(ctx context.Context, article domain.Article) (domain.SaveResult, error) {
	query, args, err := s.sb.Insert("articles").
		Columns("source", "category", "url", "title", "content", "published_at", "scraped_at").
		Values(article.Source, article.Category, article.URL, article.Title, article.Content, article.PublishedAt, article.ScrapedAt).
		Suffix("ON CONFLICT (source, url) DO NOTHING").
		ToSql()
	if err != nil {
		return domain.DuplicateSkipped, fmt.Errorf("build insert: %w", err)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return domain.DuplicateSkipped, fmt.Errorf("insert article: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.DuplicateSkipped, nil
	}
	return domain.Inserted, nil
}

// Exists reports whether an article with the unique key is already stored.
func (s *Store) Exists(ctx context.Context, source domain.Source, url string) (bool, error) {
	query, args, err := s.sb.Select("1").
		From("articles").
		Where(sq.Eq{"source": source, "url": url}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("query exists: %w", err)
	}
	defer rows.Close()

	return rows.Next(), rows.Err()
}

// QueryArticles returns stored articles matching the filter, newest first.
func (s *Store) QueryArticles(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, error) {
	builder := s.sb.Select("source", "category", "url", "title", "content", "published_at", "scraped_at").
		From("articles").
		OrderBy("scraped_at DESC")

	if len(filter.Sources) > 0 {
		names := make([]string, len(filter.Sources))
		for i, src := range filter.Sources {
			names[i] = string(src)
		}
		builder = builder.Where(sq.Eq{"source": names})
	}
	if len(filter.Categories) > 0 {
		builder = builder.Where(sq.Eq{"category": filter.Categories})
	}
	if filter.From != nil {
		builder = builder.Where(sq.GtOrEq{"scraped_at": *filter.From})
	}
	if filter.To != nil {
		builder = builder.Where(sq.LtOrEq{"scraped_at": *filter.To})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	builder = builder.Limit(uint64(limit))

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		var article domain.Article
		if err := rows.Scan(&article.Source, &article.Category, &article.URL, &article.Title, &article.Content, &article.PublishedAt, &article.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, article)
	}

	return articles, rows.Err()
}

type scopeRecord struct {
	Source   string `json:"source"`
	Category string `json:"category"`
}

// CreateJob records a new pending job and returns its identifier.
func (s *Store) CreateJob(ctx context.Context, scope []domain.ScopeItem) (uuid.UUID, error) {
	records := make([]scopeRecord, len(scope))
	for i, item := range scope {
		records[i] = scopeRecord{Source: string(item.Source), Category: item.Category}
	}

	raw, err := json.Marshal(records)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal scope: %w", err)
	}

	id := uuid.New()
	query, args, err := s.sb.Insert("ingestion_jobs").
		Columns("id", "scope", "status").
		Values(id, raw, domain.JobPending).
		ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("build job insert: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return uuid.Nil, fmt.Errorf("create job: %w", err)
	}

	return id, nil
}

// MarkJobRunning moves a pending job to running and stamps started_at.
func (s *Store) MarkJobRunning(ctx context.Context, id uuid.UUID) error {
	query, args, err := s.sb.Update("ingestion_jobs").
		Set("status", domain.JobRunning).
		Set("started_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "status": domain.JobPending}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build job update: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	return nil
}

// AddJobCounters folds a delta into the job's counters. Increments are
// applied in SQL so concurrent workers never lose updates.
func (s *Store) AddJobCounters(ctx context.Context, id uuid.UUID, delta domain.Counters) error {
	query, args, err := s.sb.Update("ingestion_jobs").
		Set("attempted", sq.Expr("attempted + ?", delta.Attempted)).
		Set("succeeded", sq.Expr("succeeded + ?", delta.Succeeded)).
		Set("skipped_duplicate", sq.Expr("skipped_duplicate + ?", delta.SkippedDuplicate)).
		Set("failed", sq.Expr("failed + ?", delta.Failed)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build counter update: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("add job counters: %w", err)
	}
	return nil
}

// AppendJobError records one failure in the job's ordered error list.
func (s *Store) AppendJobError(ctx context.Context, id uuid.UUID, jobErr domain.JobError) error {
	query, args, err := s.sb.Insert("job_errors").
		Columns("job_id", "scope_source", "scope_category", "kind", "message").
		Values(id, jobErr.Scope.Source, jobErr.Scope.Category, jobErr.Kind, jobErr.Message).
		ToSql()
	if err != nil {
		return fmt.Errorf("build error insert: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("append job error: %w", err)
	}
	return nil
}

// FinalizeJob moves the job into a terminal status. finished_at is set
// once; a job that already finished is left untouched.
func (s *Store) FinalizeJob(ctx context.Context, id uuid.UUID, status domain.JobStatus) error {
	if !status.Terminal() {
		return fmt.Errorf("finalize job: %s is not a terminal status", status)
	}

	query, args, err := s.sb.Update("ingestion_jobs").
		Set("status", status).
		Set("finished_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		Where("finished_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build finalize: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("finalize job: %w", err)
	}
	return nil
}

// GetJob loads a job together with its ordered error list.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*domain.IngestionJob, error) {
	query, args, err := s.jobSelect().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build job select: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query job: %w", err)
		}
		return nil, fmt.Errorf("job %s not found", id)
	}

	job, err := scanJob(rows)
	if err != nil {
		return nil, err
	}
	rows.Close()

	if err := s.loadJobErrors(ctx, job); err != nil {
		return nil, err
	}

	return job, nil
}

// RecentJobs returns the last N job summaries, newest first. Error lists
// are not loaded; the summary carries counters and status only.
func (s *Store) RecentJobs(ctx context.Context, limit int) ([]domain.IngestionJob, error) {
	if limit <= 0 {
		limit = 20
	}

	query, args, err := s.jobSelect().
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent jobs: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.IngestionJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	return jobs, rows.Err()
}

func (s *Store) jobSelect() sq.SelectBuilder {
	return s.sb.Select(
		"id", "scope", "status", "started_at", "finished_at",
		"attempted", "succeeded", "skipped_duplicate", "failed", "created_at",
	).From("ingestion_jobs")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.IngestionJob, error) {
	var (
		job      domain.IngestionJob
		rawScope []byte
	)

	err := row.Scan(
		&job.ID, &rawScope, &job.Status, &job.StartedAt, &job.FinishedAt,
		&job.Counters.Attempted, &job.Counters.Succeeded,
		&job.Counters.SkippedDuplicate, &job.Counters.Failed, &job.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	var records []scopeRecord
	if err := json.Unmarshal(rawScope, &records); err != nil {
		return nil, fmt.Errorf("unmarshal scope: %w", err)
	}
	for _, record := range records {
		job.Scope = append(job.Scope, domain.ScopeItem{
			Source:   domain.Source(record.Source),
			Category: record.Category,
		})
	}

	return &job, nil
}

func (s *Store) loadJobErrors(ctx context.Context, job *domain.IngestionJob) error {
	query, args, err := s.sb.Select("scope_source", "scope_category", "kind", "message", "created_at").
		From("job_errors").
		Where(sq.Eq{"job_id": job.ID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return fmt.Errorf("build errors select: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query job errors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var jobErr domain.JobError
		if err := rows.Scan(&jobErr.Scope.Source, &jobErr.Scope.Category, &jobErr.Kind, &jobErr.Message, &jobErr.At); err != nil {
			return fmt.Errorf("scan job error: %w", err)
		}
		job.Errors = append(job.Errors, jobErr)
	}

	return rows.Err()
}
