package ports

import (
	"context"

	"github.com/google/uuid"

	"newsharvest/internal/domain"
)

// ArticleStore persists normalized articles. SaveArticleIfNew must be
// atomic at the (source, url) unique-key level so concurrent job runs
// never produce duplicate rows.
type ArticleStore interface {
	SaveArticleIfNew(ctx context.Context, article domain.Article) (domain.SaveResult, error)
	Exists(ctx context.Context, source domain.Source, url string) (bool, error)
	QueryArticles(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, error)
}

// JobStore records ingestion job lifecycle and progress. Counter updates
// are increment-by-delta and safe from multiple concurrent workers on the
// same job.
type JobStore interface {
	CreateJob(ctx context.Context, scope []domain.ScopeItem) (uuid.UUID, error)
	MarkJobRunning(ctx context.Context, id uuid.UUID) error
	AddJobCounters(ctx context.Context, id uuid.UUID, delta domain.Counters) error
	AppendJobError(ctx context.Context, id uuid.UUID, jobErr domain.JobError) error
	FinalizeJob(ctx context.Context, id uuid.UUID, status domain.JobStatus) error
	GetJob(ctx context.Context, id uuid.UUID) (*domain.IngestionJob, error)
	RecentJobs(ctx context.Context, limit int) ([]domain.IngestionJob, error)
}

// Notifier publishes a human-readable run summary to an external channel.
type Notifier interface {
	PublishSummary(ctx context.Context, job *domain.IngestionJob) error
}
