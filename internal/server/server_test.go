package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsharvest/internal/config"
	"newsharvest/internal/domain"
)

type fakeStore struct {
	articles   []domain.Article
	jobs       []domain.IngestionJob
	lastFilter domain.ArticleFilter
}

func (f *fakeStore) SaveArticleIfNew(context.Context, domain.Article) (domain.SaveResult, error) {
	return domain.Inserted, nil
}

func (f *fakeStore) Exists(context.Context, domain.Source, string) (bool, error) {
	return false, nil
}

func (f *fakeStore) QueryArticles(_ context.Context, filter domain.ArticleFilter) ([]domain.Article, error) {
	f.lastFilter = filter
	return f.articles, nil
}

func (f *fakeStore) CreateJob(context.Context, []domain.ScopeItem) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (f *fakeStore) MarkJobRunning(context.Context, uuid.UUID) error {
	return nil
}

func (f *fakeStore) AddJobCounters(context.Context, uuid.UUID, domain.Counters) error {
	return nil
}

func (f *fakeStore) AppendJobError(context.Context, uuid.UUID, domain.JobError) error {
	return nil
}

func (f *fakeStore) FinalizeJob(context.Context, uuid.UUID, domain.JobStatus) error {
	return nil
}

func (f *fakeStore) GetJob(context.Context, uuid.UUID) (*domain.IngestionJob, error) {
	return &f.jobs[0], nil
}

func (f *fakeStore) RecentJobs(_ context.Context, limit int) ([]domain.IngestionJob, error) {
	if limit < len(f.jobs) {
		return f.jobs[:limit], nil
	}
	return f.jobs, nil
}

func newTestServer(store *fakeStore) *Server {
	tokens := []config.AccessToken{
		{Token: "monitor-token", CanMonitor: true},
		{Token: "download-token", CanMonitor: true, CanDownload: true},
	}
	return New(store, store, tokens, slog.New(slog.DiscardHandler))
}

func seededStore() *fakeStore {
	published := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	started := time.Date(2026, 8, 2, 7, 0, 0, 0, time.UTC)
	finished := started.Add(3 * time.Minute)

	return &fakeStore{
		articles: []domain.Article{
			{
				Source:      domain.SourceMoneyControl,
				Category:    "markets",
				URL:         "https://www.moneycontrol.com/news/markets/a.html",
				Title:       "Sensex gains",
				Content:     "body text",
				PublishedAt: &published,
				ScrapedAt:   started,
			},
		},
		jobs: []domain.IngestionJob{
			{
				ID:         uuid.New(),
				Status:     domain.JobSucceeded,
				Counters:   domain.Counters{Attempted: 5, Succeeded: 5},
				StartedAt:  &started,
				FinishedAt: &finished,
				CreatedAt:  started,
			},
		},
	}
}

func doRequest(t *testing.T, srv *Server, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("X-API-Token", token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestServer(seededStore()), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestJobsSummaries(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newTestServer(seededStore()), http.MethodGet, "/jobs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var summaries []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "succeeded", summaries[0]["status"])
}

func TestArticlesRequiresMonitorPermission(t *testing.T) {
	t.Parallel()

	srv := newTestServer(seededStore())

	assert.Equal(t, http.StatusUnauthorized, doRequest(t, srv, http.MethodGet, "/articles", "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, srv, http.MethodGet, "/articles", "bogus").Code)
	assert.Equal(t, http.StatusOK, doRequest(t, srv, http.MethodGet, "/articles", "monitor-token").Code)
}

func TestArticlesFilterParsing(t *testing.T) {
	t.Parallel()

	store := seededStore()
	srv := newTestServer(store)

	rec := doRequest(t, srv, http.MethodGet, "/articles?source=moneycontrol,livemint&category=markets&from=2026-08-01&limit=10", "monitor-token")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []domain.Source{domain.SourceMoneyControl, domain.SourceLiveMint}, store.lastFilter.Sources)
	assert.Equal(t, []string{"markets"}, store.lastFilter.Categories)
	require.NotNil(t, store.lastFilter.From)
	assert.Equal(t, 10, store.lastFilter.Limit)

	rec = doRequest(t, srv, http.MethodGet, "/articles?source=reuters", "monitor-token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportRequiresDownloadPermission(t *testing.T) {
	t.Parallel()

	srv := newTestServer(seededStore())

	assert.Equal(t, http.StatusForbidden, doRequest(t, srv, http.MethodGet, "/articles/export.csv", "monitor-token").Code)

	rec := doRequest(t, srv, http.MethodGet, "/articles/export.csv", "download-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Body.String(), "Sensex gains")
	assert.Contains(t, rec.Body.String(), "title,url,category,content,source,scraped_at,published_at")
}

func TestBearerTokenAccepted(t *testing.T) {
	t.Parallel()

	srv := newTestServer(seededStore())

	req := httptest.NewRequest(http.MethodGet, "/articles", nil)
	req.Header.Set("Authorization", "Bearer monitor-token")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
