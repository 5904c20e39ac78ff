package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"newsharvest/internal/config"
	"newsharvest/internal/domain"
	"newsharvest/internal/export"
	"newsharvest/internal/ports"
)

// Server exposes the read-only operational surface: health, last job
// summaries, and the permissioned article query/export endpoints.
type Server struct {
	echo        *echo.Echo
	articles    ports.ArticleStore
	jobs        ports.JobStore
	permissions map[string]permission
	logger      *slog.Logger
}

type permission struct {
	canMonitor  bool
	canDownload bool
}

// New assembles routes and middleware.
func New(articles ports.ArticleStore, jobs ports.JobStore, tokens []config.AccessToken, logger *slog.Logger) *Server {
	permissions := make(map[string]permission, len(tokens))
	for _, token := range tokens {
		permissions[token.Token] = permission{
			canMonitor:  token.CanMonitor,
			canDownload: token.CanDownload,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:        e,
		articles:    articles,
		jobs:        jobs,
		permissions: permissions,
		logger:      logger,
	}

	e.Use(s.requestLogger)

	e.GET("/healthz", s.handleHealth)
	e.GET("/jobs", s.handleJobs)
	e.GET("/articles", s.handleArticles)
	e.GET("/articles/export.csv", s.handleExport)

	return s
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.logger.Info("http request",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", c.Response().Status,
			"duration_ms", time.Since(start).Milliseconds())
		return err
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type jobSummary struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	Counters   domain.Counters `json:"counters"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (s *Server) handleJobs(c echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	jobs, err := s.jobs.RecentJobs(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error("recent jobs lookup failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "job lookup failed")
	}

	summaries := make([]jobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, jobSummary{
			ID:         job.ID.String(),
			Status:     string(job.Status),
			Counters:   job.Counters,
			StartedAt:  job.StartedAt,
			FinishedAt: job.FinishedAt,
			CreatedAt:  job.CreatedAt,
		})
	}

	return c.JSON(http.StatusOK, summaries)
}

type articleView struct {
	Source      string     `json:"source"`
	Category    string     `json:"category"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ScrapedAt   time.Time  `json:"scraped_at"`
}

func (s *Server) handleArticles(c echo.Context) error {
	if err := s.authorize(c, func(p permission) bool { return p.canMonitor }); err != nil {
		return err
	}

	filter, err := filterFromQuery(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	articles, err := s.articles.QueryArticles(c.Request().Context(), filter)
	if err != nil {
		s.logger.Error("article query failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "article query failed")
	}

	views := make([]articleView, 0, len(articles))
	for _, article := range articles {
		views = append(views, articleView{
			Source:      string(article.Source),
			Category:    article.Category,
			URL:         article.URL,
			Title:       article.Title,
			Content:     article.Content,
			PublishedAt: article.PublishedAt,
			ScrapedAt:   article.ScrapedAt,
		})
	}

	return c.JSON(http.StatusOK, views)
}

func (s *Server) handleExport(c echo.Context) error {
	if err := s.authorize(c, func(p permission) bool { return p.canDownload }); err != nil {
		return err
	}

	filter, err := filterFromQuery(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	articles, err := s.articles.QueryArticles(c.Request().Context(), filter)
	if err != nil {
		s.logger.Error("article query failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "article query failed")
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="articles.csv"`)
	c.Response().WriteHeader(http.StatusOK)

	return export.WriteCSV(c.Response(), articles)
}

func (s *Server) authorize(c echo.Context, allowed func(permission) bool) error {
	token := c.Request().Header.Get("X-API-Token")
	if token == "" {
		auth := c.Request().Header.Get(echo.HeaderAuthorization)
		token = strings.TrimPrefix(auth, "Bearer ")
	}

	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing API token")
	}

	perm, ok := s.permissions[token]
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown API token")
	}
	if !allowed(perm) {
		return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
	}

	return nil
}

func filterFromQuery(c echo.Context) (domain.ArticleFilter, error) {
	var filter domain.ArticleFilter

	if raw := c.QueryParam("source"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			source := domain.Source(strings.TrimSpace(name))
			if !source.Valid() {
				return filter, fmt.Errorf("unknown source %q", name)
			}
			filter.Sources = append(filter.Sources, source)
		}
	}

	if raw := c.QueryParam("category"); raw != "" {
		for _, category := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(category); trimmed != "" {
				filter.Categories = append(filter.Categories, trimmed)
			}
		}
	}

	if raw := c.QueryParam("from"); raw != "" {
		from, err := parseQueryTime(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid from: %v", err)
		}
		filter.From = &from
	}

	if raw := c.QueryParam("to"); raw != "" {
		to, err := parseQueryTime(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid to: %v", err)
		}
		filter.To = &to
	}

	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return filter, fmt.Errorf("limit must be a positive integer")
		}
		filter.Limit = limit
	}

	return filter, nil
}

func parseQueryTime(raw string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, nil
	}
	return time.Parse("2006-01-02", raw)
}
