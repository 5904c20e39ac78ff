package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"newsharvest/internal/app"
	"newsharvest/internal/config"
	"newsharvest/internal/domain"
	"newsharvest/internal/export"
	"newsharvest/internal/logging"
)

// Exit codes for the scrape command so schedulers can alert on partial
// versus total failure.
const (
	exitFailed          = 1
	exitPartiallyFailed = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional; variables may come from the environment directly.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "newsharvest",
		Usage: "financial news ingestion pipeline",
		Commands: []*cli.Command{
			{
				Name:  "scrape",
				Usage: "run one ingestion job and exit with its final status",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "sources",
						Usage: "sources to scrape, or \"all\"",
					},
					&cli.StringSliceFlag{
						Name:  "categories",
						Usage: "categories to scrape, or \"all\"",
					},
					&cli.IntFlag{
						Name:  "max-pages",
						Usage: "listing pages to crawl per category (0 = configured default)",
					},
					&cli.IntFlag{
						Name:  "timeout",
						Usage: "per-request timeout in seconds (0 = configured default)",
					},
				},
				Action: scrapeAction,
			},
			{
				Name:   "serve",
				Usage:  "run the status and query/export HTTP surface",
				Action: serveAction,
			},
			{
				Name:   "schedule",
				Usage:  "run the full scope once per day at the configured hour",
				Action: scheduleAction,
			},
			{
				Name:  "export",
				Usage: "write stored articles to a CSV file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "out",
						Usage:    "destination file path",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "sources",
						Usage: "sources to include, or \"all\"",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "maximum rows to export",
						Value: 1000,
					},
				},
				Action: exportAction,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		exitCode := 1
		if coder, ok := err.(cli.ExitCoder); ok {
			exitCode = coder.ExitCode()
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode)
	}
}

func newApplication(ctx context.Context, mutate func(*config.Config)) (*app.Application, config.Config, error) {
	cfg := config.Load()
	if mutate != nil {
		mutate(&cfg)
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, cfg, err
	}
	return application, cfg, nil
}

func scrapeAction(ctx context.Context, cmd *cli.Command) error {
	application, _, err := newApplication(ctx, func(cfg *config.Config) {
		if secs := int(cmd.Int("timeout")); secs > 0 {
			cfg.Scraper.TimeoutSeconds = secs
		}
	})
	if err != nil {
		return err
	}
	defer application.Close()

	job, err := application.Scrape(ctx,
		cmd.StringSlice("sources"),
		cmd.StringSlice("categories"),
		int(cmd.Int("max-pages")))
	if err != nil {
		return err
	}

	fmt.Printf("job %s finished: %s (attempted %d, new %d, duplicates %d, failed %d)\n",
		job.ID, job.Status,
		job.Counters.Attempted, job.Counters.Succeeded,
		job.Counters.SkippedDuplicate, job.Counters.Failed)

	switch job.Status {
	case domain.JobPartiallyFailed:
		return cli.Exit("", exitPartiallyFailed)
	case domain.JobFailed:
		return cli.Exit("", exitFailed)
	}
	return nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	application, _, err := newApplication(ctx, nil)
	if err != nil {
		return err
	}
	defer application.Close()

	return application.Serve(ctx)
}

func scheduleAction(ctx context.Context, cmd *cli.Command) error {
	application, _, err := newApplication(ctx, nil)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.Schedule(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func exportAction(ctx context.Context, cmd *cli.Command) error {
	application, _, err := newApplication(ctx, nil)
	if err != nil {
		return err
	}
	defer application.Close()

	filter := domain.ArticleFilter{Limit: int(cmd.Int("limit"))}
	for _, name := range cmd.StringSlice("sources") {
		if name == "all" {
			filter.Sources = nil
			break
		}
		source := domain.Source(name)
		if !source.Valid() {
			return fmt.Errorf("unknown source %q", name)
		}
		filter.Sources = append(filter.Sources, source)
	}

	articles, err := application.QueryArticles(ctx, filter)
	if err != nil {
		return err
	}

	out, err := os.Create(cmd.String("out"))
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer out.Close()

	if err := export.WriteCSV(out, articles); err != nil {
		return err
	}

	fmt.Printf("exported %d articles to %s\n", len(articles), cmd.String("out"))
	return nil
}
