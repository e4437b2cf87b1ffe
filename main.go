package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/scipunch/technews/agent"
	"github.com/scipunch/technews/aggregator"
	"github.com/scipunch/technews/config"
	"github.com/scipunch/technews/fetcher"
	"github.com/scipunch/technews/fetcher/telegram"
	"github.com/scipunch/technews/fetcher/types"
	"github.com/scipunch/technews/filter"
	"github.com/scipunch/technews/linkedin"
	"github.com/scipunch/technews/metrics"
	"github.com/scipunch/technews/pipeline"
	"github.com/scipunch/technews/render"
	"github.com/scipunch/technews/seen"
	"github.com/scipunch/technews/seen/postgres"
	"github.com/scipunch/technews/summarize"
)

func main() {
	os.Exit(start(os.Args[1:]))
}

// start wires the process and returns its exit status; zap is synced before returning
func start(args []string) int {
	zapLogger := zap.NewNop()
	if os.Getenv("DEBUG") != "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
		if l, err := zap.NewDevelopment(); err == nil {
			zapLogger = l
		}
	}
	defer zapLogger.Sync()

	var cfgPath string
	var dryRun, showStats, telegramLogin bool
	flags := flag.NewFlagSet("technews", flag.ContinueOnError)
	flags.StringVar(&cfgPath, "config", config.DefaultPath(), "path to a TOML config")
	flags.BoolVar(&dryRun, "dry-run", true, "render posters without publishing (overrides config)")
	flags.BoolVar(&showStats, "stats", false, "print seen store statistics and exit")
	flags.BoolVar(&telegramLogin, "telegram-login", false, "log into Telegram interactively and store the session")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	// Read config and create if default is missing
	conf, err := config.Read(cfgPath)
	if errors.Is(err, os.ErrNotExist) && cfgPath == config.DefaultPath() {
		if err := config.Write(cfgPath, conf); err != nil {
			log.Printf("failed to write default config with %s", err)
			return 1
		}
		if err := config.ApplyEnv(&conf); err != nil {
			log.Printf("failed to apply environment with %s", err)
			return 1
		}
	} else if err != nil {
		log.Printf("failed to read config with %s", err)
		return 1
	}
	flags.Visit(func(f *flag.Flag) {
		if f.Name == "dry-run" {
			conf.DryRun = dryRun
		}
	})

	credPath := config.DefaultCredentialsPath()
	creds, err := config.LoadCredentials(credPath)
	if err != nil {
		log.Printf("failed to read credentials: %s", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if telegramLogin {
		tg, err := config.LoadOrPromptTelegramCredentials(credPath)
		if err != nil {
			log.Printf("failed to get telegram credentials: %s", err)
			return 1
		}
		err = telegram.Login(ctx, telegram.Session{Dir: conf.DataDirectory, Credentials: tg, Logger: zapLogger})
		if err != nil {
			log.Printf("telegram login failed: %s", err)
			return 1
		}
		return 0
	}

	if err := config.ValidateLive(conf, creds); err != nil {
		log.Printf("configuration error: %s", err)
		return 1
	}

	store, closeStore, err := openSeenStore(ctx, conf)
	if err != nil {
		log.Printf("failed to open seen store: %s", err)
		return 1
	}

	if showStats {
		err := printStats(ctx, store)
		closeStore()
		if err != nil {
			log.Printf("failed to get seen store stats: %s", err)
			return 1
		}
		return 0
	}

	return run(ctx, conf, creds, store, closeStore, zapLogger)
}

// run executes one pipeline run and returns the process exit status
func run(ctx context.Context, conf config.Config, creds config.Credentials, store seen.Store, closeStore func(), zapLogger *zap.Logger) int {
	defer closeStore()

	filters, err := filter.NewPipeline(conf.Filters, conf.News.FilterNames)
	if err != nil {
		slog.Error("failed to initialize filters", "with", err)
		return 1
	}

	m := metrics.New()
	sources := fetcher.Build(conf, creds, zapLogger)
	slog.Info("initialized sources", "count", len(sources), "dry_run", conf.DryRun)

	agg := aggregator.New(sources, store, aggregator.Options{
		Lookback: time.Duration(conf.News.LookbackHours) * time.Hour,
		MaxItems: func(s types.Source) int { return fetcher.MaxItems(conf.News, s) },
		Filter:   filters,
		Observer: m,
	})

	summarizerOpts := []summarize.Option{}
	if conf.SummaryAgent {
		if !creds.Gemini.IsValid() {
			slog.Warn("summary agent enabled but Gemini credentials are missing, using extractive bullets")
		} else {
			agents, err := agent.InitAgents(ctx, []string{agent.Summary}, creds.Gemini)
			if err != nil {
				slog.Error("failed to initialize agents", "with", err)
				return 1
			}
			summarizerOpts = append(summarizerOpts, summarize.WithAgent(agents[agent.Summary]))
		}
	}

	renderer := render.New(render.BrandingFromConfig(conf.Poster))
	defer func() {
		if err := renderer.Close(); err != nil {
			slog.Warn("failed to stop renderer", "with", err)
		}
	}()

	var publisher pipeline.Publisher
	if !conf.DryRun {
		publisher = newLinkedIn(conf, creds.LinkedIn, zapLogger)
	}

	driver := pipeline.New(conf, agg, summarize.New(summarizerOpts...), renderer, publisher, pipeline.WithObserver(m))
	report, err := driver.RunOnce(ctx)

	if conf.MetricsTextfile != "" {
		if err := m.WriteTextfile(conf.MetricsTextfile); err != nil {
			slog.Warn("failed to export metrics", "with", err)
		}
	}

	if err != nil {
		slog.Error("run aborted", "run_id", report.RunID, "with", err)
		return 1
	}
	for _, res := range report.Results {
		if res.Err != nil {
			continue
		}
		if report.DryRun {
			fmt.Printf("DRY RUN would post: %s -> %s\n", res.Item.Title, res.ArtifactPath)
		} else {
			fmt.Printf("Posted: %s -> %s\n", res.Item.Title, res.PostID)
		}
	}
	if !report.DryRun && report.Failed() > 0 {
		slog.Error("some posts failed", "run_id", report.RunID, "failed", report.Failed())
		return 1
	}
	return 0
}

func openSeenStore(ctx context.Context, conf config.Config) (seen.Store, func(), error) {
	switch conf.SeenStore {
	case config.SeenPostgres:
		if conf.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("%w: seen_store is postgres but postgres_dsn is empty", config.ErrConfiguration)
		}
		s, err := postgres.New(ctx, conf.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.SeenMemory:
		slog.Warn("using in-memory seen store, items may be published again on the next run")
		return seen.NewMemory(), func() {}, nil
	case config.SeenSQLite:
		s, err := seen.Open(conf.SeenDBPath())
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				slog.Warn("failed to close seen store", "with", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown seen_store '%s'", config.ErrConfiguration, conf.SeenStore)
	}
}

func printStats(ctx context.Context, store seen.Store) error {
	reporter, ok := store.(seen.StatsReporter)
	if !ok {
		return fmt.Errorf("seen store does not report statistics")
	}
	stats, err := reporter.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Seen entries: %d\n", stats.Entries)
	if !stats.OldestEntry.IsZero() {
		fmt.Printf("Oldest entry: %s\n", stats.OldestEntry.Format(time.RFC3339))
	}
	return nil
}

func newLinkedIn(conf config.Config, creds config.LinkedInCredentials, zapLogger *zap.Logger) *linkedin.Client {
	li := conf.LinkedIn
	return linkedin.New(linkedin.Config{
		APIBase:           li.APIBase,
		OAuthURL:          li.OAuthURL,
		APIVersion:        li.APIVersion,
		ClientID:          creds.ClientID,
		ClientSecret:      creds.ClientSecret,
		AuthorURN:         creds.AuthorURN,
		AccessToken:       creds.AccessToken,
		RefreshToken:      creds.RefreshToken,
		Visibility:        linkedin.Visibility(conf.Caption.Visibility),
		MaxAttempts:       li.MaxRetries,
		Timeout:           time.Duration(li.TimeoutSeconds) * time.Second,
		UploadTimeout:     time.Duration(li.UploadTimeoutSeconds) * time.Second,
		RequestsPerSecond: li.RequestsPerSecond,
	},
		linkedin.WithLogger(zapLogger.Named("linkedin")),
		linkedin.WithTokenStore(linkedin.NewFileTokenStore(conf.TokenCachePath())),
	)
}
