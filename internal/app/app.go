// Package app builds the scraper from configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/api"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/archive/documentcloud"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/clock/system"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/config"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/export"
	collyfetcher "github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/fetcher/colly"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/id/uuid"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/ledger"
	firestoreledger "github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/ledger/firestore"
	gcsledger "github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/ledger/gcs"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/ledger/local"
	postgresledger "github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/ledger/postgres"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/mail"
	notifypubsub "github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/notify/pubsub"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/pipeline"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/report"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/scraper"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/traverser"
)

// ErrFaults is returned by Run when at least one document failed loudly.
var ErrFaults = errors.New("run finished with document faults")

// Overrides replaces collaborators that would otherwise be built from the
// configuration. Nil fields are built normally.
type Overrides struct {
	Fetcher   scraper.Fetcher
	Archive   scraper.Archive
	Mailer    scraper.Mailer
	Publisher scraper.Publisher
	Remote    ledger.Store
	Clock     scraper.Clock
}

// App holds the wired components of one run.
type App struct {
	cfg       config.Config
	runID     string
	logger    *zap.Logger
	state     *scraper.RunState
	ledger    *ledger.Ledger
	pipeline  *pipeline.Pipeline
	traverser *traverser.Traverser
	status    *api.Server
	ready     atomic.Bool
	closers   []func() error
}

// New builds every component of the run. Call Close when done.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, ov Overrides) (a *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID, err := uuid.New("").Resolve(cfg.Run.RunID)
	if err != nil {
		return nil, fmt.Errorf("resolve run id: %w", err)
	}
	a = &App{
		cfg:    cfg,
		runID:  runID,
		logger: logger.With(zap.String("run_id", runID), zap.Int("year", cfg.Run.TargetYear)),
		state:  scraper.NewRunState(cfg.Run.UploadLimit),
		ledger: ledger.New(),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	clock := ov.Clock
	if clock == nil {
		clock = system.New()
	}

	localStore, err := local.New(cfg.Ledger.LocalPath)
	if err != nil {
		return nil, err
	}
	remote := ov.Remote
	if remote == nil && cfg.Remote() && !cfg.Run.DryRun {
		if remote, err = a.remoteStore(ctx); err != nil {
			return nil, err
		}
	}

	archive := ov.Archive
	if archive == nil && !cfg.Run.DryRun {
		if archive, err = documentcloud.New(documentcloud.Config{
			BaseURL:  cfg.Archive.BaseURL,
			AuthURL:  cfg.Archive.AuthURL,
			Username: cfg.Archive.Username,
			Password: cfg.Archive.Password,
			Timeout:  cfg.Archive.Timeout,
		}, nil); err != nil {
			return nil, err
		}
	}

	publisher := ov.Publisher
	if publisher == nil && cfg.Notify.Topic != "" && !cfg.Run.DryRun {
		p, err := notifypubsub.Connect(ctx, cfg.Notify.ProjectID, cfg.Notify.Topic, map[string]string{
			"scraper": cfg.Site.ScraperName,
			"run_id":  runID,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, p.Close)
		publisher = p
	}

	mailer := ov.Mailer
	if mailer == nil {
		if mailer, err = a.mailer(); err != nil {
			return nil, err
		}
	}

	uploader, err := pipeline.NewUploader(pipeline.UploaderConfig{
		DryRun:            cfg.Run.DryRun,
		RunID:             cfg.Run.RunID,
		TargetProject:     cfg.Run.TargetProject,
		Language:          cfg.Archive.Language,
		Access:            cfg.Archive.Access,
		KeepLocalSnapshot: cfg.Ledger.KeepLocalSnapshot,
	}, pipeline.UploaderDeps{
		Archive:   archive,
		Ledger:    a.ledger,
		Remote:    remote,
		Local:     localStore,
		Publisher: publisher,
		Clock:     clock,
		State:     a.state,
		Logger:    a.logger,
	})
	if err != nil {
		return nil, err
	}

	stages := []pipeline.Stage{
		pipeline.DateParse{},
		pipeline.Categorize{},
		pipeline.FilenameDerive{},
		pipeline.Beautify{},
		pipeline.NewFiletypeAdmission(pipeline.DefaultExtensions),
		pipeline.TagDepartments{},
		pipeline.ProjectID{},
		pipeline.NewUploadGate(a.state, a.logger),
		uploader,
		pipeline.NewReporter(report.Meta{
			ScraperName: cfg.Site.ScraperName,
			Year:        cfg.Run.TargetYear,
			RunID:       runID,
			RunName:     cfg.Run.RunName,
		}, cfg.Run.DryRun, mailer, a.logger),
	}
	if cfg.Export.CSVPath != "" {
		csv, err := export.NewCSV(cfg.Export.CSVPath)
		if err != nil {
			return nil, err
		}
		stages = append(stages, csv)
	}
	a.pipeline = pipeline.New(a.state, a.logger, stages...)

	fetcher := ov.Fetcher
	if fetcher == nil {
		if fetcher, err = collyfetcher.New(collyfetcher.Config{
			UserAgent:     cfg.Crawler.UserAgent,
			Timeout:       cfg.Crawler.RequestTimeout,
			Parallelism:   cfg.Crawler.Concurrency,
			DownloadDelay: cfg.Crawler.DownloadDelay,
			MaxRetries:    cfg.Crawler.MaxRetries,
			RetryBase:     cfg.Crawler.RetryBase,
			Throttle: collyfetcher.ThrottleConfig{
				Enabled:           cfg.Crawler.AutoThrottle.Enabled,
				StartDelay:        cfg.Crawler.AutoThrottle.StartDelay,
				MaxDelay:          cfg.Crawler.AutoThrottle.MaxDelay,
				TargetConcurrency: cfg.Crawler.AutoThrottle.TargetConcurrency,
			},
		}, a.logger); err != nil {
			return nil, err
		}
	}

	a.traverser, err = traverser.New(traverser.Config{
		StartURL:      cfg.Site.StartURL,
		TargetYear:    cfg.Run.TargetYear,
		Concurrency:   cfg.Crawler.Concurrency,
		Authority:     cfg.Site.Authority,
		CategoryLocal: cfg.Site.CategoryLocal,
		ScraperName:   cfg.Site.ScraperName,
		Source:        cfg.Site.Source,
	}, fetcher, a.ledger, a.state, a.pipeline, a.logger)
	if err != nil {
		return nil, err
	}

	if cfg.Metrics.Port > 0 {
		a.status = api.NewServer(a.state, api.RunInfo{
			RunID:       runID,
			RunName:     cfg.Run.RunName,
			Year:        cfg.Run.TargetYear,
			DryRun:      cfg.Run.DryRun,
			UploadLimit: cfg.Run.UploadLimit,
		}, clock, a.logger, api.WithReadiness(a.ready.Load))
	}
	return a, nil
}

func (a *App) remoteStore(ctx context.Context) (ledger.Store, error) {
	switch a.cfg.Ledger.Backend {
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return gcsledger.New(client, gcsledger.Config{Bucket: a.cfg.Ledger.GCS.Bucket, Object: a.cfg.Ledger.GCS.Object})
	case config.BackendFirestore:
		client, err := firestoreledger.NewClient(ctx, a.cfg.Ledger.Firestore.ProjectID)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return firestoreledger.New(client, a.cfg.Ledger.Firestore.Collection)
	case config.BackendPostgres:
		store, err := postgresledger.New(ctx, postgresledger.Config{
			DSN:      a.cfg.Ledger.Postgres.DSN,
			Table:    a.cfg.Ledger.Postgres.Table,
			MaxConns: a.cfg.Ledger.Postgres.MaxConns,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		return store, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", a.cfg.Ledger.Backend)
	}
}

func (a *App) mailer() (scraper.Mailer, error) {
	mc := mail.Config{
		Host:     a.cfg.Mail.SMTPHost,
		Port:     a.cfg.Mail.SMTPPort,
		Username: a.cfg.Mail.Username,
		Password: a.cfg.Mail.Password,
		From:     a.cfg.Mail.From,
		To:       a.cfg.Mail.To,
	}
	if !mc.Enabled() {
		return mail.NewLog(a.logger), nil
	}
	return mail.NewSMTP(mc)
}

// RunID returns the identifier of this run.
func (a *App) RunID() string { return a.runID }

// Stats returns the current run counters.
func (a *App) Stats() scraper.Stats { return a.state.Stats() }

// Run loads the ledger, walks the site and flushes the pipeline. The status
// server, when enabled, is served for the duration of the walk.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("run starting",
		zap.Bool("dry_run", a.cfg.Run.DryRun),
		zap.Int("upload_limit", a.cfg.Run.UploadLimit),
		zap.String("ledger", a.cfg.Ledger.Backend),
	)
	if err := a.pipeline.Open(ctx); err != nil {
		return fmt.Errorf("open pipeline: %w", err)
	}
	a.ready.Store(true)

	walkCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(walkCtx)
	if a.status != nil {
		g.Go(func() error {
			return a.status.Serve(gctx, a.cfg.Metrics.Port)
		})
	}
	g.Go(func() error {
		defer stop()
		return a.traverser.Run(gctx)
	})
	walkErr := g.Wait()

	// The ledger must be persisted even when the walk was interrupted.
	closeErr := a.pipeline.Close(context.WithoutCancel(ctx))

	stats := a.state.Stats()
	a.logger.Info("run finished",
		zap.Int64("discovered", stats.Discovered),
		zap.Int64("uploaded", stats.Uploaded),
		zap.Int64("dropped", stats.Dropped),
		zap.Int64("faults", stats.Faults),
		zap.Bool("limit_reached", stats.LimitReached),
		zap.Int("documents", a.ledger.Len()),
	)

	var errs []error
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	if closeErr != nil {
		errs = append(errs, closeErr)
	}
	if stats.Faults > 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrFaults, stats.Faults))
	}
	return errors.Join(errs...)
}

// Close releases the clients opened by New.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
