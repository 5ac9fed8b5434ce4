package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mozjobs/harvester/internal/ai"
	"github.com/mozjobs/harvester/internal/clock/system"
	"github.com/mozjobs/harvester/internal/config"
	"github.com/mozjobs/harvester/internal/discover"
	"github.com/mozjobs/harvester/internal/extract"
	"github.com/mozjobs/harvester/internal/fetcher"
	"github.com/mozjobs/harvester/internal/fetcher/headless"
	"github.com/mozjobs/harvester/internal/fetcher/static"
	"github.com/mozjobs/harvester/internal/harvest"
	"github.com/mozjobs/harvester/internal/logging"
	"github.com/mozjobs/harvester/internal/pipeline"
	"github.com/mozjobs/harvester/internal/progress"
	"github.com/mozjobs/harvester/internal/progress/sinks"
	"github.com/mozjobs/harvester/internal/site"
	"github.com/mozjobs/harvester/internal/snapshot"
	"github.com/mozjobs/harvester/internal/store"
)

// newRunCmd creates the 'run' subcommand, which executes one harvest run
// against a single site.
func newRunCmd() *cobra.Command {
	var siteName string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs one harvest pass against a site",
		Long: `Discovers new job postings on the named site, extracts each one, and
persists the records. Already-stored postings are skipped, so the command
is safe to run on a schedule.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHarvest(cmd.Context(), siteName)
		},
	}
	cmd.Flags().StringVar(&siteName, "site", "", "site to harvest (see 'harvester sites')")
	_ = cmd.MarkFlagRequired("site")
	return cmd
}

func runHarvest(parent context.Context, siteName string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	descriptor, err := site.Lookup(siteName)
	if err != nil {
		return err
	}
	if descriptor.AIRequired && cfg.AI.APIKey == "" {
		return fmt.Errorf("site %q needs the AI extraction tier; set HARVESTER_AI_API_KEY or ai.api_key", siteName)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver, cleanup, err := buildDriver(cfg, descriptor, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := driver.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		// Partial results were saved; a failed run is not a config error,
		// so a scheduled invocation should not flap the exit code.
		logger.Error("harvest run failed", zap.String("site", siteName), zap.Error(err))
		return nil
	}
	logger.Info("run summary",
		zap.String("site", summary.Site),
		zap.Int("discovered", summary.Discovered),
		zap.Int("extracted", summary.Extracted),
		zap.Int("failed", summary.Failed),
		zap.Any("skipped", summary.Skipped),
		zap.Duration("duration", summary.Duration))
	return nil
}

// buildDriver wires the whole pipeline for one site. The returned cleanup
// releases the browser and flushes the progress hub.
func buildDriver(cfg config.Config, descriptor site.Descriptor, logger *zap.Logger) (*pipeline.Driver, func(), error) {
	staticFetcher := static.New(static.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	headlessFetcher := headless.New(headless.Config{
		UserAgent:      cfg.Fetch.UserAgent,
		NavTimeout:     cfg.NavTimeout(),
		MaxTabs:        cfg.Fetch.HeadlessMaxTabs,
		BlockResources: cfg.Fetch.BlockResources,
	}, logger)
	detector := fetcher.NewHeuristicDetector(cfg.Fetch.DetectorMinBytes, cfg.Fetch.DetectorKeywords)
	pageFetcher := fetcher.NewPromoting(staticFetcher, headlessFetcher, detector, logger)

	var model extract.AI
	if cfg.AI.APIKey != "" {
		client, err := ai.New(ai.Config{
			APIKey:       cfg.AI.APIKey,
			BaseURL:      cfg.AI.BaseURL,
			Model:        cfg.AI.Model,
			MaxBodyBytes: cfg.AI.MaxBodyBytes,
		}, logger)
		if err != nil {
			headlessFetcher.Close()
			return nil, nil, err
		}
		model = timeoutAI{inner: client, timeout: cfg.AITimeout()}
	}

	st, err := store.Open(store.Config{
		Dir:            cfg.Data.Dir,
		CategoriesFile: resolveDataPath(cfg.Data.Dir, cfg.Data.CategoriesFile),
		LocationsFile:  resolveDataPath(cfg.Data.Dir, cfg.Data.LocationsFile),
	}, descriptor.Name, logger)
	if err != nil {
		headlessFetcher.Close()
		return nil, nil, err
	}
	snapshots, err := snapshot.NewFSSink(snapshot.Config{
		Dir:      cfg.Data.SnapshotDir,
		MaxBytes: cfg.Data.MaxSnapshotKB * 1024,
	}, logger)
	if err != nil {
		headlessFetcher.Close()
		return nil, nil, err
	}

	hub := buildProgressHub(logger)

	clock := system.Clock{}
	pauser := harvest.TimerPauser{}
	delay := cfg.PacingDelay()
	if descriptor.Delay > 0 {
		delay = descriptor.Delay
	}

	discoverer := discover.New(descriptor, pageFetcher, harvest.NewFixedRetryPolicy(), pauser,
		discover.Config{MaxPages: cfg.Pipeline.MaxPages}, logger)
	extractor := extract.New(descriptor, pageFetcher, model, clock, logger)
	driver := pipeline.New(descriptor.Name, discoverer, extractor, st, snapshots, hub, pauser, clock,
		pipeline.Config{
			BatchSize: cfg.Pipeline.BatchSize,
			Delay:     delay,
			MaxItems:  cfg.Pipeline.MaxItems,
		}, logger)

	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
		headlessFetcher.Close()
	}
	return driver, cleanup, nil
}

func buildProgressHub(logger *zap.Logger) *progress.Hub {
	hubSinks := []progress.Sink{sinks.NewLogSink(logger)}
	if promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer); err != nil {
		logger.Warn("prometheus sink unavailable", zap.Error(err))
	} else {
		hubSinks = append(hubSinks, promSink)
	}
	return progress.NewHub(progress.Config{Logger: logger}, hubSinks...)
}

func resolveDataPath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// timeoutAI bounds every model call independently of the run context.
type timeoutAI struct {
	inner   *ai.Client
	timeout time.Duration
}

func (t timeoutAI) Extract(ctx context.Context, input ai.Input) (ai.Extraction, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.inner.Extract(ctx, input)
}
