package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codescope-dev/codescope/pkg/config"
	"github.com/codescope-dev/codescope/pkg/detect"
	"github.com/codescope-dev/codescope/pkg/job"
	"github.com/codescope-dev/codescope/pkg/observability"
	"github.com/codescope-dev/codescope/pkg/persist"
	"github.com/codescope-dev/codescope/pkg/pipeline"
	"github.com/codescope-dev/codescope/pkg/version"
)

// App bundles the wiring every subcommand needs: a Manager ready to
// Start, the ProjectStore/JobStore it shares with that Manager, a blob
// Codec for decoding completed Reports, and the observability shutdown
// hook. State lives in an in-memory persist.MemoryBackend for the
// lifetime of one process invocation; nothing here survives across
// separate CLI invocations, the same scope boundary pkg/persist
// documents for the core pipeline.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Manager  *job.Manager
	Projects persist.ProjectStore
	Jobs     persist.JobStore
	Codec    persist.BlobCodec
	Shutdown func(context.Context) error
}

// bootstrap loads configuration, initializes observability, and wires a
// Manager. Callers must call Manager.Start before Submit and Shutdown
// before exit.
func bootstrap(configPath string, mode observability.AppMode) (*App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.LogJSON = cfg.Logging.Format == "json"

	if level := parseLogLevel(cfg.Logging.Level); level != nil {
		obsCfg.LogLevel = *level
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	metrics, err := observability.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("init pipeline metrics: %w", err)
	}

	backend := persist.NewMemoryBackend()
	mapper := persist.NewMapper(backend.Projects(), backend.Jobs(), backend.Children())

	runner := pipeline.NewRunner(cfg, providers.Tracer, metrics, providers.Logger, buildOracles(cfg)...)

	mgr := job.NewManager(
		backend.Projects(), backend.Jobs(), mapper, runner,
		cfg.Repository.WorkDir, cfg.Pipeline.Workers, cfg.Pipeline.QueueCapacity,
		providers.Logger, metrics,
	)
	mgr.EnableCache(cfg.Cache)

	return &App{
		Config:   cfg,
		Logger:   providers.Logger,
		Manager:  mgr,
		Projects: backend.Projects(),
		Jobs:     backend.Jobs(),
		Codec:    persist.NewLZ4JSONCodec(),
		Shutdown: providers.Shutdown,
	}, nil
}

func buildOracles(cfg *config.Config) []detect.Oracle {
	var oracles []detect.Oracle

	if cfg.Origin.CodequiryAPIKey != "" {
		oracles = append(oracles, detect.NewCodequiryOracle(cfg.Origin.CodequiryAPIKey))
	}

	if cfg.Origin.CopyleaksEmail != "" && cfg.Origin.CopyleaksAPIKey != "" {
		oracles = append(oracles, detect.NewCopyleaksOracle(cfg.Origin.CopyleaksEmail, cfg.Origin.CopyleaksAPIKey))
	}

	return oracles
}

func parseLogLevel(level string) *slog.Level {
	var l slog.Level

	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil
	}

	return &l
}
