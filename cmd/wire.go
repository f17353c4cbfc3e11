package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	catalogyaml "github.com/bnema/rigpilot/internal/adapters/catalog/yaml"
	"github.com/bnema/rigpilot/internal/adapters/remote/httpapi"
	"github.com/bnema/rigpilot/internal/adapters/render/dashboard"
	tomlrepo "github.com/bnema/rigpilot/internal/adapters/repo/toml"
	"github.com/bnema/rigpilot/internal/application"
	"github.com/bnema/rigpilot/internal/config"
	"github.com/bnema/rigpilot/internal/domain"
	"github.com/bnema/rigpilot/internal/ports"
	"github.com/spf13/viper"
)

const configPathEnv = "RIGPILOT_CONFIG"

type app struct {
	cfg      config.Config
	catalog  domain.Catalog
	repo     *tomlrepo.SnapshotRepository
	remote   ports.RemoteAPI
	clock    ports.Clock
	renderer func(application.View, dashboard.RenderOptions) (string, error)
}

func wireApp() (*app, error) {
	cfg, err := config.Load(viper.New(), os.Getenv(configPathEnv))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	catalog, err := catalogyaml.Load(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("load tier catalog: %w", err)
	}

	clock := ports.SystemClock{}
	repo, err := tomlrepo.NewSnapshotRepository(cfg.CachePath, clock)
	if err != nil {
		return nil, fmt.Errorf("wire snapshot repository: %w", err)
	}

	client, err := httpapi.NewClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout)
	if err != nil {
		return nil, fmt.Errorf("wire api client: %w", err)
	}

	return &app{
		cfg:      cfg,
		catalog:  catalog,
		repo:     repo,
		remote:   client,
		clock:    clock,
		renderer: dashboard.Render,
	}, nil
}

func (a *app) logger(w io.Writer) (*slog.Logger, error) {
	logger, err := a.cfg.Log.NewLogger(w)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func (a *app) newSession(remote ports.RemoteAPI, repo ports.SnapshotRepository, clock ports.Clock, logger *slog.Logger) *application.Session {
	return application.NewSession(remote, repo, clock, a.catalog, a.cfg.Session, logger)
}

func (a *app) renderOptions() dashboard.RenderOptions {
	return dashboard.RenderOptions{StaleAfter: a.cfg.StaleAfter, Selected: -1}
}
