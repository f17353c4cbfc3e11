package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/rigpilot/internal/application"
	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	configDir  = ".rigpilot"
	envPrefix  = "RIGPILOT"

	snapshotFile = "snapshot.toml"
	logFile      = "rigpilot.log"
)

const (
	KeyAPIBaseURL        = "api.base_url"
	KeyAPIToken          = "api.token"
	KeyAPITimeout        = "api.timeout"
	KeyPollInterval      = "sync.poll_interval"
	KeyTickInterval      = "agent.tick_interval"
	KeyActionCooldown    = "agent.action_cooldown"
	KeyRechargeThreshold = "agent.recharge_threshold"
	KeyClaimInterval     = "agent.claim_interval"
	KeyGiftInterval      = "projection.gift_interval"
	KeyBoostMultiplier   = "projection.boost_multiplier"
	KeyStaleAfter        = "projection.stale_after"
	KeyToastTTL          = "toast.ttl"
	KeyToastExit         = "toast.exit_duration"
	KeyCatalogPath       = "catalog.path"
	KeyCachePath         = "cache.path"
	KeyLogLevel          = "log.level"
	KeyLogFormat         = "log.format"
	KeyLogFile           = "log.file"
)

const DefaultBaseURL = "http://127.0.0.1:8787"

type Config struct {
	API        APIConfig
	Session    application.Options
	StaleAfter time.Duration
	Catalog    string
	CachePath  string
	Log        LogConfig
	// File is the config file that was read, empty when none was found.
	File string
}

type APIConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

// Load reads ~/.rigpilot/config.toml (or explicitPath when set), then
// RIGPILOT_* environment variables, over built-in defaults.
func Load(cfg *viper.Viper, explicitPath string) (Config, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(homeDir, configDir)

	setDefaults(cfg, dir)

	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	if explicitPath != "" {
		cfg.SetConfigFile(explicitPath)
	} else {
		cfg.SetConfigName(configName)
		cfg.SetConfigType(configType)
		cfg.AddConfigPath(dir)
	}

	if err := cfg.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if explicitPath != "" || !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	out := Config{
		API: APIConfig{
			BaseURL: strings.TrimRight(strings.TrimSpace(cfg.GetString(KeyAPIBaseURL)), "/"),
			Token:   cfg.GetString(KeyAPIToken),
			Timeout: cfg.GetDuration(KeyAPITimeout),
		},
		Session: application.Options{
			PollInterval:      cfg.GetDuration(KeyPollInterval),
			TickInterval:      cfg.GetDuration(KeyTickInterval),
			ActionCooldown:    cfg.GetDuration(KeyActionCooldown),
			RechargeThreshold: cfg.GetFloat64(KeyRechargeThreshold),
			ClaimInterval:     cfg.GetDuration(KeyClaimInterval),
			GiftInterval:      cfg.GetDuration(KeyGiftInterval),
			BoostMultiplier:   cfg.GetFloat64(KeyBoostMultiplier),
			ToastTTL:          cfg.GetDuration(KeyToastTTL),
			ToastExit:         cfg.GetDuration(KeyToastExit),
		},
		StaleAfter: cfg.GetDuration(KeyStaleAfter),
		Catalog:    expandHome(cfg.GetString(KeyCatalogPath), homeDir),
		CachePath:  expandHome(cfg.GetString(KeyCachePath), homeDir),
		Log: LogConfig{
			Level:  strings.ToLower(cfg.GetString(KeyLogLevel)),
			Format: strings.ToLower(cfg.GetString(KeyLogFormat)),
			File:   expandHome(cfg.GetString(KeyLogFile), homeDir),
		},
		File: cfg.ConfigFileUsed(),
	}

	if err := out.Validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}

func setDefaults(cfg *viper.Viper, dir string) {
	defaults := application.DefaultOptions()

	cfg.SetDefault(KeyAPIBaseURL, DefaultBaseURL)
	cfg.SetDefault(KeyAPIToken, "")
	cfg.SetDefault(KeyAPITimeout, 10*time.Second)
	cfg.SetDefault(KeyPollInterval, defaults.PollInterval)
	cfg.SetDefault(KeyTickInterval, defaults.TickInterval)
	cfg.SetDefault(KeyActionCooldown, defaults.ActionCooldown)
	cfg.SetDefault(KeyRechargeThreshold, defaults.RechargeThreshold)
	cfg.SetDefault(KeyClaimInterval, defaults.ClaimInterval)
	cfg.SetDefault(KeyGiftInterval, defaults.GiftInterval)
	cfg.SetDefault(KeyBoostMultiplier, defaults.BoostMultiplier)
	cfg.SetDefault(KeyStaleAfter, 10*time.Minute)
	cfg.SetDefault(KeyToastTTL, defaults.ToastTTL)
	cfg.SetDefault(KeyToastExit, defaults.ToastExit)
	cfg.SetDefault(KeyCatalogPath, "")
	cfg.SetDefault(KeyCachePath, filepath.Join(dir, snapshotFile))
	cfg.SetDefault(KeyLogLevel, "info")
	cfg.SetDefault(KeyLogFormat, "text")
	cfg.SetDefault(KeyLogFile, filepath.Join(dir, logFile))
}

func (c Config) Validate() error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is empty"))
	}
	if c.CachePath == "" {
		errs = append(errs, errors.New("cache.path is empty"))
	}

	for key, d := range map[string]time.Duration{
		KeyPollInterval:   c.Session.PollInterval,
		KeyTickInterval:   c.Session.TickInterval,
		KeyActionCooldown: c.Session.ActionCooldown,
		KeyGiftInterval:   c.Session.GiftInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}

	if c.Session.RechargeThreshold < 0 || c.Session.RechargeThreshold > 100 {
		errs = append(errs, fmt.Errorf("%s must be within 0..100", KeyRechargeThreshold))
	}
	if c.Session.BoostMultiplier < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeyBoostMultiplier))
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("%s must be text or json, got %q", KeyLogFormat, c.Log.Format))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func expandHome(path, homeDir string) string {
	path = strings.TrimSpace(path)
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
