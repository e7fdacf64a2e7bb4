package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"minerva/internal/bootstrap/logging"
	"minerva/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Poll     PollConfig     `mapstructure:"poll"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Dedup    DedupConfig    `mapstructure:"dedup"`
	Database DatabaseConfig `mapstructure:"database"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type GitHubConfig struct {
	Owner          string   `mapstructure:"owner"`
	Repo           string   `mapstructure:"repo"`
	BaseBranch     string   `mapstructure:"base_branch"`
	Token          string   `mapstructure:"token"`
	AppID          int64    `mapstructure:"app_id"`
	PrivateKeyPath string   `mapstructure:"private_key_path"`
	InstallationID int64    `mapstructure:"installation_id"`
	AllowedRepos   []string `mapstructure:"allowed_repos"`
}

type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
	Addr   string `mapstructure:"addr"`
}

type PollConfig struct {
	IntervalMS  int    `mapstructure:"interval_ms"`
	Enabled     bool   `mapstructure:"enabled"`
	ItemDelayMS int    `mapstructure:"item_delay_ms"`
	HealthAddr  string `mapstructure:"health_addr"`
}

type BridgeConfig struct {
	Self           string   `mapstructure:"self"`
	Peer           string   `mapstructure:"peer"`
	Label          string   `mapstructure:"label"`
	AutoMergeLabel string   `mapstructure:"automerge_label"`
	InboxDir       string   `mapstructure:"inbox_dir"`
	OutboxDir      string   `mapstructure:"outbox_dir"`
	PagesDir       string   `mapstructure:"pages_dir"`
	AllowedPaths   []string `mapstructure:"allowed_paths"`
	RulesFile      string   `mapstructure:"rules_file"`
}

type LedgerConfig struct {
	Path       string `mapstructure:"path"`
	OnConflict string `mapstructure:"on_conflict"`
	RetryLimit int    `mapstructure:"retry_limit"`
}

type DedupConfig struct {
	Store string `mapstructure:"store"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MINERVA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("repository", cfg.GitHub.Owner+"/"+cfg.GitHub.Repo),
		slog.String("base_branch", cfg.GitHub.BaseBranch),
		slog.String("dedup_store", cfg.Dedup.Store),
	)

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.GitHub.Owner == "" || cfg.GitHub.Repo == "" {
		return errors.New("github.owner and github.repo are required")
	}

	switch cfg.Dedup.Store {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unsupported dedup.store %q", cfg.Dedup.Store)
	}
	if cfg.Dedup.Store == "sqlite" && cfg.Database.DSN == "" {
		return errors.New("database.dsn is required for the sqlite dedup store")
	}

	switch cfg.Ledger.OnConflict {
	case "fail", "retry":
	default:
		return fmt.Errorf("unsupported ledger.on_conflict %q", cfg.Ledger.OnConflict)
	}

	// Empty allow-list means unrestricted; a non-empty one must include the target.
	if len(cfg.GitHub.AllowedRepos) > 0 {
		target := cfg.GitHub.Owner + "/" + cfg.GitHub.Repo
		allowed := false
		for _, repo := range cfg.GitHub.AllowedRepos {
			if strings.EqualFold(strings.TrimSpace(repo), target) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("repository %s is not in github.allowed_repos", target)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "minerva")
	v.SetDefault("app.env", "local")

	v.SetDefault("github.base_branch", "main")

	v.SetDefault("webhook.addr", ":3000")

	v.SetDefault("poll.interval_ms", 60000)
	v.SetDefault("poll.enabled", true)
	v.SetDefault("poll.item_delay_ms", 2000)

	v.SetDefault("bridge.self", "claude")
	v.SetDefault("bridge.peer", "chatgpt")
	v.SetDefault("bridge.label", "to:claude")
	v.SetDefault("bridge.automerge_label", "auto-merge")
	v.SetDefault("bridge.inbox_dir", ".chat/inbox/from-chatgpt")
	v.SetDefault("bridge.outbox_dir", ".chat/outbox/from-claude")
	v.SetDefault("bridge.pages_dir", "site/public/chat")
	v.SetDefault("bridge.allowed_paths", []string{".chat/", ".tasks/patches/", "site/public/"})

	v.SetDefault("ledger.path", "memory/context.json")
	v.SetDefault("ledger.on_conflict", "fail")
	v.SetDefault("ledger.retry_limit", 3)

	v.SetDefault("dedup.store", "memory")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".minerva/state/dedup.sqlite")
}
