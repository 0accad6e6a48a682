package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/semmidev/strata/internal/domain"
)

type Config struct {
	App           AppConfig       `mapstructure:"app"`
	Schedule      ScheduleConfig  `mapstructure:"schedule"`
	Markers       MarkersConfig   `mapstructure:"markers"`
	Execution     ExecutionConfig `mapstructure:"execution"`
	Sources       []SourceConfig  `mapstructure:"sources" validate:"required,min=1,dive"`
	UploadTargets []UploadTarget  `mapstructure:"upload_targets" validate:"dive"`
	Metrics       MetricsConfig   `mapstructure:"metrics"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
	TestMode bool   `mapstructure:"test_mode"`
}

type ScheduleConfig struct {
	TriggerTime  string        `mapstructure:"trigger_time" validate:"required"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
}

type MarkersConfig struct {
	Backend string `mapstructure:"backend" validate:"omitempty,oneof=file badger"`
	Path    string `mapstructure:"path" validate:"required"`
}

type ExecutionConfig struct {
	Workers         int           `mapstructure:"workers" validate:"gte=1"`
	Format          string        `mapstructure:"format" validate:"oneof=zip tar.gz"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type SourceConfig struct {
	ID          string         `mapstructure:"id"`
	Origin      string         `mapstructure:"origin" validate:"required"`
	Destination string         `mapstructure:"destination" validate:"required"`
	BaseName    string         `mapstructure:"base_name" validate:"required"`
	BackupType  OverrideConfig `mapstructure:"backup_type"`
}

// OverrideConfig forces a backup type for one source. Setting both is
// accepted here and reported as a warning when a cycle is planned.
type OverrideConfig struct {
	Full        bool `mapstructure:"full"`
	Incremental bool `mapstructure:"incremental"`
}

type UploadTarget struct {
	Type    string `mapstructure:"type" validate:"required,oneof=local s3 gdrive telegram"`
	Enabled bool   `mapstructure:"enabled"`

	// Local mirror
	Path string `mapstructure:"path"`

	// Google Drive: a service account credentials file, or an OAuth
	// client secret plus a refresh token obtained with --gdrive-auth.
	CredentialsFile  string `mapstructure:"credentials_file"`
	ClientSecretFile string `mapstructure:"client_secret_file"`
	RefreshToken     string `mapstructure:"refresh_token"`
	FolderID         string `mapstructure:"folder_id"`

	// AWS S3
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`

	// Telegram
	BotToken   string `mapstructure:"bot_token"`
	ChatID     string `mapstructure:"chat_id"`
	SendFile   bool   `mapstructure:"send_file"`
	NotifyOnly bool   `mapstructure:"notify_only"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

var (
	validate        = validator.New()
	sourceIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("strata")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.name", "strata")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.test_mode", false)
	v.SetDefault("schedule.trigger_time", "02:00")
	v.SetDefault("schedule.poll_interval", "60s")
	v.SetDefault("markers.backend", "file")
	v.SetDefault("markers.path", "markers")
	v.SetDefault("execution.workers", 2)
	v.SetDefault("execution.format", "zip")
	v.SetDefault("execution.shutdown_timeout", "5m")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applySourceDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applySourceDefaults() {
	for i := range c.Sources {
		if c.Sources[i].ID == "" {
			c.Sources[i].ID = c.Sources[i].BaseName
		}
	}
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if _, err := domain.ParseTimeOfDay(c.Schedule.TriggerTime); err != nil {
		return fmt.Errorf("schedule.trigger_time: %w", err)
	}

	seen := make(map[string]int, len(c.Sources))
	for i, src := range c.Sources {
		if !sourceIDPattern.MatchString(src.ID) {
			return fmt.Errorf("sources[%d]: id %q may only contain letters, digits, '.', '_' and '-'", i, src.ID)
		}
		if j, dup := seen[src.ID]; dup {
			return fmt.Errorf("sources[%d]: id %q already used by sources[%d]", i, src.ID, j)
		}
		seen[src.ID] = i
	}

	for i, target := range c.UploadTargets {
		if !target.Enabled {
			continue
		}
		switch target.Type {
		case "local":
			if target.Path == "" {
				return fmt.Errorf("upload_targets[%d]: path is required for local", i)
			}
		case "s3":
			if target.Bucket == "" || target.Region == "" {
				return fmt.Errorf("upload_targets[%d]: bucket and region are required for s3", i)
			}
		case "gdrive":
			oauth := target.ClientSecretFile != "" && target.RefreshToken != ""
			if target.CredentialsFile == "" && !oauth {
				return fmt.Errorf("upload_targets[%d]: credentials_file or client_secret_file with refresh_token is required for gdrive", i)
			}
		case "telegram":
			if target.BotToken == "" || target.ChatID == "" {
				return fmt.Errorf("upload_targets[%d]: bot_token and chat_id are required for telegram", i)
			}
		}
	}

	return nil
}

// TriggerTime returns the parsed schedule.trigger_time. Validate guarantees
// it parses.
func (c *Config) TriggerTime() domain.TimeOfDay {
	tod, _ := domain.ParseTimeOfDay(c.Schedule.TriggerTime)
	return tod
}

// Descriptors converts the configured sources in configuration order.
func (c *Config) Descriptors() []domain.Source {
	sources := make([]domain.Source, 0, len(c.Sources))
	for _, src := range c.Sources {
		sources = append(sources, domain.Source{
			ID:          src.ID,
			Origin:      src.Origin,
			Destination: src.Destination,
			BaseName:    src.BaseName,
			Override: domain.Override{
				Full:        src.BackupType.Full,
				Incremental: src.BackupType.Incremental,
			},
		})
	}
	return sources
}

func (c *Config) GetEnabledUploadTargets() []UploadTarget {
	var enabled []UploadTarget
	for _, target := range c.UploadTargets {
		if target.Enabled {
			enabled = append(enabled, target)
		}
	}
	return enabled
}
