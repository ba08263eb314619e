// Package config loads appdeploy settings from a YAML file, APPDEPLOY_*
// environment variables and runtime overrides, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/3leaps/appdeploy/pkg/match"
)

// EnvPrefix is the prefix for environment overrides (APPDEPLOY_AWS_REGION).
const EnvPrefix = "APPDEPLOY"

// DefaultSettingsPath is read when no path is given.
const DefaultSettingsPath = "config/settings.yml"

// ErrSettingsNotFound is returned when an explicitly requested settings file
// does not exist.
var ErrSettingsNotFound = errors.New("settings file not found")

// Settings is the resolved configuration for one run.
type Settings struct {
	AWSRegion        string `mapstructure:"aws_region"`
	ConfigBucketName string `mapstructure:"config_bucket_name"`
	AWSProfile       string `mapstructure:"aws_profile"`
	AWSEndpoint      string `mapstructure:"aws_endpoint"`

	S3      S3Settings      `mapstructure:"s3"`
	RepoDir string          `mapstructure:"repo_dir"`
	Deploy  DeploySettings  `mapstructure:"deploy"`
	Logging LoggingSettings `mapstructure:"logging"`

	// Timeout bounds a whole run. Zero means no limit.
	Timeout time.Duration `mapstructure:"timeout"`

	// Path is the settings file that was read, empty if none.
	Path string `mapstructure:"-"`
}

// S3Settings tunes the S3 client.
type S3Settings struct {
	MaxKeys           int     `mapstructure:"max_keys"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	ForcePathStyle    bool    `mapstructure:"force_path_style"`
}

// DeploySettings holds deployment options.
type DeploySettings struct {
	Apps AppFilterSettings `mapstructure:"apps"`
}

// AppFilterSettings are doublestar globs over application names.
type AppFilterSettings struct {
	Include []string `mapstructure:"include"`
	Exclude []string `mapstructure:"exclude"`
}

// LoggingSettings configures the CLI logger.
type LoggingSettings struct {
	Level string `mapstructure:"level"`
}

// ConfigError reports an invalid setting.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Load resolves settings from path (DefaultSettingsPath when empty), the
// environment and overrides. Overrides use nested maps keyed like the YAML
// file and win over everything else.
//
// A missing default file is tolerated so settings can come from the
// environment alone; a missing explicit file is ErrSettingsNotFound.
func Load(path string, overrides map[string]any) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultSettingsPath
	}

	used := ""
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings %s: %w", path, err)
		}
		used = path
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrSettingsNotFound)
		}
		return nil, fmt.Errorf("stat settings %s: %w", path, err)
	}

	for key, val := range flatten("", overrides) {
		v.Set(key, val)
	}

	var s Settings
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&s, hook); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	s.Path = used
	s.Deploy.Apps.Include = trimAll(s.Deploy.Apps.Include)
	s.Deploy.Apps.Exclude = trimAll(s.Deploy.Apps.Exclude)

	return &s, nil
}

// setDefaults registers every key so AutomaticEnv can see it during
// Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("aws_region", "")
	v.SetDefault("config_bucket_name", "")
	v.SetDefault("aws_profile", "")
	v.SetDefault("aws_endpoint", "")

	v.SetDefault("s3.max_keys", 1000)
	v.SetDefault("s3.requests_per_second", 0)
	v.SetDefault("s3.force_path_style", false)

	v.SetDefault("repo_dir", ".")
	v.SetDefault("deploy.apps.include", []string{})
	v.SetDefault("deploy.apps.exclude", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("timeout", "0s")
}

// Validate checks required fields and ranges.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.ConfigBucketName) == "" {
		return &ConfigError{Field: "config_bucket_name", Message: "required"}
	}
	if s.S3.MaxKeys < 0 || s.S3.MaxKeys > 1000 {
		return &ConfigError{Field: "s3.max_keys", Message: "must be between 0 and 1000"}
	}
	if s.S3.RequestsPerSecond < 0 {
		return &ConfigError{Field: "s3.requests_per_second", Message: "must be >= 0"}
	}
	if s.Timeout < 0 {
		return &ConfigError{Field: "timeout", Message: "must be >= 0"}
	}
	switch strings.ToLower(s.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return &ConfigError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", s.Logging.Level)}
	}
	if _, err := s.AppMatcher(); err != nil {
		return &ConfigError{Field: "deploy.apps", Message: err.Error()}
	}
	return nil
}

// AppMatcher builds the application filter from deploy.apps.
func (s *Settings) AppMatcher() (*match.Matcher, error) {
	return match.New(match.Config{
		Includes: s.Deploy.Apps.Include,
		Excludes: s.Deploy.Apps.Exclude,
	})
}

// flatten turns nested override maps into dotted viper keys.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
