package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// AppName names the config file, env prefix and user directories.
const AppName = "pdf2mp3"

// Loader loads configuration from an optional YAML file and environment
// variables. Tests can override Lookup and SearchDirs to stay hermetic.
type Loader struct {
	Lookup func(string) (string, bool)
	// File is an explicit config path (the --config flag).
	File string
	// SearchDirs replaces the default search path for pdf2mp3.yaml.
	SearchDirs []string
	Logger     *slog.Logger
}

// Load retrieves the configuration and validates it.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	if l.Logger == nil {
		l.Logger = slog.Default()
	}

	cfg := Defaults()

	if err := l.applyFile(&cfg); err != nil {
		return Config{}, err
	}

	if raw, ok := l.Lookup("PDF2MP3_CONFIG"); ok && strings.TrimSpace(raw) != "" {
		if err := applyJSON(raw, &cfg); err != nil {
			return Config{}, err
		}
	}

	if cfg.APIKey == "" {
		overrideString(l.Lookup, "GEMINI_API_KEY", &cfg.APIKey)
	}
	overrideString(l.Lookup, "PDF2MP3_API_KEY", &cfg.APIKey)
	overrideString(l.Lookup, "PDF2MP3_LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "PDF2MP3_LISTEN_ADDR", &cfg.ListenAddr)
	overrideString(l.Lookup, "PDF2MP3_NATS_URL", &cfg.NATSURL)
	if raw, ok := l.Lookup("PDF2MP3_USE_STUB_SYNTHESIZER"); ok {
		if on, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil && on {
			cfg.Backend = BackendStub
		}
	}

	if dataDir, ok := l.Lookup("PDF2MP3_DATA_DIR"); ok && dataDir != "" {
		if cfg.CacheDir == "" {
			cfg.CacheDir = filepath.Join(dataDir, "cache")
		}
		if cfg.HistoryPath == "" {
			cfg.HistoryPath = filepath.Join(dataDir, "history.db")
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l Loader) applyFile(cfg *Config) error {
	v := viper.New()
	if l.File != "" {
		if _, err := os.Stat(l.File); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		v.SetConfigFile(l.File)
	} else {
		dirs := l.SearchDirs
		if dirs == nil {
			dirs = defaultSearchDirs()
		}
		if len(dirs) == 0 {
			return nil
		}
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		for _, dir := range dirs {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			l.Logger.Debug("no config file found, using defaults and environment variables")
			return nil
		}
		return fmt.Errorf("config: read %s: %w", describe(v, l.File), err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("config: decode %s: %w", v.ConfigFileUsed(), err)
	}
	l.Logger.Debug("loaded config file", "path", v.ConfigFileUsed())
	return nil
}

func describe(v *viper.Viper, explicit string) string {
	if used := v.ConfigFileUsed(); used != "" {
		return used
	}
	if explicit != "" {
		return explicit
	}
	return AppName + ".yaml"
}

func defaultSearchDirs() []string {
	dirs := []string{".", "./configs"}
	if userDirs, err := gap.NewScope(gap.User, AppName).ConfigDirs(); err == nil {
		dirs = append(dirs, userDirs...)
	}
	return dirs
}

// UserDataPath resolves name inside the per-user data directory.
func UserDataPath(name string) (string, error) {
	return gap.NewScope(gap.User, AppName).DataPath(name)
}

// UserCacheDir is the per-user cache directory for synthesized segments.
func UserCacheDir() (string, error) {
	return gap.NewScope(gap.User, AppName).CacheDir()
}

func applyJSON(raw string, cfg *Config) error {
	type plain Config
	payload := struct {
		*plain
		InitialDelay string `json:"initial_delay"`
	}{plain: (*plain)(cfg)}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("config: decode PDF2MP3_CONFIG: %w", err)
	}
	if payload.InitialDelay != "" {
		d, err := time.ParseDuration(payload.InitialDelay)
		if err != nil {
			return fmt.Errorf("config: decode PDF2MP3_CONFIG: initial_delay: %w", err)
		}
		cfg.InitialDelay = d
	}
	return nil
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}
