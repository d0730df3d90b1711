// config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type FeedConfig struct {
	// URLBase is the publisher root every file URL is formed from. It must
	// stay in sync with the file naming scheme in the scraper package.
	URLBase       string `yaml:"url_base"`
	LastUpdateURL string `yaml:"lastupdate_url"`
}

type StorageConfig struct {
	DataDir   string `yaml:"data_dir"`
	ReportDir string `yaml:"report_dir"`
}

type RealtimeConfig struct {
	CadenceStr      string `yaml:"cadence"`
	SlotTimeoutStr  string `yaml:"slot_timeout"`
	RetryDelayStr   string `yaml:"retry_delay"`
	SafetyMarginStr string `yaml:"safety_margin"`

	// Parsed durations.
	Cadence      time.Duration `yaml:"-"`
	SlotTimeout  time.Duration `yaml:"-"`
	RetryDelay   time.Duration `yaml:"-"`
	SafetyMargin time.Duration `yaml:"-"`
}

type WorkersConfig struct {
	Clean int `yaml:"clean"`
}

type MetricsConfig struct {
	Port string `yaml:"port"`
}

type Config struct {
	Mongo    MongoConfig    `yaml:"mongo"`
	Feed     FeedConfig     `yaml:"feed"`
	Storage  StorageConfig  `yaml:"storage"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Workers  WorkersConfig  `yaml:"workers"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

var AppConfig Config

// LoadConfig reads configuration from a YAML file, applies defaults and
// environment overrides, and creates the local storage tree. An empty path
// loads defaults only, which is enough for a stock GDELT setup.
func LoadConfig(configPath string) error {
	AppConfig = defaults()

	if configPath != "" {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, &AppConfig); err != nil {
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	// Environment wins over file, for secrets and deploy-time overrides.
	// MONGO_URI typically arrives via the .env file loaded in main.
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		AppConfig.Mongo.URI = uri
	}
	if db := os.Getenv("MONGO_DATABASE"); db != "" {
		AppConfig.Mongo.Database = db
	}
	if base := os.Getenv("GDELT_URL_BASE"); base != "" {
		AppConfig.Feed.URLBase = base
	}

	if err := parseDurations(&AppConfig.Realtime); err != nil {
		return err
	}
	if AppConfig.Feed.LastUpdateURL == "" {
		AppConfig.Feed.LastUpdateURL = AppConfig.Feed.URLBase + "lastupdate.txt"
	}
	if AppConfig.Workers.Clean < 1 {
		AppConfig.Workers.Clean = 3
	}

	if err := ensureDataDirs(); err != nil {
		return err
	}
	return nil
}

func defaults() Config {
	return Config{
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "gdeltflow",
		},
		Feed: FeedConfig{
			URLBase: "http://data.gdeltproject.org/gdeltv2/",
		},
		Storage: StorageConfig{
			DataDir:   "GDELTdata",
			ReportDir: "reports",
		},
		Realtime: RealtimeConfig{
			CadenceStr:      "15m",
			SlotTimeoutStr:  "5m",
			RetryDelayStr:   "30s",
			SafetyMarginStr: "15s",
		},
		Workers: WorkersConfig{Clean: 3},
	}
}

func parseDurations(rc *RealtimeConfig) error {
	var err error
	if rc.Cadence, err = time.ParseDuration(rc.CadenceStr); err != nil {
		return fmt.Errorf("failed to parse realtime cadence %q: %w", rc.CadenceStr, err)
	}
	if rc.SlotTimeout, err = time.ParseDuration(rc.SlotTimeoutStr); err != nil {
		return fmt.Errorf("failed to parse realtime slot_timeout %q: %w", rc.SlotTimeoutStr, err)
	}
	if rc.RetryDelay, err = time.ParseDuration(rc.RetryDelayStr); err != nil {
		return fmt.Errorf("failed to parse realtime retry_delay %q: %w", rc.RetryDelayStr, err)
	}
	if rc.SafetyMargin, err = time.ParseDuration(rc.SafetyMarginStr); err != nil {
		return fmt.Errorf("failed to parse realtime safety_margin %q: %w", rc.SafetyMarginStr, err)
	}
	return nil
}

// ensureDataDirs creates the per-table raw/clean tree plus the report
// directory so the rest of the pipeline can assume the layout exists.
func ensureDataDirs() error {
	for _, table := range []string{"events", "mentions", "gkg"} {
		for _, tier := range []string{"raw", "clean"} {
			dir := filepath.Join(AppConfig.Storage.DataDir, table, tier)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create data directory %s: %w", dir, err)
			}
		}
	}
	if err := os.MkdirAll(AppConfig.Storage.ReportDir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory %s: %w", AppConfig.Storage.ReportDir, err)
	}
	return nil
}
