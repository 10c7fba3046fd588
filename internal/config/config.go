package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const configPathEnv = "GRADCAFE_CONFIG"

type Config struct {
	DBDSN         string `yaml:"dbDsn"`
	DataDir       string `yaml:"dataDir"`
	RawFile       string `yaml:"rawFile"`
	MasterFile    string `yaml:"masterFile"`
	ApplicantFile string `yaml:"applicantFile"`
	OutputDir     string `yaml:"outputDir"`

	StandardizerURL         string `yaml:"standardizerUrl"`
	StandardizerBatchSize   int    `yaml:"standardizerBatchSize"`
	StandardizerTimeoutSec  int    `yaml:"standardizerTimeoutSec"`
	StandardizerMaxAttempts int    `yaml:"standardizerMaxAttempts"`

	ScrapeBaseURL       string `yaml:"scrapeBaseUrl"`
	ScrapeMaxRows       int    `yaml:"scrapeMaxRows"`
	ScrapeDetailDelayMs int    `yaml:"scrapeDetailDelayMs"`
	ScrapePageDelayMs   int    `yaml:"scrapePageDelayMs"`
	ScrapeTimeoutSec    int    `yaml:"scrapeTimeoutSec"`

	WatchIntervalSec int  `yaml:"watchIntervalSec"`
	WatchAutoExport  bool `yaml:"watchAutoExport"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := defaults(cwd)
	if path := strings.TrimSpace(os.Getenv(configPathEnv)); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg = merge(cfg, fileCfg)
	}

	cfg = Config{
		DBDSN:         getEnv("DB_DSN", cfg.DBDSN),
		DataDir:       getEnv("DATA_DIR", cfg.DataDir),
		RawFile:       getEnv("RAW_FILE", cfg.RawFile),
		MasterFile:    getEnv("MASTER_FILE", cfg.MasterFile),
		ApplicantFile: getEnv("APPLICANT_FILE", cfg.ApplicantFile),
		OutputDir:     getEnv("OUTPUT_DIR", cfg.OutputDir),

		StandardizerURL:         getEnv("STANDARDIZER_URL", cfg.StandardizerURL),
		StandardizerBatchSize:   getEnvInt("STANDARDIZER_BATCH_SIZE", cfg.StandardizerBatchSize),
		StandardizerTimeoutSec:  getEnvInt("STANDARDIZER_TIMEOUT_SEC", cfg.StandardizerTimeoutSec),
		StandardizerMaxAttempts: getEnvInt("STANDARDIZER_MAX_ATTEMPTS", cfg.StandardizerMaxAttempts),

		ScrapeBaseURL:       getEnv("SCRAPE_BASE_URL", cfg.ScrapeBaseURL),
		ScrapeMaxRows:       getEnvInt("SCRAPE_MAX_ROWS", cfg.ScrapeMaxRows),
		ScrapeDetailDelayMs: getEnvInt("SCRAPE_DETAIL_DELAY_MS", cfg.ScrapeDetailDelayMs),
		ScrapePageDelayMs:   getEnvInt("SCRAPE_PAGE_DELAY_MS", cfg.ScrapePageDelayMs),
		ScrapeTimeoutSec:    getEnvInt("SCRAPE_TIMEOUT_SEC", cfg.ScrapeTimeoutSec),

		WatchIntervalSec: getEnvInt("WATCH_INTERVAL_SEC", cfg.WatchIntervalSec),
		WatchAutoExport:  getEnvBool("WATCH_AUTO_EXPORT", cfg.WatchAutoExport),

		LogLevel:  getEnv("LOG_LEVEL", cfg.LogLevel),
		LogFormat: getEnv("LOG_FORMAT", cfg.LogFormat),
	}

	return cfg, nil
}

func defaults(cwd string) Config {
	dataDir := filepath.Join(cwd, "data")
	return Config{
		DBDSN:         filepath.Join(dataDir, "gradcafe.db"),
		DataDir:       dataDir,
		RawFile:       filepath.Join(dataDir, "raw_scraped_data.json"),
		MasterFile:    filepath.Join(dataDir, "llm_extend_applicant_data.json"),
		ApplicantFile: filepath.Join(dataDir, "applicant_data.json"),
		OutputDir:     filepath.Join(cwd, "out"),

		StandardizerURL:         "http://127.0.0.1:8000/standardize",
		StandardizerBatchSize:   100,
		StandardizerTimeoutSec:  300,
		StandardizerMaxAttempts: 5,

		ScrapeBaseURL:       "https://www.thegradcafe.com",
		ScrapeMaxRows:       1000,
		ScrapeDetailDelayMs: 200,
		ScrapePageDelayMs:   750,
		ScrapeTimeoutSec:    60,

		WatchIntervalSec: 3600,

		LogLevel:  "info",
		LogFormat: "console",
	}
}

func merge(base, override Config) Config {
	setString := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}

	setString(&base.DBDSN, override.DBDSN)
	setString(&base.DataDir, override.DataDir)
	setString(&base.RawFile, override.RawFile)
	setString(&base.MasterFile, override.MasterFile)
	setString(&base.ApplicantFile, override.ApplicantFile)
	setString(&base.OutputDir, override.OutputDir)
	setString(&base.StandardizerURL, override.StandardizerURL)
	setInt(&base.StandardizerBatchSize, override.StandardizerBatchSize)
	setInt(&base.StandardizerTimeoutSec, override.StandardizerTimeoutSec)
	setInt(&base.StandardizerMaxAttempts, override.StandardizerMaxAttempts)
	setString(&base.ScrapeBaseURL, override.ScrapeBaseURL)
	setInt(&base.ScrapeMaxRows, override.ScrapeMaxRows)
	setInt(&base.ScrapeDetailDelayMs, override.ScrapeDetailDelayMs)
	setInt(&base.ScrapePageDelayMs, override.ScrapePageDelayMs)
	setInt(&base.ScrapeTimeoutSec, override.ScrapeTimeoutSec)
	setInt(&base.WatchIntervalSec, override.WatchIntervalSec)
	if override.WatchAutoExport {
		base.WatchAutoExport = true
	}
	setString(&base.LogLevel, override.LogLevel)
	setString(&base.LogFormat, override.LogFormat)
	return base
}

func (c Config) StandardizerTimeout() time.Duration {
	return time.Duration(c.StandardizerTimeoutSec) * time.Second
}

func (c Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.ScrapeTimeoutSec) * time.Second
}

func (c Config) WatchInterval() time.Duration {
	return time.Duration(c.WatchIntervalSec) * time.Second
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required setting: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
