// Package config loads and validates scraper configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Ledger backends.
const (
	BackendLocal     = "local"
	BackendGCS       = "gcs"
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
)

// EnvPrefix is prepended to every environment override (SCRAPER_RUN_TARGET_YEAR, ...).
const EnvPrefix = "SCRAPER"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Run     RunConfig     `mapstructure:"run"`
	Site    SiteConfig    `mapstructure:"site"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Mail    MailConfig    `mapstructure:"mail"`
	Export  ExportConfig  `mapstructure:"export"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// RunConfig holds the per-run parameters.
type RunConfig struct {
	TargetYear    int    `mapstructure:"target_year"`
	TargetProject string `mapstructure:"target_project"`
	DryRun        bool   `mapstructure:"dry_run"`
	UploadLimit   int    `mapstructure:"upload_limit"`
	RunID         string `mapstructure:"run_id"`
	RunName       string `mapstructure:"run_name"`
}

// SiteConfig describes the source site and the constant record fields.
type SiteConfig struct {
	StartURL      string `mapstructure:"start_url"`
	Authority     string `mapstructure:"authority"`
	CategoryLocal string `mapstructure:"category_local"`
	ScraperName   string `mapstructure:"scraper_name"`
	Source        string `mapstructure:"source"`
}

// CrawlerConfig governs fetch politeness and parallelism.
type CrawlerConfig struct {
	UserAgent      string             `mapstructure:"user_agent"`
	Concurrency    int                `mapstructure:"concurrency"`
	DownloadDelay  time.Duration      `mapstructure:"download_delay"`
	AutoThrottle   AutoThrottleConfig `mapstructure:"autothrottle"`
	MaxRetries     int                `mapstructure:"max_retries"`
	RetryBase      time.Duration      `mapstructure:"retry_base"`
	RequestTimeout time.Duration      `mapstructure:"request_timeout"`
}

// AutoThrottleConfig configures latency-based delay adaptation.
type AutoThrottleConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	StartDelay        time.Duration `mapstructure:"start_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	TargetConcurrency float64       `mapstructure:"target_concurrency"`
}

// LedgerConfig selects where the event ledger lives.
type LedgerConfig struct {
	Backend           string          `mapstructure:"backend"`
	LocalPath         string          `mapstructure:"local_path"`
	KeepLocalSnapshot bool            `mapstructure:"keep_local_snapshot"`
	GCS               GCSConfig       `mapstructure:"gcs"`
	Firestore         FirestoreConfig `mapstructure:"firestore"`
	Postgres          PostgresConfig  `mapstructure:"postgres"`
}

// GCSConfig locates the snapshot object.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Object string `mapstructure:"object"`
}

// FirestoreConfig locates the ledger collection.
type FirestoreConfig struct {
	ProjectID  string `mapstructure:"project_id"`
	Collection string `mapstructure:"collection"`
}

// PostgresConfig controls access to the relational ledger.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ArchiveConfig holds DocumentCloud settings.
type ArchiveConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	AuthURL  string        `mapstructure:"auth_url"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Language string        `mapstructure:"language"`
	Access   string        `mapstructure:"access"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MailConfig holds SMTP settings. An empty host logs the report instead.
type MailConfig struct {
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// ExportConfig controls the CSV item feed. An empty path disables it.
type ExportConfig struct {
	CSVPath string `mapstructure:"csv_path"`
}

// NotifyConfig holds Pub/Sub upload notification settings.
type NotifyConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig controls the status server.
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	return LoadWith(New(), path)
}

// New returns a Viper instance with env bindings and defaults applied, ready
// for flag binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadWith reads the optional file into v and decodes it.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("run.target_year", 0)
	v.SetDefault("run.target_project", "")
	v.SetDefault("run.dry_run", false)
	v.SetDefault("run.upload_limit", 0)
	v.SetDefault("run.run_id", "")
	v.SetDefault("run.run_name", "")
	v.SetDefault("site.start_url", "https://www.paca.developpement-durable.gouv.fr/acces-direct-aux-avis-et-aux-decisions-suite-a-r2853.html")
	v.SetDefault("site.authority", "Préfecture de région Provence-Alpes-Côte d'Azur")
	v.SetDefault("site.category_local", "Décisions suite à examen au cas par cas des projets")
	v.SetDefault("site.scraper_name", "DREAL PACA Scraper")
	v.SetDefault("site.source", "www.paca.developpement-durable.gouv.fr")
	v.SetDefault("crawler.user_agent", "Disclose DocumentCloud Add-On - contact tech@disclose.ngo")
	v.SetDefault("crawler.concurrency", 1)
	v.SetDefault("crawler.download_delay", 1500*time.Millisecond)
	v.SetDefault("crawler.autothrottle.enabled", true)
	v.SetDefault("crawler.autothrottle.start_delay", 4*time.Second)
	v.SetDefault("crawler.autothrottle.max_delay", 60*time.Second)
	v.SetDefault("crawler.autothrottle.target_concurrency", 1.0)
	v.SetDefault("crawler.max_retries", 4)
	v.SetDefault("crawler.retry_base", 500*time.Millisecond)
	v.SetDefault("crawler.request_timeout", 30*time.Second)
	v.SetDefault("ledger.backend", BackendLocal)
	v.SetDefault("ledger.local_path", "event_data.json")
	v.SetDefault("ledger.keep_local_snapshot", false)
	v.SetDefault("ledger.gcs.bucket", "")
	v.SetDefault("ledger.gcs.object", "event_data.json")
	v.SetDefault("ledger.firestore.project_id", "")
	v.SetDefault("ledger.firestore.collection", "event_ledger")
	v.SetDefault("ledger.postgres.dsn", "")
	v.SetDefault("ledger.postgres.table", "event_ledger")
	v.SetDefault("ledger.postgres.max_conns", 4)
	v.SetDefault("archive.base_url", "https://api.www.documentcloud.org/api")
	v.SetDefault("archive.auth_url", "https://accounts.muckrock.com/api/token/")
	v.SetDefault("archive.username", "")
	v.SetDefault("archive.password", "")
	v.SetDefault("archive.language", "fra")
	v.SetDefault("archive.access", "public")
	v.SetDefault("archive.timeout", 60*time.Second)
	v.SetDefault("mail.smtp_host", "")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.to", []string{})
	v.SetDefault("export.csv_path", "data.csv")
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic", "")
	v.SetDefault("metrics.port", 0)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if c.Run.TargetYear < 2000 || c.Run.TargetYear > 2099 {
		errs = append(errs, fmt.Errorf("run.target_year must be a year between 2000 and 2099, got %d", c.Run.TargetYear))
	}
	if c.Run.UploadLimit < 0 {
		errs = append(errs, errors.New("run.upload_limit must be >= 0"))
	}
	if _, err := url.ParseRequestURI(c.Site.StartURL); err != nil {
		errs = append(errs, fmt.Errorf("site.start_url is invalid: %w", err))
	}
	if c.Crawler.Concurrency <= 0 {
		errs = append(errs, errors.New("crawler.concurrency must be > 0"))
	}
	if c.Crawler.MaxRetries < 0 {
		errs = append(errs, errors.New("crawler.max_retries must be >= 0"))
	}
	if c.Crawler.RequestTimeout <= 0 {
		errs = append(errs, errors.New("crawler.request_timeout must be > 0"))
	}
	if c.Crawler.AutoThrottle.Enabled && c.Crawler.AutoThrottle.TargetConcurrency <= 0 {
		errs = append(errs, errors.New("crawler.autothrottle.target_concurrency must be > 0"))
	}
	if c.Ledger.LocalPath == "" {
		errs = append(errs, errors.New("ledger.local_path must be set"))
	}
	switch c.Ledger.Backend {
	case BackendLocal:
	case BackendGCS:
		if c.Ledger.GCS.Bucket == "" {
			errs = append(errs, errors.New("ledger.gcs.bucket must be set for the gcs backend"))
		}
	case BackendFirestore:
		if c.Ledger.Firestore.ProjectID == "" {
			errs = append(errs, errors.New("ledger.firestore.project_id must be set for the firestore backend"))
		}
	case BackendPostgres:
		if c.Ledger.Postgres.DSN == "" {
			errs = append(errs, errors.New("ledger.postgres.dsn must be set for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("ledger.backend %q is not one of local, gcs, firestore, postgres", c.Ledger.Backend))
	}
	if !c.Run.DryRun {
		if c.Archive.Username == "" || c.Archive.Password == "" {
			errs = append(errs, errors.New("archive.username and archive.password must be set unless run.dry_run"))
		}
	}
	if c.Mail.SMTPHost != "" && (c.Mail.From == "" || len(c.Mail.To) == 0) {
		errs = append(errs, errors.New("mail.from and mail.to must be set when mail.smtp_host is"))
	}
	if c.Notify.Topic != "" && c.Notify.ProjectID == "" {
		errs = append(errs, errors.New("notify.project_id must be set when notify.topic is"))
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		errs = append(errs, errors.New("metrics.port must be between 0 and 65535"))
	}
	return errors.Join(errs...)
}

// Remote reports whether the ledger lives outside the local snapshot file.
func (c Config) Remote() bool {
	return c.Ledger.Backend != BackendLocal
}
