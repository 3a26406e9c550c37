package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Locator    LocatorConfig    `yaml:"locator" mapstructure:"locator"`
	Ledger     LedgerConfig     `yaml:"ledger" mapstructure:"ledger"`
	Reconcile  ReconcileConfig  `yaml:"reconcile" mapstructure:"reconcile"`
	Narrative  NarrativeConfig  `yaml:"narrative" mapstructure:"narrative"`
	Packager   PackagerConfig   `yaml:"packager" mapstructure:"packager"`
	Policy     PolicyConfig     `yaml:"policy" mapstructure:"policy"`
	Orchestra  OrchestraConfig  `yaml:"orchestrator" mapstructure:"orchestrator"`
	Simulation SimulationConfig `yaml:"simulation" mapstructure:"simulation"`
}

// StoreConfig configures the run index backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AnthropicConfig holds Anthropic API settings for narrative generation.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// NotionConfig holds the issue-tracker notifier settings.
type NotionConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	FindingsDB string `yaml:"findings_db" mapstructure:"findings_db"`
}

// LocatorConfig configures evidence sources.
type LocatorConfig struct {
	Dirs        []string `yaml:"dirs" mapstructure:"dirs"`
	FTPUrls     []string `yaml:"ftp_urls" mapstructure:"ftp_urls"`
	FTPUser     string   `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword string   `yaml:"ftp_password" mapstructure:"ftp_password"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// LedgerConfig configures the journal adapter.
type LedgerConfig struct {
	CSVPath string `yaml:"csv_path" mapstructure:"csv_path"`
}

// ReconcileConfig exposes the matching tolerances and confidence
// weights as configuration rather than hardcoded constants.
type ReconcileConfig struct {
	AmountToleranceAbs float64 `yaml:"amount_tolerance_abs" mapstructure:"amount_tolerance_abs"`
	AmountTolerancePct float64 `yaml:"amount_tolerance_pct" mapstructure:"amount_tolerance_pct"`
	VarianceThreshold  float64 `yaml:"variance_threshold" mapstructure:"variance_threshold"`
	WeightIdentifier   float64 `yaml:"weight_identifier" mapstructure:"weight_identifier"`
	WeightAmount       float64 `yaml:"weight_amount" mapstructure:"weight_amount"`
	WeightCurrency     float64 `yaml:"weight_currency" mapstructure:"weight_currency"`
}

// NarrativeConfig selects and bounds the summary generator.
type NarrativeConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"` // template | claude
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PackagerConfig configures artifact output locations.
type PackagerConfig struct {
	OutDir      string `yaml:"out_dir" mapstructure:"out_dir"`
	AuditLogDir string `yaml:"audit_log_dir" mapstructure:"audit_log_dir"`
}

// PolicyConfig configures the control catalog.
type PolicyConfig struct {
	CatalogPath string `yaml:"catalog_path" mapstructure:"catalog_path"`
}

// OrchestraConfig bounds run execution.
type OrchestraConfig struct {
	StepTimeoutSecs int           `yaml:"step_timeout_secs" mapstructure:"step_timeout_secs"`
	Retention       time.Duration `yaml:"retention" mapstructure:"retention"`
}

// SimulationConfig holds simulation defaults.
type SimulationConfig struct {
	SampleSize  int     `yaml:"sample_size" mapstructure:"sample_size"`
	AnomalyRate float64 `yaml:"anomaly_rate" mapstructure:"anomaly_rate"`
	WorkDir     string  `yaml:"work_dir" mapstructure:"work_dir"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AUDITECX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "auditecx.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("locator.dirs", []string{"mock_data/files"})
	v.SetDefault("locator.timeout_secs", 30)
	v.SetDefault("ledger.csv_path", "mock_data/journal_entries.csv")
	v.SetDefault("reconcile.amount_tolerance_abs", 0.50)
	v.SetDefault("reconcile.amount_tolerance_pct", 0.01)
	v.SetDefault("reconcile.variance_threshold", 1.00)
	v.SetDefault("reconcile.weight_identifier", 0.5)
	v.SetDefault("reconcile.weight_amount", 0.3)
	v.SetDefault("reconcile.weight_currency", 0.2)
	v.SetDefault("narrative.provider", "template")
	v.SetDefault("narrative.timeout_secs", 60)
	v.SetDefault("packager.out_dir", "out")
	v.SetDefault("packager.audit_log_dir", "audit_logs")
	v.SetDefault("policy.catalog_path", "")
	v.SetDefault("orchestrator.step_timeout_secs", 120)
	v.SetDefault("orchestrator.retention", "15m")
	v.SetDefault("simulation.sample_size", 20)
	v.SetDefault("simulation.anomaly_rate", 0.25)
	v.SetDefault("simulation.work_dir", "mock_data/sim")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
