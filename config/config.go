package config

import (
	"os"
	"slices"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/AnTengye/contractlens/model"
)

// EnvPrefix prefixes environment variables that override secrets in the file.
const EnvPrefix = "CONTRACTLENS_"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Minio     MinioConfig     `yaml:"minio"`
	Mineru    MineruConfig    `yaml:"mineru"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Auth      AuthConfig      `yaml:"auth"`
	Users     []User          `yaml:"users"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
	Report    ReportConfig    `yaml:"report"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

type ServerConfig struct {
	Port             int `yaml:"port"`
	RateLimitPerMin  int `yaml:"rate_limit_per_min"`
	RateLimitBurst   int `yaml:"rate_limit_burst"`
	ShutdownTimeoutS int `yaml:"shutdown_timeout_seconds"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StoreConfig selects where analysis records live.
type StoreConfig struct {
	Driver      string `yaml:"driver"` // memory, sqlite
	DSN         string `yaml:"dsn"`
	MaxAnalyses int    `yaml:"max_analyses"` // memory driver only, 0 = unlimited
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

// Enabled reports whether document staging is configured.
func (c MinioConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

type MineruConfig struct {
	APIURL          string `yaml:"api_url"`
	APIToken        string `yaml:"api_token"`
	ModelVersion    string `yaml:"model_version"`
	CallbackURL     string `yaml:"callback_url"`
	Seed            string `yaml:"seed"`
	UID             string `yaml:"uid"` // account ID used in callback checksums
	PollIntervalS   int    `yaml:"poll_interval_seconds"`
	MaxPollAttempts int    `yaml:"max_poll_attempts"`
}

// Enabled reports whether remote extraction is configured.
func (c MineruConfig) Enabled() bool {
	return c.APIURL != "" && c.APIToken != ""
}

type AnthropicConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

// User is a login allowed to submit documents. PasswordHash is a bcrypt hash.
type User struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Tenant       string `yaml:"tenant"`
}

// IngestConfig bounds what uploads are accepted.
type IngestConfig struct {
	MaxBytes       int64          `yaml:"max_bytes"`
	AllowedFormats []model.Format `yaml:"allowed_formats"`
}

// Allows reports whether f is an accepted format.
func (c IngestConfig) Allows(f model.Format) bool {
	return slices.Contains(c.AllowedFormats, f)
}

// AnalyzerConfig selects the classifier backend and clause policies.
type AnalyzerConfig struct {
	Provider        string     `yaml:"provider"` // rules, anthropic
	ConfidenceFloor float64    `yaml:"confidence_floor"`
	Flag            FlagConfig `yaml:"flag"`
}

// FlagConfig is the flagging policy: a clause is flagged when its risk is at
// least AlwaysAt, or at least MinSeverity and its category is watched.
type FlagConfig struct {
	MinSeverity     model.RiskLevel `yaml:"min_severity"`
	AlwaysAt        model.RiskLevel `yaml:"always_at"`
	WatchCategories []string        `yaml:"watch_categories"`
}

type ReportConfig struct {
	Score              model.ScorePolicy `yaml:"score"`
	MaxKeyFindings     int               `yaml:"max_key_findings"`
	MaxRecommendations int               `yaml:"max_recommendations"`
	ExportCacheSize    int               `yaml:"export_cache_size"`
	ExportCacheTTLMin  int               `yaml:"export_cache_ttl_minutes"`
}

type PipelineConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
}

// DefaultScorePolicy is baseline 30, +20 per high clause, +8 per medium clause.
func DefaultScorePolicy() model.ScorePolicy {
	return model.ScorePolicy{Baseline: 30, HighWeight: 20, MediumWeight: 8}
}

// Default returns a configuration with every default applied and no file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrapf(err, "config: parse %s", path)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimitPerMin == 0 {
		c.Server.RateLimitPerMin = 100
	}
	if c.Server.RateLimitBurst == 0 {
		c.Server.RateLimitBurst = 20
	}
	if c.Server.ShutdownTimeoutS == 0 {
		c.Server.ShutdownTimeoutS = 5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Store.MaxAnalyses == 0 {
		c.Store.MaxAnalyses = 100
	}
	if c.Minio.ExpireDays == 0 {
		c.Minio.ExpireDays = 1
	}
	if c.Mineru.ModelVersion == "" {
		c.Mineru.ModelVersion = "vlm"
	}
	if c.Mineru.PollIntervalS == 0 {
		c.Mineru.PollIntervalS = 5
	}
	if c.Mineru.MaxPollAttempts == 0 {
		c.Mineru.MaxPollAttempts = 60
	}
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = "claude-haiku-4-5-20251001"
	}
	if c.Anthropic.MaxTokens == 0 {
		c.Anthropic.MaxTokens = 1024
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.Ingest.MaxBytes == 0 {
		c.Ingest.MaxBytes = 10 << 20
	}
	if len(c.Ingest.AllowedFormats) == 0 {
		c.Ingest.AllowedFormats = []model.Format{model.FormatPDF, model.FormatDOC, model.FormatDOCX, model.FormatTXT}
	}
	if c.Analyzer.Provider == "" {
		c.Analyzer.Provider = "rules"
	}
	if c.Analyzer.ConfidenceFloor == 0 {
		c.Analyzer.ConfidenceFloor = 0.3
	}
	if c.Analyzer.Flag.MinSeverity == "" {
		c.Analyzer.Flag.MinSeverity = model.RiskMedium
	}
	if c.Analyzer.Flag.AlwaysAt == "" {
		c.Analyzer.Flag.AlwaysAt = model.RiskHigh
	}
	if c.Analyzer.Flag.WatchCategories == nil {
		c.Analyzer.Flag.WatchCategories = []string{"auto_renewal", "termination", "late_payment", "liability_cap"}
	}
	if c.Report.Score == (model.ScorePolicy{}) {
		c.Report.Score = DefaultScorePolicy()
	}
	if c.Report.MaxKeyFindings == 0 {
		c.Report.MaxKeyFindings = 5
	}
	if c.Report.MaxRecommendations == 0 {
		c.Report.MaxRecommendations = 5
	}
	if c.Report.ExportCacheSize == 0 {
		c.Report.ExportCacheSize = 128
	}
	if c.Report.ExportCacheTTLMin == 0 {
		c.Report.ExportCacheTTLMin = 30
	}
	if c.Pipeline.MaxConcurrent == 0 {
		c.Pipeline.MaxConcurrent = 4
	}
}

// applyEnv lets deployments keep secrets out of the YAML file.
func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"JWT_SECRET":        &c.Auth.JWTSecret,
		"MINIO_ACCESS_KEY":  &c.Minio.AccessKey,
		"MINIO_SECRET_KEY":  &c.Minio.SecretKey,
		"MINERU_API_TOKEN":  &c.Mineru.APIToken,
		"MINERU_SEED":       &c.Mineru.Seed,
		"ANTHROPIC_API_KEY": &c.Anthropic.APIKey,
		"STORE_DSN":         &c.Store.DSN,
	}
	for name, dst := range overrides {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
}

// Validate checks invariants the pipeline relies on.
func (c *Config) Validate() error {
	s := c.Report.Score
	if s.HighWeight < 0 || s.MediumWeight < 0 || s.LowWeight < 0 {
		return eris.New("config: report.score weights must be non-negative")
	}
	if !c.Analyzer.Flag.MinSeverity.AtLeast(model.RiskMedium) {
		return eris.Errorf("config: analyzer.flag.min_severity must be medium or high, got %q", c.Analyzer.Flag.MinSeverity)
	}
	if !c.Analyzer.Flag.AlwaysAt.AtLeast(c.Analyzer.Flag.MinSeverity) {
		return eris.New("config: analyzer.flag.always_at must not be below min_severity")
	}
	if c.Analyzer.ConfidenceFloor < 0 || c.Analyzer.ConfidenceFloor > 1 {
		return eris.New("config: analyzer.confidence_floor must be within [0,1]")
	}
	switch c.Analyzer.Provider {
	case "rules":
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			return eris.New("config: anthropic provider requires anthropic.api_key")
		}
	default:
		return eris.Errorf("config: unknown analyzer provider %q", c.Analyzer.Provider)
	}
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.DSN == "" {
			return eris.New("config: sqlite store requires store.dsn")
		}
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	for _, f := range c.Ingest.AllowedFormats {
		if f.MediaType() == "" {
			return eris.Errorf("config: unknown ingest format %q", f)
		}
	}
	if c.Ingest.MaxBytes < 0 || c.Pipeline.MaxConcurrent < 0 || c.Report.MaxRecommendations < 0 {
		return eris.New("config: limits must be positive")
	}
	return nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
