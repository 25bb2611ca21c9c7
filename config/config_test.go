package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnTengye/contractlens/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
minio:
  endpoint: "localhost:9000"
  access_key: "minioadmin"
  secret_key: "minioadmin"
  bucket: "staging"
mineru:
  api_url: "https://api.mineru.test"
  api_token: "test-token"
auth:
  jwt_secret: "test-secret"
  token_expire_hours: 48
log:
  level: "debug"
  format: "json"
store:
  max_analyses: 50
ingest:
  max_bytes: 2048
  allowed_formats: [pdf, txt]
analyzer:
  confidence_floor: 0.5
  flag:
    min_severity: high
    watch_categories: [termination]
report:
  score:
    baseline: 10
    high_weight: 25
    medium_weight: 5
  max_recommendations: 3
pipeline:
  max_concurrent: 2
users:
  - username: "testuser"
    password_hash: "$2a$10$abc"
    tenant: "testtenant"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Minio.Enabled())
	assert.True(t, cfg.Mineru.Enabled())
	assert.Equal(t, 48, cfg.Auth.TokenExpireHours)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 50, cfg.Store.MaxAnalyses)
	assert.Equal(t, int64(2048), cfg.Ingest.MaxBytes)
	assert.True(t, cfg.Ingest.Allows(model.FormatPDF))
	assert.False(t, cfg.Ingest.Allows(model.FormatDOC))
	assert.Equal(t, 0.5, cfg.Analyzer.ConfidenceFloor)
	assert.Equal(t, model.RiskHigh, cfg.Analyzer.Flag.MinSeverity)
	assert.Equal(t, []string{"termination"}, cfg.Analyzer.Flag.WatchCategories)
	assert.Equal(t, model.ScorePolicy{Baseline: 10, HighWeight: 25, MediumWeight: 5}, cfg.Report.Score)
	assert.Equal(t, 3, cfg.Report.MaxRecommendations)
	assert.Equal(t, 2, cfg.Pipeline.MaxConcurrent)
	require.Len(t, cfg.Users, 1)
	assert.Equal(t, "testuser", cfg.Users[0].Username)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "auth:\n  jwt_secret: s\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 24, cfg.Auth.TokenExpireHours)
	assert.Equal(t, "vlm", cfg.Mineru.ModelVersion)
	assert.Equal(t, int64(10<<20), cfg.Ingest.MaxBytes)
	assert.Len(t, cfg.Ingest.AllowedFormats, 4)
	assert.Equal(t, "rules", cfg.Analyzer.Provider)
	assert.Equal(t, model.RiskMedium, cfg.Analyzer.Flag.MinSeverity)
	assert.Equal(t, model.RiskHigh, cfg.Analyzer.Flag.AlwaysAt)
	assert.Equal(t, DefaultScorePolicy(), cfg.Report.Score)
	assert.Equal(t, 5, cfg.Report.MaxRecommendations)
	assert.Equal(t, 4, cfg.Pipeline.MaxConcurrent)
	assert.False(t, cfg.Minio.Enabled())
	assert.False(t, cfg.Mineru.Enabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvPrefix+"JWT_SECRET", "from-env")
	t.Setenv(EnvPrefix+"ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load(writeConfig(t, "auth:\n  jwt_secret: from-file\nanalyzer:\n  provider: anthropic\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "sk-test", cfg.Anthropic.APIKey)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative weight", "report:\n  score:\n    high_weight: -1\n"},
		{"low flag threshold", "analyzer:\n  flag:\n    min_severity: low\n"},
		{"always below min", "analyzer:\n  flag:\n    min_severity: high\n    always_at: medium\n"},
		{"unknown provider", "analyzer:\n  provider: oracle\n"},
		{"anthropic without key", "analyzer:\n  provider: anthropic\n"},
		{"sqlite without dsn", "store:\n  driver: sqlite\n"},
		{"unknown store", "store:\n  driver: redis\n"},
		{"unknown format", "ingest:\n  allowed_formats: [odt]\n"},
		{"floor out of range", "analyzer:\n  confidence_floor: 1.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadNonExistent(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: yaml: content:"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestFindUser(t *testing.T) {
	cfg := &Config{
		Users: []User{
			{Username: "user1", PasswordHash: "h1", Tenant: "tenant1"},
			{Username: "user2", PasswordHash: "h2", Tenant: "tenant2"},
		},
	}

	user := cfg.FindUser("user1")
	require.NotNil(t, user)
	assert.Equal(t, "tenant1", user.Tenant)
	assert.Nil(t, cfg.FindUser("nonexistent"))
}
