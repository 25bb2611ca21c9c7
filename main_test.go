package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/AnTengye/contractlens/config"
	"github.com/AnTengye/contractlens/model"
)

const sampleLease = `LEASE AGREEMENT

1. Rent
The Tenant shall pay monthly rent within 5 days of the due date. Late payments shall attract interest at 24% per annum.

2. Renewal
This Lease shall automatically renew for successive periods of 12 months unless terminated with 90 days notice.

3. Dispute Resolution
Any dispute shall be referred to arbitration in Mumbai.
`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		analyzeXLSX, analyzeJSON = "", false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCommandHasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"serve", "analyze", "hash-password"} {
		assert.True(t, names[name], "expected subcommand %q", name)
	}
	assert.Equal(t, "contractlens", rootCmd.Use)
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, serveCmd.Flags().Lookup("port"))
}

func TestAnalyzeCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lease.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleLease), 0o600))
	xlsxPath := filepath.Join(dir, "report.xlsx")

	out, err := execute(t, "", "analyze", path, "--xlsx", xlsxPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "lease.txt")
	assert.Contains(t, out, "Risk score:")
	assert.Contains(t, out, "/100")

	data, err := os.ReadFile(xlsxPath)
	require.NoError(t, err)
	book, err := xlsx.OpenBinary(data)
	require.NoError(t, err)
	assert.Len(t, book.Sheets, 4)
}

func TestAnalyzeCommandJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lease.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleLease), 0o600))

	out, err := execute(t, "", "analyze", path, "--json")
	require.NoError(t, err, out)

	var res model.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "lease.txt", res.FileName)
	assert.NotEmpty(t, res.Clauses)
}

func TestAnalyzeCommandErrors(t *testing.T) {
	_, err := execute(t, "", "analyze", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "tool.exe")
	require.NoError(t, os.WriteFile(path, []byte("MZ"), 0o600))
	_, err = execute(t, "", "analyze", path)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindValidation))
}

func TestHashPasswordCommand(t *testing.T) {
	out, err := execute(t, "", "hash-password", "s3cret", "--cost", "4")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("s3cret")))

	out, err = execute(t, "from-stdin\n", "hash-password", "--cost", "4")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("from-stdin")))

	_, err = execute(t, "", "hash-password", "--cost", "4")
	assert.Error(t, err)
}

func TestLoadConfigExplicitMissingFile(t *testing.T) {
	_, err := execute(t, "", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "hash-password", "x", "--cost", "4")
	assert.Error(t, err)
	t.Cleanup(func() {
		configPath = "config.yaml"
		rootCmd.PersistentFlags().Lookup("config").Changed = false
	})
}

func TestNewClassifier(t *testing.T) {
	c := config.Default()
	_, err := newClassifier(c)
	require.NoError(t, err)

	c.Analyzer.Provider = "anthropic"
	_, err = newClassifier(c)
	assert.Error(t, err)

	c.Anthropic.APIKey = "key"
	_, err = newClassifier(c)
	assert.NoError(t, err)

	c.Analyzer.Provider = "oracle"
	_, err = newClassifier(c)
	assert.Error(t, err)
}
