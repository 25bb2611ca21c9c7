package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/AnTengye/contractlens/config"
	"github.com/AnTengye/contractlens/pkg/logger"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "contractlens",
	Short: "Contract risk analysis for small businesses",
	Long: "Extracts text from uploaded contracts, splits it into clauses, rates each clause's risk " +
		"and builds a scored report with findings and recommendations.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = c

		logger.Init(&logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: os.Stderr,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")
	rootCmd.AddCommand(serveCmd, analyzeCmd, hashPasswordCmd)
}

// loadConfig reads the configuration file. A missing default file falls back
// to built-in defaults; a missing file named on the command line is an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		return config.Default(), nil
	}
	c, err := config.Load(configPath)
	if err != nil {
		return nil, eris.Wrap(err, "load config")
	}
	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
