package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/AnTengye/contractlens/config"
	"github.com/AnTengye/contractlens/model"
	"github.com/AnTengye/contractlens/pipeline"
	"github.com/AnTengye/contractlens/report"
)

var (
	analyzeXLSX    string
	analyzeJSON    bool
	analyzeTimeout time.Duration
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyse a single contract locally and print the report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
		defer cancel()

		res, err := analyzeFile(ctx, cfg, args[0])
		if err != nil {
			return err
		}

		if analyzeXLSX != "" {
			data, err := report.XLSX(res)
			if err != nil {
				return err
			}
			if err := os.WriteFile(analyzeXLSX, data, 0o644); err != nil {
				return eris.Wrapf(err, "write %s", analyzeXLSX)
			}
		}

		out := cmd.OutOrStdout()
		if analyzeJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		printReport(out, res)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeXLSX, "xlsx", "", "also write the report as an XLSX workbook to this path")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full result as JSON")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 10*time.Minute, "give up after this long")
}

// analyzeFile runs one document through a private in-memory pipeline.
func analyzeFile(ctx context.Context, base *config.Config, path string) (*model.AnalysisResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}

	local := *base
	local.Store = config.StoreConfig{Driver: "memory"}
	comp, err := buildComponents(ctx, &local)
	if err != nil {
		return nil, err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = comp.Close(closeCtx)
	}()

	h, err := comp.manager.Submit(ctx, pipeline.SubmitRequest{
		Tenant:   "local",
		FileName: filepath.Base(path),
		Content:  content,
	})
	if err != nil {
		return nil, err
	}
	rec, err := comp.manager.Wait(ctx, h.ID)
	if err != nil {
		return nil, eris.Wrap(err, "wait for analysis")
	}
	return comp.manager.Result(ctx, rec.ID)
}

func printReport(w io.Writer, res *model.AnalysisResult) {
	fmt.Fprintf(w, "%s\n", res.FileName)
	fmt.Fprintf(w, "Contract type: %s  Language: %s\n", res.ContractType, res.Language)
	fmt.Fprintf(w, "Risk score:    %d/100 (%s)\n\n", res.OverallRiskScore, res.RiskLevel)
	fmt.Fprintf(w, "%s\n", res.ExecutiveSummary)

	var flagged []model.Clause
	for _, c := range res.Clauses {
		if c.Flagged {
			flagged = append(flagged, c)
		}
	}
	if len(flagged) > 0 {
		fmt.Fprintf(w, "\nFlagged clauses:\n")
		for _, c := range flagged {
			fmt.Fprintf(w, "  %d. %s [%s] %s\n", c.Index+1, c.Title, c.RiskLevel, c.FlagReason)
		}
	}
	if len(res.KeyFindings) > 0 {
		fmt.Fprintf(w, "\nKey findings:\n")
		for i, f := range res.KeyFindings {
			fmt.Fprintf(w, "  %d. %s\n", i+1, f)
		}
	}
	if len(res.Recommendations) > 0 {
		fmt.Fprintf(w, "\nRecommendations:\n")
		for i, r := range res.Recommendations {
			fmt.Fprintf(w, "  %d. %s\n", i+1, r)
		}
	}
}
