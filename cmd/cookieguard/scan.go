package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/olegrjumin/cookieguard/internal/config"
	"github.com/olegrjumin/cookieguard/internal/service"
)

var scanCmd = &cobra.Command{
	Use:   "scan <domain>...",
	Short: "Scan one or more domains and print the evaluations",
	Long: `Scan loads each domain, evaluates its consent setup and stores the result.

Examples:
  # Scan a single domain
  cookieguard scan example.com

  # Several domains as JSON, without Chrome
  cookieguard scan --driver static -o json example.com example.org`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return scanDomains(cmd, loadConfig(), args)
	},
}

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Scan every domain listed in DOMAINS",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if len(cfg.Domains) == 0 {
			return fmt.Errorf("DOMAINS is empty")
		}
		return scanDomains(cmd, cfg, cfg.Domains)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(autoCmd)
}

func scanDomains(cmd *cobra.Command, cfg *config.Config, domains []string) error {
	if output != "summary" && output != "json" {
		return fmt.Errorf("unknown output format %q", output)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	results := a.Service.ScanAll(ctx, domains, a.Batch())
	if err := writeResults(cmd.OutOrStdout(), output, results); err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scans failed", failed, len(results))
	}
	return nil
}

type jsonResult struct {
	Domain     string `json:"domain"`
	Evaluation any    `json:"evaluation,omitempty"`
	Error      string `json:"error,omitempty"`
}

// writeResults prints one line per domain, or a JSON array
func writeResults(w io.Writer, format string, results []service.BatchResult) error {
	if format == "json" {
		out := make([]jsonResult, 0, len(results))
		for _, res := range results {
			jr := jsonResult{Domain: res.Domain}
			if res.Err != nil {
				jr.Error = res.Err.Error()
			} else {
				jr.Evaluation = res.Evaluation
			}
			out = append(out, jr)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(w, "%-30s ERROR  %v\n", res.Domain, res.Err)
			continue
		}
		ev := res.Evaluation
		banner := "no"
		if ev.Banner.Detected() {
			banner = "yes"
		}
		fmt.Fprintf(w, "%-30s %-6s cookies=%d banner=%s action=%s  %s\n",
			ev.Domain, ev.OverallRating, len(ev.Cookies), banner, ev.Interaction.Action, ev.Explanation)
	}
	return nil
}
