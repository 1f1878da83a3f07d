package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API. When SCAN_SCHEDULE is set the DOMAINS list is
re-scanned on that cron schedule, and RULES_FILE is reloaded on change.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if servePort > 0 {
			cfg.Port = servePort
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "override listen port")
}
