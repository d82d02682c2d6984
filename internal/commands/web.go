// internal/commands/web.go
package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/logging"
	"github.com/ragline/ragline/internal/web"
)

// webCmd serves the browser chat interface.
var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve the browser chat interface",
	Long: `The 'web' command starts an HTTP server hosting a chat page backed
by the same pipeline as the terminal chat, plus /healthz and /metrics
endpoints. It runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pipeline, err := buildPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		if err := pipeline.Warmup(ctx); err != nil {
			logging.LogEvent("[WEB] Warmup failed, continuing anyway: %v", err)
		}

		fmt.Printf("Serving chat on http://localhost%s\n", cfg.ListenAddr())
		return web.NewServer(cfg, pipeline).Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(webCmd)
}
