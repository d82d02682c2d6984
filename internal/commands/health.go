// internal/commands/health.go
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/appconfig"
	"github.com/ragline/ragline/internal/metrics"
	"github.com/ragline/ragline/internal/providerfactory"
	"github.com/ragline/ragline/internal/rag"
)

// errUnhealthy reports a failed check through the error return; Execute
// turns it into the process exit code after closing the logger.
var errUnhealthy = errors.New("health check failed")

// healthCmd reports backend reachability, index state, and request metrics.
var healthCmd = &cobra.Command{
	Use:           "health",
	Short:         "Check backend reachability, the index, and request metrics",
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHealth(cmd.Context(), getConfig(), cmd.OutOrStdout())
	},
}

func runHealth(ctx context.Context, cfg *appconfig.Config, out io.Writer) error {
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	healthy := true

	embedder, generator, err := providerfactory.New(*cfg)
	if err != nil {
		return err
	}
	if err := generator.Ping(ctx); err != nil {
		healthy = false
		fmt.Fprintf(out, "%s backend %s (%s): %v\n", bad("✗"), cfg.Backend, cfg.BackendURL, err)
	} else {
		fmt.Fprintf(out, "%s backend %s (%s) reachable\n", ok("✓"), cfg.Backend, cfg.BackendURL)
	}

	index, err := rag.LoadIndex(ctx, cfg.IndexDir, embedder)
	if err != nil {
		healthy = false
		fmt.Fprintf(out, "%s index: %v\n", bad("✗"), err)
	} else {
		meta := index.Metadata()
		fmt.Fprintf(out, "%s index: %d chunks, dimension %d, model %s\n", ok("✓"), meta.EntryCount, meta.Dimension, meta.Model)
	}

	snapshot := metrics.GetInstance().HealthSnapshot()
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(payload))

	if !healthy {
		return errUnhealthy
	}
	return nil
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
