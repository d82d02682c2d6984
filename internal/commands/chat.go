// internal/commands/chat.go
package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/metrics"
	"github.com/ragline/ragline/internal/rag"
	"github.com/ragline/ragline/internal/tui"
)

var plainChat bool

// chatCmd starts an interactive question-answering session.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session over the indexed documents",
	Long: `The 'chat' command answers questions using the ingested knowledge
base. Each question is embedded, the most relevant chunks are retrieved,
and the generation model answers from that context alone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		ctx := cmd.Context()

		pipeline, err := buildPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		if err := pipeline.Warmup(ctx); err != nil {
			return err
		}

		if plainChat {
			return runPlainChat(cmd, pipeline)
		}
		return tui.Run(ctx, cfg, pipeline)
	},
}

// runPlainChat is the line-oriented fallback for terminals where the full
// screen interface is unwanted (pipes, dumb terminals, scripting).
func runPlainChat(cmd *cobra.Command, pipeline *rag.Pipeline) error {
	prompt := color.New(color.FgBlue, color.Bold).SprintFunc()
	errText := color.New(color.FgRed).SprintFunc()
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Ask about your documents. Ctrl+D to quit.")
	for {
		fmt.Print(prompt("You: "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}

		start := time.Now()
		fragments, errs := pipeline.AnswerStream(cmd.Context(), question)
		for fragment := range fragments {
			fmt.Print(fragment)
		}
		if err := <-errs; err != nil {
			metrics.GetInstance().RecordRequest(false, time.Since(start), rag.ErrorCategory(err))
			fmt.Println(errText(err.Error()))
			continue
		}
		metrics.GetInstance().RecordRequest(true, time.Since(start), "")
		fmt.Println()
		fmt.Println()
	}
}

func init() {
	chatCmd.Flags().BoolVar(&plainChat, "plain", false, "line-oriented chat without the full-screen interface")
	rootCmd.AddCommand(chatCmd)
}
