// internal/commands/ingest.go
package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ragline/ragline/internal/ingest"
	"github.com/ragline/ragline/internal/providerfactory"
	"github.com/ragline/ragline/internal/rag"
)

var (
	successMark = color.New(color.FgGreen).SprintFunc()
	infoText    = color.New(color.FgCyan).SprintFunc()
)

// ingestCmd rebuilds the vector index from the knowledge base.
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load the knowledge base and (re)build the vector index",
	Long: `The 'ingest' command reads every supported document (.txt, .md, .pdf)
from the knowledge base directory, splits them into overlapping chunks,
embeds each chunk, and writes the resulting index to disk. Any existing
index is replaced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		ctx := cmd.Context()
		start := time.Now()

		fmt.Printf("%s Loading documents from %s\n", infoText("→"), cfg.KnowledgeBaseDir)
		documents, err := ingest.Load(cfg.KnowledgeBaseDir, cfg.Recursive)
		if err != nil {
			return err
		}
		fmt.Printf("%s Loaded %d documents\n", successMark("✓"), len(documents))

		chunks, err := ingest.SplitDocuments(documents, cfg.ChunkSize, cfg.ChunkOverlap)
		if err != nil {
			return err
		}
		fmt.Printf("%s Split into %d chunks (size %d, overlap %d)\n", successMark("✓"), len(chunks), cfg.ChunkSize, cfg.ChunkOverlap)

		embedder, _, err := providerfactory.New(*cfg)
		if err != nil {
			return err
		}

		fmt.Printf("%s Embedding with %s, this can take a while...\n", infoText("→"), cfg.EmbeddingModel)
		index, err := rag.BuildIndex(ctx, chunks, embedder)
		if err != nil {
			return err
		}
		if err := index.Save(cfg.IndexDir); err != nil {
			return err
		}

		meta := index.Metadata()
		fmt.Printf("%s Indexed %d chunks (dimension %d) into %s in %s\n",
			successMark("✓"), meta.EntryCount, meta.Dimension, cfg.IndexDir, time.Since(start).Truncate(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
