package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/clinrag/internal/index"
	"github.com/ziadkadry99/clinrag/internal/rag"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question about the ingested documents",
	Long:  `Retrieves relevant chunks from the index and synthesizes a cited answer. Use --search to see the raw retrieval results instead.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().Int("limit", 0, "maximum number of retrieved chunks")
	queryCmd.Flags().String("document", "", "restrict to a single document id")
	queryCmd.Flags().Bool("search", false, "show raw retrieval results without generation")
	queryCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	question := args[0]

	limit, _ := cmd.Flags().GetInt("limit")
	docID, _ := cmd.Flags().GetString("document")
	searchOnly, _ := cmd.Flags().GetBool("search")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.rebuildIndex(ctx); err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}
	if a.manager.EntryCount() == 0 {
		fmt.Println("Index is empty. Run `clinrag ingest <dir>` or upload documents first.")
		return nil
	}

	if searchOnly {
		return runSearch(ctx, a, question, docID, limit, jsonOutput)
	}

	resp, err := a.rag.Answer(ctx, rag.Query{
		Question:   question,
		DocumentID: docID,
		TopK:       limit,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Println(resp.Answer)
	if resp.Degraded {
		fmt.Println("\n(no document context was available for this answer)")
	}
	if len(resp.Citations) > 0 {
		fmt.Println("\nSources:")
		for _, c := range resp.Citations {
			fmt.Printf("  - %s (chunk %d)\n", c.Filename, c.Seq)
		}
	}
	return nil
}

func runSearch(ctx context.Context, a *app, query, docID string, limit int, jsonOutput bool) error {
	var filter *index.Filter
	if docID != "" {
		filter = &index.Filter{DocumentID: docID}
	}

	results, err := a.search.Search(ctx, query, filter, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	fmt.Printf("Found %d result(s):\n\n", len(results))
	for i, r := range results {
		fmt.Printf("  %d. [%.3f] %s (chunk %d)\n", i+1, r.Score, r.Filename, r.Seq)
		fmt.Printf("     %s\n\n", truncate(r.Text, 160))
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
