package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/clinrag/internal/progress"
	"github.com/ziadkadry99/clinrag/internal/registry"
	"github.com/ziadkadry99/clinrag/internal/walker"
)

var (
	ingestInclude []string
	ingestExclude []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Ingest all documents under a directory",
	Long: `Walks the directory, registers every document with a detectable format
and runs them through conversion and indexing. Documents already
registered stay untouched; this command only adds new uploads.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := context.Background()
		if err := a.rebuildIndex(ctx); err != nil {
			return fmt.Errorf("rebuilding index: %w", err)
		}

		files, err := walker.Walk(walker.WalkerConfig{
			RootDir: args[0],
			Include: ingestInclude,
			Exclude: ingestExclude,
		})
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("No ingestable documents found.")
			return nil
		}

		var ids []string
		for _, f := range files {
			raw, err := os.ReadFile(f.Path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "skipping %s: %v\n", f.RelPath, err)
				continue
			}
			doc := &registry.Document{
				ID:       uuid.NewString(),
				Filename: f.RelPath,
				Format:   f.Format,
				Raw:      raw,
			}
			if err := a.registry.Create(ctx, doc); err != nil {
				return fmt.Errorf("registering %s: %w", f.RelPath, err)
			}
			ids = append(ids, doc.ID)
		}

		reporter := progress.NewReporter()
		reporter.Start(len(ids))
		result := a.pipeline.RunAll(ctx, ids, func(done, total int, docID string) {
			reporter.Update(done, docID)
		})
		reporter.Finish()

		fmt.Printf("Ingested %d of %d document(s)\n", result.Succeeded, len(ids))
		for _, err := range result.Errors {
			fmt.Fprintf(os.Stderr, "  %v\n", err)
		}
		if len(result.Errors) > 0 {
			return fmt.Errorf("%d document(s) failed", len(result.Errors))
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestInclude, "include", nil, "glob patterns to include (e.g. '**/*.docx')")
	ingestCmd.Flags().StringSliceVar(&ingestExclude, "exclude", nil, "glob patterns to exclude")
	rootCmd.AddCommand(ingestCmd)
}
