package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/clinrag/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default clinrag.yml configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfgFile); err == nil {
			return fmt.Errorf("%s already exists", cfgFile)
		}

		cfg := config.DefaultConfig()
		if err := cfg.Save(cfgFile); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Wrote %s\n", cfgFile)
		fmt.Println("Set OPENAI_API_KEY (or switch provider to ollama) before running `clinrag serve`.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
