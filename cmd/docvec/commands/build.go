package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the index from a JSON list of texts",
	Long: `Rebuild the index from scratch.

The input file must hold a JSON array of strings. All existing data is
discarded; ids restart at zero.

Example:
  docvec build -f texts.json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := cmd.Flags().GetString("file")
		if err != nil {
			return err
		}

		texts, err := loadTexts(path)
		if err != nil {
			return err
		}

		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		n, err := svc.BuildIndex(cmd.Context(), texts)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks\n", n)
		return nil
	},
}

func init() {
	buildCmd.Flags().StringP("file", "f", "", "JSON file with an array of texts (required)")
	_ = buildCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(buildCmd)
}

func loadTexts(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var texts []string
	if err := json.Unmarshal(data, &texts); err != nil {
		return nil, fmt.Errorf("parse %s: expected a JSON array of strings: %w", path, err)
	}
	return texts, nil
}
