package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var appendCmd = &cobra.Command{
	Use:   "append",
	Short: "Append texts to the existing index",
	Long: `Append texts without rebuilding.

The input file must hold a JSON array of strings. Ids continue from the
store's high-water mark; the chunks are tagged with --doc-id.

Example:
  docvec append -f chunks.json --doc-id report-7`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := cmd.Flags().GetString("file")
		if err != nil {
			return err
		}
		docID, err := cmd.Flags().GetString("doc-id")
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

		n, err := svc.AppendTexts(cmd.Context(), texts, docID)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Appended %d chunks\n", n)
		return nil
	},
}

func init() {
	appendCmd.Flags().StringP("file", "f", "", "JSON file with an array of texts (required)")
	appendCmd.Flags().String("doc-id", "", "document id to tag the chunks with (required)")
	_ = appendCmd.MarkFlagRequired("file")
	_ = appendCmd.MarkFlagRequired("doc-id")
	rootCmd.AddCommand(appendCmd)
}
