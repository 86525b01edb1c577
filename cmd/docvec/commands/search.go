package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index",
	Long: `Embed the query and return the k nearest chunks.

Example:
  docvec search "pump cavitation symptoms" -k 10
  docvec search "pump cavitation symptoms" --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := cmd.Flags().GetInt("top-k")
		if err != nil {
			return err
		}
		asJSON, err := cmd.Flags().GetBool("json")
		if err != nil {
			return err
		}

		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		results, err := svc.Search(cmd.Context(), args[0], k)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSCORE\tDOC\tTEXT")
		for _, r := range results {
			fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\n", r.ID, r.Score, r.DocID, truncate(r.Text, 80))
		}
		return w.Flush()
	},
}

func init() {
	searchCmd.Flags().IntP("top-k", "k", 5, "number of results")
	searchCmd.Flags().Bool("json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(searchCmd)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
