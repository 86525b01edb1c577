package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Import a legacy chunk list",
	Long: `Import the legacy chunk list (legacy.json in the data directory,
or the file passed with --legacy-file) into the index and the store.

Migration runs at most once; a marker in the metadata database guards
against double imports. The legacy file is left in place.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := newService(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		n, err := svc.Migrate(cmd.Context())
		if err != nil {
			return err
		}

		if n == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to migrate")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d chunks\n", n)
		return nil
	},
}

func init() {
	migrateCmd.Flags().String("legacy-file", "", "legacy chunk list location (default: <data-dir>/legacy.json)")
	rootCmd.AddCommand(migrateCmd)
}
