package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmindtech/vdb/internal/catalog"
)

var datastoreCmd = &cobra.Command{
	Use:   "datastore",
	Short: "Manage the datastore catalog",
}

var datastoreSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load a datastore catalog file",
	Long: `Upsert datastores, versions, cluster options, configuration parameters
and capability overrides from a YAML catalog.

Examples:
  vdb-manage datastore sync -f catalog.yaml`,
	RunE: runDatastoreSync,
}

func init() {
	datastoreSyncCmd.Flags().StringP("file", "f", "", "YAML catalog to load (required)")
	_ = datastoreSyncCmd.MarkFlagRequired("file")

	datastoreCmd.AddCommand(datastoreSyncCmd)
}

func runDatastoreSync(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %v", err)
	}
	defer f.Close()

	c, err := catalog.Load(f)
	if err != nil {
		return err
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := catalog.Sync(cmd.Context(), e.repository(), c)
	if err != nil {
		return fmt.Errorf("failed to sync catalog: %v", err)
	}

	fmt.Printf("✓ Synced %s\n", res)

	return nil
}
