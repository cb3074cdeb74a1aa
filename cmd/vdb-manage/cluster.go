package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Recover clusters",
}

var clusterResetStatusCmd = &cobra.Command{
	Use:   "reset-status CLUSTER_ID",
	Short: "Clear the task of a cluster and its members",
	Long: `Reset a cluster left in a working task after a failed or interrupted
workflow. With --force-delete the cluster is deleted afterwards and the
command waits for the delete workflow to finish.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		forceDelete, _ := cmd.Flags().GetBool("force-delete")

		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		container := e.container()
		container.Broker.Start()
		defer container.Broker.Stop()

		if err := container.AppService.Cluster().ResetStatus(cmd.Context(), args[0], forceDelete); err != nil {
			return err
		}

		if forceDelete {
			fmt.Println("Waiting for the delete workflow...")
		}
		container.Executor.Wait()
		container.Executor.Shutdown()

		fmt.Printf("✓ Cluster %s reset\n", args[0])

		return nil
	},
}

func init() {
	clusterResetStatusCmd.Flags().Bool("force-delete", false, "Delete the cluster after resetting it")

	clusterCmd.AddCommand(clusterResetStatusCmd)
}
