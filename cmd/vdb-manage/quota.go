package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmindtech/vdb/internal/service"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Manage tenant quotas",
}

var quotaSetCmd = &cobra.Command{
	Use:   "set TENANT RESOURCE LIMIT",
	Short: "Set the limit of a resource for a tenant (-1 for unlimited)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid limit %q: %v", args[2], err)
		}

		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		quota := service.NewQuotaService(e.logger, e.repository(), e.config.GetQuotaConfig())
		if err := quota.SetLimit(cmd.Context(), args[0], args[1], limit); err != nil {
			return err
		}

		fmt.Printf("✓ %s limit of %s set to %d\n", args[1], args[0], limit)

		return nil
	},
}

var quotaShowCmd = &cobra.Command{
	Use:   "show TENANT",
	Short: "Show limits and usage of a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		quota := service.NewQuotaService(e.logger, e.repository(), e.config.GetQuotaConfig())
		usage, err := quota.Usage(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "RESOURCE\tLIMIT\tIN USE\tRESERVED\tAVAILABLE")
		for _, u := range usage {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", u.Resource, u.Limit, u.InUse, u.Reserved, u.Available)
		}

		return w.Flush()
	},
}

var reservationsCmd = &cobra.Command{
	Use:   "reservations",
	Short: "Manage quota reservations",
}

var reservationsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Roll back reservations that were never committed",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		expire := e.config.GetQuotaConfig().ReservationExpire
		if override, _ := cmd.Flags().GetDuration("older-than"); override > 0 {
			expire = override
		}

		quota := service.NewQuotaService(e.logger, e.repository(), e.config.GetQuotaConfig())
		n, err := service.NewReservationSweeper(e.logger, quota, expire, 0).Sweep(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("✓ Rolled back %d reservations\n", n)

		return nil
	},
}

func init() {
	reservationsSweepCmd.Flags().Duration("older-than", time.Duration(0), "Age of reservations to roll back (defaults to RESERVATION_EXPIRE)")

	quotaCmd.AddCommand(quotaSetCmd)
	quotaCmd.AddCommand(quotaShowCmd)
	reservationsCmd.AddCommand(reservationsSweepCmd)
}
