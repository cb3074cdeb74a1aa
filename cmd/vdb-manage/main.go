package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	di "github.com/vmindtech/vdb"
	"github.com/vmindtech/vdb/config"
	"github.com/vmindtech/vdb/internal/repository"
	"github.com/vmindtech/vdb/pkg/logging"
	"github.com/vmindtech/vdb/pkg/mysqldb"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vdb-manage",
	Short: "Operator tooling for the vdb control plane",
	Long: `vdb-manage runs maintenance tasks against the vdb state store:
schema migration, datastore catalog sync, quota administration and
recovery of stuck clusters.

It reads the same configuration as the API server.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(datastoreCmd)
	rootCmd.AddCommand(quotaCmd)
	rootCmd.AddCommand(reservationsCmd)
	rootCmd.AddCommand(clusterCmd)
}

// env is what every command needs from the API server's configuration.
type env struct {
	config config.IConfigureManager
	logger *logrus.Logger
	mysql  mysqldb.IMysqlInstance
}

func openEnv() (*env, error) {
	cm := config.NewConfigureManager()
	logger := logging.NewLogger(logging.Config{
		Service: logging.ServiceConfig{
			Env:     cm.GetWebConfig().Env,
			AppName: "vdb-manage",
			Version: Version,
		},
		Level: logrus.WarnLevel.String(),
	})

	mysqlInstance, err := mysqldb.InitMysqlDB(logger, cm.GetMysqlDBConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %v", err)
	}

	return &env{config: cm, logger: logger, mysql: mysqlInstance}, nil
}

func (e *env) repository() repository.IRepository {
	return repository.NewRepository(e.mysql)
}

func (e *env) container() *di.Container {
	return di.InitContainer(e.logger, e.config, e.mysql)
}

func (e *env) Close() {
	_ = e.mysql.Close()
}
