package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	di "github.com/vmindtech/vdb"
	"github.com/vmindtech/vdb/config"
	"github.com/vmindtech/vdb/internal/notification"
	"github.com/vmindtech/vdb/pkg/healthcheck"
	"github.com/vmindtech/vdb/pkg/localizer"
	"github.com/vmindtech/vdb/pkg/logging"
	"github.com/vmindtech/vdb/pkg/mysqldb"
)

func main() {
	configureManager := config.NewConfigureManager()
	web := configureManager.GetWebConfig()
	logstash := configureManager.GetLogstashConfig()
	openSearch := configureManager.GetOpenSearchConfig()
	logger := logging.NewLogger(logging.Config{
		Service: logging.ServiceConfig{
			Env:     web.Env,
			AppName: web.AppName,
			Version: web.Version,
		},
		Level: web.LogLevel,
		Logstash: &logging.LogstashConfig{
			Host: logstash.Host,
			Port: logstash.Port,
		},
		OpenSearch: &logging.OpenSearchConfig{
			Addresses: openSearch.Addresses,
			Username:  openSearch.Username,
			Password:  openSearch.Password,
			Index:     openSearch.Index,
			MinLevel:  openSearch.MinLevel,

			InsecureSkipVerify: openSearch.InsecureSkipVerify,
		},
	})

	logger.Info("starting app")

	mysqlInstance, err := mysqldb.InitMysqlDB(logger, configureManager.GetMysqlDBConfig())
	if err != nil {
		logger.Fatalf("connection: mysql %v", err)
	}
	defer mysqlInstance.Close()

	container := di.InitContainer(logger, configureManager, mysqlInstance)
	container.Broker.Start()

	app := initApplication(&application{
		Logger: logger,
		LanguageBundle: localizer.InitLocalizer(
			configureManager.GetLanguageConfig().Default, configureManager.GetLanguageConfig().Languages,
		),
		Container:         container,
		OperatorProjectID: configureManager.GetServiceCredentialsConfig().ProjectID,
	})

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	workers, workerCtx := errgroup.WithContext(workerCtx)
	workers.Go(func() error {
		container.Poller.Run(workerCtx)
		return nil
	})
	workers.Go(func() error {
		container.Sweeper.Run(workerCtx)
		return nil
	})
	workers.Go(func() error {
		notification.CountEvents(workerCtx, container.Broker)
		return nil
	})

	go func() {
		healthcheck.InitHealthCheck()

		if serveErr := app.Listen(fmt.Sprintf(":%s", web.Port)); serveErr != nil {
			logger.Fatalf("connection: web server %v", serveErr)
		}
	}()

	// Wait for gracefully shutdown (Interrupt)
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)

	<-c

	healthcheck.ServerShutdown()
	if shutdownErr := app.Shutdown(); shutdownErr != nil {
		logger.Error(shutdownErr)
	}

	stopWorkers()
	_ = workers.Wait()

	// Running workflows see their context cancelled and leave the cluster
	// task in place for reset-status.
	container.Executor.Shutdown()
	container.Broker.Stop()

	logger.Info("stopped app")
}
