package main

import (
	"flag"
	"fmt"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"order-approval-service/internal/activities"
	"order-approval-service/internal/approvals"
	"order-approval-service/internal/config"
	"order-approval-service/internal/db"
	"order-approval-service/internal/inventory"
	"order-approval-service/internal/logging"
	"order-approval-service/internal/notify"
	"order-approval-service/internal/payment"
	"order-approval-service/internal/workflows"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logger.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("opening database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Fatal("running migrations", zap.Error(err))
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logging.NewTemporalAdapter(logger),
	})
	if err != nil {
		logger.Fatal("connecting to Temporal", zap.Error(err))
	}
	defer c.Close()

	w := worker.New(c, workflows.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.OrderProcessingWorkflow)

	a := &activities.Activities{
		Store:     approvals.NewSQLiteStore(database.DB, logger),
		Inventory: inventory.NewSQLiteService(database.DB, logger),
		Payments:  payment.NewSimulatedProcessor(logger),
		Notifier:  notify.NewLogNotifier(logger),
		Logger:    logger,
	}
	w.RegisterActivity(a)

	logger.Info("worker started",
		zap.String("taskQueue", workflows.TaskQueue),
		zap.String("temporal", cfg.Temporal.HostPort))

	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("worker exited", zap.Error(err))
	}
}
