/*
Copyright © 2023 Miguel Angel Ajo Pelayo <majopela@redhat.com>
*/
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jumpstarter-dev/jumpstarter/pkg/config"
	"github.com/jumpstarter-dev/jumpstarter/pkg/driver"
	"github.com/jumpstarter-dev/jumpstarter/pkg/exporter"
)

var exporterCmd = &cobra.Command{
	Use:   "exporter",
	Short: "Commands for running an exporter",
}

var exporterServeCmd = &cobra.Command{
	Use:   "serve <config.yaml>",
	Short: "Register with the controller and serve leases against this driver tree",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadExporterConfig(args[0])
		handleErrorAsFatal(err)

		ctrl, conn, err := dialController(cfg.Endpoint, cfg.Token)
		handleErrorAsFatal(err)
		defer conn.Close()

		e := exporter.New(exporter.Config{
			Labels: cfg.Labels,
			DriverFactory: func() driver.Driver {
				root, err := config.BuildRoot(cfg.Export, cfg.Labels)
				if err != nil {
					log.Fatalf("jmp: building driver tree: %v", err)
				}
				return root
			},
			BeforeLease: cfg.Hooks.BeforeLease.ToHookConfig(),
			AfterLease:  cfg.Hooks.AfterLease.ToHookConfig(),
			SocketDir:   cfg.SocketDir,
		}, ctrl)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := e.Serve(ctx); err != nil && ctx.Err() == nil {
			log.Fatalf("jmp: exporter stopped: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(exporterCmd)
	exporterCmd.AddCommand(exporterServeCmd)
}
