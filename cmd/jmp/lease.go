/*
Copyright © 2023 Miguel Angel Ajo Pelayo <majopela@redhat.com>
*/
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jumpstarter-dev/jumpstarter/pkg/client"
	"github.com/jumpstarter-dev/jumpstarter/pkg/config"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Commands for leasing and driving an exporter",
}

var clientLeaseCmd = &cobra.Command{
	Use:   "lease <selector>",
	Short: "Acquire a lease matching selector and hold it until interrupted",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		profile, err := cmd.Flags().GetString("client")
		handleErrorAsFatal(err)
		duration, err := cmd.Flags().GetDuration("duration")
		handleErrorAsFatal(err)
		configPath, err := cmd.Flags().GetString("config")
		handleErrorAsFatal(err)

		cfg, err := config.LoadUserConfig(configPath)
		handleErrorAsFatal(err)
		clientCfg, err := cfg.Client(profile)
		handleErrorAsFatal(err)

		selector, err := parseSelector(args[0])
		handleErrorAsFatal(err)

		ctrl, conn, err := dialController(clientCfg.Endpoint, clientCfg.Token)
		handleErrorAsFatal(err)
		defer conn.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if duration <= 0 {
			duration = clientCfg.LeaseDuration
		}
		lease, err := client.AcquireLease(ctx, ctrl, client.Options{
			Selector: selector,
			Duration: duration,
		})
		handleErrorAsFatal(err)

		fmt.Printf("leased %s (exporter %s)\n", lease.Name, lease.ExporterUUID)
		fmt.Println("press Ctrl-C to release")

		<-ctx.Done()

		if err := client.Release(ctx, ctrl, lease.Name); err != nil {
			fmt.Println("jmp: releasing lease:", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.AddCommand(clientLeaseCmd)
	clientCmd.PersistentFlags().String("client", "", "named client profile to use (defaults to current-client)")
	clientCmd.PersistentFlags().String("config", defaultUserConfigPath(), "path to the user config file")
	clientLeaseCmd.Flags().Duration("duration", 0, "requested lease duration (defaults to the profile's leaseDuration)")
}
