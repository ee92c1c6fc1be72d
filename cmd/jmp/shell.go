/*
Copyright © 2023 Miguel Angel Ajo Pelayo <majopela@redhat.com>
*/
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jumpstarter-dev/jumpstarter/pkg/client"
	"github.com/jumpstarter-dev/jumpstarter/pkg/config"
	jumpstarterv1 "github.com/jumpstarter-dev/jumpstarter/pkg/wire/jumpstarterv1"
)

var clientShellCmd = &cobra.Command{
	Use:   "shell <selector>",
	Short: "Acquire a lease, connect, and issue driver calls interactively",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		profile, _ := cmd.Flags().GetString("client")
		configPath, _ := cmd.Flags().GetString("config")
		unsafe, _ := cmd.Flags().GetBool("unsafe")
		allow, _ := cmd.Flags().GetStringArray("allow")

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

		lease, err := client.AcquireLease(ctx, ctrl, client.Options{
			Selector: selector,
			Duration: clientCfg.LeaseDuration,
		})
		handleErrorAsFatal(err)
		defer func() { _ = client.Release(ctx, ctrl, lease.Name) }()

		dial, err := ctrl.Dial(ctx, &jumpstarterv1.DialRequest{LeaseName: lease.Name})
		handleErrorAsFatal(err)

		sockDir, _ := cmd.Flags().GetString("socket-dir")
		link, err := client.Connect(ctx, lease.Name, dial.RouterEndpoint, dial.RouterToken, sockDir)
		handleErrorAsFatal(err)
		defer link.Close()

		report, err := link.Exporter.GetReport(ctx, &jumpstarterv1.Empty{})
		handleErrorAsFatal(err)

		root, err := client.BuildStubTree(ctx, report, link.Exporter, client.StubOptions{
			Allow:  allow,
			Unsafe: unsafe || clientCfg.AllowUnsafe,
		})
		handleErrorAsFatal(err)

		color.Green("leased %s, %d driver(s) attached — ctrl-d to exit", lease.Name, len(root.Children))
		runShell(ctx, root)
	},
}

// runShell reads "<driver>[.<driver>...] <method> [args...]" lines from
// stdin and issues the corresponding Call against the resolved child.
func runShell(ctx context.Context, root *client.DriverClient) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			color.Yellow("usage: <driver>[.<driver>...] <method> [args...]")
			fmt.Print("> ")
			continue
		}
		target, method, callArgs := fields[0], fields[1], fields[2:]
		d := resolve(root, target)
		if d == nil {
			color.Red("no driver named %q", target)
			fmt.Print("> ")
			continue
		}
		anyArgs := make([]any, len(callArgs))
		for i, a := range callArgs {
			anyArgs[i] = a
		}
		result, err := d.Call(ctx, method, anyArgs...)
		if err != nil {
			color.Red("error: %v", err)
		} else {
			fmt.Printf("%v\n", result)
		}
		fmt.Print("> ")
	}
}

func resolve(root *client.DriverClient, path string) *client.DriverClient {
	cur := root
	for _, name := range strings.Split(path, ".") {
		next, ok := cur.Children[name]
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

func init() {
	clientCmd.AddCommand(clientShellCmd)
	clientShellCmd.Flags().Bool("unsafe", false, "allow every driver class, built-in or not")
	clientShellCmd.Flags().StringArray("allow", nil, "driver class prefixes to allow beyond the built-in registry")
	clientShellCmd.Flags().String("socket-dir", defaultSocketDir(), "directory for the local lease socket")
}
