/*
Copyright © 2023 Miguel Angel Ajo Pelayo <majopela@redhat.com>
*/
package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
	"github.com/spf13/cobra"

	"github.com/jumpstarter-dev/jumpstarter/pkg/config"
	jumpstarterv1 "github.com/jumpstarter-dev/jumpstarter/pkg/wire/jumpstarterv1"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Commands for inspecting a controller's state",
}

var adminListExportersCmd = &cobra.Command{
	Use:   "list-exporters",
	Short: "List exporters registered with the controller",
	Run: func(cmd *cobra.Command, args []string) {
		ctrl := mustDialAdmin(cmd)
		resp, err := ctrl.ListExporters(context.Background(), &jumpstarterv1.ListExportersRequest{})
		handleErrorAsFatal(err)

		t := table.NewWriter()
		t.AppendHeader(table.Row{"Name", "Labels"})
		for _, e := range resp.Exporters {
			t.AppendRow(table.Row{e.Name, formatLabels(e.Labels)})
		}
		applyTableStyle(t)
		fmt.Println(t.Render())
	},
}

var adminListLeasesCmd = &cobra.Command{
	Use:   "list-leases",
	Short: "List active lease names known to the controller",
	Run: func(cmd *cobra.Command, args []string) {
		ctrl := mustDialAdmin(cmd)
		resp, err := ctrl.ListLeases(context.Background(), &jumpstarterv1.ListLeasesRequest{})
		handleErrorAsFatal(err)

		t := table.NewWriter()
		t.AppendHeader(table.Row{"Lease Name"})
		for _, name := range resp.Names {
			t.AppendRow(table.Row{name})
		}
		applyTableStyle(t)
		fmt.Println(t.Render())
	},
}

func mustDialAdmin(cmd *cobra.Command) jumpstarterv1.ControllerServiceClient {
	profile, _ := cmd.Flags().GetString("client")
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadUserConfig(configPath)
	handleErrorAsFatal(err)
	clientCfg, err := cfg.Client(profile)
	handleErrorAsFatal(err)

	ctrl, _, err := dialController(clientCfg.Endpoint, clientCfg.Token)
	handleErrorAsFatal(err)
	return ctrl
}

func formatLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	return strings.Join(parts, ", ")
}

func applyTableStyle(t table.Writer) {
	t.SetStyle(table.Style{
		Name: "jmpStyle",
		Box: table.BoxStyle{
			BottomLeft:       "+",
			BottomRight:      "+",
			BottomSeparator:  "+",
			Left:             "|",
			LeftSeparator:    "+",
			MiddleHorizontal: "-",
			MiddleSeparator:  "+",
			MiddleVertical:   "|",
			PaddingLeft:      " ",
			PaddingRight:     " ",
			Right:            "|",
			RightSeparator:   "+",
			TopLeft:          "+",
			TopRight:         "+",
			TopSeparator:     "+",
			UnfinishedRow:    " ~",
		},
		Color: table.ColorOptions{
			Header:      text.Colors{text.FgGreen},
			IndexColumn: text.Colors{text.FgGreen},
		},
	})
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminListExportersCmd)
	adminCmd.AddCommand(adminListLeasesCmd)
	adminCmd.PersistentFlags().String("client", "", "named client profile to use (defaults to current-client)")
	adminCmd.PersistentFlags().String("config", defaultUserConfigPath(), "path to the user config file")
}
