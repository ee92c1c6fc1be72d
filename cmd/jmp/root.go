/*
Copyright © 2023 Miguel Angel Ajo Pelayo <majopela@redhat.com>
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "jmp",
	Short: "Jumpstarter client/exporter CLI",
	Long:  `jmp serves an exporter, acquires and holds leases, and inspects a controller's state.`,
}

// Execute runs the root command; cmd/jmp/main.go is the only caller.
func Execute() error {
	return rootCmd.Execute()
}

func handleErrorAsFatal(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
