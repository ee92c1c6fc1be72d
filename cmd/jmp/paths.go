/*
Copyright © 2023 Miguel Angel Ajo Pelayo <majopela@redhat.com>
*/
package main

import (
	"os"
	"path/filepath"
)

// defaultUserConfigPath mirrors kubectl's kubeconfig default location under
// the user's home directory.
func defaultUserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "jumpstarter.yaml"
	}
	return filepath.Join(home, ".config", "jumpstarter", "config.yaml")
}

// defaultSocketDir is where client.Connect binds its per-lease Unix socket.
func defaultSocketDir() string {
	dir := os.TempDir()
	return dir
}
