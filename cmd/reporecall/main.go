package main

import (
	"os"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
