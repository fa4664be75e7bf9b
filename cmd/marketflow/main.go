package main

import (
	"os"

	"github.com/neomorfeo/marketflow/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
