package main

import (
	"os"

	"github.com/nemeshnorbert/reveal/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
