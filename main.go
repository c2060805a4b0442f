package main

import (
	"os"

	"github.com/sharmasourab93/market-gen/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
