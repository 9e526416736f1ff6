package main

import (
	"os"

	"github.com/Additional-Code/orderbook/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
