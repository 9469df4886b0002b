package main

import (
	"os"

	"github.com/go-exchange-reconciler/cmd/exchange_poller/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
