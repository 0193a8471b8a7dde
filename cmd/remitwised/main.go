package main

import (
	"os"

	"cosmossdk.io/log"

	"github.com/remitwise/remitwise/cmd/remitwised/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		log.NewLogger(os.Stderr).Error("failure when running app", "err", err)
		os.Exit(1)
	}
}
