package main

import (
	"os"

	appLog "festcal/internal/log"
)

func main() {
	defer appLog.Sync()

	if err := newRootCommand().Execute(); err != nil {
		appLog.Error("festcal failed", err)
		appLog.Sync()
		os.Exit(1)
	}
}
