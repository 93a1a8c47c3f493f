// Package main is the entry point for the AYumeRNA API server.
package main

import (
	"os"

	"github.com/Lovelumine/AYumeRNA/cmd/ayume-api/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
