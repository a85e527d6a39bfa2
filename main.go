package main

import (
	"os"

	"github.com/cardforge/cardforge/app"
)

func main() {
	if err := app.Execute(); err != nil {
		os.Exit(1)
	}
}
