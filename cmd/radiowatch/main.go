package main

import (
	"os"

	"github.com/audiosolutions/radiowatch/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
