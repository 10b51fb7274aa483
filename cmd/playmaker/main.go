package main

import (
	"os"

	"github.com/dgallion/playmaker/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
