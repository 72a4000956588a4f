package main

import (
	"os"

	"github.com/jsettlers-installer/installer/client/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
