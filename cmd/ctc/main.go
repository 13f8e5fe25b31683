package main

import (
	"os"

	"github.com/MeKo-Tech/goctc/cmd/ctc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
