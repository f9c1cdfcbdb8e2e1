package main

import (
	"os"

	"github.com/wayneeseguin/omnipipe/cmd/omnipipe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
